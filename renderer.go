package chatrender

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"os"
	"time"

	"github.com/archivista/chatrender/internal/assets"
	"github.com/archivista/chatrender/internal/pipeline"
)

// DefaultTimeout bounds a single render or export call when the caller's
// context carries no deadline.
const DefaultTimeout = 2 * time.Minute

// Renderer turns archived chat content into repaired HTML and PDF documents.
// Construct with NewRenderer and functional options; the zero value is not
// usable. A Renderer is safe for sequential reuse; Close releases the PDF
// backend when one was started.
type Renderer struct {
	content   ContentStore
	media     MediaStore
	templates TemplateStore
	styles    styleStore
	converter pipeline.HTMLConverter
	pdf       pdfExporter
	log       *slog.Logger
	timeout   time.Duration
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithContentStore supplies the content store backing the store-addressed
// entry points (RenderMessage, RenderConversation, and friends).
func WithContentStore(s ContentStore) Option {
	return func(r *Renderer) { r.content = s }
}

// WithMediaStore supplies the media store used to resolve media references.
// Without one, every reference renders as an "unavailable" marker.
func WithMediaStore(s MediaStore) Option {
	return func(r *Renderer) { r.media = s }
}

// WithTemplateStore replaces the embedded template set.
func WithTemplateStore(s TemplateStore) Option {
	return func(r *Renderer) { r.templates = s }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.log = l }
}

// WithTimeout sets the per-call deadline applied when the caller's context
// has none.
func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// withPDFExporter swaps the PDF backend, for tests.
func withPDFExporter(p pdfExporter) Option {
	return func(r *Renderer) { r.pdf = p }
}

// withHTMLConverter swaps the Markdown converter, for tests.
func withHTMLConverter(c pipeline.HTMLConverter) Option {
	return func(r *Renderer) { r.converter = c }
}

// NewRenderer creates a Renderer with embedded templates and styles, the
// goldmark converter, and a lazily-launched headless-Chrome PDF backend.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		log:     slog.Default(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.templates == nil || r.styles == nil {
		embedded := assets.NewEmbeddedStore()
		if r.templates == nil {
			r.templates = embedded
		}
		if r.styles == nil {
			r.styles = embedded
		}
	}
	if r.converter == nil {
		r.converter = pipeline.NewGoldmarkConverter()
	}
	if r.pdf == nil {
		r.pdf = newRodExporter(r.timeout)
	}
	return r
}

// Close releases the PDF backend. Safe to call on a Renderer that never
// exported a PDF.
func (r *Renderer) Close() error {
	return r.pdf.Close()
}

// RenderMessage renders a single message into a one-fragment document.
func (r *Renderer) RenderMessage(ctx context.Context, id string, opts RenderOptions) (*RenderDocument, error) {
	ctx, cancel, err := r.prepare(ctx, &opts)
	if err != nil {
		return nil, err
	}
	defer cancel()

	item, err := r.content.Message(ctx, id)
	if err != nil {
		return nil, err
	}
	section, err := r.renderSection(ctx, "", []RenderableItem{*item}, nil, opts)
	if err != nil {
		return nil, err
	}
	return r.finish("", "", []Section{section}, opts), nil
}

// RenderChunk renders a single chunk into a one-fragment document.
func (r *Renderer) RenderChunk(ctx context.Context, id string, opts RenderOptions) (*RenderDocument, error) {
	ctx, cancel, err := r.prepare(ctx, &opts)
	if err != nil {
		return nil, err
	}
	defer cancel()

	item, err := r.content.Chunk(ctx, id)
	if err != nil {
		return nil, err
	}
	section, err := r.renderSection(ctx, "", []RenderableItem{*item}, nil, opts)
	if err != nil {
		return nil, err
	}
	return r.finish("", "", []Section{section}, opts), nil
}

// RenderConversation renders a conversation's messages in chronological
// order under the conversation title.
func (r *Renderer) RenderConversation(ctx context.Context, id string, opts RenderOptions) (*RenderDocument, error) {
	ctx, cancel, err := r.prepare(ctx, &opts)
	if err != nil {
		return nil, err
	}
	defer cancel()

	conv, err := r.content.Conversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(conv.Items) == 0 {
		return nil, fmt.Errorf("%w: conversation %q", ErrNoItems, id)
	}
	section, err := r.renderSection(ctx, "", conv.Items, nil, opts)
	if err != nil {
		return nil, err
	}
	subtitle := ""
	if conv.Created != "" {
		subtitle = "Created " + conv.Created
	}
	return r.finish(conv.Title, subtitle, []Section{section}, opts), nil
}

// RenderCollection renders a named collection in insertion order. Items that
// came from a conversation carry a "From conversation" header line.
func (r *Renderer) RenderCollection(ctx context.Context, name string, opts RenderOptions) (*RenderDocument, error) {
	ctx, cancel, err := r.prepare(ctx, &opts)
	if err != nil {
		return nil, err
	}
	defer cancel()

	coll, err := r.content.Collection(ctx, name)
	if err != nil {
		return nil, err
	}
	section, err := r.collectionSection(ctx, "", coll, opts)
	if err != nil {
		return nil, err
	}
	return r.finish(coll.Name, "", []Section{section}, opts), nil
}

// RenderBuffer renders an ephemeral buffer exactly like a collection.
func (r *Renderer) RenderBuffer(ctx context.Context, name string, opts RenderOptions) (*RenderDocument, error) {
	ctx, cancel, err := r.prepare(ctx, &opts)
	if err != nil {
		return nil, err
	}
	defer cancel()

	buf, err := r.content.Buffer(ctx, name)
	if err != nil {
		return nil, err
	}
	section, err := r.collectionSection(ctx, "", buf, opts)
	if err != nil {
		return nil, err
	}
	return r.finish(buf.Name, "", []Section{section}, opts), nil
}

// RenderCombined renders several collections into one document, one titled
// section per collection in the order given.
func (r *Renderer) RenderCombined(ctx context.Context, names []string, opts RenderOptions) (*RenderDocument, error) {
	ctx, cancel, err := r.prepare(ctx, &opts)
	if err != nil {
		return nil, err
	}
	defer cancel()

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no collections named", ErrNoItems)
	}
	sections := make([]Section, 0, len(names))
	for _, name := range names {
		coll, err := r.content.Collection(ctx, name)
		if err != nil {
			return nil, err
		}
		section, err := r.collectionSection(ctx, coll.Name, coll, opts)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}
	return r.finish("Combined collections", "", sections, opts), nil
}

// SerializeHTML renders the assembled document through its template into a
// complete standalone HTML page.
func (r *Renderer) SerializeHTML(doc *RenderDocument) (string, error) {
	asm := newDocumentAssembler(r.templates, r.styles, r.log)
	return asm.serializeHTML(doc)
}

// SerializePDF serializes the document to HTML, injects the print
// stylesheet, and converts through the headless-browser backend. When no
// browser can be launched the error wraps ErrPDFUnavailable and the HTML
// path remains usable.
func (r *Renderer) SerializePDF(ctx context.Context, doc *RenderDocument) ([]byte, error) {
	page, err := r.SerializeHTML(doc)
	if err != nil {
		return nil, err
	}
	if css, err := r.styles.Style(assets.PrintStyleName); err == nil {
		page = injectCSS(page, css)
	}
	ctx, cancel := r.callContext(ctx)
	defer cancel()
	return r.pdf.ToPDF(ctx, page)
}

// Export serializes the document in the given format and writes it to path.
// Write failures wrap ErrOutputWrite.
func (r *Renderer) Export(ctx context.Context, doc *RenderDocument, format, path string) error {
	var data []byte
	switch format {
	case FormatHTML:
		page, err := r.SerializeHTML(doc)
		if err != nil {
			return err
		}
		data = []byte(page)
	case FormatPDF:
		pdf, err := r.SerializePDF(ctx, doc)
		if err != nil {
			return err
		}
		data = pdf
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrOutputWrite, path, err)
	}
	r.log.Info("output written",
		slog.String("path", path),
		slog.String("format", format),
		slog.Int("bytes", len(data)))
	return nil
}

// prepare validates options, checks for a content store, and applies the
// default deadline. Shared preamble of every store-addressed entry point.
func (r *Renderer) prepare(ctx context.Context, opts *RenderOptions) (context.Context, context.CancelFunc, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	if r.content == nil {
		return nil, nil, ErrNoContentStore
	}
	ctx, cancel := r.callContext(ctx)
	return ctx, cancel, nil
}

// callContext applies the configured timeout unless the caller already set a
// deadline.
func (r *Renderer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// collectionSection renders a collection's items, attaching per-item source
// headers where the collection recorded one.
func (r *Renderer) collectionSection(ctx context.Context, title string, coll *Collection, opts RenderOptions) (Section, error) {
	if len(coll.Items) == 0 {
		return Section{}, fmt.Errorf("%w: collection %q", ErrNoItems, coll.Name)
	}
	items := make([]RenderableItem, len(coll.Items))
	headers := make([]string, len(coll.Items))
	for i, ci := range coll.Items {
		items[i] = ci.Item
		if ci.Conversation != "" {
			headers[i] = "From conversation: " + ci.Conversation
		}
	}
	return r.renderSection(ctx, title, items, headers, opts)
}

// renderSection runs the repair-and-convert pipeline over each item. One
// item failing to convert does not abort the document: the failure is logged
// and a visible error marker takes the fragment's place. Context
// cancellation still aborts the whole call.
func (r *Renderer) renderSection(ctx context.Context, title string, items []RenderableItem, headers []string, opts RenderOptions) (Section, error) {
	section := Section{Title: title}
	for i, item := range items {
		header := ""
		if i < len(headers) {
			header = headers[i]
		}
		frag, err := r.renderItem(ctx, item, header, opts)
		if err != nil {
			if ctx.Err() != nil {
				return Section{}, ctx.Err()
			}
			r.log.Error("item render failed, inserting marker",
				slog.String("item", item.ID),
				slog.Any("error", err))
			frag = Fragment{
				ItemID: item.ID,
				Role:   NormalizeRole(item.Role),
				Header: header,
				HTML: `<p class="render-error">[content could not be rendered: ` +
					html.EscapeString(item.ID) + `]</p>`,
			}
		}
		section.Fragments = append(section.Fragments, frag)
	}
	return section, nil
}

// renderItem runs one item through the five pipeline stages in order:
// delimiter normalization, math protection, media extraction, Markdown
// conversion, then math restoration, media substitution, and post-render
// repair on the resulting HTML.
func (r *Renderer) renderItem(ctx context.Context, item RenderableItem, header string, opts RenderOptions) (Fragment, error) {
	norm := pipeline.NewNormalizer(opts.DollarHeuristic)
	text, spans, diags := norm.Normalize(item.Text)
	for _, d := range diags {
		r.log.Debug("delimiter repair",
			slog.String("item", item.ID),
			slog.String("detail", d.String()))
	}

	protected := pipeline.ProtectMath(text, spans)

	resolver := newMediaResolver(r.media, r.log)
	withMedia, resolved := resolver.extract(ctx, protected.Text, &item)

	body, err := r.converter.ToHTML(ctx, withMedia)
	if err != nil {
		return Fragment{}, err
	}

	body = pipeline.RestoreMath(body, protected)
	body = resolver.substitute(body, resolved, opts.MediaDisplay)
	body = pipeline.RepairHTML(body)

	gencom, err := gencomFields(item.Metadata, opts)
	if err != nil {
		return Fragment{}, err
	}

	frag := Fragment{
		ItemID:   item.ID,
		Role:     NormalizeRole(item.Role),
		Header:   header,
		HTML:     body,
		Metadata: item.Metadata,
		Gencom:   gencom,
	}
	if opts.IncludeRaw {
		frag.Raw = item.Text
	}
	return frag, nil
}

// finish assembles the final document and logs a summary.
func (r *Renderer) finish(title, subtitle string, sections []Section, opts RenderOptions) *RenderDocument {
	asm := newDocumentAssembler(r.templates, r.styles, r.log)
	doc := asm.assemble(title, subtitle, sections, opts)
	r.log.Info("document assembled",
		slog.String("title", doc.Title),
		slog.String("template", doc.Template),
		slog.Int("items", doc.items()))
	return doc
}
