package chatrender

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/archivista/chatrender/internal/pipeline"
)

// fakeContentStore serves canned content.
type fakeContentStore struct {
	messages      map[string]RenderableItem
	chunks        map[string]RenderableItem
	conversations map[string]Conversation
	collections   map[string]Collection
	buffers       map[string]Collection
}

func (f *fakeContentStore) Message(_ context.Context, id string) (*RenderableItem, error) {
	if item, ok := f.messages[id]; ok {
		return &item, nil
	}
	return nil, fmt.Errorf("%w: message %q", ErrContentNotFound, id)
}

func (f *fakeContentStore) Chunk(_ context.Context, id string) (*RenderableItem, error) {
	if item, ok := f.chunks[id]; ok {
		return &item, nil
	}
	return nil, fmt.Errorf("%w: chunk %q", ErrContentNotFound, id)
}

func (f *fakeContentStore) Conversation(_ context.Context, id string) (*Conversation, error) {
	if conv, ok := f.conversations[id]; ok {
		return &conv, nil
	}
	return nil, fmt.Errorf("%w: conversation %q", ErrContentNotFound, id)
}

func (f *fakeContentStore) Collection(_ context.Context, name string) (*Collection, error) {
	if coll, ok := f.collections[name]; ok {
		return &coll, nil
	}
	return nil, fmt.Errorf("%w: collection %q", ErrContentNotFound, name)
}

func (f *fakeContentStore) Buffer(_ context.Context, name string) (*Collection, error) {
	if buf, ok := f.buffers[name]; ok {
		return &buf, nil
	}
	return nil, fmt.Errorf("%w: buffer %q", ErrContentNotFound, name)
}

// fakePDFExporter returns canned bytes without a browser.
type fakePDFExporter struct {
	fail   error
	closed bool
}

func (f *fakePDFExporter) ToPDF(_ context.Context, _ string) ([]byte, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return []byte("%PDF-1.4 fake"), nil
}

func (f *fakePDFExporter) Close() error {
	f.closed = true
	return nil
}

// failingConverter fails for content containing a trigger string.
type failingConverter struct {
	inner   pipeline.HTMLConverter
	trigger string
}

func (f *failingConverter) ToHTML(ctx context.Context, content string) (string, error) {
	if strings.Contains(content, f.trigger) {
		return "", errors.New("converter exploded")
	}
	return f.inner.ToHTML(ctx, content)
}

func testStore() *fakeContentStore {
	return &fakeContentStore{
		messages: map[string]RenderableItem{
			"m1": {ID: "m1", Role: "user", Text: "The energy $E=mc^2$ is famous."},
		},
		chunks: map[string]RenderableItem{
			"c1": {ID: "c1", Text: "# Chunk\n\nbody"},
		},
		conversations: map[string]Conversation{
			"conv1": {
				ID:      "conv1",
				Title:   "Physics talk",
				Created: "2024-03-01",
				Items: []RenderableItem{
					{ID: "m1", Role: "user", Text: "What is $$E=mc^2$$?"},
					{ID: "m2", Role: "assistant", Text: "Mass-energy equivalence."},
				},
			},
			"empty": {ID: "empty", Title: "Empty"},
		},
		collections: map[string]Collection{
			"favs": {Name: "favs", Items: []CollectionItem{
				{Item: RenderableItem{ID: "m1", Role: "user", Text: "saved one"}, Conversation: "Physics talk"},
			}},
			"misc": {Name: "misc", Items: []CollectionItem{
				{Item: RenderableItem{ID: "m9", Role: "assistant", Text: "another"}},
			}},
		},
		buffers: map[string]Collection{
			"scratch": {Name: "scratch", Items: []CollectionItem{
				{Item: RenderableItem{ID: "b1", Text: "buffered"}},
			}},
		},
	}
}

func testRenderer(opts ...Option) *Renderer {
	base := []Option{
		WithContentStore(testStore()),
		WithLogger(discardLogger()),
		withPDFExporter(&fakePDFExporter{}),
	}
	return NewRenderer(append(base, opts...)...)
}

func TestRenderMessageMathRoundTrip(t *testing.T) {
	t.Parallel()

	r := testRenderer()
	doc, err := r.RenderMessage(context.Background(), "m1", DefaultOptions())
	if err != nil {
		t.Fatalf("RenderMessage() error = %v", err)
	}

	page, err := r.SerializeHTML(doc)
	if err != nil {
		t.Fatalf("SerializeHTML() error = %v", err)
	}
	if !strings.Contains(page, `<span class="math inline">\(E=mc^2\)</span>`) {
		t.Errorf("inline math container missing: %q", page)
	}
	if strings.Contains(page, "$E=mc^2$") {
		t.Errorf("raw dollar delimiters leaked into output: %q", page)
	}
}

func TestRenderMessageNotFound(t *testing.T) {
	t.Parallel()

	r := testRenderer()
	_, err := r.RenderMessage(context.Background(), "ghost", DefaultOptions())
	if !errors.Is(err, ErrContentNotFound) {
		t.Errorf("error = %v, want ErrContentNotFound", err)
	}
}

func TestRenderWithoutContentStore(t *testing.T) {
	t.Parallel()

	r := NewRenderer(WithLogger(discardLogger()), withPDFExporter(&fakePDFExporter{}))
	_, err := r.RenderMessage(context.Background(), "m1", DefaultOptions())
	if !errors.Is(err, ErrNoContentStore) {
		t.Errorf("error = %v, want ErrNoContentStore", err)
	}
}

func TestRenderInvalidOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.MediaDisplay = "mosaic"
	_, err := testRenderer().RenderMessage(context.Background(), "m1", opts)
	if !errors.Is(err, ErrInvalidMediaDisplay) {
		t.Errorf("error = %v, want ErrInvalidMediaDisplay", err)
	}
}

func TestRenderConversation(t *testing.T) {
	t.Parallel()

	r := testRenderer()
	doc, err := r.RenderConversation(context.Background(), "conv1", DefaultOptions())
	if err != nil {
		t.Fatalf("RenderConversation() error = %v", err)
	}

	if doc.Title != "Physics talk" {
		t.Errorf("Title = %q, want %q", doc.Title, "Physics talk")
	}
	if doc.Subtitle != "Created 2024-03-01" {
		t.Errorf("Subtitle = %q", doc.Subtitle)
	}
	if got := doc.items(); got != 2 {
		t.Fatalf("items() = %d, want 2", got)
	}
	frags := doc.Sections[0].Fragments
	if frags[0].ItemID != "m1" || frags[1].ItemID != "m2" {
		t.Errorf("message order not preserved: %v, %v", frags[0].ItemID, frags[1].ItemID)
	}
	if !strings.Contains(frags[0].HTML, "math display") {
		t.Errorf("display math missing from first message: %q", frags[0].HTML)
	}
}

func TestRenderEmptyConversation(t *testing.T) {
	t.Parallel()

	_, err := testRenderer().RenderConversation(context.Background(), "empty", DefaultOptions())
	if !errors.Is(err, ErrNoItems) {
		t.Errorf("error = %v, want ErrNoItems", err)
	}
}

func TestRenderCollectionHeaders(t *testing.T) {
	t.Parallel()

	doc, err := testRenderer().RenderCollection(context.Background(), "favs", DefaultOptions())
	if err != nil {
		t.Fatalf("RenderCollection() error = %v", err)
	}
	frag := doc.Sections[0].Fragments[0]
	if frag.Header != "From conversation: Physics talk" {
		t.Errorf("Header = %q", frag.Header)
	}
	if doc.Title != "favs" {
		t.Errorf("Title = %q, want %q", doc.Title, "favs")
	}
}

func TestRenderBuffer(t *testing.T) {
	t.Parallel()

	doc, err := testRenderer().RenderBuffer(context.Background(), "scratch", DefaultOptions())
	if err != nil {
		t.Fatalf("RenderBuffer() error = %v", err)
	}
	if got := doc.items(); got != 1 {
		t.Errorf("items() = %d, want 1", got)
	}
}

func TestRenderCombined(t *testing.T) {
	t.Parallel()

	doc, err := testRenderer().RenderCombined(context.Background(), []string{"favs", "misc"}, DefaultOptions())
	if err != nil {
		t.Fatalf("RenderCombined() error = %v", err)
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(doc.Sections))
	}
	if doc.Sections[0].Title != "favs" || doc.Sections[1].Title != "misc" {
		t.Errorf("section titles = %q, %q", doc.Sections[0].Title, doc.Sections[1].Title)
	}

	page, err := testRenderer().SerializeHTML(doc)
	if err != nil {
		t.Fatalf("SerializeHTML() error = %v", err)
	}
	if !strings.Contains(page, "section-boundary") {
		t.Errorf("combined document missing section boundaries: %q", page)
	}
}

func TestRenderCombinedNoNames(t *testing.T) {
	t.Parallel()

	_, err := testRenderer().RenderCombined(context.Background(), nil, DefaultOptions())
	if !errors.Is(err, ErrNoItems) {
		t.Errorf("error = %v, want ErrNoItems", err)
	}
}

func TestRenderItemFailureInsertsMarker(t *testing.T) {
	t.Parallel()

	store := testStore()
	store.conversations["conv1"] = Conversation{
		ID:    "conv1",
		Title: "Mixed",
		Items: []RenderableItem{
			{ID: "ok", Role: "user", Text: "fine"},
			{ID: "bad", Role: "assistant", Text: "BOOM content"},
		},
	}

	r := NewRenderer(
		WithContentStore(store),
		WithLogger(discardLogger()),
		withPDFExporter(&fakePDFExporter{}),
		withHTMLConverter(&failingConverter{inner: pipeline.NewGoldmarkConverter(), trigger: "BOOM"}),
	)

	doc, err := r.RenderConversation(context.Background(), "conv1", DefaultOptions())
	if err != nil {
		t.Fatalf("RenderConversation() error = %v", err)
	}
	frags := doc.Sections[0].Fragments
	if len(frags) != 2 {
		t.Fatalf("got %d fragments, want 2", len(frags))
	}
	if !strings.Contains(frags[1].HTML, "render-error") {
		t.Errorf("failed item should carry an error marker: %q", frags[1].HTML)
	}
	if !strings.Contains(frags[0].HTML, "fine") {
		t.Errorf("healthy item damaged: %q", frags[0].HTML)
	}
}

func TestSerializePDF(t *testing.T) {
	t.Parallel()

	r := testRenderer()
	doc, err := r.RenderMessage(context.Background(), "m1", DefaultOptions())
	if err != nil {
		t.Fatalf("RenderMessage() error = %v", err)
	}

	pdf, err := r.SerializePDF(context.Background(), doc)
	if err != nil {
		t.Fatalf("SerializePDF() error = %v", err)
	}
	if !strings.HasPrefix(string(pdf), "%PDF") {
		t.Errorf("PDF output = %q", pdf)
	}
}

func TestSerializePDFBackendUnavailable(t *testing.T) {
	t.Parallel()

	r := testRenderer(withPDFExporter(&fakePDFExporter{
		fail: fmt.Errorf("%w: no browser found", ErrPDFUnavailable),
	}))
	doc, err := r.RenderMessage(context.Background(), "m1", DefaultOptions())
	if err != nil {
		t.Fatalf("RenderMessage() error = %v", err)
	}

	if _, err := r.SerializePDF(context.Background(), doc); !errors.Is(err, ErrPDFUnavailable) {
		t.Errorf("error = %v, want ErrPDFUnavailable", err)
	}

	// HTML output must still work when the PDF backend is gone.
	if _, err := r.SerializeHTML(doc); err != nil {
		t.Errorf("SerializeHTML() after PDF failure error = %v", err)
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	r := testRenderer()
	doc, err := r.RenderMessage(context.Background(), "m1", DefaultOptions())
	if err != nil {
		t.Fatalf("RenderMessage() error = %v", err)
	}

	dir := t.TempDir()

	htmlPath := filepath.Join(dir, "out.html")
	if err := r.Export(context.Background(), doc, FormatHTML, htmlPath); err != nil {
		t.Fatalf("Export(html) error = %v", err)
	}
	data, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(data), "<!DOCTYPE html>") {
		t.Errorf("HTML output malformed: %q", data[:min(len(data), 80)])
	}

	pdfPath := filepath.Join(dir, "out.pdf")
	if err := r.Export(context.Background(), doc, FormatPDF, pdfPath); err != nil {
		t.Fatalf("Export(pdf) error = %v", err)
	}

	if err := r.Export(context.Background(), doc, "docx", filepath.Join(dir, "out.docx")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}

	badPath := filepath.Join(dir, "missing", "deep", "out.html")
	if err := r.Export(context.Background(), doc, FormatHTML, badPath); !errors.Is(err, ErrOutputWrite) {
		t.Errorf("error = %v, want ErrOutputWrite", err)
	}
}

func TestRendererClose(t *testing.T) {
	t.Parallel()

	fake := &fakePDFExporter{}
	r := testRenderer(withPDFExporter(fake))
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !fake.closed {
		t.Error("Close() did not reach the PDF backend")
	}
}

func TestRenderMessageWithMedia(t *testing.T) {
	t.Parallel()

	store := testStore()
	store.messages["pic"] = RenderableItem{
		ID:   "pic",
		Role: "assistant",
		Text: "Here: ![chart](media:img9)",
	}
	media := &fakeMediaStore{records: map[string]MediaRecord{
		"img9": {ID: "img9", Path: "/media/img9.png", MimeType: "image/png", FileName: "chart.png"},
	}}

	r := NewRenderer(
		WithContentStore(store),
		WithMediaStore(media),
		WithLogger(discardLogger()),
		withPDFExporter(&fakePDFExporter{}),
	)

	doc, err := r.RenderMessage(context.Background(), "pic", DefaultOptions())
	if err != nil {
		t.Fatalf("RenderMessage() error = %v", err)
	}
	html := doc.Sections[0].Fragments[0].HTML
	if !strings.Contains(html, `src="/media/img9.png"`) {
		t.Errorf("media not substituted: %q", html)
	}
}

func TestRenderMessageMediaInCodeFenceStaysLiteral(t *testing.T) {
	t.Parallel()

	store := testStore()
	store.messages["quoted"] = RenderableItem{
		ID:   "quoted",
		Role: "user",
		Text: "How do I embed an image?\n```\n![alt](media:some-id)\n```\n",
	}

	r := NewRenderer(
		WithContentStore(store),
		WithMediaStore(&fakeMediaStore{}),
		WithLogger(discardLogger()),
		withPDFExporter(&fakePDFExporter{}),
	)

	doc, err := r.RenderMessage(context.Background(), "quoted", DefaultOptions())
	if err != nil {
		t.Fatalf("RenderMessage() error = %v", err)
	}
	html := doc.Sections[0].Fragments[0].HTML
	if !strings.Contains(html, "![alt](media:some-id)") {
		t.Errorf("fenced reference should stay literal: %q", html)
	}
	if strings.Contains(html, "media-unavailable") {
		t.Errorf("fenced reference was resolved and substituted: %q", html)
	}
}
