package chatrender

import (
	"fmt"
	"strings"
	"time"
)

// Role tags identify who produced a piece of content. They drive the
// per-item styling class in assembled documents.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
	RoleUnknown   = "unknown"
)

// NormalizeRole maps arbitrary role strings from export metadata onto the
// known role set. Unrecognized values become RoleUnknown rather than leaking
// provider-specific names into CSS classes.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleUser:
		return RoleUser
	case RoleAssistant:
		return RoleAssistant
	case RoleTool:
		return RoleTool
	case RoleSystem:
		return RoleSystem
	}
	return RoleUnknown
}

// Media display modes.
const (
	MediaInline     = "inline"
	MediaGallery    = "gallery"
	MediaThumbnails = "thumbnails"
)

// Output formats.
const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
)

// Dollar heuristic modes for single-dollar inline math detection.
// The currency-versus-math call is inherently heuristic, so it is
// configurable rather than hard-coded.
const (
	// DollarStrict converts $...$ pairs only when the content does not look
	// like a price (does not start with a digit-run such as "5" or "10.50").
	DollarStrict = "strict"
	// DollarAll converts every paired $...$ region to inline math.
	DollarAll = "all"
	// DollarOff never converts single-dollar regions.
	DollarOff = "off"
)

// MediaLinkKind describes how a media record is associated with an item.
const (
	MediaKindAttachment = "attachment"
	MediaKindInline     = "inline"
	MediaKindGenerated  = "generated"
)

// RenderableItem is the unit of input: a read-only snapshot of a message or
// chunk fetched from the content store at render time. The pipeline never
// mutates it.
type RenderableItem struct {
	ID       string
	Role     string
	Text     string // raw export text; empty means nothing to render
	Metadata map[string]any
	Media    []MediaLink
}

// MediaLink associates a RenderableItem with a MediaRecord. A link either
// resolves to exactly one record or is dropped with a logged warning; a
// broken reference is never rendered silently.
type MediaLink struct {
	MediaID   string
	Kind      string // attachment, inline, generated
	Position  int
	Generated bool
}

// MediaRecord describes a stored media file. Owned by the external media
// subsystem; the render pipeline only reads it.
type MediaRecord struct {
	ID        string
	Path      string // servable URL or filesystem path
	MimeType  string
	FileName  string
	Generated bool
	Source    string // archive source the record was found in, for audit logs
}

// RenderOptions configures a render call. The zero value is not valid; use
// DefaultOptions and adjust.
type RenderOptions struct {
	Template        string            // template name; unknown names fall back to default
	IncludeMetadata bool              // show pretty-printed metadata panel per item
	IncludeRaw      bool              // show raw source text before rendered content
	ShowRoleKey     bool              // append the role color key legend
	MediaDisplay    string            // inline, gallery, thumbnails
	GencomFields    string            // "none", "all", or comma-separated field list
	GencomLabels    map[string]string // display-label remapping for gencom fields
	DollarHeuristic string            // strict, all, off
	OutputFormat    string            // html or pdf
}

// DefaultOptions returns render options matching the historical defaults.
func DefaultOptions() RenderOptions {
	return RenderOptions{
		Template:        "default",
		ShowRoleKey:     true,
		MediaDisplay:    MediaInline,
		GencomFields:    "none",
		DollarHeuristic: DollarStrict,
		OutputFormat:    FormatHTML,
	}
}

// Validate checks option values that come from untrusted input (CLI flags,
// query parameters). Empty strings mean "use the default" and are filled in.
func (o *RenderOptions) Validate() error {
	if o.Template == "" {
		o.Template = "default"
	}
	switch o.MediaDisplay {
	case "":
		o.MediaDisplay = MediaInline
	case MediaInline, MediaGallery, MediaThumbnails:
	default:
		return fmt.Errorf("%w: %q (must be inline, gallery, or thumbnails)", ErrInvalidMediaDisplay, o.MediaDisplay)
	}
	switch o.DollarHeuristic {
	case "":
		o.DollarHeuristic = DollarStrict
	case DollarStrict, DollarAll, DollarOff:
	default:
		return fmt.Errorf("invalid dollar heuristic: %q (must be strict, all, or off)", o.DollarHeuristic)
	}
	switch o.OutputFormat {
	case "":
		o.OutputFormat = FormatHTML
	case FormatHTML, FormatPDF:
	default:
		return fmt.Errorf("%w: %q (must be html or pdf)", ErrUnsupportedFormat, o.OutputFormat)
	}
	if o.GencomFields == "" {
		o.GencomFields = "none"
	}
	return nil
}

// gencomSelection parses the GencomFields selector into an explicit decision.
func (o RenderOptions) gencomSelection() (all bool, fields []string, err error) {
	switch strings.ToLower(strings.TrimSpace(o.GencomFields)) {
	case "", "none":
		return false, nil, nil
	case "all":
		return true, nil, nil
	}
	for _, f := range strings.Split(o.GencomFields, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			return false, nil, fmt.Errorf("%w: %q", ErrInvalidGencomFields, o.GencomFields)
		}
		fields = append(fields, f)
	}
	return false, fields, nil
}

// Fragment is one rendered item: repaired, converted HTML plus the display
// attributes the assembler needs.
type Fragment struct {
	ItemID   string
	Role     string
	Header   string // optional context line, e.g. "From conversation: ..."
	HTML     string // rendered body, post-repair
	Raw      string // original source text, shown when IncludeRaw is set
	Metadata map[string]any
	Gencom   []GencomField
}

// GencomField is one AI-generated annotation selected for display.
type GencomField struct {
	Label string
	Value string
}

// Section groups fragments under an optional boundary title. Combined
// multi-collection exports produce one section per collection; single-source
// renders produce exactly one untitled section.
type Section struct {
	Title     string
	Fragments []Fragment
}

// RenderDocument is the assembled output of a render call, immutable once
// produced. Serialize it with Renderer.SerializeHTML or Renderer.SerializePDF.
type RenderDocument struct {
	Title        string
	Subtitle     string
	Template     string // template actually used (after fallback)
	ShowMetadata bool
	ShowRoleKey  bool
	Sections     []Section
	Generated    time.Time
	Diagnostics  []string // repair diagnostics, populated in debug renders
}

// items returns the total fragment count across sections.
func (d *RenderDocument) items() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Fragments)
	}
	return n
}
