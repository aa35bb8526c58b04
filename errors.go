package chatrender

import "errors"

// Sentinel errors for library operations.
//
// Only a small set of conditions propagate out of a render call: missing
// content, an unusable PDF backend, an unwritable output destination, and
// caller mistakes (bad options). Everything else — unresolved media,
// ambiguous delimiters, unknown template names — is absorbed inside the
// pipeline and surfaces as placeholders, fallbacks, and logged warnings.
var (
	// ErrContentNotFound indicates the requested message, chunk,
	// conversation, collection, or buffer does not exist in the content
	// store.
	ErrContentNotFound = errors.New("content not found")

	// ErrPDFUnavailable indicates no Chromium-family browser could be
	// launched for PDF export. HTML output still works; callers should
	// suggest installing Chrome or setting ROD_BROWSER_BIN.
	ErrPDFUnavailable = errors.New("PDF backend unavailable")

	// ErrOutputWrite indicates the output destination could not be written.
	ErrOutputWrite = errors.New("failed to write output")

	// ErrUnsupportedFormat indicates an output format other than html or pdf.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrNoContentStore indicates a store-backed entry point was called on a
	// Renderer constructed without WithContentStore.
	ErrNoContentStore = errors.New("no content store configured")

	// ErrNoItems indicates the requested container exists but holds nothing
	// renderable.
	ErrNoItems = errors.New("no renderable content")

	// ErrInvalidMediaDisplay indicates an unrecognized media display mode.
	ErrInvalidMediaDisplay = errors.New("invalid media display mode")

	// ErrInvalidGencomFields indicates an unparseable gencom field selector.
	ErrInvalidGencomFields = errors.New("invalid gencom field selection")

	// PDF generation errors (wrapped by the rod exporter).
	ErrPDFGeneration = errors.New("PDF generation failed")
	ErrPageCreate    = errors.New("failed to create browser page")
	ErrPageLoad      = errors.New("failed to load page")
)
