package pipeline

import "fmt"

// SpanKind classifies a region of normalized text.
type SpanKind int

const (
	// SpanLiteral marks a region the normalizer decided is plain text even
	// though it carries delimiter-like characters (stray brackets, currency
	// dollars). Literal regions are never protected from the Markdown
	// converter.
	SpanLiteral SpanKind = iota

	// SpanInline marks a canonical inline-math region \( ... \).
	SpanInline

	// SpanDisplay marks a canonical display-math region \[ ... \].
	SpanDisplay
)

// String returns the kind name for diagnostics and test failure messages.
func (k SpanKind) String() string {
	switch k {
	case SpanLiteral:
		return "literal"
	case SpanInline:
		return "inline"
	case SpanDisplay:
		return "display"
	}
	return fmt.Sprintf("SpanKind(%d)", int(k))
}

// Span marks a half-open byte range [Start, End) of normalized text,
// delimiters included. Spans are produced once by Normalize and threaded
// through the later stages; they are never persisted outside a single
// render call.
type Span struct {
	Start int
	End   int
	Kind  SpanKind
}

// Body returns the span content without its delimiters.
func (s Span) Body(text string) string {
	if s.Kind == SpanLiteral {
		return text[s.Start:s.End]
	}
	// Canonical delimiters are two bytes on each side: \( \) or \[ \].
	return text[s.Start+2 : s.End-2]
}

// Diagnostic records a repair decision or an ambiguity the normalizer left
// alone. Diagnostics are data, not errors: the pipeline never aborts over
// them. They feed tests and the debug/raw-include render mode.
type Diagnostic struct {
	Code   string // stable identifier, e.g. "ambiguous-dollar"
	Offset int    // byte offset into the stage input
	Detail string
}

// Diagnostic codes emitted by the normalizer.
const (
	DiagAmbiguousDollar = "ambiguous-dollar" // single-dollar region left untouched
	DiagUnpairedDollar  = "unpaired-dollar"  // odd dollar count outside code
	DiagBalancedInline  = "balanced-inline"  // appended missing \) closers
	DiagBalancedDisplay = "balanced-display" // appended missing \] closers
	DiagExtraCloser     = "extra-closer"     // stray closer kept as a literal span
	DiagNestedStripped  = "nested-stripped"  // inline delimiters removed inside display math
)

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s at %d: %s", d.Code, d.Offset, d.Detail)
}
