package pipeline

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

// Math placeholders use Unicode Private Use Area characters. These cannot
// occur in real export text, pass through Goldmark untokenized, and avoid
// html.WithUnsafe(). A placeholder is MathStart, a decimal span index, then
// MathEnd.
const (
	MathStart = "\uE010"
	MathEnd   = "\uE011"
)

var (
	// A display-math placeholder that is the only content of its paragraph.
	displayParagraph = regexp.MustCompile(`<p>\s*` + MathStart + `(\d+)` + MathEnd + `\s*</p>`)

	// Any remaining placeholder, wherever Goldmark left it.
	anyPlaceholder = regexp.MustCompile(MathStart + `(\d+)` + MathEnd)
)

// Protected is normalized text with its math regions replaced by opaque
// placeholder tokens, safe to hand to the Markdown converter. The converter
// cannot tokenize inside a placeholder, so $, #, [, ], _ and * within math
// survive unharmed.
type Protected struct {
	Text string

	// bodies holds the canonical-delimited source of each protected span,
	// indexed by placeholder number.
	bodies []string
	kinds  []SpanKind
}

// ProtectMath replaces every math span with a placeholder token and returns
// the protected text. Literal spans stay in place: a stray \] outside math
// is exactly the Markdown escape sequence for a literal bracket, which is
// the rendering we want. Text outside spans is genuine Markdown and is
// deliberately not escaped — math-ness was decided once, by the normalizer;
// this stage only enforces that decision.
func ProtectMath(text string, spans []Span) Protected {
	p := Protected{}
	if len(spans) == 0 {
		p.Text = text
		return p
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, span := range spans {
		if span.Kind == SpanLiteral {
			continue
		}
		b.WriteString(text[prev:span.Start])
		b.WriteString(MathStart)
		b.WriteString(strconv.Itoa(len(p.bodies)))
		b.WriteString(MathEnd)
		p.bodies = append(p.bodies, text[span.Start:span.End])
		p.kinds = append(p.kinds, span.Kind)
		prev = span.End
	}
	b.WriteString(text[prev:])
	p.Text = b.String()
	return p
}

// RestoreMath swaps placeholders in converted HTML back to math container
// elements the client-side typesetter recognizes. A display placeholder
// that owns its whole paragraph becomes a block container; anything else
// becomes an inline container. Span bodies are HTML-escaped because the
// typesetter reads element text content.
func RestoreMath(htmlContent string, p Protected) string {
	if len(p.bodies) == 0 {
		return htmlContent
	}

	htmlContent = displayParagraph.ReplaceAllStringFunc(htmlContent, func(m string) string {
		idx := placeholderIndex(displayParagraph, m)
		if idx < 0 || idx >= len(p.bodies) {
			return m
		}
		return `<div class="math display">` + html.EscapeString(p.bodies[idx]) + `</div>`
	})

	return anyPlaceholder.ReplaceAllStringFunc(htmlContent, func(m string) string {
		idx := placeholderIndex(anyPlaceholder, m)
		if idx < 0 || idx >= len(p.bodies) {
			return m
		}
		class := "math inline"
		if p.kinds[idx] == SpanDisplay {
			class = "math display"
		}
		return `<span class="` + class + `">` + html.EscapeString(p.bodies[idx]) + `</span>`
	})
}

// placeholderIndex extracts the span index from a matched placeholder.
func placeholderIndex(re *regexp.Regexp, match string) int {
	sub := re.FindStringSubmatch(match)
	if len(sub) < 2 {
		return -1
	}
	idx, err := strconv.Atoi(sub[1])
	if err != nil {
		return -1
	}
	return idx
}
