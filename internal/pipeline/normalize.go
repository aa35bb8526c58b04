package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// Dollar heuristic modes. Values mirror the public option constants; the
// pipeline takes them as plain strings to stay dependency-free.
const (
	DollarStrict = "strict"
	DollarAll    = "all"
	DollarOff    = "off"
)

// Precompiled regex patterns for performance.
var (
	// Fenced code block delimiter (backticks or tildes). Fence content is
	// never normalized.
	fencedCodeFence = regexp.MustCompile("^(```|~~~)")

	// Display math written as paired double dollars.
	displayDollar = regexp.MustCompile(`(?s)\$\$([^$]+?)\$\$`)

	// Inline math candidate: a single-dollar pair on one line.
	inlineDollar = regexp.MustCompile(`\$([^$\n]+?)\$`)

	// Price-like content: a digit run (with separators) followed by
	// whitespace or end, e.g. "5", "10.50", "1,200 total".
	priceLike = regexp.MustCompile(`^\d[\d,.]*(\s|$)`)

	// Evidence that bracket content is math rather than a citation or
	// pasted text: a backslash command or a braced sub/superscript.
	mathSignal = regexp.MustCompile(`\\[a-zA-Z]|[_^]\{`)

	// A whole trimmed line of the form [ ... ] with no nested brackets.
	singleBracketLine = regexp.MustCompile(`^\[([^\[\]]+)\]$`)

	// Doubled backslashes before delimiters (\\( emitted by escape-happy
	// exporters) collapse to the single canonical form. \\[ is handled
	// separately because it is also LaTeX row spacing.
	doubledDelims = strings.NewReplacer(`\\(`, `\(`, `\\)`, `\)`, `\\]`, `\]`)

	// A \\[ that is row spacing, not a doubled opener: the bracket holds a
	// dimension like 4pt or 0.5em.
	doubledOpenBracket = regexp.MustCompile(`\\\\\[(\s*-?\d[\d.]*\s*[a-z]{1,4}\s*\])?`)

	// Nested canonical delimiters of the same kind.
	nestedInline  = regexp.MustCompile(`\\\(\s*\\\((.*?)\\\)\s*\\\)`)
	nestedDisplay = regexp.MustCompile(`(?s)\\\[\s*\\\[(.*?)\\\]\s*\\\]`)

	// A complete canonical display region.
	displayRegion = regexp.MustCompile(`(?s)\\\[(.*?)\\\]`)
)

// LaTeX block environments rewritten to canonical display math. Starred
// variants are matched too.
var envPatterns = func() []*regexp.Regexp {
	names := []string{
		"equation", "align", "aligned", "alignat",
		"gather", "multline", "eqnarray", "displaymath",
	}
	patterns := make([]*regexp.Regexp, len(names))
	for i, name := range names {
		patterns[i] = regexp.MustCompile(`(?s)\\begin\{` + name + `\*?\}(.*?)\\end\{` + name + `\*?\}`)
	}
	return patterns
}()

// Normalizer rewrites inconsistent math delimiters into the canonical pair
// set: \( \) for inline math and \[ \] for display math. It never fails;
// regions it cannot confidently classify are passed through unchanged and
// recorded as diagnostics.
type Normalizer struct {
	// DollarMode controls the single-dollar currency-versus-math heuristic:
	// DollarStrict, DollarAll, or DollarOff.
	DollarMode string
}

// NewNormalizer returns a Normalizer with the given dollar heuristic.
// An empty mode means DollarStrict.
func NewNormalizer(dollarMode string) *Normalizer {
	if dollarMode == "" {
		dollarMode = DollarStrict
	}
	return &Normalizer{DollarMode: dollarMode}
}

// Normalize rewrites all math regions of text into canonical delimiters and
// returns the rewritten text, the classified spans, and repair diagnostics.
// Fenced code blocks pass through untouched. Normalize is idempotent:
// normalizing already-canonical text changes nothing.
//
// Pass order is load-bearing; each pass assumes the previous pass's output:
// environments, bracket display blocks, dollars, doubled-backslash collapse,
// balance, nested collapse.
func (n *Normalizer) Normalize(text string) (string, []Span, []Diagnostic) {
	if text == "" {
		return "", nil, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	var spans []Span
	var diags []Diagnostic

	forEachSegment(text, func(segment string, code bool) {
		if code {
			b.WriteString(segment)
			return
		}
		base := b.Len()
		segment = convertEnvironments(segment)
		segment = convertBracketBlocks(segment)
		segment = n.convertDollars(segment, base, &diags)
		segment = collapseDoubled(segment)
		segment = balanceDelimiters(segment, base, &diags)
		segment = collapseNested(segment, base, &diags)

		segSpans, segDiags := scanSpans(segment)
		for _, sp := range segSpans {
			sp.Start += base
			sp.End += base
			spans = append(spans, sp)
		}
		for _, d := range segDiags {
			d.Offset += base
			diags = append(diags, d)
		}
		b.WriteString(segment)
	})

	return b.String(), spans, diags
}

// MapOutsideFences applies fn to every prose segment of text. Fenced code
// blocks pass through untouched. Later stages that rewrite source text, like
// media extraction, use this to honor the same fence boundaries the
// normalizer does.
func MapOutsideFences(text string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(text))
	forEachSegment(text, func(segment string, code bool) {
		if code {
			b.WriteString(segment)
			return
		}
		b.WriteString(fn(segment))
	})
	return b.String()
}

// forEachSegment splits text into alternating prose and fenced-code
// segments, calling fn once per segment in order. Fence delimiter lines
// belong to the code segment.
func forEachSegment(text string, fn func(segment string, code bool)) {
	var run strings.Builder
	inCode := false

	flush := func(code bool) {
		if run.Len() > 0 {
			fn(run.String(), code)
			run.Reset()
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if fencedCodeFence.MatchString(line) {
			if inCode {
				run.WriteString(line)
				flush(true)
				inCode = false
				continue
			}
			flush(false)
			inCode = true
		}
		run.WriteString(line)
	}
	flush(inCode)
}

// convertEnvironments rewrites \begin{env}...\end{env} blocks to canonical
// display math, preserving inner content verbatim.
func convertEnvironments(segment string) string {
	for _, pattern := range envPatterns {
		segment = pattern.ReplaceAllString(segment, `\[${1}\]`)
	}
	return segment
}

// convertBracketBlocks rewrites bare square-bracket display blocks to
// canonical display math. Two shapes are recognized: a "[" line, content
// lines, then a "]" line; and a whole trimmed line of the form [ ... ]. In
// both cases the content must show evidence of math (a backslash command or
// braced sub/superscript), which keeps citations like [1] and Markdown link
// syntax untouched.
func convertBracketBlocks(segment string) string {
	lines := strings.Split(segment, "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])

		if trimmed == "[" {
			if j := findBracketClose(lines, i+1); j >= 0 {
				inner := strings.Join(lines[i+1:j], "\n")
				if mathSignal.MatchString(inner) {
					out = append(out, `\[`)
					out = append(out, lines[i+1:j]...)
					out = append(out, `\]`)
					i = j
					continue
				}
			}
		} else if m := singleBracketLine.FindStringSubmatch(trimmed); m != nil && mathSignal.MatchString(m[1]) {
			out = append(out, `\[`+m[1]+`\]`)
			continue
		}

		out = append(out, lines[i])
	}

	return strings.Join(out, "\n")
}

// findBracketClose returns the index of the next line whose trimmed content
// is exactly "]", or -1.
func findBracketClose(lines []string, from int) int {
	for j := from; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == "]" {
			return j
		}
	}
	return -1
}

// convertDollars rewrites $$...$$ to canonical display math and plausible
// $...$ pairs to canonical inline math. Ambiguous or unpaired dollars are
// left untouched and recorded as diagnostics.
func (n *Normalizer) convertDollars(segment string, base int, diags *[]Diagnostic) string {
	segment = displayDollar.ReplaceAllString(segment, `\[${1}\]`)

	if n.DollarMode != DollarOff {
		segment = n.convertInlineDollars(segment, base, diags)
	}

	if strings.Count(segment, "$")%2 == 1 {
		*diags = append(*diags, Diagnostic{
			Code:   DiagUnpairedDollar,
			Offset: base + strings.IndexByte(segment, '$'),
			Detail: "odd number of dollar signs left untouched",
		})
	}
	return segment
}

// convertInlineDollars scans for single-dollar pairs. Under DollarStrict a
// pair whose content looks like a price, or has leading or trailing
// whitespace, is skipped; scanning resumes just past the opening dollar so
// a later genuine pair is still found.
func (n *Normalizer) convertInlineDollars(segment string, base int, diags *[]Diagnostic) string {
	var b strings.Builder
	b.Grow(len(segment))
	rest := segment
	offset := 0

	for {
		loc := inlineDollar.FindStringSubmatchIndex(rest)
		if loc == nil {
			b.WriteString(rest)
			break
		}
		content := rest[loc[2]:loc[3]]

		if n.DollarMode == DollarStrict && dollarAmbiguous(content) {
			*diags = append(*diags, Diagnostic{
				Code:   DiagAmbiguousDollar,
				Offset: base + offset + loc[0],
				Detail: fmt.Sprintf("left %q untouched", rest[loc[0]:loc[1]]),
			})
			// Keep the opening dollar literal, resume after it.
			b.WriteString(rest[:loc[0]+1])
			offset += loc[0] + 1
			rest = rest[loc[0]+1:]
			continue
		}

		b.WriteString(rest[:loc[0]])
		b.WriteString(`\(` + content + `\)`)
		offset += loc[1]
		rest = rest[loc[1]:]
	}

	return b.String()
}

// dollarAmbiguous reports whether single-dollar content is more plausibly
// currency or stray punctuation than math.
func dollarAmbiguous(content string) bool {
	if priceLike.MatchString(content) {
		return true
	}
	return strings.TrimSpace(content) != content
}

// balanceDelimiters appends missing canonical closers at the end of the
// segment. Best-effort recovery for truncated exports; every repair is
// flagged in the diagnostics.
func balanceDelimiters(segment string, base int, diags *[]Diagnostic) string {
	if d := countDelim(segment, '(') - countDelim(segment, ')'); d > 0 {
		segment += strings.Repeat(`\)`, d)
		*diags = append(*diags, Diagnostic{
			Code:   DiagBalancedInline,
			Offset: base,
			Detail: fmt.Sprintf("appended %d missing inline closer(s)", d),
		})
	}
	if d := countDelim(segment, '[') - countDelim(segment, ']'); d > 0 {
		segment += strings.Repeat(`\]`, d)
		*diags = append(*diags, Diagnostic{
			Code:   DiagBalancedDisplay,
			Offset: base,
			Detail: fmt.Sprintf("appended %d missing display closer(s)", d),
		})
	}
	return segment
}

// countDelim counts canonical delimiter characters reached through a single
// backslash, skipping backslash pairs so row breaks like \\[4pt] are not
// mistaken for openers.
func countDelim(segment string, delim byte) int {
	n := 0
	for i := 0; i+1 < len(segment); {
		if segment[i] != '\\' {
			i++
			continue
		}
		if segment[i+1] == delim {
			n++
		}
		i += 2
	}
	return n
}

// collapseDoubled rewrites doubled backslashes before delimiters to the
// single canonical form, leaving \\[<dimension>] row spacing alone.
func collapseDoubled(segment string) string {
	segment = doubledOpenBracket.ReplaceAllStringFunc(segment, func(m string) string {
		if len(m) > len(`\\[`) {
			return m // row spacing, keep
		}
		return `\[`
	})
	return doubledDelims.Replace(segment)
}

// collapseNested unwraps same-kind nested delimiters and strips inline
// delimiters that ended up inside display math (a visible-error pattern in
// client typesetters).
func collapseNested(segment string, base int, diags *[]Diagnostic) string {
	segment = nestedInline.ReplaceAllString(segment, `\(${1}\)`)
	segment = nestedDisplay.ReplaceAllString(segment, `\[${1}\]`)

	return displayRegion.ReplaceAllStringFunc(segment, func(m string) string {
		inner := m[2 : len(m)-2]
		if !strings.Contains(inner, `\(`) && !strings.Contains(inner, `\)`) {
			return m
		}
		*diags = append(*diags, Diagnostic{
			Code:   DiagNestedStripped,
			Offset: base,
			Detail: "removed inline delimiters inside display math",
		})
		inner = strings.ReplaceAll(inner, `\(`, "")
		inner = strings.ReplaceAll(inner, `\)`, "")
		return `\[` + inner + `\]`
	})
}

// scanSpans classifies a normalized segment into math spans. Stray closers
// with no matching opener become two-byte literal spans so later stages
// treat them as plain text.
func scanSpans(segment string) ([]Span, []Diagnostic) {
	var spans []Span
	var diags []Diagnostic

	for i := 0; i+1 < len(segment); {
		if segment[i] != '\\' {
			i++
			continue
		}
		switch segment[i+1] {
		case '\\':
			i += 2
		case '(':
			end := strings.Index(segment[i+2:], `\)`)
			if end < 0 {
				// Balancing guarantees a closer; guard anyway.
				spans = append(spans, Span{Start: i, End: len(segment), Kind: SpanInline})
				return spans, diags
			}
			spans = append(spans, Span{Start: i, End: i + 2 + end + 2, Kind: SpanInline})
			i += 2 + end + 2
		case '[':
			end := strings.Index(segment[i+2:], `\]`)
			if end < 0 {
				spans = append(spans, Span{Start: i, End: len(segment), Kind: SpanDisplay})
				return spans, diags
			}
			spans = append(spans, Span{Start: i, End: i + 2 + end + 2, Kind: SpanDisplay})
			i += 2 + end + 2
		case ')', ']':
			spans = append(spans, Span{Start: i, End: i + 2, Kind: SpanLiteral})
			diags = append(diags, Diagnostic{
				Code:   DiagExtraCloser,
				Offset: i,
				Detail: "closing delimiter with no opener treated as literal",
			})
			i += 2
		default:
			i += 2
		}
	}

	return spans, diags
}
