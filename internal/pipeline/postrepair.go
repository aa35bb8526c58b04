package pipeline

import (
	"regexp"
	"strings"
)

// Patterns for corruption that only becomes visible after HTML generation,
// once source line breaks have turned into <br/> tags.
var (
	// Verbatim regions that post-render repair must never touch.
	verbatimRegion = regexp.MustCompile(`(?s)<pre.*?</pre>|<code.*?</code>`)

	// A paragraph holding a bracket display block split across visual
	// lines: <p>[<br/> ... <br/>]</p>. The source-text bracket pass only
	// catches blocks on clean source lines; this is the post-hoc net.
	brokenBracketBlock = regexp.MustCompile(`(?s)<p>\s*\[\s*<br\s*/?>\s*(.*?)<br\s*/?>\s*\]\s*</p>`)

	// A paragraph that is nothing but a single-line bracket block whose
	// content carries a LaTeX command.
	bracketParagraph = regexp.MustCompile(`<p>\s*\[([^\[\]<>]*?\\[a-zA-Z][^\[\]<>]*?)\]\s*</p>`)

	// A canonical display region that the Markdown converter wrapped in a
	// plain paragraph instead of a math container.
	displayParagraphRaw = regexp.MustCompile(`(?s)<p>\s*(\\\[.*?\\\])\s*</p>`)

	// Line-break tags inside recovered math content.
	brTag = regexp.MustCompile(`<br\s*/?>\s*`)
)

// RepairHTML fixes residual corruption in a rendered HTML fragment. It runs
// after HTML generation because the patterns it targets do not exist in the
// source text. RepairHTML is idempotent: re-running it on its own output is
// a no-op. Content inside <pre> and <code> is never modified.
func RepairHTML(htmlContent string) string {
	return mapOutsideVerbatim(htmlContent, repairFragment)
}

func repairFragment(fragment string) string {
	fragment = brokenBracketBlock.ReplaceAllStringFunc(fragment, func(m string) string {
		sub := brokenBracketBlock.FindStringSubmatch(m)
		content := strings.TrimSpace(brTag.ReplaceAllString(sub[1], "\n"))
		if !mathSignal.MatchString(content) {
			return m
		}
		return displayContainer(content)
	})

	fragment = bracketParagraph.ReplaceAllString(fragment, `<div class="math display">\[ ${1} \]</div>`)

	fragment = displayParagraphRaw.ReplaceAllString(fragment, `<div class="math display">${1}</div>`)

	// Doubled backslashes before delimiters render as visible error text in
	// the client typesetter. Row spacing like \\[4pt] is kept.
	fragment = collapseDoubled(fragment)

	return fragment
}

// displayContainer wraps recovered math content in the canonical display
// container, stripping any inline delimiters that survived inside it.
func displayContainer(content string) string {
	content = strings.ReplaceAll(content, `\(`, "")
	content = strings.ReplaceAll(content, `\)`, "")
	return `<div class="math display">\[ ` + content + ` \]</div>`
}

// mapOutsideVerbatim applies fn to every region of htmlContent that is not
// inside a <pre> or <code> element.
func mapOutsideVerbatim(htmlContent string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(htmlContent))
	prev := 0
	for _, loc := range verbatimRegion.FindAllStringIndex(htmlContent, -1) {
		b.WriteString(fn(htmlContent[prev:loc[0]]))
		b.WriteString(htmlContent[loc[0]:loc[1]])
		prev = loc[1]
	}
	b.WriteString(fn(htmlContent[prev:]))
	return b.String()
}
