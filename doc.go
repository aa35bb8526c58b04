// Package chatrender converts archived chat-export content (ChatGPT, Claude,
// Perplexity exports) into typeset HTML and PDF documents.
//
// Chat exports carry noisy, copy-pasted Markdown in which LaTeX math appears
// with inconsistent or corrupted delimiters. The pipeline repairs delimiters,
// shields math regions from the Markdown converter, resolves media references
// against a content-addressed media store, and fixes residual corruption that
// only becomes visible after HTML generation. Rendered fragments are assembled
// into complete documents with role-based styling and a client-side math
// typesetting bootstrap, and can be exported to paginated PDF through headless
// Chrome.
//
// Basic usage:
//
//	r := chatrender.NewRenderer(
//		chatrender.WithContentStore(content),
//		chatrender.WithMediaStore(media),
//	)
//	defer r.Close()
//
//	doc, err := r.RenderConversation(ctx, conversationID, chatrender.DefaultOptions())
//	if err != nil {
//		log.Fatal(err)
//	}
//	html, err := r.SerializeHTML(doc)
//
// PDF export requires a Chromium-family browser; when none is available the
// renderer reports ErrPDFUnavailable instead of crashing, so callers can fall
// back to HTML output.
package chatrender
