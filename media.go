package chatrender

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/archivista/chatrender/internal/fileutil"
	"github.com/archivista/chatrender/internal/pipeline"
)

// Media placeholders use Private Use Area characters, like the math
// placeholders: they pass through the Markdown converter untokenized and are
// substituted with real markup afterwards, which keeps WithUnsafe() off.
const (
	mediaStart = "\uE020"
	mediaEnd   = "\uE021"
)

// Recognized in-text media reference forms.
var (
	// ![alt](target) — target may be media:ID, file:PATH, or a URL.
	imageRef = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)

	// [Asset: file-XXXX] tokens left behind by ChatGPT exports.
	assetRef = regexp.MustCompile(`\[Asset:\s*(file-[A-Za-z0-9][A-Za-z0-9_-]*)\]`)

	// Bare file-XXXX identifiers in running text.
	bareFileID = regexp.MustCompile(`\bfile-[A-Za-z0-9][A-Za-z0-9_-]{6,}\b`)

	mediaPlaceholder = regexp.MustCompile(mediaStart + `(\d+)` + mediaEnd)
)

// resolvedMedia is one media reference after lookup, ready for markup
// substitution. A nil Record means resolution failed and a visible
// "unavailable" marker is rendered instead.
type resolvedMedia struct {
	Alt    string
	Key    string // the identifier or path as written in the text
	Record *MediaRecord
	Direct string // non-empty for plain URLs that bypass the store
}

// mediaResolver rewrites media placeholders into renderable markup using
// the external media store. Resolution failures are data, not errors: the
// resolver never aborts a render over a missing file.
type mediaResolver struct {
	store MediaStore
	log   *slog.Logger
}

func newMediaResolver(store MediaStore, log *slog.Logger) *mediaResolver {
	return &mediaResolver{store: store, log: log}
}

// extract replaces every media reference in text with a placeholder token
// and resolves it against the store. Fenced code blocks pass through
// untouched: a reference quoted inside a fence is content, not a
// reference. Message-level media links are the preferred source of truth:
// links not referenced anywhere in the text are appended as an attachment
// block at the end.
func (r *mediaResolver) extract(ctx context.Context, text string, item *RenderableItem) (string, []resolvedMedia) {
	var resolved []resolvedMedia

	token := func(m resolvedMedia) string {
		resolved = append(resolved, m)
		return mediaStart + strconv.Itoa(len(resolved)-1) + mediaEnd
	}

	text = pipeline.MapOutsideFences(text, func(prose string) string {
		prose = imageRef.ReplaceAllStringFunc(prose, func(m string) string {
			sub := imageRef.FindStringSubmatch(m)
			alt, target := sub[1], sub[2]
			switch {
			case strings.HasPrefix(target, "media:"):
				id := strings.TrimPrefix(target, "media:")
				return token(resolvedMedia{Alt: alt, Key: id, Record: r.resolve(ctx, item, id)})
			case strings.HasPrefix(target, "file:"):
				path := strings.TrimPrefix(target, "file:")
				return token(resolvedMedia{Alt: alt, Key: path, Record: r.resolvePath(ctx, path)})
			case fileutil.IsURL(target):
				return token(resolvedMedia{Alt: alt, Key: target, Direct: target})
			}
			// Relative or unrecognized target: leave the Markdown image alone.
			return m
		})

		prose = assetRef.ReplaceAllStringFunc(prose, func(m string) string {
			id := assetRef.FindStringSubmatch(m)[1]
			return token(resolvedMedia{Alt: id, Key: id, Record: r.resolve(ctx, item, id)})
		})

		return bareFileID.ReplaceAllStringFunc(prose, func(id string) string {
			return token(resolvedMedia{Alt: id, Key: id, Record: r.resolve(ctx, item, id)})
		})
	})

	// Attachment links with no inline reference still render, at the end.
	for _, link := range r.unreferencedLinks(item, resolved) {
		rec := r.resolve(ctx, item, link.MediaID)
		if rec != nil {
			rec.Generated = rec.Generated || link.Generated || link.Kind == MediaKindGenerated
		}
		text += "\n\n" + token(resolvedMedia{Alt: link.MediaID, Key: link.MediaID, Record: rec})
	}

	return text, resolved
}

// unreferencedLinks returns the item's media links whose records were not
// already matched by an inline reference.
func (r *mediaResolver) unreferencedLinks(item *RenderableItem, resolved []resolvedMedia) []MediaLink {
	if item == nil {
		return nil
	}
	var out []MediaLink
	for _, link := range item.Media {
		seen := false
		for _, m := range resolved {
			if m.Record != nil && m.Record.ID == link.MediaID {
				seen = true
				break
			}
			if strings.HasPrefix(link.MediaID, m.Key) || strings.HasPrefix(m.Key, link.MediaID) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, link)
		}
	}
	return out
}

// resolve looks a media identifier up in the fixed fallback order: exact id,
// prefix match, then a scan across archive sources. Every fallback hit is
// logged with enough detail to reconstruct why that file was chosen. A miss
// returns nil after a logged warning.
func (r *mediaResolver) resolve(ctx context.Context, item *RenderableItem, id string) *MediaRecord {
	if r.store == nil {
		return nil
	}

	if rec, err := r.store.Lookup(ctx, id); err == nil {
		r.markGenerated(item, rec)
		return rec
	}

	if rec, err := r.store.LookupPrefix(ctx, id); err == nil {
		r.log.Info("media resolved by prefix match",
			slog.String("requested", id),
			slog.String("matched", rec.ID),
			slog.String("file", rec.FileName))
		r.markGenerated(item, rec)
		return rec
	}

	if rec, err := r.store.SearchSources(ctx, id); err == nil {
		r.log.Info("media resolved by archive source scan",
			slog.String("requested", id),
			slog.String("source", rec.Source),
			slog.String("file", rec.FileName))
		r.markGenerated(item, rec)
		return rec
	}

	r.log.Warn("media unresolved, rendering placeholder", slog.String("id", id))
	return nil
}

// resolvePath resolves a file: reference through the archive source scan.
func (r *mediaResolver) resolvePath(ctx context.Context, path string) *MediaRecord {
	if r.store == nil {
		return nil
	}
	rec, err := r.store.SearchSources(ctx, path)
	if err != nil {
		r.log.Warn("media file reference unresolved", slog.String("path", path))
		return nil
	}
	return rec
}

// markGenerated flags a record as AI-generated when the owning item's media
// links say so. Tool-produced images frequently arrive without the flag on
// the record itself; the link association is authoritative.
func (r *mediaResolver) markGenerated(item *RenderableItem, rec *MediaRecord) {
	if item == nil || rec == nil || rec.Generated {
		return
	}
	for _, link := range item.Media {
		if link.MediaID == rec.ID && (link.Generated || link.Kind == MediaKindGenerated) {
			rec.Generated = true
			return
		}
	}
}

// substitute replaces media placeholder tokens in converted HTML with final
// markup according to the display mode.
func (r *mediaResolver) substitute(htmlContent string, resolved []resolvedMedia, display string) string {
	if len(resolved) == 0 {
		return htmlContent
	}
	return mediaPlaceholder.ReplaceAllStringFunc(htmlContent, func(m string) string {
		sub := mediaPlaceholder.FindStringSubmatch(m)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(resolved) {
			return m
		}
		return mediaMarkup(resolved[idx], display)
	})
}

// mediaMarkup renders one resolved reference. Unresolvable references get a
// visible marker instead of a broken element.
func mediaMarkup(m resolvedMedia, display string) string {
	if m.Record == nil && m.Direct == "" {
		return fmt.Sprintf(`<span class="media-unavailable">[media unavailable: %s]</span>`,
			html.EscapeString(m.Key))
	}

	src := m.Direct
	alt := m.Alt
	generated := false
	if m.Record != nil {
		src = m.Record.Path
		generated = m.Record.Generated
		if alt == "" || alt == m.Record.ID {
			alt = m.Record.FileName
		}
		if !strings.HasPrefix(m.Record.MimeType, "image/") && m.Record.MimeType != "" {
			return fmt.Sprintf(`<a class="media-file" href="%s">%s</a>`,
				html.EscapeString(src), html.EscapeString(fileLabel(m.Record)))
		}
	}

	img := fmt.Sprintf(`<img src="%s" alt="%s"/>`, html.EscapeString(src), html.EscapeString(alt))

	switch display {
	case MediaThumbnails:
		img = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(src),
			strings.Replace(img, `<img `, `<img class="thumbnail" `, 1))
	case MediaGallery:
		img = `<div class="gallery-item">` + img + `</div>`
	}

	if generated {
		return `<figure class="media generated">` + img +
			`<figcaption class="generated-badge">AI-generated</figcaption></figure>`
	}
	return `<figure class="media">` + img + `</figure>`
}

func fileLabel(rec *MediaRecord) string {
	if rec.FileName != "" {
		return rec.FileName
	}
	return rec.ID
}
