package chatrender

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// fakeMediaStore serves records from maps, recording lookup order.
type fakeMediaStore struct {
	records map[string]MediaRecord // exact id matches
	sources map[string]MediaRecord // SearchSources matches by key
	calls   []string
}

func (f *fakeMediaStore) Lookup(_ context.Context, id string) (*MediaRecord, error) {
	f.calls = append(f.calls, "lookup:"+id)
	if rec, ok := f.records[id]; ok {
		return &rec, nil
	}
	return nil, fmt.Errorf("%w: media %q", ErrContentNotFound, id)
}

func (f *fakeMediaStore) LookupPrefix(_ context.Context, prefix string) (*MediaRecord, error) {
	f.calls = append(f.calls, "prefix:"+prefix)
	for id, rec := range f.records {
		if strings.HasPrefix(id, prefix) {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("%w: media prefix %q", ErrContentNotFound, prefix)
}

func (f *fakeMediaStore) SearchSources(_ context.Context, key string) (*MediaRecord, error) {
	f.calls = append(f.calls, "sources:"+key)
	if rec, ok := f.sources[key]; ok {
		return &rec, nil
	}
	return nil, fmt.Errorf("%w: media key %q", ErrContentNotFound, key)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMediaExtractAndSubstitute(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{records: map[string]MediaRecord{
		"abc123": {ID: "abc123", Path: "/media/abc123.png", MimeType: "image/png", FileName: "plot.png"},
	}}
	r := newMediaResolver(store, discardLogger())

	text, resolved := r.extract(context.Background(), "A plot: ![scatter](media:abc123)", nil)

	if strings.Contains(text, "media:abc123") {
		t.Errorf("reference not replaced by placeholder: %q", text)
	}
	if len(resolved) != 1 {
		t.Fatalf("got %d resolved references, want 1", len(resolved))
	}

	html := r.substitute("<p>"+text+"</p>", resolved, MediaInline)
	if !strings.Contains(html, `src="/media/abc123.png"`) {
		t.Errorf("image source missing: %q", html)
	}
	if !strings.Contains(html, `alt="scatter"`) {
		t.Errorf("alt text missing: %q", html)
	}
	if !strings.Contains(html, `<figure class="media">`) {
		t.Errorf("figure wrapper missing: %q", html)
	}
}

func TestMediaExtractSkipsFencedCode(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{}
	r := newMediaResolver(store, discardLogger())

	input := "```\n![alt](media:some-id)\n[Asset: file-abc1] file-deadbeef99\n```\n"
	text, resolved := r.extract(context.Background(), input, nil)

	if text != input {
		t.Errorf("fenced content was modified:\n got = %q\nwant = %q", text, input)
	}
	if len(resolved) != 0 {
		t.Errorf("got %d resolved references inside a fence, want 0: %v", len(resolved), resolved)
	}
	if len(store.calls) != 0 {
		t.Errorf("store queried for fenced content: %v", store.calls)
	}
}

func TestMediaUnresolvedReferenceGetsMarker(t *testing.T) {
	t.Parallel()

	r := newMediaResolver(&fakeMediaStore{}, discardLogger())
	text, resolved := r.extract(context.Background(), "see ![x](media:missing-id)", nil)
	html := r.substitute(text, resolved, MediaInline)

	if !strings.Contains(html, `media-unavailable`) {
		t.Errorf("unresolved reference should render a visible marker: %q", html)
	}
	if !strings.Contains(html, "missing-id") {
		t.Errorf("marker should name the missing reference: %q", html)
	}
}

func TestMediaNilStore(t *testing.T) {
	t.Parallel()

	r := newMediaResolver(nil, discardLogger())
	text, resolved := r.extract(context.Background(), "![x](media:any)", nil)
	html := r.substitute(text, resolved, MediaInline)

	if !strings.Contains(html, "media-unavailable") {
		t.Errorf("nil store should degrade to unavailable markers: %q", html)
	}
}

func TestMediaLookupOrder(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{}
	r := newMediaResolver(store, discardLogger())
	r.resolve(context.Background(), nil, "file-12345678")

	want := []string{"lookup:file-12345678", "prefix:file-12345678", "sources:file-12345678"}
	if len(store.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", store.calls, want)
	}
	for i := range want {
		if store.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, store.calls[i], want[i])
		}
	}
}

func TestMediaAssetTokens(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{records: map[string]MediaRecord{
		"file-AAAA1111BBBB": {ID: "file-AAAA1111BBBB", Path: "/m/a.png", MimeType: "image/png", FileName: "a.png"},
	}}
	r := newMediaResolver(store, discardLogger())

	text, resolved := r.extract(context.Background(), "Result: [Asset: file-AAAA1111BBBB]", nil)
	html := r.substitute(text, resolved, MediaInline)

	if strings.Contains(html, "[Asset:") {
		t.Errorf("asset token survived: %q", html)
	}
	if !strings.Contains(html, `src="/m/a.png"`) {
		t.Errorf("asset not rendered as image: %q", html)
	}
}

func TestMediaBareFileID(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{records: map[string]MediaRecord{
		"file-XYZXYZ12": {ID: "file-XYZXYZ12", Path: "/m/x.png", MimeType: "image/png"},
	}}
	r := newMediaResolver(store, discardLogger())

	text, resolved := r.extract(context.Background(), "generated file-XYZXYZ12 above", nil)
	if len(resolved) != 1 {
		t.Fatalf("bare file id not extracted: %q", text)
	}
}

func TestMediaDirectURL(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{}
	r := newMediaResolver(store, discardLogger())
	text, resolved := r.extract(context.Background(), "![ext](https://example.com/i.png)", nil)
	html := r.substitute(text, resolved, MediaInline)

	if !strings.Contains(html, `src="https://example.com/i.png"`) {
		t.Errorf("direct URL should render without store lookups: %q", html)
	}
	if len(store.calls) != 0 {
		t.Errorf("direct URL triggered store lookups: %v", store.calls)
	}
}

func TestMediaDisplayModes(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{records: map[string]MediaRecord{
		"img1": {ID: "img1", Path: "/m/1.png", MimeType: "image/png", FileName: "1.png"},
	}}

	tests := []struct {
		name     string
		display  string
		contains string
	}{
		{name: "inline", display: MediaInline, contains: `<figure class="media">`},
		{name: "thumbnails", display: MediaThumbnails, contains: `class="thumbnail"`},
		{name: "gallery", display: MediaGallery, contains: `class="gallery-item"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newMediaResolver(store, discardLogger())
			text, resolved := r.extract(context.Background(), "![p](media:img1)", nil)
			html := r.substitute(text, resolved, tt.display)
			if !strings.Contains(html, tt.contains) {
				t.Errorf("display %q output %q, want substring %q", tt.display, html, tt.contains)
			}
		})
	}
}

func TestMediaGeneratedBadge(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{records: map[string]MediaRecord{
		"gen1": {ID: "gen1", Path: "/m/g.png", MimeType: "image/png", Generated: true},
	}}
	r := newMediaResolver(store, discardLogger())

	text, resolved := r.extract(context.Background(), "![art](media:gen1)", nil)
	html := r.substitute(text, resolved, MediaInline)

	if !strings.Contains(html, "AI-generated") {
		t.Errorf("generated media missing badge: %q", html)
	}
}

func TestMediaGeneratedFlagFromLink(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{records: map[string]MediaRecord{
		"tool-img": {ID: "tool-img", Path: "/m/t.png", MimeType: "image/png"},
	}}
	item := &RenderableItem{
		ID:    "m1",
		Media: []MediaLink{{MediaID: "tool-img", Kind: MediaKindGenerated}},
	}
	r := newMediaResolver(store, discardLogger())

	text, resolved := r.extract(context.Background(), "![out](media:tool-img)", item)
	html := r.substitute(text, resolved, MediaInline)

	if !strings.Contains(html, "AI-generated") {
		t.Errorf("link-level generated flag not applied: %q", html)
	}
}

func TestMediaUnreferencedAttachment(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{records: map[string]MediaRecord{
		"att1": {ID: "att1", Path: "/m/att1.pdf", MimeType: "application/pdf", FileName: "paper.pdf"},
	}}
	item := &RenderableItem{
		ID:    "m1",
		Media: []MediaLink{{MediaID: "att1", Kind: MediaKindAttachment}},
	}
	r := newMediaResolver(store, discardLogger())

	text, resolved := r.extract(context.Background(), "No inline reference here.", item)
	if len(resolved) != 1 {
		t.Fatalf("unreferenced attachment not appended: %q", text)
	}

	html := r.substitute(text, resolved, MediaInline)
	if !strings.Contains(html, `class="media-file"`) {
		t.Errorf("non-image attachment should render as a link: %q", html)
	}
	if !strings.Contains(html, "paper.pdf") {
		t.Errorf("attachment label missing: %q", html)
	}
}
