// Package archive implements the content and media stores over an exported
// archive directory tree:
//
//	root/
//	  conversations/   one .json or .yaml file per conversation
//	  chunks/          one .md file per chunk, named <id>.md
//	  collections/     one .yaml file per collection
//	  buffers/         one .yaml file per buffer
//	  media/index.yaml media record index
//
// The tree is read once, lazily, on first access. The store never writes.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/archivista/chatrender"
	"github.com/archivista/chatrender/internal/config"
	"github.com/archivista/chatrender/internal/yamlutil"
)

// Compile-time interface checks.
var (
	_ chatrender.ContentStore = (*Store)(nil)
	_ chatrender.MediaStore   = (*Store)(nil)
)

// Store reads archived conversations, chunks, collections, buffers, and
// media records from a directory tree. Safe for concurrent readers after
// the first access completes.
type Store struct {
	root    string
	sources []config.Source
	log     *slog.Logger

	once    sync.Once
	loadErr error

	conversations map[string]*chatrender.Conversation
	messages      map[string]messageRef
	collections   map[string]*chatrender.Collection
	buffers       map[string]*chatrender.Collection
	media         map[string]chatrender.MediaRecord
	mediaOrder    []string // stable iteration order for prefix matches
}

// messageRef locates a message inside its loaded conversation.
type messageRef struct {
	conversation string
	index        int
}

// NewStore creates a store over the given archive root. Extra source
// directories are scanned, in order, for media files the index does not
// cover.
func NewStore(root string, sources []config.Source, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{root: root, sources: sources, log: log}
}

// On-disk shapes. Field names follow the export format, which uses
// snake_case in both JSON and YAML.

type conversationFile struct {
	ID       string        `json:"id" yaml:"id"`
	Title    string        `json:"title" yaml:"title"`
	Created  string        `json:"created" yaml:"created"`
	Messages []messageFile `json:"messages" yaml:"messages"`
}

type messageFile struct {
	ID       string          `json:"id" yaml:"id"`
	Role     string          `json:"role" yaml:"role"`
	Text     string          `json:"text" yaml:"text"`
	Metadata map[string]any  `json:"metadata" yaml:"metadata"`
	Media    []mediaLinkFile `json:"media" yaml:"media"`
}

type mediaLinkFile struct {
	MediaID   string `json:"media_id" yaml:"media_id"`
	Kind      string `json:"kind" yaml:"kind"`
	Position  int    `json:"position" yaml:"position"`
	Generated bool   `json:"generated" yaml:"generated"`
}

type collectionFile struct {
	Name  string               `yaml:"name"`
	Items []collectionItemFile `yaml:"items"`
}

type collectionItemFile struct {
	Message string `yaml:"message"` // message id
	Chunk   string `yaml:"chunk"`   // chunk id; exactly one of the two is set
}

type mediaIndexFile struct {
	Records []mediaRecordFile `yaml:"records"`
}

type mediaRecordFile struct {
	ID        string `yaml:"id"`
	Path      string `yaml:"path"`
	MimeType  string `yaml:"mime_type"`
	FileName  string `yaml:"file_name"`
	Generated bool   `yaml:"generated"`
	Source    string `yaml:"source"`
}

// load reads the archive tree once. Individual malformed files are logged
// and skipped; only an unreadable root is fatal.
func (s *Store) load() error {
	s.once.Do(func() {
		if _, err := os.Stat(s.root); err != nil {
			s.loadErr = fmt.Errorf("archive root %q: %w", s.root, err)
			return
		}
		s.conversations = make(map[string]*chatrender.Conversation)
		s.messages = make(map[string]messageRef)
		s.collections = make(map[string]*chatrender.Collection)
		s.buffers = make(map[string]*chatrender.Collection)
		s.media = make(map[string]chatrender.MediaRecord)

		s.loadConversations()
		s.loadNamedLists("collections", s.collections)
		s.loadNamedLists("buffers", s.buffers)
		s.loadMediaIndex()
	})
	return s.loadErr
}

func (s *Store) loadConversations() {
	dir := filepath.Join(s.root, "conversations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return // optional subtree
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		var cf conversationFile
		if err := readStructured(path, &cf); err != nil {
			s.log.Warn("skipping malformed conversation file",
				slog.String("path", path),
				slog.Any("error", err))
			continue
		}
		if cf.ID == "" {
			cf.ID = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		conv := &chatrender.Conversation{
			ID:      cf.ID,
			Title:   cf.Title,
			Created: cf.Created,
			Items:   make([]chatrender.RenderableItem, 0, len(cf.Messages)),
		}
		for i, m := range cf.Messages {
			conv.Items = append(conv.Items, chatrender.RenderableItem{
				ID:       m.ID,
				Role:     m.Role,
				Text:     m.Text,
				Metadata: m.Metadata,
				Media:    mediaLinks(m.Media),
			})
			s.messages[m.ID] = messageRef{conversation: cf.ID, index: i}
		}
		s.conversations[cf.ID] = conv
	}
}

func mediaLinks(links []mediaLinkFile) []chatrender.MediaLink {
	if len(links) == 0 {
		return nil
	}
	out := make([]chatrender.MediaLink, len(links))
	for i, l := range links {
		out[i] = chatrender.MediaLink{
			MediaID:   l.MediaID,
			Kind:      l.Kind,
			Position:  l.Position,
			Generated: l.Generated,
		}
	}
	return out
}

func (s *Store) loadNamedLists(subdir string, into map[string]*chatrender.Collection) {
	dir := filepath.Join(s.root, subdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path) // #nosec G304 -- path under archive root
		if err != nil {
			s.log.Warn("skipping unreadable file", slog.String("path", path), slog.Any("error", err))
			continue
		}
		var cf collectionFile
		if err := yamlutil.Unmarshal(data, &cf); err != nil {
			s.log.Warn("skipping malformed collection file",
				slog.String("path", path),
				slog.Any("error", err))
			continue
		}
		if cf.Name == "" {
			cf.Name = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		into[cf.Name] = s.resolveCollection(cf)
	}
}

// resolveCollection dereferences item ids against loaded content. Dangling
// references are logged and skipped so one stale entry does not hide the
// rest of the collection.
func (s *Store) resolveCollection(cf collectionFile) *chatrender.Collection {
	coll := &chatrender.Collection{Name: cf.Name}
	for _, it := range cf.Items {
		switch {
		case it.Message != "":
			ref, ok := s.messages[it.Message]
			if !ok {
				s.log.Warn("collection references unknown message",
					slog.String("collection", cf.Name),
					slog.String("message", it.Message))
				continue
			}
			conv := s.conversations[ref.conversation]
			coll.Items = append(coll.Items, chatrender.CollectionItem{
				Item:         conv.Items[ref.index],
				Conversation: conv.Title,
			})
		case it.Chunk != "":
			item, err := s.readChunk(it.Chunk)
			if err != nil {
				s.log.Warn("collection references unknown chunk",
					slog.String("collection", cf.Name),
					slog.String("chunk", it.Chunk))
				continue
			}
			coll.Items = append(coll.Items, chatrender.CollectionItem{Item: *item})
		}
	}
	return coll
}

func (s *Store) loadMediaIndex() {
	path := filepath.Join(s.root, "media", "index.yaml")
	data, err := os.ReadFile(path) // #nosec G304 -- path under archive root
	if err != nil {
		return // optional
	}
	var idx mediaIndexFile
	if err := yamlutil.Unmarshal(data, &idx); err != nil {
		s.log.Warn("skipping malformed media index", slog.String("path", path), slog.Any("error", err))
		return
	}
	for _, r := range idx.Records {
		s.media[r.ID] = chatrender.MediaRecord{
			ID:        r.ID,
			Path:      r.Path,
			MimeType:  r.MimeType,
			FileName:  r.FileName,
			Generated: r.Generated,
			Source:    r.Source,
		}
		s.mediaOrder = append(s.mediaOrder, r.ID)
	}
	sort.Strings(s.mediaOrder)
}

// readStructured decodes a .json or .yaml/.yml file by extension.
func readStructured(path string, v any) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path under archive root
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Unmarshal(data, v)
	case ".yaml", ".yml":
		return yamlutil.Unmarshal(data, v)
	}
	return fmt.Errorf("unsupported file extension: %s", path)
}

// readChunk loads a chunk from chunks/<id>.md.
func (s *Store) readChunk(id string) (*chatrender.RenderableItem, error) {
	path := filepath.Join(s.root, "chunks", id+".md")
	data, err := os.ReadFile(path) // #nosec G304 -- id validated by caller lookups
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %q", chatrender.ErrContentNotFound, id)
	}
	return &chatrender.RenderableItem{
		ID:   id,
		Role: chatrender.RoleUnknown,
		Text: string(data),
	}, nil
}

// Message implements chatrender.ContentStore.
func (s *Store) Message(ctx context.Context, id string) (*chatrender.RenderableItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ref, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: message %q", chatrender.ErrContentNotFound, id)
	}
	item := s.conversations[ref.conversation].Items[ref.index]
	return &item, nil
}

// Chunk implements chatrender.ContentStore.
func (s *Store) Chunk(ctx context.Context, id string) (*chatrender.RenderableItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.readChunk(id)
}

// Conversation implements chatrender.ContentStore.
func (s *Store) Conversation(ctx context.Context, id string) (*chatrender.Conversation, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %q", chatrender.ErrContentNotFound, id)
	}
	return conv, nil
}

// Collection implements chatrender.ContentStore.
func (s *Store) Collection(ctx context.Context, name string) (*chatrender.Collection, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	coll, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %q", chatrender.ErrContentNotFound, name)
	}
	return coll, nil
}

// Buffer implements chatrender.ContentStore.
func (s *Store) Buffer(ctx context.Context, name string) (*chatrender.Collection, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	buf, ok := s.buffers[name]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %q", chatrender.ErrContentNotFound, name)
	}
	return buf, nil
}

// Lookup implements chatrender.MediaStore.
func (s *Store) Lookup(ctx context.Context, id string) (*chatrender.MediaRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rec, ok := s.media[id]
	if !ok {
		return nil, fmt.Errorf("%w: media %q", chatrender.ErrContentNotFound, id)
	}
	return &rec, nil
}

// LookupPrefix implements chatrender.MediaStore. Historical exports
// truncated file ids, so a prefix match on record id or original file name
// is accepted. Candidates are checked in sorted id order for determinism.
func (s *Store) LookupPrefix(ctx context.Context, prefix string) (*chatrender.MediaRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty media prefix", chatrender.ErrContentNotFound)
	}
	for _, id := range s.mediaOrder {
		rec := s.media[id]
		if strings.HasPrefix(rec.ID, prefix) || strings.HasPrefix(rec.FileName, prefix) {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("%w: media prefix %q", chatrender.ErrContentNotFound, prefix)
}

// SearchSources implements chatrender.MediaStore: a filename scan across
// the configured raw export directories, in priority order. The key matches
// a file whose base name starts with it (ids) or equals it (paths).
func (s *Store) SearchSources(ctx context.Context, key string) (*chatrender.MediaRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	base := filepath.Base(key)
	if base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: media key %q", chatrender.ErrContentNotFound, key)
	}
	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found := s.scanSource(src, base)
		if found != nil {
			return found, nil
		}
	}
	return nil, fmt.Errorf("%w: media key %q", chatrender.ErrContentNotFound, key)
}

func (s *Store) scanSource(src config.Source, base string) *chatrender.MediaRecord {
	var found *chatrender.MediaRecord
	err := filepath.WalkDir(src.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil // unreadable entries are skipped, not fatal
		}
		name := d.Name()
		if name == base || strings.HasPrefix(name, base) {
			found = &chatrender.MediaRecord{
				ID:       strings.TrimSuffix(name, filepath.Ext(name)),
				Path:     path,
				MimeType: mimeFromExt(name),
				FileName: name,
				Source:   src.Name,
			}
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		s.log.Warn("media source scan failed",
			slog.String("source", src.Name),
			slog.Any("error", err))
	}
	return found
}

// mimeFromExt covers the media types chat exports actually contain.
func mimeFromExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".pdf":
		return "application/pdf"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".mp4":
		return "video/mp4"
	}
	return ""
}

// ready loads the archive and honors context cancellation.
func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.load()
}
