package chatrender

import "context"

// ContentStore supplies renderable content. Implementations are expected to
// return items in a stable order: conversations chronologically, collections
// in insertion order. A missing entity is reported by wrapping
// ErrContentNotFound.
type ContentStore interface {
	// Message fetches a single message with its media links expanded.
	Message(ctx context.Context, id string) (*RenderableItem, error)

	// Chunk fetches a single chunk. Chunks have no media links.
	Chunk(ctx context.Context, id string) (*RenderableItem, error)

	// Conversation fetches a conversation and its messages in chronological
	// order, media links expanded.
	Conversation(ctx context.Context, id string) (*Conversation, error)

	// Collection fetches a named collection and its items in insertion order.
	Collection(ctx context.Context, name string) (*Collection, error)

	// Buffer fetches an ephemeral named item list. Buffers behave like
	// collections but are not persisted.
	Buffer(ctx context.Context, name string) (*Collection, error)
}

// Conversation is a titled, ordered list of renderable items.
type Conversation struct {
	ID      string
	Title   string
	Created string // preformatted creation timestamp, may be empty
	Items   []RenderableItem
}

// Collection is a named, ordered list of renderable items. Items that came
// from a conversation carry the conversation title so the assembler can show
// a "From conversation" header line.
type Collection struct {
	Name  string
	Items []CollectionItem
}

// CollectionItem pairs a renderable item with its source context.
type CollectionItem struct {
	Item         RenderableItem
	Conversation string // source conversation title, may be empty
}

// MediaStore resolves media identifiers to records. The render pipeline only
// reads from it. Lookups happen in a fixed order: exact id, then prefix
// match (historical exports truncated ids), then a scan across archive
// sources in priority order. Each method reports a miss by wrapping
// ErrContentNotFound.
type MediaStore interface {
	// Lookup returns the record with exactly the given id.
	Lookup(ctx context.Context, id string) (*MediaRecord, error)

	// LookupPrefix returns the first record whose id or original file id
	// starts with the given prefix.
	LookupPrefix(ctx context.Context, prefix string) (*MediaRecord, error)

	// SearchSources scans the configured archive source directories, in
	// priority order, for a file matching the given key.
	SearchSources(ctx context.Context, key string) (*MediaRecord, error)
}

// TemplateStore supplies named document templates. Lookup of an unknown name
// is reported with an error so the assembler can fall back to the default
// template; implementations must always be able to serve the default.
type TemplateStore interface {
	// Template returns the template definition for the given name.
	Template(name string) (string, error)

	// Templates lists the available template names.
	Templates() []string
}
