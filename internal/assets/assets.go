// Package assets holds the embedded document templates and stylesheets and
// the loaders that serve them. Templates are Go html/template sources; the
// assembler parses and executes them per render.
package assets

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed templates/*
var templates embed.FS

//go:embed styles/*
var styles embed.FS

// DefaultTemplateName is the template every renderer can rely on. Lookup of
// an unknown name falls back to it rather than failing the render.
const DefaultTemplateName = "default"

// DefaultStyleName is the built-in screen stylesheet.
const DefaultStyleName = "default"

// PrintStyleName is the stylesheet layered on top for PDF export.
const PrintStyleName = "print"

// EmbeddedStore serves templates and styles from the embedded filesystem.
type EmbeddedStore struct{}

// NewEmbeddedStore creates an EmbeddedStore.
func NewEmbeddedStore() *EmbeddedStore {
	return &EmbeddedStore{}
}

// Template returns the template source for the given name (no extension).
func (e *EmbeddedStore) Template(name string) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}
	content, err := templates.ReadFile("templates/" + name + ".html")
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return string(content), nil
}

// Templates lists the embedded template names, sorted.
func (e *EmbeddedStore) Templates() []string {
	entries, err := templates.ReadDir("templates")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".html"))
	}
	sort.Strings(names)
	return names
}

// Style returns the CSS content for the given name (no extension).
func (e *EmbeddedStore) Style(name string) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}
	content, err := styles.ReadFile("styles/" + name + ".css")
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrStyleNotFound, name)
	}
	return string(content), nil
}

// ValidateAssetName checks that an asset name is safe for use as a filename.
// Rejects empty names and names containing path separators, dots, or
// traversal characters.
func ValidateAssetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAssetName)
	}
	if strings.ContainsAny(name, "/\\.") {
		return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	return nil
}
