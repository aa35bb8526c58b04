package chatrender

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/archivista/chatrender/internal/assets"
)

// styleStore is the slice of the asset loader the assembler needs.
type styleStore interface {
	Style(name string) (string, error)
}

// documentAssembler wraps rendered fragments into a complete document:
// template selection with default fallback, role-based styling, optional
// metadata and gencom panels, and the client-side typesetting bootstrap
// carried by the template itself.
type documentAssembler struct {
	templates TemplateStore
	styles    styleStore
	log       *slog.Logger
}

func newDocumentAssembler(templates TemplateStore, styles styleStore, log *slog.Logger) *documentAssembler {
	return &documentAssembler{templates: templates, styles: styles, log: log}
}

// assemble produces an immutable RenderDocument from rendered sections.
// Unknown template names fall back to the default template with a logged
// warning; assemble never fails over a template name.
func (a *documentAssembler) assemble(title, subtitle string, sections []Section, opts RenderOptions) *RenderDocument {
	if title == "" {
		title = deriveTitle(sections)
	}
	return &RenderDocument{
		Title:        title,
		Subtitle:     subtitle,
		Template:     a.resolveTemplate(opts.Template),
		ShowMetadata: opts.IncludeMetadata,
		ShowRoleKey:  opts.ShowRoleKey,
		Sections:     sections,
		Generated:    time.Now(),
	}
}

// resolveTemplate returns a template name guaranteed to exist.
func (a *documentAssembler) resolveTemplate(name string) string {
	if name == "" {
		return assets.DefaultTemplateName
	}
	if _, err := a.templates.Template(name); err != nil {
		a.log.Warn("template not found, using default",
			slog.String("template", name),
			slog.Any("available", a.templates.Templates()))
		return assets.DefaultTemplateName
	}
	return name
}

// deriveTitle builds a document title when none was supplied: the first
// section title, else a trimmed prefix of the first fragment's source text.
func deriveTitle(sections []Section) string {
	for _, s := range sections {
		if s.Title != "" {
			return s.Title
		}
	}
	for _, s := range sections {
		for _, f := range s.Fragments {
			line := strings.TrimSpace(f.Raw)
			if line == "" {
				continue
			}
			if i := strings.IndexByte(line, '\n'); i >= 0 {
				line = line[:i]
			}
			if len(line) > 60 {
				line = line[:57] + "..."
			}
			return line
		}
	}
	return "Rendered Content"
}

// Template execution data. Fragment HTML is trusted at this point: it was
// produced by the pipeline from escaped content, never passed through
// verbatim from the export.
type templateData struct {
	Title        string
	Subtitle     string
	ShowMetadata bool
	ShowRoleKey  bool
	Style        template.CSS
	Sections     []sectionData
	Generated    string
}

type sectionData struct {
	Title string
	Items []itemData
}

type itemData struct {
	Role         string
	RoleClass    string
	Header       string
	Content      template.HTML
	Raw          string
	MetadataJSON string
	Gencom       []GencomField
}

// serializeHTML renders a RenderDocument to a self-contained HTML document.
func (a *documentAssembler) serializeHTML(doc *RenderDocument) (string, error) {
	source, err := a.templates.Template(doc.Template)
	if err != nil {
		// doc.Template was resolved at assemble time; losing it now means
		// the store changed underneath us. Fall back once more.
		a.log.Warn("resolved template disappeared, using default", slog.String("template", doc.Template))
		source, err = a.templates.Template(assets.DefaultTemplateName)
		if err != nil {
			return "", fmt.Errorf("loading default template: %w", err)
		}
	}

	tmpl, err := template.New(doc.Template).Parse(source)
	if err != nil {
		return "", fmt.Errorf("parsing template %q: %w", doc.Template, err)
	}

	style, err := a.styles.Style(assets.DefaultStyleName)
	if err != nil {
		return "", fmt.Errorf("loading stylesheet: %w", err)
	}

	data := templateData{
		Title:        doc.Title,
		Subtitle:     doc.Subtitle,
		ShowMetadata: doc.ShowMetadata,
		ShowRoleKey:  doc.ShowRoleKey,
		Style:        template.CSS(style),
		Generated:    doc.Generated.Format("2006-01-02 15:04"),
	}
	for _, s := range doc.Sections {
		sd := sectionData{Title: s.Title}
		for _, f := range s.Fragments {
			item := itemData{
				Role:      f.Role,
				RoleClass: "role-" + f.Role,
				Header:    f.Header,
				Content:   template.HTML(f.HTML),
				Gencom:    f.Gencom,
			}
			if doc.ShowMetadata {
				item.MetadataJSON = prettyMetadata(f.Metadata)
			}
			if f.Raw != "" {
				item.Raw = f.Raw
			}
			sd.Items = append(sd.Items, item)
		}
		data.Sections = append(data.Sections, sd)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("executing template %q: %w", doc.Template, err)
	}
	return b.String(), nil
}

// prettyMetadata pretty-prints a metadata bag for the metadata panel.
func prettyMetadata(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	out, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", meta)
	}
	return string(out)
}

// gencomFields selects AI-generated annotation fields from an item's
// metadata bag per the render options. Fields live under the
// "generated-comment" metadata key (legacy exports use "gencom").
func gencomFields(meta map[string]any, opts RenderOptions) ([]GencomField, error) {
	all, selected, err := opts.gencomSelection()
	if err != nil {
		return nil, err
	}
	if !all && len(selected) == 0 {
		return nil, nil
	}

	bag := gencomBag(meta)
	if len(bag) == 0 {
		return nil, nil
	}

	var names []string
	if all {
		for name := range bag {
			names = append(names, name)
		}
		sort.Strings(names)
	} else {
		names = selected
	}

	var fields []GencomField
	for _, name := range names {
		value, ok := bag[name]
		if !ok {
			continue
		}
		fields = append(fields, GencomField{
			Label: gencomLabel(name, opts.GencomLabels),
			Value: fmt.Sprintf("%v", value),
		})
	}
	return fields, nil
}

func gencomBag(meta map[string]any) map[string]any {
	for _, key := range []string{"generated-comment", "gencom"} {
		if raw, ok := meta[key]; ok {
			if bag, ok := raw.(map[string]any); ok {
				return bag
			}
		}
	}
	return nil
}

// gencomLabel maps a field name to its display label: explicit remapping
// first, otherwise the field name with underscores opened up and the first
// letter capitalized.
func gencomLabel(name string, labels map[string]string) string {
	if label, ok := labels[name]; ok {
		return label
	}
	label := strings.ReplaceAll(name, "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
