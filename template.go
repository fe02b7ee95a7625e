package bulkmailer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// placeholderPattern matches ${field} placeholders. Field names are
// case-sensitive identifiers: a letter or underscore followed by word
// characters.
var placeholderPattern = regexp.MustCompile(`\$\{([a-zA-Z_]\w*)\}`)

// Template is a subject or body template using ${field} placeholders.
//
// Substitution is safe: placeholders whose field is absent from the
// recipient are left literal in the output, so a typo never produces an
// empty hole silently. Rendering is pure and idempotent.
type Template struct {
	name string
	text string
}

// NewTemplate creates a template from literal text.
func NewTemplate(name, text string) *Template {
	return &Template{name: name, text: text}
}

// LoadTemplate reads a template file. The template name is the base
// filename.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewTemplateError(filepath.Base(path), "load", fmt.Sprintf("cannot read template %q", path), err)
	}
	return NewTemplate(filepath.Base(path), string(data)), nil
}

// Name returns the template name.
func (t *Template) Name() string {
	return t.name
}

// Render substitutes every ${field} whose key exists in fields. Matching is
// a case-sensitive exact key lookup. Unknown placeholders are left literal.
func (t *Template) Render(fields map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(t.text, func(match string) string {
		key := match[2 : len(match)-1]
		if value, ok := fields[key]; ok {
			return value
		}
		return match
	})
}

// Placeholders returns the sorted set of field names the template uses.
func (t *Template) Placeholders() []string {
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(t.text, -1) {
		seen[m[1]] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TemplateSet bundles the subject, plain text, and HTML templates for a run.
type TemplateSet struct {
	// Subject is the subject template, usually from the SUBJECT config key.
	Subject *Template

	// Text is the plain text body template.
	Text *Template

	// HTML is the HTML body template.
	HTML *Template
}

// LoadTemplateSet loads the text and HTML body templates from files and
// combines them with the subject template text.
func LoadTemplateSet(subject, textPath, htmlPath string) (*TemplateSet, error) {
	text, err := LoadTemplate(textPath)
	if err != nil {
		return nil, err
	}
	html, err := LoadTemplate(htmlPath)
	if err != nil {
		return nil, err
	}
	return &TemplateSet{
		Subject: NewTemplate("subject", subject),
		Text:    text,
		HTML:    html,
	}, nil
}

// Placeholders returns the union of field names used by all three templates.
func (ts *TemplateSet) Placeholders() map[string]struct{} {
	used := make(map[string]struct{})
	for _, t := range []*Template{ts.Subject, ts.Text, ts.HTML} {
		if t == nil {
			continue
		}
		for _, key := range t.Placeholders() {
			used[key] = struct{}{}
		}
	}
	return used
}

// Render renders all three templates against the same field map.
func (ts *TemplateSet) Render(fields map[string]string) (subject, text, html string) {
	if ts.Subject != nil {
		subject = ts.Subject.Render(fields)
	}
	if ts.Text != nil {
		text = ts.Text.Render(fields)
	}
	if ts.HTML != nil {
		html = ts.HTML.Render(fields)
	}
	return subject, text, html
}
