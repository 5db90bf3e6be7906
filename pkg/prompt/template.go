package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"
)

// Template is a text/template with a content digest. Templates parsed from a
// file can be reloaded; embedded ones are fixed.
type Template struct {
	name  string
	path  string
	funcs template.FuncMap

	mu   sync.RWMutex
	tmpl *template.Template
	hash string
}

// NewTemplate parses the template at path using the provided template functions.
func NewTemplate(path string, funcs template.FuncMap) (*Template, error) {
	if path == "" {
		return nil, fmt.Errorf("prompt: template path is empty")
	}
	t := &Template{name: filepath.Base(path), path: path, funcs: funcs}
	if err := t.reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Parse builds a template from in-memory text.
func Parse(name, text string, funcs template.FuncMap) (*Template, error) {
	t := &Template{name: name, funcs: funcs}
	if err := t.parse([]byte(text)); err != nil {
		return nil, err
	}
	return t, nil
}

// Name returns the template's file name.
func (t *Template) Name() string { return t.name }

// Render executes the template with the provided data.
func (t *Template) Render(data any) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("prompt: execute %q: %w", t.name, err)
	}
	return buf.String(), nil
}

// Reload reparses the template from disk. It is a no-op for in-memory templates.
func (t *Template) Reload() error {
	if t.path == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reload()
}

func (t *Template) reload() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("prompt: read %q: %w", t.path, err)
	}
	return t.parse(data)
}

func (t *Template) parse(data []byte) error {
	tmpl := template.New(t.name).Option("missingkey=error")
	if len(t.funcs) > 0 {
		tmpl = tmpl.Funcs(t.funcs)
	}
	if _, err := tmpl.Parse(string(data)); err != nil {
		return fmt.Errorf("prompt: parse %q: %w", t.name, err)
	}
	t.tmpl = tmpl
	t.hash = computeDigest(data)
	return nil
}

// Digest returns the sha256 hash of the template content.
func (t *Template) Digest() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hash
}
