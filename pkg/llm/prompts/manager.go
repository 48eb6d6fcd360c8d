package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"text/template"
)

//go:embed templates
var embedded embed.FS

// Manager handles loading and rendering of prompt templates.
// Templates under common/ are parsed first so others can use their definitions.
type Manager struct {
	root *template.Template
}

// NewManager creates a prompt manager from a directory on disk.
func NewManager(dir string) (*Manager, error) {
	return New(os.DirFS(dir))
}

// Default returns a manager for the built-in templates.
func Default() (*Manager, error) {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, err
	}
	return New(sub)
}

// Load uses dir when set and the built-in templates otherwise.
func Load(dir string) (*Manager, error) {
	if dir == "" {
		return Default()
	}
	return NewManager(dir)
}

// New creates a manager from any file system.
func New(fsys fs.FS) (*Manager, error) {
	m := &Manager{}
	m.root = template.New("root").Funcs(template.FuncMap{
		"join":  strings.Join,
		"trim":  strings.TrimSpace,
		"lines": joinLines,
	})

	if err := m.load(fsys, true); err != nil {
		return nil, fmt.Errorf("loading common templates: %w", err)
	}
	if err := m.load(fsys, false); err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	return m, nil
}

func (m *Manager) load(fsys fs.FS, common bool) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".tmpl" {
			return nil
		}
		if strings.HasPrefix(p, "common/") != common {
			return nil
		}

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}

		t := m.root
		if !common {
			t = m.root.New(p)
		}
		if _, err := t.Parse(string(content)); err != nil {
			return fmt.Errorf("parsing %s: %w", p, err)
		}
		return nil
	})
}

// Render executes the named template with the provided data.
// Leading and trailing whitespace of the result is trimmed.
func (m *Manager) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := m.root.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// Has reports whether a template with the given name was loaded.
func (m *Manager) Has(name string) bool {
	return m.root.Lookup(name) != nil
}

// joinLines joins items with newlines.
func joinLines(items []string) string {
	return strings.Join(items, "\n")
}
