package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// Template names. System prompts are per article type; the article prompt is
// the user message shared by both.
const (
	CompanySystem = "company.tmpl"
	MacroSystem   = "macro.tmpl"
	ArticleUser   = "article.tmpl"
)

var required = []string{CompanySystem, MacroSystem, ArticleUser}

// Input is the data every sentiment template is rendered with.
type Input struct {
	Symbol   string
	Company  string
	Kind     string
	Date     string
	Title    string
	Source   string
	Tier     int
	Summary  string
	ScaleMin int
	ScaleMax int
}

// Funcs is the function map available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"upper": strings.ToUpper,
		"trim":  strings.TrimSpace,
		"tierLabel": func(tier int) string {
			switch tier {
			case 1:
				return "tier 1 (primary financial press)"
			case 2:
				return "tier 2 (established outlet)"
			case 3:
				return "tier 3 (secondary outlet)"
			default:
				return "unranked"
			}
		},
	}
}

// Catalog is the set of templates the sentiment scorer renders.
type Catalog struct {
	templates map[string]*Template
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	c := &Catalog{templates: make(map[string]*Template, len(required))}
	for _, name := range required {
		data, err := fs.ReadFile(embedded, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("prompt: embedded %s: %w", name, err)
		}
		tpl, err := Parse(name, string(data), Funcs())
		if err != nil {
			return nil, err
		}
		c.templates[name] = tpl
	}
	return c, nil
}

// LoadDir returns the default catalog with any template present in dir
// replacing its embedded counterpart. An empty dir yields the defaults.
func LoadDir(dir string) (*Catalog, error) {
	c, err := Default()
	if err != nil || dir == "" {
		return c, err
	}
	for _, name := range required {
		path := filepath.Join(dir, name)
		if _, statErr := os.Stat(path); statErr != nil {
			if errors.Is(statErr, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("prompt: stat %s: %w", path, statErr)
		}
		tpl, err := NewTemplate(path, Funcs())
		if err != nil {
			return nil, err
		}
		c.templates[name] = tpl
	}
	return c, nil
}

// Get returns the named template.
func (c *Catalog) Get(name string) (*Template, bool) {
	tpl, ok := c.templates[name]
	return tpl, ok
}

// SystemFor returns the system template for an article kind.
func (c *Catalog) SystemFor(kind string) (*Template, error) {
	var name string
	switch strings.ToLower(kind) {
	case "company":
		name = CompanySystem
	case "macro":
		name = MacroSystem
	default:
		return nil, fmt.Errorf("prompt: no system template for kind %q", kind)
	}
	return c.templates[name], nil
}

// Render renders the system and user prompts for in.
func (c *Catalog) Render(in Input) (system, user string, err error) {
	sysTpl, err := c.SystemFor(in.Kind)
	if err != nil {
		return "", "", err
	}
	if system, err = sysTpl.Render(in); err != nil {
		return "", "", err
	}
	if user, err = c.templates[ArticleUser].Render(in); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(system), strings.TrimSpace(user), nil
}
