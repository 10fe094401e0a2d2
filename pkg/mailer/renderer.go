package mailer

import (
	"bytes"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"io/fs"
	"maps"
	"path"
	"strings"
	"sync"
	texttemplate "text/template"
)

// TemplatesConfig configures the file system template renderer.
type TemplatesConfig struct {
	Dir   string         `env:"MAILER_TEMPLATE_DIR" envDefault:"."` // Root of the templates
	Funcs map[string]any `env:"-"`                                   // Extra template functions
}

// Templates is the default TemplateRenderer. It loads templates from an
// fs.FS: .html and .htm files are parsed with html/template, everything
// else with text/template. YAML frontmatter is stripped from the body and
// exposed through Metadata.
type Templates struct {
	fs    fs.FS
	funcs map[string]any

	// Parsed templates are cached; misses are not.
	cache map[string]*cachedTemplate
	dir   string

	mu sync.RWMutex
}

type executor interface {
	Execute(w io.Writer, data any) error
}

type cachedTemplate struct {
	metadata map[string]any
	tmpl     executor
}

// NewTemplates creates a template renderer with default config.
func NewTemplates(filesystem fs.FS) *Templates {
	return NewTemplatesWithConfig(filesystem, TemplatesConfig{})
}

// NewTemplatesWithConfig creates a template renderer with custom config.
func NewTemplatesWithConfig(filesystem fs.FS, cfg TemplatesConfig) *Templates {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}

	return &Templates{
		fs:    filesystem,
		dir:   cfg.Dir,
		funcs: maps.Clone(cfg.Funcs),
		cache: make(map[string]*cachedTemplate),
	}
}

// Render executes the first template of names that exists.
func (t *Templates) Render(names []string, data Data) (string, error) {
	cached, name, err := t.lookup(names)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := cached.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRenderFailed, name, err)
	}
	return buf.String(), nil
}

// Metadata returns the frontmatter of the first template of names that exists.
func (t *Templates) Metadata(names []string) (map[string]any, error) {
	cached, _, err := t.lookup(names)
	if err != nil {
		return nil, err
	}
	return maps.Clone(cached.metadata), nil
}

func (t *Templates) lookup(names []string) (*cachedTemplate, string, error) {
	for _, name := range names {
		cached, err := t.get(name)
		if errors.Is(err, ErrTemplateNotFound) {
			continue
		}
		if err != nil {
			return nil, name, err
		}
		return cached, name, nil
	}
	return nil, "", fmt.Errorf("%w: %s", ErrTemplateNotFound, strings.Join(names, ", "))
}

// get returns a cached template or parses and caches it.
func (t *Templates) get(name string) (*cachedTemplate, error) {
	t.mu.RLock()
	if cached, ok := t.cache[name]; ok {
		t.mu.RUnlock()
		return cached, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring write lock
	if cached, ok := t.cache[name]; ok {
		return cached, nil
	}

	content, err := fs.ReadFile(t.fs, path.Join(t.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRenderFailed, name, err)
	}

	parsed, err := ParseTemplate(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var tmpl executor
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm":
		tmpl, err = htmltemplate.New(name).Funcs(t.funcs).Parse(parsed.Body)
	default:
		tmpl, err = texttemplate.New(name).Funcs(t.funcs).Parse(parsed.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRenderFailed, name, err)
	}

	cached := &cachedTemplate{metadata: parsed.Metadata, tmpl: tmpl}
	t.cache[name] = cached
	return cached, nil
}
