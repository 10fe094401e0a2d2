package mailer

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown extension names understood by Goldmark.
const (
	ExtensionExtra         = "extra"
	ExtensionGFM           = "gfm"
	ExtensionStrikethrough = "strikethrough"
	ExtensionLinkify       = "linkify"
	ExtensionTaskList      = "tasklist"
	ExtensionTypographer   = "typographer"
	ExtensionHighlight     = "highlight"
	ExtensionButton        = "button"
	ExtensionUnsafe        = "unsafe"
)

// markdownExtension is the goldmark configuration behind one extension name.
type markdownExtension struct {
	extenders []goldmark.Extender
	parser    []parser.Option
	renderer  []renderer.Option
}

// GoldmarkConfig configures the Goldmark renderer.
type GoldmarkConfig struct {
	HighlightStyle string `env:"MAILER_HIGHLIGHT_STYLE" envDefault:"github"` // chroma style name
	ButtonClass    string `env:"MAILER_BUTTON_CLASS" envDefault:"btn"`       // class of button links
}

// Goldmark is the default MarkdownRenderer.
// Converters are built once per extension set and cached.
type Goldmark struct {
	converters map[string]goldmark.Markdown
	extensions map[string]markdownExtension
	mu         sync.RWMutex
}

// NewGoldmark creates a Goldmark renderer with default config.
func NewGoldmark() *Goldmark {
	return NewGoldmarkWithConfig(GoldmarkConfig{})
}

// NewGoldmarkWithConfig creates a Goldmark renderer with custom config.
func NewGoldmarkWithConfig(cfg GoldmarkConfig) *Goldmark {
	if cfg.HighlightStyle == "" {
		cfg.HighlightStyle = "github"
	}
	if cfg.ButtonClass == "" {
		cfg.ButtonClass = "btn"
	}

	return &Goldmark{
		converters: make(map[string]goldmark.Markdown),
		extensions: map[string]markdownExtension{
			ExtensionExtra: {
				extenders: []goldmark.Extender{extension.Table, extension.DefinitionList, extension.Footnote},
				parser:    []parser.Option{parser.WithAttribute()},
				renderer:  []renderer.Option{html.WithUnsafe()},
			},
			ExtensionGFM:           {extenders: []goldmark.Extender{extension.GFM}},
			ExtensionStrikethrough: {extenders: []goldmark.Extender{extension.Strikethrough}},
			ExtensionLinkify:       {extenders: []goldmark.Extender{extension.Linkify}},
			ExtensionTaskList:      {extenders: []goldmark.Extender{extension.TaskList}},
			ExtensionTypographer:   {extenders: []goldmark.Extender{extension.Typographer}},
			ExtensionHighlight: {
				extenders: []goldmark.Extender{highlighting.NewHighlighting(
					highlighting.WithStyle(cfg.HighlightStyle),
					// Mail clients drop stylesheets, so styles are inlined.
					highlighting.WithFormatOptions(chromahtml.WithClasses(false)),
				)},
			},
			ExtensionButton: {extenders: []goldmark.Extender{NewButtonExtension(cfg.ButtonClass)}},
			ExtensionUnsafe: {renderer: []renderer.Option{html.WithUnsafe()}},
		},
	}
}

// Markdown converts source to an HTML fragment using the named extensions.
func (g *Goldmark) Markdown(source string, extensions ...string) (string, error) {
	md, err := g.converter(extensions)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("%w: failed to convert markdown: %v", ErrRenderFailed, err)
	}
	return buf.String(), nil
}

// converter returns a cached converter or builds and caches it.
func (g *Goldmark) converter(extensions []string) (goldmark.Markdown, error) {
	names := slices.Clone(extensions)
	slices.Sort(names)
	names = slices.Compact(names)
	key := strings.Join(names, ",")

	g.mu.RLock()
	if md, ok := g.converters[key]; ok {
		g.mu.RUnlock()
		return md, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock
	if md, ok := g.converters[key]; ok {
		return md, nil
	}

	var (
		extenders    []goldmark.Extender
		parserOpts   []parser.Option
		rendererOpts []renderer.Option
	)
	for _, name := range names {
		ext, ok := g.extensions[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownExtension, name)
		}
		extenders = append(extenders, ext.extenders...)
		parserOpts = append(parserOpts, ext.parser...)
		rendererOpts = append(rendererOpts, ext.renderer...)
	}

	md := goldmark.New(
		goldmark.WithExtensions(extenders...),
		goldmark.WithParserOptions(parserOpts...),
		goldmark.WithRendererOptions(rendererOpts...),
	)
	g.converters[key] = md
	return md, nil
}
