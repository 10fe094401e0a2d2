// Package specfile declares email specs in YAML.
//
//	emails:
//	  - name: base
//	    render: markdown
//	    from_email: Team <team@example.com>
//	    layout_template: layout.html
//	  - name: welcome
//	    extends: base
//	    doc: Sent after sign up.
//	    subject_from_template: true
//	    template_name: welcome.md
//	    context:
//	      Product: Acme
//
// Build turns the definitions into specs. Options passed to Build (renderer,
// connection, hooks written in Go) are applied to every root spec before its
// declarations; children inherit them through Extend.
package specfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

var (
	ErrInvalidDefinition = errors.New("specfile: invalid definition")
	ErrUnknownParent     = errors.New("specfile: unknown parent spec")
	ErrInheritanceCycle  = errors.New("specfile: inheritance cycle")
)

// Rendering modes accepted by Definition.Render.
const (
	RenderPlain     = "plain"
	RenderTemplated = "templated"
	RenderHTML      = "html"
	RenderMarkdown  = "markdown"
)

// File is the top-level document.
type File struct {
	Emails []Definition `yaml:"emails"`
}

// Definition declares one spec.
type Definition struct {
	Tags                mailer.Tags       `yaml:"tags"`
	Headers             map[string]string `yaml:"headers"`
	Context             map[string]any    `yaml:"context"`
	Attrs               map[string]any    `yaml:"attrs"`
	Name                string            `yaml:"name"`
	Extends             string            `yaml:"extends"`
	Doc                 string            `yaml:"doc"`
	Render              string            `yaml:"render"`
	Subject             string            `yaml:"subject"`
	From                string            `yaml:"from_email"`
	ReplyTo             string            `yaml:"reply_to"`
	Body                string            `yaml:"body"`
	LayoutTemplate      string            `yaml:"layout_template"`
	MessageKind         string            `yaml:"message_kind"`
	To                  mailer.Strings    `yaml:"to"`
	CC                  mailer.Strings    `yaml:"cc"`
	BCC                 mailer.Strings    `yaml:"bcc"`
	TemplateName        mailer.Strings    `yaml:"template_name"`
	MarkdownExtensions  []string          `yaml:"markdown_extensions"`
	FailSilently        bool              `yaml:"fail_silently"`
	SubjectFromTemplate bool              `yaml:"subject_from_template"`
}

// Parse decodes a spec file. Unknown keys are rejected.
func Parse(r io.Reader) ([]Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Join(ErrInvalidDefinition, err)
	}

	seen := make(map[string]struct{}, len(f.Emails))
	for i, d := range f.Emails {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: email #%d has no name", ErrInvalidDefinition, i+1)
		}
		if _, ok := seen[d.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidDefinition, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return f.Emails, nil
}

// Load reads and parses name from fsys.
func Load(fsys fs.FS, name string) ([]Definition, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("specfile: failed to read %s: %w", name, err)
	}
	return Parse(bytes.NewReader(data))
}

// Options converts the declarations into spec options.
func (d Definition) Options() ([]mailer.Option, error) {
	var opts []mailer.Option

	switch d.Render {
	case "":
	case RenderPlain:
		opts = append(opts, mailer.Plain())
	case RenderTemplated:
		opts = append(opts, mailer.Templated())
	case RenderHTML:
		opts = append(opts, mailer.HTML())
	case RenderMarkdown:
		opts = append(opts, mailer.Markdown())
	default:
		return nil, fmt.Errorf("%w: %s: unknown render mode %q", ErrInvalidDefinition, d.Name, d.Render)
	}

	if d.MessageKind != "" {
		kind, ok := mailer.ParseMessageKind(d.MessageKind)
		if !ok {
			return nil, fmt.Errorf("%w: %s: unknown message kind %q", ErrInvalidDefinition, d.Name, d.MessageKind)
		}
		opts = append(opts, mailer.WithKind(kind))
	}

	if d.Doc != "" {
		opts = append(opts, mailer.WithDoc(d.Doc))
	}
	if d.Subject != "" {
		opts = append(opts, mailer.WithSubject(d.Subject))
	}
	if d.From != "" {
		opts = append(opts, mailer.WithFrom(d.From))
	}
	if len(d.To) > 0 {
		opts = append(opts, mailer.WithTo(d.To...))
	}
	if len(d.CC) > 0 {
		opts = append(opts, mailer.WithCC(d.CC...))
	}
	if len(d.BCC) > 0 {
		opts = append(opts, mailer.WithBCC(d.BCC...))
	}
	if d.ReplyTo != "" {
		opts = append(opts, mailer.WithReplyTo(d.ReplyTo))
	}
	if d.Body != "" {
		opts = append(opts, mailer.WithBody(d.Body))
	}
	if len(d.TemplateName) > 0 {
		opts = append(opts, mailer.WithTemplate(d.TemplateName...))
	}
	if d.LayoutTemplate != "" {
		opts = append(opts, mailer.WithLayout(d.LayoutTemplate))
	}
	if len(d.Headers) > 0 {
		opts = append(opts, mailer.WithHeaders(d.Headers))
	}
	if len(d.Tags) > 0 {
		opts = append(opts, mailer.WithTags(d.Tags))
	}
	if d.FailSilently {
		opts = append(opts, mailer.WithFailSilently(true))
	}
	if len(d.MarkdownExtensions) > 0 {
		opts = append(opts, mailer.WithMarkdownExtensions(d.MarkdownExtensions...))
	}
	for _, name := range slices.Sorted(maps.Keys(d.Attrs)) {
		opts = append(opts, mailer.WithAttr(name, d.Attrs[name]))
	}
	if len(d.Context) > 0 {
		opts = append(opts, mailer.ContextValues(d.Context))
	}
	if d.SubjectFromTemplate {
		opts = append(opts, mailer.SubjectFromTemplate())
	}
	return opts, nil
}

// Build creates a spec per definition. Parents are built before children
// regardless of their order in defs.
func Build(defs []Definition, base ...mailer.Option) (map[string]*mailer.Spec, error) {
	byName := make(map[string]Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	specs := make(map[string]*mailer.Spec, len(defs))
	visiting := make(map[string]bool)

	var build func(name string) (*mailer.Spec, error)
	build = func(name string) (*mailer.Spec, error) {
		if s, ok := specs[name]; ok {
			return s, nil
		}
		if visiting[name] {
			return nil, fmt.Errorf("%w: %s", ErrInheritanceCycle, name)
		}
		visiting[name] = true
		defer delete(visiting, name)

		d := byName[name]
		opts, err := d.Options()
		if err != nil {
			return nil, err
		}

		var s *mailer.Spec
		if d.Extends == "" {
			s = mailer.NewSpec(name, append(slices.Clone(base), opts...)...)
		} else {
			if _, ok := byName[d.Extends]; !ok {
				return nil, fmt.Errorf("%w: %s extends %s", ErrUnknownParent, name, d.Extends)
			}
			parent, err := build(d.Extends)
			if err != nil {
				return nil, err
			}
			s = parent.Extend(name, opts...)
		}
		specs[name] = s
		return s, nil
	}

	for _, d := range defs {
		if _, err := build(d.Name); err != nil {
			return nil, err
		}
	}
	return specs, nil
}

// Register builds a callable per spec, without pins, and adds them to reg.
func Register(reg *mailer.Registry, specs map[string]*mailer.Spec) error {
	for _, name := range slices.Sorted(maps.Keys(specs)) {
		c, err := mailer.AsCallable(specs[name], nil)
		if err != nil {
			return err
		}
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
