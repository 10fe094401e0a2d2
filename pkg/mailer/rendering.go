package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"sync"
	texttemplate "text/template"
)

// LayoutContentKey is the layout data key holding the rendered Markdown.
const LayoutContentKey = "content"

// MetadataSubjectKey is the frontmatter key read by SubjectFromTemplate.
const MetadataSubjectKey = "Subject"

// fieldRenderer names the template renderer in missing configuration errors.
const fieldRenderer = "renderer"

// TemplateRenderer renders the first resolvable template of names.
// It returns an error wrapping ErrTemplateNotFound when none resolve.
type TemplateRenderer interface {
	Render(names []string, data Data) (string, error)
}

// MetadataRenderer is a TemplateRenderer that exposes template frontmatter.
type MetadataRenderer interface {
	TemplateRenderer
	Metadata(names []string) (map[string]any, error)
}

// MarkdownRenderer converts Markdown source to an HTML fragment.
type MarkdownRenderer interface {
	Markdown(source string, extensions ...string) (string, error)
}

// TagStripper removes markup from HTML.
type TagStripper interface {
	StripTags(html string) string
}

// TemplateFunc adapts a function to the TemplateRenderer interface.
type TemplateFunc func(names []string, data Data) (string, error)

// Render implements TemplateRenderer.
func (f TemplateFunc) Render(names []string, data Data) (string, error) {
	return f(names, data)
}

// MarkdownFunc adapts a function to the MarkdownRenderer interface.
type MarkdownFunc func(source string, extensions ...string) (string, error)

// Markdown implements MarkdownRenderer.
func (f MarkdownFunc) Markdown(source string, extensions ...string) (string, error) {
	return f(source, extensions...)
}

// StripperFunc adapts a function to the TagStripper interface.
type StripperFunc func(html string) string

// StripTags implements TagStripper.
func (f StripperFunc) StripTags(html string) string {
	return f(html)
}

var (
	defaultMarkdown = sync.OnceValue(func() MarkdownRenderer { return NewGoldmark() })
	defaultStripper = sync.OnceValue(func() TagStripper { return NewSanitizer() })
)

// Plain builds single-part messages. It drops inherited HTML and Markdown
// rendering; a templated body stays templated.
func Plain() Option {
	return func(s *Spec) {
		s.caps &^= capHTML | capMarkdown
		s.fields.Kind = KindPlain
	}
}

// Templated renders the body from the declared templates.
func Templated() Option {
	return func(s *Spec) {
		s.caps |= capTemplated
		if s.fields.Kind == KindUnset {
			s.fields.Kind = KindPlain
		}
	}
}

// HTML renders the templates as the HTML body, attaches it as a text/html
// alternative and derives the plain body by stripping its markup.
func HTML() Option {
	return func(s *Spec) {
		s.caps |= capTemplated | capHTML
		s.fields.Kind = KindAlternatives
	}
}

// Markdown renders the templates as Markdown and injects the result into a
// layout template. The plain body is the raw Markdown source.
func Markdown() Option {
	return func(s *Spec) {
		s.caps |= capTemplated | capHTML | capMarkdown
		s.fields.Kind = KindAlternatives
	}
}

// capabilityLayers returns the rendering layers of caps, innermost first.
func capabilityLayers(caps capability) layers {
	var l layers
	if caps&capTemplated != 0 {
		l.body = append(l.body, templatedBody)
	}
	if caps&capHTML != 0 {
		l.htmlBody = append(l.htmlBody, templatedHTMLBody)
		l.body = append(l.body, strippedBody)
		l.message = append(l.message, attachHTML)
	}
	if caps&capMarkdown != 0 {
		l.htmlBody = append(l.htmlBody, markdownHTMLBody)
		l.body = append(l.body, templatedBody)
		l.message = append(l.message, requireLayout)
	}
	return l
}

func templatedBody(Hook[string]) Hook[string] {
	return (*Instance).RenderedTemplate
}

func templatedHTMLBody(Hook[string]) Hook[string] {
	return (*Instance).RenderedTemplate
}

func strippedBody(Hook[string]) Hook[string] {
	return func(e *Instance) (string, error) {
		html, err := e.HTMLBody()
		if err != nil {
			return "", err
		}
		return e.spec.tagStripper().StripTags(html), nil
	}
}

func attachHTML(next Hook[*Email]) Hook[*Email] {
	return func(e *Instance) (*Email, error) {
		msg, err := next(e)
		if err != nil {
			return nil, err
		}
		html, err := e.HTMLBody()
		if err != nil {
			return nil, err
		}
		if err := msg.AttachAlternative(html, MIMETypeHTML); err != nil {
			return nil, err
		}
		return msg, nil
	}
}

// requireLayout resolves the layout before the body template is rendered.
func requireLayout(next Hook[*Email]) Hook[*Email] {
	return func(e *Instance) (*Email, error) {
		if _, err := e.LayoutTemplates(); err != nil {
			return nil, err
		}
		return next(e)
	}
}

func markdownHTMLBody(Hook[string]) Hook[string] {
	return func(e *Instance) (string, error) {
		layouts, err := e.LayoutTemplates()
		if err != nil {
			return "", err
		}
		r := e.spec.renderer
		if r == nil {
			return "", missing(fieldRenderer)
		}
		source, err := e.RenderedTemplate()
		if err != nil {
			return "", err
		}
		fragment, err := e.spec.markdownRenderer().Markdown(source, e.spec.markdownExtensions()...)
		if err != nil {
			return "", err
		}
		data, err := e.LayoutData(template.HTML(fragment))
		if err != nil {
			return "", err
		}
		out, err := r.Render(layouts, data)
		if errors.Is(err, ErrTemplateNotFound) {
			return "", errors.Join(ErrLayoutNotFound, err)
		}
		return out, err
	}
}

// SubjectFromTemplate falls back to the Subject key of the body template
// frontmatter when no subject is declared. The value is executed as a text
// template over the context data. The spec renderer must implement
// MetadataRenderer.
func SubjectFromTemplate() Option {
	return OverrideSubject(func(next Hook[string]) Hook[string] {
		return func(e *Instance) (string, error) {
			subject, err := next(e)
			var mce *MissingConfigError
			if !errors.As(err, &mce) || mce.Field != FieldSubject {
				return subject, err
			}

			mr, ok := e.spec.renderer.(MetadataRenderer)
			if !ok {
				return "", err
			}
			names, nerr := e.TemplateNames()
			if nerr != nil {
				return "", nerr
			}
			meta, merr := mr.Metadata(names)
			if merr != nil {
				return "", merr
			}
			raw, ok := meta[MetadataSubjectKey].(string)
			if !ok || raw == "" {
				return "", err
			}

			data, derr := e.ContextData()
			if derr != nil {
				return "", derr
			}
			return executeSubject(raw, data)
		}
	})
}

func executeSubject(raw string, data Data) (string, error) {
	tmpl, err := texttemplate.New("subject").Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: subject: %v", ErrRenderFailed, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: subject: %v", ErrRenderFailed, err)
	}
	return buf.String(), nil
}
