package mailer

import (
	"context"
	"maps"
	"slices"
)

// Option configures a spec.
type Option func(*Spec)

// capability is a rendering layer a spec combines.
type capability uint8

const (
	capTemplated capability = 1 << iota
	capHTML
	capMarkdown
)

// defaultExtensions is the Markdown extension set used when a spec declares none.
var defaultExtensions = []string{ExtensionExtra}

// Spec is a declarative definition of how to build one kind of email.
// A spec is immutable once constructed; derive new specs with Extend or
// AsCallable.
type Spec struct {
	renderer   TemplateRenderer
	markdown   MarkdownRenderer
	stripper   TagStripper
	config     *Config
	declared   map[string]struct{}
	name       string
	doc        string
	extensions []string
	fields     Fields
	hooks      layers
	resolved   resolved
	caps       capability
}

// NewSpec creates a spec. Options are applied in order; capability layers
// always sit below accessor overrides regardless of option order.
func NewSpec(name string, opts ...Option) *Spec {
	s := &Spec{
		name:     name,
		declared: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.finalize()
	return s
}

// Extend derives a more specific spec. The child inherits every field,
// capability, collaborator and override of s; s is left untouched.
func (s *Spec) Extend(name string, opts ...Option) *Spec {
	child := s.copy()
	child.name = name
	child.doc = ""
	// Child overrides layer on top of the inherited ones.
	inherited := child.hooks
	child.hooks = layers{}
	for _, opt := range opts {
		opt(child)
	}
	child.hooks = inherited.then(child.hooks)
	child.finalize()
	return child
}

func (s *Spec) copy() *Spec {
	c := *s
	c.fields = s.fields.clone()
	c.declared = maps.Clone(s.declared)
	c.extensions = slices.Clone(s.extensions)
	return &c
}

func (s *Spec) finalize() {
	s.resolved = resolve(capabilityLayers(s.caps).then(s.hooks))
}

// Name returns the spec name.
func (s *Spec) Name() string { return s.name }

// Doc returns the spec documentation.
func (s *Spec) Doc() string { return s.doc }

// Fields returns a copy of the declarations.
func (s *Spec) Fields() Fields { return s.fields.clone() }

// Declares reports whether key names a built-in field or a declared attribute.
func (s *Spec) Declares(key string) bool {
	if slices.Contains(fieldKeys, key) {
		return true
	}
	_, ok := s.declared[key]
	return ok
}

// Instance creates a live instance for one build or send.
// Kwargs values among args are merged into the keyword arguments.
func (s *Spec) Instance(ctx context.Context, args ...any) *Instance {
	if ctx == nil {
		ctx = context.Background()
	}
	e := &Instance{ctx: ctx, spec: s, kwargs: Kwargs{}}
	for _, arg := range args {
		if kw, ok := arg.(Kwargs); ok {
			maps.Copy(e.kwargs, kw)
			continue
		}
		e.args = append(e.args, arg)
	}
	return e
}

func (s *Spec) markdownRenderer() MarkdownRenderer {
	if s.markdown != nil {
		return s.markdown
	}
	return defaultMarkdown()
}

func (s *Spec) tagStripper() TagStripper {
	if s.stripper != nil {
		return s.stripper
	}
	return defaultStripper()
}

func (s *Spec) markdownExtensions() []string {
	if s.extensions != nil {
		return s.extensions
	}
	return defaultExtensions
}

// WithDoc sets the spec documentation.
func WithDoc(doc string) Option {
	return func(s *Spec) { s.doc = doc }
}

// WithSubject declares the subject.
func WithSubject(subject string) Option {
	return func(s *Spec) { s.fields.Subject = subject }
}

// WithFrom declares the sender address.
func WithFrom(from string) Option {
	return func(s *Spec) { s.fields.From = from }
}

// WithTo declares the recipients.
func WithTo(addrs ...string) Option {
	return func(s *Spec) { s.fields.To = slices.Clone(addrs) }
}

// WithCC declares the carbon copy recipients.
func WithCC(addrs ...string) Option {
	return func(s *Spec) { s.fields.CC = slices.Clone(addrs) }
}

// WithBCC declares the blind carbon copy recipients.
func WithBCC(addrs ...string) Option {
	return func(s *Spec) { s.fields.BCC = slices.Clone(addrs) }
}

// WithReplyTo declares the reply-to address.
func WithReplyTo(addr string) Option {
	return func(s *Spec) { s.fields.ReplyTo = addr }
}

// WithBody declares a literal plain text body.
func WithBody(body string) Option {
	return func(s *Spec) { s.fields.Body = body }
}

// WithTemplate declares the body template candidates, first match wins.
func WithTemplate(names ...string) Option {
	return func(s *Spec) { s.fields.TemplateNames = slices.Clone(names) }
}

// WithLayout declares the layout template of a Markdown spec.
func WithLayout(name string) Option {
	return func(s *Spec) { s.fields.LayoutTemplate = name }
}

// WithConnection declares the transport.
func WithConnection(conn Sender) Option {
	return func(s *Spec) { s.fields.Connection = conn }
}

// WithAttachments declares attachments.
func WithAttachments(attachments ...Attachment) Option {
	return func(s *Spec) { s.fields.Attachments = slices.Clone(attachments) }
}

// WithHeaders declares extra headers.
func WithHeaders(headers map[string]string) Option {
	return func(s *Spec) { s.fields.Headers = maps.Clone(headers) }
}

// WithTags declares transport tags.
func WithTags(tags Tags) Option {
	return func(s *Spec) { s.fields.Tags = maps.Clone(tags) }
}

// WithFailSilently declares whether delivery failures are swallowed.
func WithFailSilently(v bool) Option {
	return func(s *Spec) { s.fields.FailSilently = v }
}

// WithKind declares the message kind.
func WithKind(kind MessageKind) Option {
	return func(s *Spec) { s.fields.Kind = kind }
}

// WithAttr declares a custom attribute with its default value.
// Declared attributes may be pinned and are readable through Instance.Attr.
func WithAttr(name string, value any) Option {
	return func(s *Spec) {
		s.declared[name] = struct{}{}
		if s.fields.Attrs == nil {
			s.fields.Attrs = make(map[string]any)
		}
		s.fields.Attrs[name] = value
	}
}

// WithRenderer sets the template renderer.
func WithRenderer(r TemplateRenderer) Option {
	return func(s *Spec) { s.renderer = r }
}

// WithMarkdownRenderer sets the Markdown renderer.
func WithMarkdownRenderer(r MarkdownRenderer) Option {
	return func(s *Spec) { s.markdown = r }
}

// WithStripper sets the HTML tag stripper.
func WithStripper(st TagStripper) Option {
	return func(s *Spec) { s.stripper = st }
}

// WithMarkdownExtensions replaces the Markdown extension set.
func WithMarkdownExtensions(names ...string) Option {
	return func(s *Spec) { s.extensions = slices.Clone(names) }
}

// WithConfig sets a spec-level configuration that takes precedence over
// the process defaults.
func WithConfig(cfg Config) Option {
	return func(s *Spec) { s.config = &cfg }
}
