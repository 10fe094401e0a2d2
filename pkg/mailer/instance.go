package mailer

import (
	"context"
	"html/template"
	"maps"
	"slices"
	"sync"
)

// Instance is a live instantiation of a spec for one build or send.
// It carries the call-time arguments and resolves every accessor through
// the spec's hook chain. Instances are never reused.
type Instance struct {
	ctx    context.Context
	spec   *Spec
	kwargs Kwargs
	memo   map[any]any
	args   []any
	mu     sync.Mutex
}

// Context returns the context of the invocation.
func (e *Instance) Context() context.Context { return e.ctx }

// Spec returns the spec the instance was created from.
func (e *Instance) Spec() *Spec { return e.spec }

// Args returns the positional call-time arguments.
func (e *Instance) Args() []any { return slices.Clone(e.args) }

// Arg returns the positional argument at i, or nil when out of range.
func (e *Instance) Arg(i int) any {
	if i < 0 || i >= len(e.args) {
		return nil
	}
	return e.args[i]
}

// Kwargs returns the keyword call-time arguments.
func (e *Instance) Kwargs() Kwargs { return maps.Clone(e.kwargs) }

// Kwarg returns a keyword argument and whether it was passed.
func (e *Instance) Kwarg(name string) (any, bool) {
	v, ok := e.kwargs[name]
	return v, ok
}

// Memo returns the value stored under key for this instance, computing it
// with fn on first use. Accessors that produce non-deterministic values, such
// as signed tokens, use it to stay stable across repeated calls.
// Errors are not cached.
func (e *Instance) Memo(key any, fn func() (any, error)) (any, error) {
	e.mu.Lock()
	v, ok := e.memo[key]
	e.mu.Unlock()
	if ok {
		return v, nil
	}

	v, err := fn()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.memo[key]; ok {
		return prev, nil
	}
	if e.memo == nil {
		e.memo = make(map[any]any)
	}
	e.memo[key] = v
	return v, nil
}

// Fields returns the declarations of the spec, pins included.
func (e *Instance) Fields() Fields { return e.spec.fields.clone() }

// Attr returns the value of a declared attribute.
func (e *Instance) Attr(name string) (any, bool) {
	v, ok := e.spec.fields.Attrs[name]
	return v, ok
}

// Subject resolves the subject line.
func (e *Instance) Subject() (string, error) { return e.spec.resolved.subject(e) }

// From resolves the sender address.
func (e *Instance) From() (string, error) { return e.spec.resolved.from(e) }

// ReplyTo resolves the reply-to address. Empty means none.
func (e *Instance) ReplyTo() (string, error) { return e.spec.resolved.replyTo(e) }

// Body resolves the plain text body.
func (e *Instance) Body() (string, error) { return e.spec.resolved.body(e) }

// HTMLBody resolves the HTML body.
func (e *Instance) HTMLBody() (string, error) { return e.spec.resolved.htmlBody(e) }

// RenderedTemplate renders the body template against the context data.
func (e *Instance) RenderedTemplate() (string, error) { return e.spec.resolved.renderedTemplate(e) }

// To resolves the recipients. Never empty on success.
func (e *Instance) To() ([]string, error) { return e.spec.resolved.to(e) }

// CC resolves the carbon copy recipients.
func (e *Instance) CC() ([]string, error) { return e.spec.resolved.cc(e) }

// BCC resolves the blind carbon copy recipients.
func (e *Instance) BCC() ([]string, error) { return e.spec.resolved.bcc(e) }

// TemplateNames resolves the body template candidates.
func (e *Instance) TemplateNames() ([]string, error) { return e.spec.resolved.templateNames(e) }

// LayoutTemplates resolves the layout template candidates.
func (e *Instance) LayoutTemplates() ([]string, error) { return e.spec.resolved.layoutTemplates(e) }

// ContextData builds the body template data.
func (e *Instance) ContextData() (Data, error) { return e.spec.resolved.contextData(e) }

// LayoutData builds the layout template data around the rendered content.
func (e *Instance) LayoutData(content template.HTML) (Data, error) {
	return e.spec.resolved.layoutData(e, content)
}

// Attachments resolves the attachments.
func (e *Instance) Attachments() ([]Attachment, error) { return e.spec.resolved.attachments(e) }

// Headers resolves the extra headers.
func (e *Instance) Headers() (map[string]string, error) { return e.spec.resolved.headers(e) }

// Tags resolves the transport tags.
func (e *Instance) Tags() (Tags, error) { return e.spec.resolved.tags(e) }

// Connection resolves the transport. Nil means the process default.
func (e *Instance) Connection() (Sender, error) { return e.spec.resolved.connection(e) }

// FailSilently resolves whether delivery failures are swallowed.
func (e *Instance) FailSilently() (bool, error) { return e.spec.resolved.failSilently(e) }

// Kind resolves the message kind.
func (e *Instance) Kind() (MessageKind, error) { return e.spec.resolved.kind(e) }

// Message builds the composed message without sending it.
func (e *Instance) Message() (*Email, error) { return e.spec.resolved.message(e) }

// SendOptions resolves the send-time options.
func (e *Instance) SendOptions() (SendOptions, error) { return e.spec.resolved.sendOptions(e) }

func defaultSubject(e *Instance) (string, error) {
	return required(e.spec.fields.Subject, FieldSubject)
}

func defaultFrom(e *Instance) (string, error) {
	return required(e.spec.fields.From, FieldFrom)
}

func defaultReplyTo(e *Instance) (string, error) {
	return e.spec.fields.ReplyTo, nil
}

func defaultBody(e *Instance) (string, error) {
	return required(e.spec.fields.Body, FieldBody)
}

func defaultHTMLBody(e *Instance) (string, error) {
	return e.Body()
}

func defaultRenderedTemplate(e *Instance) (string, error) {
	names, err := e.TemplateNames()
	if err != nil {
		return "", err
	}
	r := e.spec.renderer
	if r == nil {
		return "", missing(fieldRenderer)
	}
	data, err := e.ContextData()
	if err != nil {
		return "", err
	}
	return r.Render(names, data)
}

func defaultTo(e *Instance) ([]string, error) {
	if len(e.spec.fields.To) == 0 {
		return nil, missing(FieldTo)
	}
	return slices.Clone(e.spec.fields.To), nil
}

func defaultCC(e *Instance) ([]string, error) {
	return orEmpty(e.spec.fields.CC), nil
}

func defaultBCC(e *Instance) ([]string, error) {
	return orEmpty(e.spec.fields.BCC), nil
}

func defaultTemplateNames(e *Instance) ([]string, error) {
	if len(e.spec.fields.TemplateNames) == 0 {
		return nil, missing(FieldTemplateName)
	}
	return slices.Clone(e.spec.fields.TemplateNames), nil
}

// defaultLayoutTemplates resolves the layout from the field, then the spec
// configuration, then the process defaults.
func defaultLayoutTemplates(e *Instance) ([]string, error) {
	name := e.spec.fields.LayoutTemplate
	if name == "" && e.spec.config != nil {
		name = e.spec.config.DefaultLayout
	}
	if name == "" {
		name = Defaults().DefaultLayout
	}
	if name == "" {
		return nil, missing(FieldLayoutTemplate)
	}
	return []string{name}, nil
}

func defaultContextData(*Instance) (Data, error) {
	return Data{}, nil
}

func defaultLayoutData(_ *Instance, content template.HTML) (Data, error) {
	return Data{LayoutContentKey: content}, nil
}

func defaultAttachments(e *Instance) ([]Attachment, error) {
	return slices.Clone(e.spec.fields.Attachments), nil
}

func defaultHeaders(e *Instance) (map[string]string, error) {
	if e.spec.fields.Headers == nil {
		return map[string]string{}, nil
	}
	return maps.Clone(e.spec.fields.Headers), nil
}

func defaultTags(e *Instance) (Tags, error) {
	return maps.Clone(e.spec.fields.Tags), nil
}

func defaultConnection(e *Instance) (Sender, error) {
	if e.spec.fields.Connection != nil {
		return e.spec.fields.Connection, nil
	}
	if e.spec.config != nil {
		return e.spec.config.Connection, nil
	}
	return nil, nil
}

func defaultFailSilently(e *Instance) (bool, error) {
	return e.spec.fields.FailSilently, nil
}

func defaultKind(e *Instance) (MessageKind, error) {
	if e.spec.fields.Kind == KindUnset {
		return KindUnset, missing(FieldMessageKind)
	}
	return e.spec.fields.Kind, nil
}

func required(v, field string) (string, error) {
	if v == "" {
		return "", missing(field)
	}
	return v, nil
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return slices.Clone(v)
}
