package mailer

import (
	"html/template"
	"maps"
	"slices"
)

// Data is the mapping handed to templates.
type Data map[string]any

// Hook resolves one value for an instance.
type Hook[T any] func(e *Instance) (T, error)

// Wrap overrides a hook. Call next to extend the inherited result,
// ignore it to replace the result.
type Wrap[T any] func(next Hook[T]) Hook[T]

// LayoutDataHook builds the data for the layout template around the
// rendered Markdown content.
type LayoutDataHook func(e *Instance, content template.HTML) (Data, error)

// LayoutDataWrap overrides the layout data hook.
type LayoutDataWrap func(next LayoutDataHook) LayoutDataHook

// layers holds the overrides of every accessor, innermost first.
type layers struct {
	subject          []Wrap[string]
	from             []Wrap[string]
	replyTo          []Wrap[string]
	body             []Wrap[string]
	htmlBody         []Wrap[string]
	renderedTemplate []Wrap[string]
	to               []Wrap[[]string]
	cc               []Wrap[[]string]
	bcc              []Wrap[[]string]
	templateNames    []Wrap[[]string]
	layoutTemplates  []Wrap[[]string]
	contextData      []Wrap[Data]
	layoutData       []LayoutDataWrap
	attachments      []Wrap[[]Attachment]
	headers          []Wrap[map[string]string]
	tags             []Wrap[Tags]
	connection       []Wrap[Sender]
	failSilently     []Wrap[bool]
	kind             []Wrap[MessageKind]
	message          []Wrap[*Email]
	sendOptions      []Wrap[SendOptions]
}

// then returns the layers of l followed by the layers of o.
func (l layers) then(o layers) layers {
	return layers{
		subject:          slices.Concat(l.subject, o.subject),
		from:             slices.Concat(l.from, o.from),
		replyTo:          slices.Concat(l.replyTo, o.replyTo),
		body:             slices.Concat(l.body, o.body),
		htmlBody:         slices.Concat(l.htmlBody, o.htmlBody),
		renderedTemplate: slices.Concat(l.renderedTemplate, o.renderedTemplate),
		to:               slices.Concat(l.to, o.to),
		cc:               slices.Concat(l.cc, o.cc),
		bcc:              slices.Concat(l.bcc, o.bcc),
		templateNames:    slices.Concat(l.templateNames, o.templateNames),
		layoutTemplates:  slices.Concat(l.layoutTemplates, o.layoutTemplates),
		contextData:      slices.Concat(l.contextData, o.contextData),
		layoutData:       slices.Concat(l.layoutData, o.layoutData),
		attachments:      slices.Concat(l.attachments, o.attachments),
		headers:          slices.Concat(l.headers, o.headers),
		tags:             slices.Concat(l.tags, o.tags),
		connection:       slices.Concat(l.connection, o.connection),
		failSilently:     slices.Concat(l.failSilently, o.failSilently),
		kind:             slices.Concat(l.kind, o.kind),
		message:          slices.Concat(l.message, o.message),
		sendOptions:      slices.Concat(l.sendOptions, o.sendOptions),
	}
}

// resolved holds the composed accessors of a spec.
type resolved struct {
	subject          Hook[string]
	from             Hook[string]
	replyTo          Hook[string]
	body             Hook[string]
	htmlBody         Hook[string]
	renderedTemplate Hook[string]
	to               Hook[[]string]
	cc               Hook[[]string]
	bcc              Hook[[]string]
	templateNames    Hook[[]string]
	layoutTemplates  Hook[[]string]
	contextData      Hook[Data]
	layoutData       LayoutDataHook
	attachments      Hook[[]Attachment]
	headers          Hook[map[string]string]
	tags             Hook[Tags]
	connection       Hook[Sender]
	failSilently     Hook[bool]
	kind             Hook[MessageKind]
	message          Hook[*Email]
	sendOptions      Hook[SendOptions]
}

func compose[H any, W ~func(H) H](base H, wraps []W) H {
	h := base
	for _, w := range wraps {
		h = w(h)
	}
	return h
}

func resolve(l layers) resolved {
	return resolved{
		subject:          compose[Hook[string]](defaultSubject, l.subject),
		from:             compose[Hook[string]](defaultFrom, l.from),
		replyTo:          compose[Hook[string]](defaultReplyTo, l.replyTo),
		body:             compose[Hook[string]](defaultBody, l.body),
		htmlBody:         compose[Hook[string]](defaultHTMLBody, l.htmlBody),
		renderedTemplate: compose[Hook[string]](defaultRenderedTemplate, l.renderedTemplate),
		to:               compose[Hook[[]string]](defaultTo, l.to),
		cc:               compose[Hook[[]string]](defaultCC, l.cc),
		bcc:              compose[Hook[[]string]](defaultBCC, l.bcc),
		templateNames:    compose[Hook[[]string]](defaultTemplateNames, l.templateNames),
		layoutTemplates:  compose[Hook[[]string]](defaultLayoutTemplates, l.layoutTemplates),
		contextData:      compose[Hook[Data]](defaultContextData, l.contextData),
		layoutData:       compose[LayoutDataHook](defaultLayoutData, l.layoutData),
		attachments:      compose[Hook[[]Attachment]](defaultAttachments, l.attachments),
		headers:          compose[Hook[map[string]string]](defaultHeaders, l.headers),
		tags:             compose[Hook[Tags]](defaultTags, l.tags),
		connection:       compose[Hook[Sender]](defaultConnection, l.connection),
		failSilently:     compose[Hook[bool]](defaultFailSilently, l.failSilently),
		kind:             compose[Hook[MessageKind]](defaultKind, l.kind),
		message:          compose[Hook[*Email]](buildMessage, l.message),
		sendOptions:      compose[Hook[SendOptions]](defaultSendOptions, l.sendOptions),
	}
}

// OverrideSubject overrides the subject accessor.
func OverrideSubject(w Wrap[string]) Option {
	return func(s *Spec) { s.hooks.subject = append(s.hooks.subject, w) }
}

// OverrideFrom overrides the sender accessor.
func OverrideFrom(w Wrap[string]) Option {
	return func(s *Spec) { s.hooks.from = append(s.hooks.from, w) }
}

// OverrideReplyTo overrides the reply-to accessor.
func OverrideReplyTo(w Wrap[string]) Option {
	return func(s *Spec) { s.hooks.replyTo = append(s.hooks.replyTo, w) }
}

// OverrideBody overrides the plain text body accessor.
func OverrideBody(w Wrap[string]) Option {
	return func(s *Spec) { s.hooks.body = append(s.hooks.body, w) }
}

// OverrideHTMLBody overrides the HTML body accessor.
func OverrideHTMLBody(w Wrap[string]) Option {
	return func(s *Spec) { s.hooks.htmlBody = append(s.hooks.htmlBody, w) }
}

// OverrideRenderedTemplate overrides the raw template output accessor.
func OverrideRenderedTemplate(w Wrap[string]) Option {
	return func(s *Spec) { s.hooks.renderedTemplate = append(s.hooks.renderedTemplate, w) }
}

// OverrideTo overrides the recipients accessor.
func OverrideTo(w Wrap[[]string]) Option {
	return func(s *Spec) { s.hooks.to = append(s.hooks.to, w) }
}

// OverrideCC overrides the carbon copy accessor.
func OverrideCC(w Wrap[[]string]) Option {
	return func(s *Spec) { s.hooks.cc = append(s.hooks.cc, w) }
}

// OverrideBCC overrides the blind carbon copy accessor.
func OverrideBCC(w Wrap[[]string]) Option {
	return func(s *Spec) { s.hooks.bcc = append(s.hooks.bcc, w) }
}

// OverrideTemplateNames overrides the body template candidates.
func OverrideTemplateNames(w Wrap[[]string]) Option {
	return func(s *Spec) { s.hooks.templateNames = append(s.hooks.templateNames, w) }
}

// OverrideLayoutTemplates overrides the layout template candidates.
func OverrideLayoutTemplates(w Wrap[[]string]) Option {
	return func(s *Spec) { s.hooks.layoutTemplates = append(s.hooks.layoutTemplates, w) }
}

// OverrideContextData overrides the body template data.
func OverrideContextData(w Wrap[Data]) Option {
	return func(s *Spec) { s.hooks.contextData = append(s.hooks.contextData, w) }
}

// OverrideLayoutData overrides the layout template data.
func OverrideLayoutData(w LayoutDataWrap) Option {
	return func(s *Spec) { s.hooks.layoutData = append(s.hooks.layoutData, w) }
}

// OverrideAttachments overrides the attachments accessor.
func OverrideAttachments(w Wrap[[]Attachment]) Option {
	return func(s *Spec) { s.hooks.attachments = append(s.hooks.attachments, w) }
}

// OverrideHeaders overrides the headers accessor.
func OverrideHeaders(w Wrap[map[string]string]) Option {
	return func(s *Spec) { s.hooks.headers = append(s.hooks.headers, w) }
}

// OverrideTags overrides the tags accessor.
func OverrideTags(w Wrap[Tags]) Option {
	return func(s *Spec) { s.hooks.tags = append(s.hooks.tags, w) }
}

// OverrideConnection overrides the transport accessor.
func OverrideConnection(w Wrap[Sender]) Option {
	return func(s *Spec) { s.hooks.connection = append(s.hooks.connection, w) }
}

// OverrideFailSilently overrides the fail-silently accessor.
func OverrideFailSilently(w Wrap[bool]) Option {
	return func(s *Spec) { s.hooks.failSilently = append(s.hooks.failSilently, w) }
}

// OverrideKind overrides the message kind accessor.
func OverrideKind(w Wrap[MessageKind]) Option {
	return func(s *Spec) { s.hooks.kind = append(s.hooks.kind, w) }
}

// OverrideMessage overrides message construction.
func OverrideMessage(w Wrap[*Email]) Option {
	return func(s *Spec) { s.hooks.message = append(s.hooks.message, w) }
}

// OverrideSendOptions overrides the send-time options.
func OverrideSendOptions(w Wrap[SendOptions]) Option {
	return func(s *Spec) { s.hooks.sendOptions = append(s.hooks.sendOptions, w) }
}

// ExtendContext adds keys to the inherited body template data.
func ExtendContext(fn func(e *Instance, data Data) error) Option {
	return OverrideContextData(func(next Hook[Data]) Hook[Data] {
		return func(e *Instance) (Data, error) {
			base, err := next(e)
			if err != nil {
				return nil, err
			}
			data := maps.Clone(base)
			if data == nil {
				data = Data{}
			}
			if err := fn(e, data); err != nil {
				return nil, err
			}
			return data, nil
		}
	})
}

// ContextValues adds fixed keys to the body template data.
func ContextValues(values Data) Option {
	values = maps.Clone(values)
	return ExtendContext(func(_ *Instance, data Data) error {
		maps.Copy(data, values)
		return nil
	})
}

// ExtendLayoutContext adds keys to the inherited layout template data.
func ExtendLayoutContext(fn func(e *Instance, data Data) error) Option {
	return OverrideLayoutData(func(next LayoutDataHook) LayoutDataHook {
		return func(e *Instance, content template.HTML) (Data, error) {
			base, err := next(e, content)
			if err != nil {
				return nil, err
			}
			data := maps.Clone(base)
			if data == nil {
				data = Data{}
			}
			if err := fn(e, data); err != nil {
				return nil, err
			}
			return data, nil
		}
	})
}
