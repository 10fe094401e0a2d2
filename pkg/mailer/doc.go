// Package mailer composes emails from declarative specs.
//
// A Spec declares how one kind of email is built: its fields (subject,
// sender, recipients, body, templates, attachments, headers), the rendering
// capabilities it combines and any accessor overrides. Specs are immutable;
// Extend derives a more specific spec and AsCallable bakes pinned values into
// a reusable Callable.
//
// # Specs
//
//	var welcome = mailer.NewSpec("welcome",
//		mailer.WithDoc("Sent after sign up."),
//		mailer.Markdown(),
//		mailer.WithRenderer(mailer.NewTemplates(emails.FS)),
//		mailer.WithTemplate("welcome.md"),
//		mailer.WithLayout("layout.html"),
//		mailer.WithFrom("team@example.com"),
//		mailer.SubjectFromTemplate(),
//		mailer.ExtendContext(func(e *mailer.Instance, data mailer.Data) error {
//			data["User"] = e.Arg(0)
//			return nil
//		}),
//	)
//
// # Accessors and overrides
//
// Every value is resolved through an accessor on Instance (Subject, To,
// Body, HTMLBody, ContextData, Message and so on). Each accessor has a
// default; Override* options wrap it. A wrap may call next to extend the
// inherited result or ignore it to replace it:
//
//	mailer.OverrideTo(func(next mailer.Hook[[]string]) mailer.Hook[[]string] {
//		return func(e *mailer.Instance) ([]string, error) {
//			u := e.Arg(0).(*User)
//			return []string{u.Email}, nil
//		}
//	})
//
// Layers apply in a fixed order: defaults, then the capability layers
// (Templated, HTML, Markdown), then overrides in definition order with
// parent specs first.
//
// Required accessors (subject, from_email, to, body, message_kind and,
// when used, template_name and layout_template) fail with a
// *MissingConfigError at resolution time. Message resolves every field
// before rendering the body, so missing configuration fails before any
// collaborator is called.
//
// # Rendering
//
//   - Plain: the body is the declared body.
//   - Templated: the body is the first resolvable template of template_name
//     rendered against ContextData.
//   - HTML: the rendered template is the HTML body, attached as a text/html
//     alternative; the plain body is the HTML with tags stripped.
//   - Markdown: the rendered template is converted to HTML and injected
//     into the layout under the "content" key; the plain body is the raw
//     Markdown.
//
// The layout is resolved from layout_template, then the spec Config, then
// the process defaults installed with SetDefaults.
//
// Templates, Goldmark and Sanitizer are the default collaborators. Any
// TemplateRenderer, MarkdownRenderer or TagStripper can replace them.
//
// # Callables
//
//	sendWelcome := mailer.MustCallable(welcome, mailer.Pins{
//		mailer.FieldSubject: "Welcome aboard",
//	})
//
//	n, err := sendWelcome.Send(ctx, user)
//	msg, err := sendWelcome.Message(ctx, user) // build only
//
// Pins must name a built-in field or an attribute declared with WithAttr;
// anything else fails with an *InvalidOverrideError when the callable is
// created.
//
// # Transports
//
// A Sender delivers the composed Email. Subpackages provide Resend, Gmail,
// console and in-memory outbox transports.
package mailer
