// Package component renders email HTML with templ components.
//
// HTMLBody replaces a spec's HTML body with a component:
//
//	welcome := mailer.NewSpec("welcome",
//		mailer.HTML(),
//		component.HTMLBody(func(e *mailer.Instance) (templ.Component, error) {
//			return views.Welcome(e.Arg(0).(*User)), nil
//		}),
//	)
//
// Templates adapts named components to mailer.TemplateRenderer, so a templ
// layout can wrap Markdown content:
//
//	layouts := component.Templates{
//		"layout": func(data mailer.Data) templ.Component {
//			return views.Layout(data[mailer.LayoutContentKey].(template.HTML))
//		},
//	}
package component

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

// Render renders c to a string.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("%w: %v", mailer.ErrRenderFailed, err)
	}
	return buf.String(), nil
}

// HTMLBody returns a spec option whose HTML body is the component built by fn.
// Combine it with mailer.HTML so the body is attached and stripped to text.
func HTMLBody(fn func(e *mailer.Instance) (templ.Component, error)) mailer.Option {
	return mailer.OverrideHTMLBody(func(mailer.Hook[string]) mailer.Hook[string] {
		return func(e *mailer.Instance) (string, error) {
			c, err := fn(e)
			if err != nil {
				return "", err
			}
			return Render(e.Context(), c)
		}
	})
}

// Templates maps template names to component constructors.
type Templates map[string]func(data mailer.Data) templ.Component

// Render implements mailer.TemplateRenderer. The first registered name wins.
func (t Templates) Render(names []string, data mailer.Data) (string, error) {
	for _, name := range names {
		build, ok := t[name]
		if !ok {
			continue
		}
		return Render(context.Background(), build(data))
	}
	return "", fmt.Errorf("%w: %s", mailer.ErrTemplateNotFound, strings.Join(names, ", "))
}

var _ mailer.TemplateRenderer = Templates(nil)
