package component

import (
	"context"
	"errors"
	"html/template"
	"io"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

func text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func TestRender(t *testing.T) {
	t.Parallel()

	out, err := Render(context.Background(), text("<p>Hi</p>"))
	require.NoError(t, err)
	require.Equal(t, "<p>Hi</p>", out)

	failing := templ.ComponentFunc(func(context.Context, io.Writer) error {
		return errors.New("boom")
	})
	_, err = Render(context.Background(), failing)
	require.ErrorIs(t, err, mailer.ErrRenderFailed)
}

func TestHTMLBody(t *testing.T) {
	t.Parallel()

	spec := mailer.NewSpec("welcome",
		mailer.HTML(),
		mailer.WithSubject("Welcome"),
		mailer.WithFrom("team@example.com"),
		mailer.WithTo("user@example.com"),
		HTMLBody(func(e *mailer.Instance) (templ.Component, error) {
			return text("<h1>Hello " + e.Arg(0).(string) + "</h1>"), nil
		}),
	)

	msg, err := spec.Instance(context.Background(), "Ann").Message()
	require.NoError(t, err)
	require.Equal(t, "<h1>Hello Ann</h1>", msg.HTML())
	require.Equal(t, "Hello Ann", msg.Body)
}

func TestTemplates(t *testing.T) {
	t.Parallel()

	tpl := Templates{
		"welcome.md": func(data mailer.Data) templ.Component {
			return text("**Hi " + data["Name"].(string) + "**")
		},
		"layout": func(data mailer.Data) templ.Component {
			return text("<main>" + string(data[mailer.LayoutContentKey].(template.HTML)) + "</main>")
		},
	}

	t.Run("first registered name wins", func(t *testing.T) {
		t.Parallel()
		out, err := tpl.Render([]string{"missing", "layout"}, mailer.Data{mailer.LayoutContentKey: template.HTML("x")})
		require.NoError(t, err)
		require.Equal(t, "<main>x</main>", out)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		_, err := tpl.Render([]string{"a", "b"}, nil)
		require.ErrorIs(t, err, mailer.ErrTemplateNotFound)
		require.Contains(t, err.Error(), "a, b")
	})

	t.Run("markdown layout", func(t *testing.T) {
		t.Parallel()
		spec := mailer.NewSpec("welcome",
			mailer.Markdown(),
			mailer.WithRenderer(tpl),
			mailer.WithTemplate("welcome.md"),
			mailer.WithLayout("layout"),
			mailer.WithSubject("Welcome"),
			mailer.WithFrom("team@example.com"),
			mailer.WithTo("user@example.com"),
			mailer.ContextValues(mailer.Data{"Name": "Ann"}),
		)

		msg, err := spec.Instance(context.Background()).Message()
		require.NoError(t, err)
		require.Equal(t, "**Hi Ann**", msg.Body)
		require.Contains(t, msg.HTML(), "<main><p><strong>Hi Ann</strong></p>")
	})
}
