package mailer

import (
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestTemplates_Render_FirstMatchWins(t *testing.T) {
	t.Parallel()

	fs := fstest.MapFS{
		"emails/welcome.txt": &fstest.MapFile{Data: []byte("Hello {{.Name}}")},
		"emails/default.txt": &fstest.MapFile{Data: []byte("Default")},
	}
	r := NewTemplatesWithConfig(fs, TemplatesConfig{Dir: "emails"})

	out, err := r.Render([]string{"missing.txt", "welcome.txt", "default.txt"}, Data{"Name": "Alice"})
	require.NoError(t, err)
	require.Equal(t, "Hello Alice", out)
}

func TestTemplates_Render_NotFound(t *testing.T) {
	t.Parallel()

	r := NewTemplates(fstest.MapFS{})

	_, err := r.Render([]string{"a.txt", "b.txt"}, nil)
	require.ErrorIs(t, err, ErrTemplateNotFound)
	require.Contains(t, err.Error(), "a.txt, b.txt")
}

func TestTemplates_Render_EscapesHTMLTemplates(t *testing.T) {
	t.Parallel()

	fs := fstest.MapFS{
		"note.html": &fstest.MapFile{Data: []byte("<p>{{.Text}}</p>")},
		"note.txt":  &fstest.MapFile{Data: []byte("{{.Text}}")},
	}
	r := NewTemplates(fs)
	data := Data{"Text": "<b>bold</b>"}

	out, err := r.Render([]string{"note.html"}, data)
	require.NoError(t, err)
	require.Equal(t, "<p>&lt;b&gt;bold&lt;/b&gt;</p>", out)

	out, err = r.Render([]string{"note.txt"}, data)
	require.NoError(t, err)
	require.Equal(t, "<b>bold</b>", out)
}

func TestTemplates_Render_StripsFrontmatter(t *testing.T) {
	t.Parallel()

	fs := fstest.MapFS{
		"welcome.md": &fstest.MapFile{Data: []byte("---\nSubject: Welcome {{.Name}}\nPriority: 2\n---\nHello **{{.Name}}**!\n")},
	}
	r := NewTemplates(fs)

	out, err := r.Render([]string{"welcome.md"}, Data{"Name": "Alice"})
	require.NoError(t, err)
	require.Equal(t, "Hello **Alice**!\n", out)

	meta, err := r.Metadata([]string{"welcome.md"})
	require.NoError(t, err)
	require.Equal(t, "Welcome {{.Name}}", meta["Subject"])
	require.Equal(t, 2, meta["Priority"])
}

func TestTemplates_Render_Funcs(t *testing.T) {
	t.Parallel()

	fs := fstest.MapFS{
		"shout.txt": &fstest.MapFile{Data: []byte(`{{shout .Word}}`)},
	}
	r := NewTemplatesWithConfig(fs, TemplatesConfig{Funcs: map[string]any{
		"shout": func(s string) string { return s + "!" },
	}})

	out, err := r.Render([]string{"shout.txt"}, Data{"Word": "hey"})
	require.NoError(t, err)
	require.Equal(t, "hey!", out)
}

func TestTemplates_Render_Errors(t *testing.T) {
	t.Parallel()

	fs := fstest.MapFS{
		"broken.txt":  &fstest.MapFile{Data: []byte("{{.Name")},
		"badfront.md": &fstest.MapFile{Data: []byte("---\nSubject: [unclosed\n---\nBody")},
		"exec.txt":    &fstest.MapFile{Data: []byte("{{.Name.Missing}}")},
	}
	r := NewTemplates(fs)

	_, err := r.Render([]string{"broken.txt"}, nil)
	require.ErrorIs(t, err, ErrRenderFailed)

	_, err = r.Render([]string{"badfront.md"}, nil)
	require.ErrorIs(t, err, ErrInvalidFrontmatter)

	_, err = r.Render([]string{"exec.txt"}, Data{"Name": "x"})
	require.ErrorIs(t, err, ErrRenderFailed)
}

func TestTemplates_Render_CachesTemplates(t *testing.T) {
	t.Parallel()

	var openCount atomic.Int32

	cfs := &countingFS{
		MapFS: fstest.MapFS{
			"email.md": &fstest.MapFile{Data: []byte("Hello {{.Name}}")},
		},
		openCount: &openCount,
	}
	r := NewTemplates(cfs)

	out, err := r.Render([]string{"email.md"}, Data{"Name": "Alice"})
	require.NoError(t, err)
	require.Equal(t, "Hello Alice", out)
	require.Equal(t, int32(1), openCount.Load())

	out, err = r.Render([]string{"email.md"}, Data{"Name": "Bob"})
	require.NoError(t, err)
	require.Equal(t, "Hello Bob", out, "cached template must execute with fresh data")
	require.Equal(t, int32(1), openCount.Load(), "should not read the file again")

	// Misses are not cached: a template added later is picked up.
	_, err = r.Render([]string{"late.md"}, nil)
	require.ErrorIs(t, err, ErrTemplateNotFound)
	cfs.MapFS["late.md"] = &fstest.MapFile{Data: []byte("late")}
	out, err = r.Render([]string{"late.md"}, nil)
	require.NoError(t, err)
	require.Equal(t, "late", out)
}

func TestTemplates_Render_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	fs := fstest.MapFS{
		"email.txt": &fstest.MapFile{Data: []byte("Hello {{.ID}}")},
	}
	r := NewTemplates(fs)

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := range 100 {
		wg.Go(func() {
			if _, err := r.Render([]string{"email.txt"}, Data{"ID": i}); err != nil {
				errs <- err
			}
		})
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent render failed: %v", err)
	}
}

// countingFS wraps MapFS and counts ReadFile calls.
type countingFS struct {
	fstest.MapFS
	openCount *atomic.Int32
}

func (c *countingFS) ReadFile(name string) ([]byte, error) {
	c.openCount.Add(1)
	return c.MapFS.ReadFile(name)
}
