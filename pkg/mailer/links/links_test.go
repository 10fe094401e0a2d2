package links

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

func TestNew(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "/relative", "example.com", "://bad"} {
		_, err := New(raw)
		require.ErrorIs(t, err, ErrInvalidBaseURL, raw)
	}

	u, err := New("https://app.example.com/base/")
	require.NoError(t, err)

	tests := []struct {
		location string
		want     string
	}{
		{"/activate", "https://app.example.com/activate"},
		{"activate?x=1", "https://app.example.com/base/activate?x=1"},
		{"https://other.example.com/x", "https://other.example.com/x"},
	}
	for _, tt := range tests {
		got, err := u.Absolute(tt.location)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestPath(t *testing.T) {
	t.Parallel()

	p, err := Path("/reset/{uid}/{token}", map[string]string{"uid": "a b", "token": "x.y"})
	require.NoError(t, err)
	require.Equal(t, "/reset/a%20b/x.y", p)

	_, err = Path("/reset/{uid}/{token}", map[string]string{"uid": "1"})
	require.ErrorIs(t, err, ErrMissingParam)
	require.Contains(t, err.Error(), "token")
}

func newTokens(t *testing.T, now time.Time) *Tokens {
	t.Helper()
	tokens, err := NewTokens(TokenConfig{Secret: "secret", Issuer: "test", TTL: time.Hour})
	require.NoError(t, err)
	tokens.now = func() time.Time { return now }
	return tokens
}

func TestTokens(t *testing.T) {
	t.Parallel()

	_, err := NewTokens(TokenConfig{})
	require.ErrorIs(t, err, ErrMissingSecret)

	now := time.Now()
	tokens := newTokens(t, now)

	token, err := tokens.Generate("42", "activate")
	require.NoError(t, err)

	claims, err := tokens.Verify(token, "activate")
	require.NoError(t, err)
	require.Equal(t, "42", claims.Subject)
	require.Equal(t, "test", claims.Issuer)
	require.NotEmpty(t, claims.ID)

	_, err = tokens.Verify(token, "password_reset")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Verify(token+"x", "activate")
	require.ErrorIs(t, err, ErrInvalidToken)

	tokens.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = tokens.Verify(token, "activate")
	require.ErrorIs(t, err, ErrInvalidToken)

	other := newTokens(t, now)
	other.secret = []byte("other")
	_, err = other.Verify(token, "activate")
	require.ErrorIs(t, err, ErrInvalidToken)
}

type user struct{ id string }

func (u user) ID() string { return u.id }

func TestArgID(t *testing.T) {
	t.Parallel()

	spec := mailer.NewSpec("x")
	ctx := context.Background()

	tests := []struct {
		arg  any
		want string
	}{
		{"abc", "abc"},
		{user{id: "u1"}, "u1"},
		{35, "z"},
		{int64(36), "10"},
		{uint64(71), "1z"},
	}
	for _, tt := range tests {
		got, err := ArgID(0)(spec.Instance(ctx, tt.arg))
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	_, err := ArgID(0)(spec.Instance(ctx, 1.5))
	require.ErrorIs(t, err, ErrInvalidSubject)

	_, err = ArgID(0)(spec.Instance(ctx))
	require.ErrorIs(t, err, ErrInvalidSubject)
}

func TestContextOptions(t *testing.T) {
	t.Parallel()

	u, err := New("https://app.example.com")
	require.NoError(t, err)
	tokens := newTokens(t, time.Now())

	spec := mailer.NewSpec("activation",
		WithAbsoluteURL(u, "LoginURL", "/login"),
		WithTokenURL(u, tokens, "ActivateURL", "/activate/{uid}/{token}", "activate", ArgID(0)),
	)

	data, err := spec.Instance(context.Background(), user{id: "u1"}).ContextData()
	require.NoError(t, err)
	require.Equal(t, "https://app.example.com/login", data["LoginURL"])

	link, err := url.Parse(data["ActivateURL"].(string))
	require.NoError(t, err)
	parts := strings.Split(strings.TrimPrefix(link.Path, "/"), "/")
	require.Len(t, parts, 3)
	require.Equal(t, []string{"activate", "u1"}, parts[:2])

	claims, err := tokens.Verify(parts[2], "activate")
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)
}

func TestWithTokenURL_SameLinkInEveryBody(t *testing.T) {
	t.Parallel()

	u, err := New("https://app.example.com")
	require.NoError(t, err)
	tokens := newTokens(t, time.Now())

	spec := mailer.NewSpec("password_reset",
		mailer.HTML(),
		mailer.WithSubject("Reset"),
		mailer.WithFrom("from@example.com"),
		mailer.WithTo("to@example.com"),
		mailer.WithTemplate("reset.html"),
		mailer.WithRenderer(mailer.NewTemplates(fstest.MapFS{
			"reset.html": &fstest.MapFile{Data: []byte("{{.ResetURL}}")},
		})),
		WithTokenURL(u, tokens, "ResetURL", "/reset/{uid}/{token}", "password_reset", ArgID(0)),
	)

	msg, err := spec.Instance(context.Background(), "u1").Message()
	require.NoError(t, err)

	plain := strings.TrimSpace(msg.Body)
	require.True(t, strings.HasPrefix(plain, "https://app.example.com/reset/u1/"), plain)
	require.Equal(t, plain, strings.TrimSpace(msg.HTML()))

	// A new instance signs a new token.
	other, err := spec.Instance(context.Background(), "u1").Message()
	require.NoError(t, err)
	require.NotEqual(t, plain, strings.TrimSpace(other.Body))
}
