package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestNew_EmailName(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Output: &buf}, EmailName(), nil)

	log.InfoContext(mailer.WithName(context.Background(), "welcome"), "delivered", slog.Int("sent", 1))
	rec := decode(t, &buf)
	require.Equal(t, "welcome", rec["email_name"])
	require.Equal(t, "delivered", rec["msg"])
	require.InDelta(t, 1, rec["sent"], 0)

	buf.Reset()
	log.InfoContext(context.Background(), "no email")
	require.NotContains(t, decode(t, &buf), "email_name")
}

func TestNew_LevelAndFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Output: &buf, Level: "warn", Format: "text"})

	log.Info("hidden")
	require.Zero(t, buf.Len())

	log.Warn("shown")
	require.True(t, strings.Contains(buf.String(), "msg=shown"))
}

func TestContextHandler_WithAttrsKeepsExtractors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Output: &buf}, EmailName()).With(slog.String("component", "queue")).WithGroup("job")

	log.InfoContext(mailer.WithName(context.Background(), "digest"), "run", slog.Int("id", 7))
	rec := decode(t, &buf)
	require.Equal(t, "queue", rec["component"])
	require.Equal(t, "digest", rec["job"].(map[string]any)["email_name"])
}

func TestFanout(t *testing.T) {
	t.Parallel()

	var debug, errs bytes.Buffer
	h := fanout{
		slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errs, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	log := slog.New(h)

	require.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	log.Debug("details")
	require.NotZero(t, debug.Len())
	require.Zero(t, errs.Len())

	log.Error("boom")
	require.NotZero(t, errs.Len())
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithSentry_NoDSN(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithSentry(Config{Output: &buf}, SentryConfig{}, EmailName())
	log.Info("local only")
	require.Equal(t, "local only", decode(t, &buf)["msg"])
}

func TestNewNope(t *testing.T) {
	t.Parallel()

	require.False(t, NewNope().Enabled(context.Background(), slog.LevelError))
}
