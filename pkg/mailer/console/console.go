// Package console provides a development transport that logs messages
// instead of delivering them.
package console

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

// Sender implements mailer.Sender by logging every message.
type Sender struct {
	logger   *slog.Logger
	level    slog.Level
	withBody bool
	withHTML bool
}

// Option configures the sender.
type Option func(*Sender)

// WithLevel sets the log level of delivered messages. Default is info.
func WithLevel(level slog.Level) Option {
	return func(s *Sender) { s.level = level }
}

// WithBody includes the plain text body in the log record.
func WithBody() Option {
	return func(s *Sender) { s.withBody = true }
}

// WithHTML includes the HTML alternative in the log record.
func WithHTML() Option {
	return func(s *Sender) { s.withHTML = true }
}

// New creates a console sender. A nil logger uses slog.Default.
func New(logger *slog.Logger, opts ...Option) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sender{logger: logger, level: slog.LevelInfo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send implements mailer.Sender.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) error {
	name, _ := mailer.NameFromContext(ctx)

	attrs := []slog.Attr{
		slog.String("email", name),
		slog.String("kind", email.Kind().String()),
		slog.String("from", email.From),
		slog.String("to", strings.Join(email.To, ", ")),
		slog.String("subject", email.Subject),
		slog.Int("attachments", len(email.Attachments)),
	}
	if len(email.CC) > 0 {
		attrs = append(attrs, slog.String("cc", strings.Join(email.CC, ", ")))
	}
	if len(email.BCC) > 0 {
		attrs = append(attrs, slog.String("bcc", strings.Join(email.BCC, ", ")))
	}
	if email.ReplyTo != "" {
		attrs = append(attrs, slog.String("reply_to", email.ReplyTo))
	}
	if s.withBody {
		attrs = append(attrs, slog.String("body", email.Body))
	}
	if s.withHTML {
		attrs = append(attrs, slog.String("html", email.HTML()))
	}

	s.logger.LogAttrs(ctx, s.level, "email not sent (console transport)", attrs...)
	return nil
}
