package resend

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/resend/resend-go/v3"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

// emailsAPI is the part of the Resend client the sender uses.
type emailsAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Sender implements mailer.Sender using the Resend API.
type Sender struct {
	emails emailsAPI
	logger *slog.Logger
	config Config
}

// Option configures the sender.
type Option func(*Sender)

// WithLogger logs the Resend message id of every delivery at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) { s.logger = l }
}

// New creates a new Resend sender.
func New(cfg Config, opts ...Option) *Sender {
	return newSender(resend.NewClient(cfg.APIKey).Emails, cfg, opts...)
}

func newSender(emails emailsAPI, cfg Config, opts ...Option) *Sender {
	s := &Sender{emails: emails, config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send implements mailer.Sender.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) error {
	resp, err := s.emails.SendWithContext(ctx, s.request(email))
	if err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}

	if s.logger != nil {
		name, _ := mailer.NameFromContext(ctx)
		s.logger.DebugContext(ctx, "email sent via resend",
			slog.String("email", name),
			slog.String("resend_id", resp.Id),
		)
	}
	return nil
}

func (s *Sender) request(email *mailer.Email) *resend.SendEmailRequest {
	from := email.From
	if from == "" {
		from = mailer.Recipient(s.config.SenderName, s.config.SenderEmail)
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML(),
		Text:    email.Body,
		ReplyTo: email.ReplyTo,
		Cc:      email.CC,
		Bcc:     email.BCC,
	}
	if len(email.Headers) > 0 {
		req.Headers = email.Headers
	}
	if len(email.Attachments) > 0 {
		req.Attachments = convertAttachments(email.Attachments)
	}
	if len(email.Tags) > 0 {
		req.Tags = convertTags(email.Tags)
	}
	return req
}

func convertAttachments(attachments []mailer.Attachment) []*resend.Attachment {
	result := make([]*resend.Attachment, len(attachments))
	for i, a := range attachments {
		result[i] = &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
			ContentId:   a.ContentID,
		}
	}
	return result
}

// convertTags returns the tags sorted by name.
func convertTags(tags mailer.Tags) []resend.Tag {
	result := make([]resend.Tag, 0, len(tags))
	for _, name := range slices.Sorted(maps.Keys(tags)) {
		result = append(result, resend.Tag{
			Name:  name,
			Value: tagValue(tags[name]),
		})
	}
	return result
}

// tagValue converts any value to a string for Resend's tag API.
// Presence-only tags (struct{}{}) become "true".
func tagValue(v any) string {
	switch val := v.(type) {
	case nil, struct{}:
		return "true"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
