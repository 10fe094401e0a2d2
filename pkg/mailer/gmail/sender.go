// Package gmail provides a mailer.Sender backed by the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

var (
	// ErrMissingCredentials indicates the credentials JSON is empty.
	ErrMissingCredentials = errors.New("gmail: credentials JSON is required")

	// ErrMissingSender indicates the sender mailbox is empty.
	ErrMissingSender = errors.New("gmail: sender address is required")
)

// messagesAPI delivers a raw message.
type messagesAPI interface {
	send(ctx context.Context, msg *gmailapi.Message) (*gmailapi.Message, error)
}

type serviceAPI struct {
	svc *gmailapi.Service
}

func (s serviceAPI) send(ctx context.Context, msg *gmailapi.Message) (*gmailapi.Message, error) {
	return s.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
}

// Sender implements mailer.Sender using the Gmail API.
type Sender struct {
	api  messagesAPI
	from string
}

// New creates a sender authenticated as a service account that impersonates
// the sender mailbox.
func New(ctx context.Context, cfg Config) (*Sender, error) {
	if cfg.CredentialsJSON == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.SenderAddress == "" {
		return nil, ErrMissingSender
	}

	jwtConfig, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), gmailapi.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to parse credentials: %w", err)
	}
	jwtConfig.Subject = cfg.SenderAddress

	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}

	return newSender(serviceAPI{svc: svc}, cfg.SenderName, cfg.SenderAddress), nil
}

// NewWithToken creates a sender authenticated with an OAuth2 refresh token.
func NewWithToken(ctx context.Context, cfg TokenConfig) (*Sender, error) {
	if cfg.SenderAddress == "" {
		return nil, ErrMissingSender
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmailapi.GmailSendScope},
	}
	client := oauthCfg.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}

	return newSender(serviceAPI{svc: svc}, cfg.SenderName, cfg.SenderAddress), nil
}

func newSender(api messagesAPI, name, address string) *Sender {
	return &Sender{api: api, from: mailer.Recipient(name, address)}
}

// Send implements mailer.Sender. Messages without a from address are sent
// as the configured mailbox.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) error {
	from := email.From
	if from == "" {
		from = s.from
	}

	raw, err := BuildMIME(email, from)
	if err != nil {
		return fmt.Errorf("gmail: failed to build message: %w", err)
	}

	msg := &gmailapi.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if _, err := s.api.send(ctx, msg); err != nil {
		return fmt.Errorf("gmail: failed to send email: %w", err)
	}
	return nil
}
