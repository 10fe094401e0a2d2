package mailer

import "context"

// Sender defines the minimal interface that email transports must implement.
// It accepts a fully composed Email and handles the actual delivery.
type Sender interface {
	// Send delivers an email message.
	// Returns an error if delivery fails.
	Send(ctx context.Context, email *Email) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, email *Email) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, email *Email) error {
	return f(ctx, email)
}
