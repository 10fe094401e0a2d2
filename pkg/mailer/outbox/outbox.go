// Package outbox provides an in-memory transport that records every message
// instead of delivering it. Use it in tests and previews.
package outbox

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

// Record is one recorded delivery.
type Record struct {
	SentAt time.Time
	Email  *mailer.Email
	Name   string // Email name from the context, if any
	ID     uuid.UUID
}

// Outbox implements mailer.Sender by recording messages. Safe for concurrent use.
type Outbox struct {
	now     func() time.Time
	err     error
	records []Record
	mu      sync.Mutex
}

// Option configures the outbox.
type Option func(*Outbox)

// WithError makes every Send fail with err without recording the message.
func WithError(err error) Option {
	return func(o *Outbox) { o.err = err }
}

// WithClock sets the clock used for Record.SentAt.
func WithClock(now func() time.Time) Option {
	return func(o *Outbox) { o.now = now }
}

// New creates an empty outbox.
func New(opts ...Option) *Outbox {
	o := &Outbox{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Send implements mailer.Sender.
func (o *Outbox) Send(ctx context.Context, email *mailer.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.err != nil {
		return o.err
	}

	name, _ := mailer.NameFromContext(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	o.records = append(o.records, Record{
		ID:     uuid.New(),
		Name:   name,
		SentAt: o.now(),
		Email:  email,
	})
	return nil
}

// Records returns the recorded deliveries in send order.
func (o *Outbox) Records() []Record {
	o.mu.Lock()
	defer o.mu.Unlock()

	return slices.Clone(o.records)
}

// Messages returns the recorded messages in send order.
func (o *Outbox) Messages() []*mailer.Email {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*mailer.Email, len(o.records))
	for i, r := range o.records {
		out[i] = r.Email
	}
	return out
}

// Last returns the most recent message.
func (o *Outbox) Last() (*mailer.Email, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.records) == 0 {
		return nil, false
	}
	return o.records[len(o.records)-1].Email, true
}

// Len returns the number of recorded messages.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.records)
}

// Reset drops every recorded message.
func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.records = nil
}
