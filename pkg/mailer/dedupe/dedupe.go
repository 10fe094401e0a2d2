// Package dedupe suppresses repeated deliveries of the same email.
//
// Sender wraps another mailer.Sender and claims a Redis key derived from the
// message before delivering it. A second delivery of an identical message
// within the TTL is dropped. A failed delivery releases the claim so the
// message can be retried.
//
//	client := redis.MustOpen(ctx, os.Getenv("REDIS_URL"))
//	conn := dedupe.New(resendSender, client, dedupe.WithTTL(time.Hour))
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/emailkit/pkg/logger"
	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

// ErrClaimFailed indicates the dedupe key could not be claimed.
var ErrClaimFailed = errors.New("dedupe: failed to claim message key")

// Client is the subset of redis.Cmdable used by Sender.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// KeyFunc derives the dedupe key of a message.
type KeyFunc func(ctx context.Context, email *mailer.Email) string

// Option configures a Sender.
type Option func(*Sender)

// WithTTL sets how long a delivered message is remembered.
// Default: 24 hours
func WithTTL(d time.Duration) Option {
	return func(s *Sender) {
		s.ttl = d
	}
}

// WithPrefix sets the key namespace. Keys are stored as "{prefix}:{key}".
// Default: "mailer:dedupe"
func WithPrefix(prefix string) Option {
	return func(s *Sender) {
		s.prefix = prefix
	}
}

// WithKeyFunc replaces the default content hash.
func WithKeyFunc(fn KeyFunc) Option {
	return func(s *Sender) {
		s.key = fn
	}
}

// WithLogger sets the logger for suppressed deliveries.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) {
		s.logger = l
	}
}

// Sender is a mailer.Sender decorator with at-most-once delivery per key.
type Sender struct {
	next   mailer.Sender
	client Client
	key    KeyFunc
	logger *slog.Logger
	prefix string
	ttl    time.Duration
}

// New wraps next. The client should be obtained from pkg/redis.Open.
func New(next mailer.Sender, client Client, opts ...Option) *Sender {
	s := &Sender{
		next:   next,
		client: client,
		key:    MessageKey,
		logger: logger.NewNope(),
		prefix: "mailer:dedupe",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send implements mailer.Sender. A duplicate is reported as delivered.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) error {
	key := s.prefixedKey(s.key(ctx, email))

	claimed, err := s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return errors.Join(ErrClaimFailed, err)
	}
	if !claimed {
		name, _ := mailer.NameFromContext(ctx)
		s.logger.InfoContext(ctx, "duplicate email suppressed",
			slog.String("email", name),
			slog.String("key", key),
		)
		return nil
	}

	if err := s.next.Send(ctx, email); err != nil {
		if delErr := s.client.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
			return errors.Join(err, delErr)
		}
		return err
	}
	return nil
}

func (s *Sender) prefixedKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// MessageKey hashes the spec name from ctx and the message content: sender,
// recipients, subject, bodies and attachment names.
func MessageKey(ctx context.Context, email *mailer.Email) string {
	name, _ := mailer.NameFromContext(ctx)
	h := sha256.New()
	write(h, name)
	write(h, email.From)
	for _, r := range slices.Sorted(slices.Values(email.Recipients())) {
		write(h, r)
	}
	write(h, email.Subject)
	write(h, email.Body)
	for _, a := range email.Alternatives {
		write(h, a.MIMEType)
		write(h, a.Content)
	}
	for _, a := range email.Attachments {
		write(h, a.Filename)
	}
	for _, k := range slices.Sorted(maps.Keys(email.Headers)) {
		write(h, k)
		write(h, email.Headers[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func write(h hash.Hash, s string) {
	_, _ = io.WriteString(h, s)
	_, _ = h.Write([]byte{0})
}
