package queue

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/riverqueue/river"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

type enqueueConfig struct {
	scheduledAt *time.Time
	kwargs      mailer.Kwargs
	queue       string
	uniqueKey   string
	tags        []string
	maxAttempts int
	uniqueFor   time.Duration
	priority    int
}

// EnqueueOption configures one enqueued delivery.
type EnqueueOption func(*enqueueConfig)

// InQueue routes the job to a named queue. Empty names are ignored.
func InQueue(name string) EnqueueOption {
	return func(c *enqueueConfig) {
		if name != "" {
			c.queue = name
		}
	}
}

// ScheduledAt delays delivery until t.
func ScheduledAt(t time.Time) EnqueueOption {
	return func(c *enqueueConfig) {
		c.scheduledAt = &t
	}
}

// ScheduledIn delays delivery by d.
func ScheduledIn(d time.Duration) EnqueueOption {
	return func(c *enqueueConfig) {
		t := time.Now().Add(d)
		c.scheduledAt = &t
	}
}

// MaxAttempts limits delivery attempts. Non-positive values are ignored.
func MaxAttempts(n int) EnqueueOption {
	return func(c *enqueueConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// UniqueFor rejects duplicate jobs inserted within d.
func UniqueFor(d time.Duration) EnqueueOption {
	return func(c *enqueueConfig) {
		c.uniqueFor = d
	}
}

// UniqueKey narrows uniqueness to jobs with the same key.
// Only effective together with UniqueFor.
func UniqueKey(key string) EnqueueOption {
	return func(c *enqueueConfig) {
		c.uniqueKey = key
	}
}

// Priority sets the River priority (1 is highest).
func Priority(p int) EnqueueOption {
	return func(c *enqueueConfig) {
		c.priority = p
	}
}

// Tags adds River job tags.
func Tags(tags ...string) EnqueueOption {
	return func(c *enqueueConfig) {
		c.tags = append(c.tags, tags...)
	}
}

// WithKwargs passes keyword arguments to the callable. Values must survive a
// JSON round trip.
func WithKwargs(kwargs mailer.Kwargs) EnqueueOption {
	return func(c *enqueueConfig) {
		if c.kwargs == nil {
			c.kwargs = make(mailer.Kwargs, len(kwargs))
		}
		maps.Copy(c.kwargs, kwargs)
	}
}

func buildJobArgs(email string, payload any, opts ...EnqueueOption) (*sendArgs, *river.InsertOpts, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("queue: marshal payload: %w", err)
		}
	}

	cfg := &enqueueConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	args := &sendArgs{
		Email:   email,
		Payload: raw,
		Kwargs:  cfg.kwargs,
	}

	insertOpts := &river.InsertOpts{}
	if cfg.queue != "" {
		insertOpts.Queue = cfg.queue
	}
	if cfg.scheduledAt != nil {
		insertOpts.ScheduledAt = *cfg.scheduledAt
	}
	if cfg.maxAttempts > 0 {
		insertOpts.MaxAttempts = cfg.maxAttempts
	}
	if cfg.priority > 0 {
		insertOpts.Priority = cfg.priority
	}
	if len(cfg.tags) > 0 {
		insertOpts.Tags = cfg.tags
	}
	if cfg.uniqueFor > 0 {
		insertOpts.UniqueOpts = river.UniqueOpts{
			ByArgs:   cfg.uniqueKey != "",
			ByPeriod: cfg.uniqueFor,
		}
		args.UniqueKey = cfg.uniqueKey
	}

	return args, insertOpts, nil
}
