package queue

import "log/slog"

type scheduleConfig struct {
	payload  any
	name     string
	schedule string
}

type config struct {
	binders    map[string]Binder
	queues     map[string]int
	logger     *slog.Logger
	schedules  []scheduleConfig
	maxWorkers int
}

func newConfig() *config {
	return &config{
		binders: make(map[string]Binder),
		queues:  make(map[string]int),
	}
}

// Option configures a Manager.
type Option func(*config)

// WithBinder sets how payloads of the named email become arguments.
func WithBinder(email string, b Binder) Option {
	return func(c *config) {
		if b != nil {
			c.binders[email] = b
		}
	}
}

// WithSchedule sends the named email periodically. schedule is a standard
// five-field cron expression; payload is bound like an enqueued one.
func WithSchedule(email, schedule string, payload any) Option {
	return func(c *config) {
		c.schedules = append(c.schedules, scheduleConfig{
			name:     email,
			schedule: schedule,
			payload:  payload,
		})
	}
}

// WithQueue adds a named queue with its own worker count.
func WithQueue(name string, workers int) Option {
	return func(c *config) {
		if workers > 0 {
			c.queues[name] = workers
		}
	}
}

// WithLogger sets the logger used by the worker and River.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxWorkers sets the worker count of the default queue.
// Default: 100
func WithMaxWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}

// binderFor returns the binder registered for email, or the generic one.
func (c *config) binderFor(email string) Binder {
	if b, ok := c.binders[email]; ok {
		return b
	}
	return bindAny
}
