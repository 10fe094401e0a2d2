package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/emailkit/pkg/logger"
	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

const (
	defaultMaxWorkers = 100
	defaultQueue      = river.QueueDefault
)

// ErrHealthcheckFailed indicates the manager is not running or the database
// is unreachable.
var ErrHealthcheckFailed = errors.New("queue: healthcheck failed")

// Manager enqueues deliveries and runs the workers that send them.
type Manager struct {
	*Enqueuer
	registry *mailer.Registry
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewManager creates a manager for the callables in reg.
func NewManager(pool *pgxpool.Pool, reg *mailer.Registry, opts ...Option) (*Manager, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}
	if reg == nil {
		return nil, ErrRegistryRequired
	}

	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.NewNope()
	}
	if cfg.maxWorkers == 0 {
		cfg.maxWorkers = defaultMaxWorkers
	}

	queues := map[string]river.QueueConfig{
		defaultQueue: {MaxWorkers: cfg.maxWorkers},
	}
	for name, workers := range cfg.queues {
		queues[name] = river.QueueConfig{MaxWorkers: workers}
	}

	periodicJobs, err := periodicJobs(reg, cfg.schedules)
	if err != nil {
		return nil, err
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &sendWorker{
		registry: reg,
		binder:   cfg.binderFor,
		logger:   cfg.logger,
	})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:       queues,
		Workers:      workers,
		PeriodicJobs: periodicJobs,
		Logger:       cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("queue: create client: %w", err)
	}

	return &Manager{
		Enqueuer: &Enqueuer{
			pool:   pool,
			client: client,
			logger: cfg.logger,
		},
		registry: reg,
		logger:   cfg.logger,
	}, nil
}

func periodicJobs(reg *mailer.Registry, schedules []scheduleConfig) ([]*river.PeriodicJob, error) {
	jobs := make([]*river.PeriodicJob, 0, len(schedules))
	for _, sched := range schedules {
		if _, err := reg.Lookup(sched.name); err != nil {
			return nil, fmt.Errorf("queue: schedule %s: %w", sched.name, err)
		}
		cronSchedule, err := parseCronSchedule(sched.schedule)
		if err != nil {
			return nil, fmt.Errorf("queue: invalid cron schedule %q: %w", sched.schedule, err)
		}
		args, _, err := buildJobArgs(sched.name, sched.payload)
		if err != nil {
			return nil, err
		}

		jobs = append(jobs, river.NewPeriodicJob(
			cronSchedule,
			func() (river.JobArgs, *river.InsertOpts) {
				return args, nil
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		))
	}
	return jobs, nil
}

// Start starts the workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	if err := m.client.Start(ctx); err != nil {
		return fmt.Errorf("queue: start client: %w", err)
	}

	m.started = true
	m.logger.Info("mail queue started", slog.Int("emails", len(m.registry.Names())))
	return nil
}

// Stop waits for running deliveries and stops the workers.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return ErrNotStarted
	}
	if err := m.client.Stop(ctx); err != nil {
		return fmt.Errorf("queue: stop client: %w", err)
	}

	m.started = false
	m.logger.Info("mail queue stopped")
	return nil
}

// Enqueue rejects names missing from the registry before inserting.
func (m *Manager) Enqueue(ctx context.Context, name string, payload any, opts ...EnqueueOption) error {
	if _, err := m.registry.Lookup(name); err != nil {
		return err
	}
	return m.Enqueuer.Enqueue(ctx, name, payload, opts...)
}

// EnqueueTx rejects names missing from the registry before inserting.
func (m *Manager) EnqueueTx(ctx context.Context, tx pgx.Tx, name string, payload any, opts ...EnqueueOption) error {
	if _, err := m.registry.Lookup(name); err != nil {
		return err
	}
	return m.Enqueuer.EnqueueTx(ctx, tx, name, payload, opts...)
}

// Healthcheck returns a closure suitable for health endpoints.
func Healthcheck(m *Manager) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if m == nil {
			return errors.Join(ErrHealthcheckFailed, ErrNotStarted)
		}

		m.mu.Lock()
		started := m.started
		m.mu.Unlock()

		if !started {
			return errors.Join(ErrHealthcheckFailed, ErrNotStarted)
		}
		if err := m.pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

type sendWorker struct {
	river.WorkerDefaults[sendArgs]
	registry *mailer.Registry
	binder   func(email string) Binder
	logger   *slog.Logger
}

func (w *sendWorker) Work(ctx context.Context, job *river.Job[sendArgs]) error {
	email := job.Args.Email
	log := w.logger.With(
		slog.String("email", email),
		slog.Int64("job_id", job.ID),
		slog.Int("attempt", job.Attempt),
	)

	c, err := w.registry.Lookup(email)
	if err != nil {
		log.ErrorContext(ctx, "email job cancelled", slog.Any("error", err))
		return river.JobCancel(err)
	}

	args, err := w.binder(email)(job.Args.Payload)
	if err != nil {
		log.ErrorContext(ctx, "email job cancelled", slog.Any("error", err))
		return river.JobCancel(err)
	}
	if len(job.Args.Kwargs) > 0 {
		args = append(args, job.Args.Kwargs)
	}

	n, err := c.Send(ctx, args...)
	if err != nil {
		if permanent(err) {
			log.ErrorContext(ctx, "email job cancelled", slog.Any("error", err))
			return river.JobCancel(err)
		}
		log.ErrorContext(ctx, "email delivery failed", slog.Any("error", err))
		return err
	}

	log.DebugContext(ctx, "email delivered", slog.Int("sent", n))
	return nil
}

// permanent reports errors that a retry cannot fix.
func permanent(err error) bool {
	for _, target := range []error{
		mailer.ErrMissingConfiguration,
		mailer.ErrInvalidOverride,
		mailer.ErrTemplateNotFound,
		mailer.ErrLayoutNotFound,
		mailer.ErrRenderFailed,
		mailer.ErrInvalidFrontmatter,
		mailer.ErrUnknownExtension,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Shutdown returns a hook that stops the manager.
func (m *Manager) Shutdown() func(context.Context) error {
	return func(ctx context.Context) error {
		return m.Stop(ctx)
	}
}

type cronScheduleAdapter struct {
	schedule cron.Schedule
}

func (a *cronScheduleAdapter) Next(current time.Time) time.Time {
	return a.schedule.Next(current)
}

func parseCronSchedule(expr string) (river.PeriodicSchedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	return &cronScheduleAdapter{schedule: schedule}, nil
}

