package cli

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/emailkit/pkg/db"
	"github.com/dmitrymomot/emailkit/pkg/health"
	"github.com/dmitrymomot/emailkit/pkg/mailer/queue"
)

func (a *app) connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, db.Config{
		URL:      a.cfg.Database.URL,
		MaxConns: a.cfg.Database.MaxConns,
	})
	if err != nil {
		return nil, err
	}

	if a.cfg.Database.Migrate {
		if _, err := db.Migrate(ctx, pool, a.log); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return pool, nil
}

func (a *app) enqueueCommand() *cobra.Command {
	var (
		inv         invocation
		delay       time.Duration
		uniqueKey   string
		uniqueFor   time.Duration
		queueName   string
		maxAttempts int
	)

	cmd := &cobra.Command{
		Use:   "enqueue NAME [NAME...]",
		Short: "Schedule background deliveries",
		Long: "Schedule background deliveries.\n\n" +
			"All names are enqueued in one transaction with the same payload.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, names []string) error {
			ctx := cmd.Context()

			env, err := a.environment(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			for _, name := range names {
				if _, err := env.registry.Lookup(name); err != nil {
					return err
				}
			}

			payload, err := inv.payload()
			if err != nil {
				return err
			}

			opts := []queue.EnqueueOption{queue.WithKwargs(inv.keywords())}
			if delay > 0 {
				opts = append(opts, queue.ScheduledIn(delay))
			}
			if uniqueKey != "" {
				opts = append(opts, queue.UniqueKey(uniqueKey))
			}
			if uniqueFor > 0 {
				opts = append(opts, queue.UniqueFor(uniqueFor))
			}
			if queueName != "" {
				opts = append(opts, queue.InQueue(queueName))
			}
			if maxAttempts > 0 {
				opts = append(opts, queue.MaxAttempts(maxAttempts))
			}

			pool, err := a.connectDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			enq, err := queue.NewEnqueuer(pool, queue.WithEnqueuerLogger(a.log))
			if err != nil {
				return err
			}

			err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
				for _, name := range names {
					if err := enq.EnqueueTx(ctx, tx, name, payload, opts...); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			a.log.InfoContext(ctx, "emails enqueued", slog.Any("emails", names))
			return nil
		},
	}

	inv.register(cmd)
	cmd.Flags().DurationVar(&delay, "delay", 0, "deliver after this delay")
	cmd.Flags().StringVar(&uniqueKey, "unique-key", "", "skip the job if one with this key is pending")
	cmd.Flags().DurationVar(&uniqueFor, "unique-for", 0, "uniqueness window")
	cmd.Flags().StringVar(&queueName, "queue", "", "queue name")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "delivery attempts before giving up")
	return cmd
}

func (a *app) workerCommand() *cobra.Command {
	var healthAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background delivery worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			env, err := a.environment(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			pool, err := a.connectDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			opts := []queue.Option{
				queue.WithLogger(a.log),
				queue.WithMaxWorkers(a.cfg.Queue.MaxWorkers),
			}
			for _, s := range a.cfg.Queue.Schedules {
				opts = append(opts, queue.WithSchedule(s.Email, s.Cron, s.Payload))
			}

			manager, err := queue.NewManager(pool, env.registry, opts...)
			if err != nil {
				return err
			}
			if err := manager.Start(ctx); err != nil {
				return err
			}

			if healthAddr != "" {
				env.checks["database"] = health.CheckFunc(db.Healthcheck(pool))
				env.checks["queue"] = health.CheckFunc(queue.Healthcheck(manager))
				srv := &http.Server{
					Addr:              healthAddr,
					Handler:           healthRouter(env.checks, a.log),
					ReadHeaderTimeout: 10 * time.Second,
				}
				if err := a.serve(ctx, srv); err != nil {
					a.log.ErrorContext(ctx, "health server failed", slog.Any("error", err))
				}
			}
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			return manager.Stop(stopCtx)
		},
	}

	cmd.Flags().StringVar(&healthAddr, "health-addr", "", "serve /healthz and /readyz on this address")
	return cmd
}
