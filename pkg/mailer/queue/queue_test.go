package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/emailkit/pkg/logger"
	"github.com/dmitrymomot/emailkit/pkg/mailer"
	"github.com/dmitrymomot/emailkit/pkg/mailer/outbox"
)

type welcomePayload struct {
	Email string `json:"email"`
}

func recipientFromPayload(next mailer.Hook[[]string]) mailer.Hook[[]string] {
	return func(e *mailer.Instance) ([]string, error) {
		switch p := e.Arg(0).(type) {
		case welcomePayload:
			return []string{p.Email}, nil
		case map[string]any:
			return []string{p["email"].(string)}, nil
		}
		return next(e)
	}
}

func newRegistry(t *testing.T, box *outbox.Outbox) *mailer.Registry {
	t.Helper()

	welcome := mailer.NewSpec("welcome",
		mailer.Plain(),
		mailer.WithSubject("Welcome"),
		mailer.WithFrom("team@example.com"),
		mailer.WithBody("Hello"),
		mailer.WithConnection(box),
		mailer.OverrideTo(recipientFromPayload),
		mailer.OverrideSubject(func(next mailer.Hook[string]) mailer.Hook[string] {
			return func(e *mailer.Instance) (string, error) {
				if v, ok := e.Kwarg("subject"); ok {
					return v.(string), nil
				}
				return next(e)
			}
		}),
	)
	broken := mailer.NewSpec("broken", mailer.Plain(), mailer.WithConnection(box))

	reg, err := mailer.NewRegistry(
		mailer.MustCallable(welcome, nil),
		mailer.MustCallable(broken, nil),
	)
	require.NoError(t, err)
	return reg
}

func newJob(args sendArgs) *river.Job[sendArgs] {
	return &river.Job[sendArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Attempt: 1},
		Args:   args,
	}
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestSendWorker(t *testing.T) {
	t.Parallel()

	t.Run("generic payload", func(t *testing.T) {
		t.Parallel()

		box := outbox.New()
		cfg := newConfig()
		w := &sendWorker{registry: newRegistry(t, box), binder: cfg.binderFor, logger: slogDiscard()}

		err := w.Work(context.Background(), newJob(sendArgs{
			Email:   "welcome",
			Payload: rawJSON(t, map[string]any{"email": "user@example.com"}),
		}))
		require.NoError(t, err)
		require.Equal(t, 1, box.Len())
		rec := box.Records()[0]
		require.Equal(t, []string{"user@example.com"}, rec.Email.To)
		require.Equal(t, "welcome", rec.Name)
	})

	t.Run("typed payload and kwargs", func(t *testing.T) {
		t.Parallel()

		box := outbox.New()
		cfg := newConfig()
		WithBinder("welcome", Bind[welcomePayload]())(cfg)
		w := &sendWorker{registry: newRegistry(t, box), binder: cfg.binderFor, logger: slogDiscard()}

		err := w.Work(context.Background(), newJob(sendArgs{
			Email:   "welcome",
			Payload: rawJSON(t, welcomePayload{Email: "typed@example.com"}),
			Kwargs:  mailer.Kwargs{"subject": "Hi there"},
		}))
		require.NoError(t, err)
		msg, ok := box.Last()
		require.True(t, ok)
		require.Equal(t, []string{"typed@example.com"}, msg.To)
		require.Equal(t, "Hi there", msg.Subject)
	})

	t.Run("unknown email cancels", func(t *testing.T) {
		t.Parallel()

		w := &sendWorker{registry: newRegistry(t, outbox.New()), binder: newConfig().binderFor, logger: slogDiscard()}
		err := w.Work(context.Background(), newJob(sendArgs{Email: "nope"}))
		require.ErrorIs(t, err, mailer.ErrUnknownEmail)
	})

	t.Run("invalid payload cancels", func(t *testing.T) {
		t.Parallel()

		cfg := newConfig()
		WithBinder("welcome", Bind[welcomePayload]())(cfg)
		w := &sendWorker{registry: newRegistry(t, outbox.New()), binder: cfg.binderFor, logger: slogDiscard()}

		err := w.Work(context.Background(), newJob(sendArgs{Email: "welcome", Payload: json.RawMessage(`"oops"`)}))
		require.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("missing configuration cancels", func(t *testing.T) {
		t.Parallel()

		box := outbox.New()
		w := &sendWorker{registry: newRegistry(t, box), binder: newConfig().binderFor, logger: slogDiscard()}

		err := w.Work(context.Background(), newJob(sendArgs{Email: "broken"}))
		require.ErrorIs(t, err, mailer.ErrMissingConfiguration)
		require.Zero(t, box.Len())
	})

	t.Run("delivery failure is retried", func(t *testing.T) {
		t.Parallel()

		sendErr := errors.New("provider down")
		box := outbox.New(outbox.WithError(sendErr))
		w := &sendWorker{registry: newRegistry(t, box), binder: newConfig().binderFor, logger: slogDiscard()}

		err := w.Work(context.Background(), newJob(sendArgs{
			Email:   "welcome",
			Payload: rawJSON(t, map[string]any{"email": "user@example.com"}),
		}))
		require.ErrorIs(t, err, sendErr)
		require.False(t, permanent(err))
	})
}

func TestBind(t *testing.T) {
	t.Parallel()

	args, err := Bind[welcomePayload]()(json.RawMessage(`{"email":"a@example.com"}`))
	require.NoError(t, err)
	require.Equal(t, []any{welcomePayload{Email: "a@example.com"}}, args)

	args, err = Bind[welcomePayload]()(nil)
	require.NoError(t, err)
	require.Equal(t, []any{welcomePayload{}}, args)

	args, err = bindAny(nil)
	require.NoError(t, err)
	require.Empty(t, args)

	args, err = bindAny(json.RawMessage(`null`))
	require.NoError(t, err)
	require.Empty(t, args)

	args, err = bindAny(json.RawMessage(`[1,"x"]`))
	require.NoError(t, err)
	require.Equal(t, []any{[]any{float64(1), "x"}}, args)

	_, err = bindAny(json.RawMessage(`{`))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestBuildJobArgs(t *testing.T) {
	t.Parallel()

	at := time.Now().Add(time.Hour)
	args, opts, err := buildJobArgs("welcome", welcomePayload{Email: "a@example.com"},
		InQueue("email"),
		ScheduledAt(at),
		MaxAttempts(3),
		Priority(2),
		Tags("onboarding"),
		UniqueFor(time.Hour),
		UniqueKey("user:1"),
		WithKwargs(mailer.Kwargs{"locale": "de"}),
	)
	require.NoError(t, err)

	assert.Equal(t, JobKind, args.Kind())
	assert.Equal(t, "welcome", args.Email)
	assert.JSONEq(t, `{"email":"a@example.com"}`, string(args.Payload))
	assert.Equal(t, mailer.Kwargs{"locale": "de"}, args.Kwargs)
	assert.Equal(t, "user:1", args.UniqueKey)

	assert.Equal(t, "email", opts.Queue)
	assert.Equal(t, at, opts.ScheduledAt)
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, 2, opts.Priority)
	assert.Equal(t, []string{"onboarding"}, opts.Tags)
	assert.Equal(t, time.Hour, opts.UniqueOpts.ByPeriod)
	assert.True(t, opts.UniqueOpts.ByArgs)

	args, opts, err = buildJobArgs("welcome", nil)
	require.NoError(t, err)
	assert.Nil(t, args.Payload)
	assert.Nil(t, args.Kwargs)
	assert.Empty(t, opts.Queue)
	assert.Zero(t, opts.UniqueOpts.ByPeriod)

	_, _, err = buildJobArgs("welcome", make(chan int))
	require.Error(t, err)
}

func TestEnqueueOptions_IgnoreInvalid(t *testing.T) {
	t.Parallel()

	cfg := &enqueueConfig{queue: "existing", maxAttempts: 10}
	InQueue("")(cfg)
	MaxAttempts(0)(cfg)
	MaxAttempts(-1)(cfg)

	assert.Equal(t, "existing", cfg.queue)
	assert.Equal(t, 10, cfg.maxAttempts)

	before := time.Now()
	ScheduledIn(time.Hour)(cfg)
	require.NotNil(t, cfg.scheduledAt)
	assert.True(t, cfg.scheduledAt.After(before.Add(time.Hour-time.Second)))
}

func TestPeriodicJobs(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, outbox.New())

	jobs, err := periodicJobs(reg, []scheduleConfig{{name: "welcome", schedule: "0 9 * * 1"}})
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	_, err = periodicJobs(reg, []scheduleConfig{{name: "nope", schedule: "0 9 * * 1"}})
	require.ErrorIs(t, err, mailer.ErrUnknownEmail)

	_, err = periodicJobs(reg, []scheduleConfig{{name: "welcome", schedule: "every monday"}})
	require.Error(t, err)
}

func TestParseCronSchedule(t *testing.T) {
	t.Parallel()

	schedule, err := parseCronSchedule("0 * * * *")
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), schedule.Next(base))

	for _, expr := range []string{"", "* * *", "* * * * * *", "60 * * * *", "garbage"} {
		_, err := parseCronSchedule(expr)
		assert.Error(t, err, expr)
	}
}

func TestNewManager_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewManager(nil, nil)
	require.ErrorIs(t, err, ErrPoolRequired)

	_, err = NewEnqueuer(nil)
	require.ErrorIs(t, err, ErrPoolRequired)

	require.ErrorIs(t, Healthcheck(nil)(context.Background()), ErrHealthcheckFailed)
}

func TestPermanent(t *testing.T) {
	t.Parallel()

	require.True(t, permanent(&mailer.MissingConfigError{Field: mailer.FieldTo}))
	require.True(t, permanent(errors.Join(mailer.ErrLayoutNotFound, errors.New("x"))))
	require.False(t, permanent(mailer.ErrSendFailed))
}

func slogDiscard() *slog.Logger {
	return logger.NewNope()
}
