package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
	"github.com/dmitrymomot/emailkit/pkg/mailer/outbox"
)

func TestOutbox_RecordsMessages(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	box := outbox.New(outbox.WithClock(func() time.Time { return at }))

	_, ok := box.Last()
	require.False(t, ok)

	first := &mailer.Email{Subject: "first"}
	second := &mailer.Email{Subject: "second"}
	require.NoError(t, box.Send(mailer.WithName(context.Background(), "welcome"), first))
	require.NoError(t, box.Send(context.Background(), second))

	require.Equal(t, 2, box.Len())
	require.Equal(t, []*mailer.Email{first, second}, box.Messages())

	last, ok := box.Last()
	require.True(t, ok)
	require.Same(t, second, last)

	records := box.Records()
	require.Equal(t, "welcome", records[0].Name)
	require.Empty(t, records[1].Name)
	require.Equal(t, at, records[0].SentAt)
	require.NotEqual(t, records[0].ID, records[1].ID)

	box.Reset()
	require.Zero(t, box.Len())
}

func TestOutbox_WithError(t *testing.T) {
	t.Parallel()

	fail := errors.New("boom")
	box := outbox.New(outbox.WithError(fail))

	err := box.Send(context.Background(), &mailer.Email{})
	require.ErrorIs(t, err, fail)
	require.Zero(t, box.Len())
}

func TestOutbox_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	box := outbox.New()
	require.ErrorIs(t, box.Send(ctx, &mailer.Email{}), context.Canceled)
	require.Zero(t, box.Len())
}

func TestOutbox_ConcurrentSends(t *testing.T) {
	t.Parallel()

	box := outbox.New()

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			_ = box.Send(context.Background(), &mailer.Email{})
		})
	}
	wg.Wait()

	require.Equal(t, 50, box.Len())
}
