// Package queue delivers registered emails in the background with River
// (Postgres-native queue).
//
// A job carries the email name, a JSON payload and keyword arguments. The
// worker looks the callable up in a mailer.Registry, binds the payload to
// positional arguments and sends it. Unknown emails, undecodable payloads and
// missing configuration cancel the job; delivery failures are retried with
// River's backoff.
//
// # Binding payloads
//
// Without a binder the decoded JSON value is passed as the only argument.
// Bind decodes into a concrete type instead:
//
//	manager, err := queue.NewManager(pool, registry,
//		queue.WithBinder("welcome", queue.Bind[WelcomePayload]()),
//		queue.WithSchedule("weekly_digest", "0 9 * * 1", nil),
//	)
//
//	err = manager.Enqueue(ctx, "welcome", WelcomePayload{UserID: id},
//		queue.ScheduledIn(10*time.Minute),
//		queue.WithKwargs(mailer.Kwargs{"locale": "de"}),
//	)
//
// # Transactional enqueueing
//
// EnqueueTx inserts the job in the caller's transaction so the email is only
// sent when the transaction commits.
//
// # Enqueue-only processes
//
// Processes that never send (web servers) use an Enqueuer, which inserts
// jobs without starting workers.
package queue
