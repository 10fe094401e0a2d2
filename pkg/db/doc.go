// Package db opens the PostgreSQL pool that backs the email job queue.
//
// Connect parses Config.URL, applies the pool limits and pings the server,
// retrying with a linear backoff:
//
//	pool, err := db.Connect(ctx, db.Config{URL: os.Getenv("MAILER_DATABASE_URL")})
//	if err != nil {
//		return err
//	}
//	defer db.Shutdown(pool)(ctx)
//
//	if _, err := db.Migrate(ctx, pool, log); err != nil {
//		return err
//	}
//
// WithTx runs a function inside a transaction so an email job can be
// enqueued atomically with the caller's own writes:
//
//	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
//		if _, err := tx.Exec(ctx, "UPDATE users SET invited = true WHERE id = $1", id); err != nil {
//			return err
//		}
//		return manager.EnqueueTx(ctx, tx, "invite", payload)
//	})
package db
