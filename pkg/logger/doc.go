// Package logger builds the slog loggers used by the transports, the queue
// worker and the mailctl CLI.
//
// Loggers enrich every record with values extracted from the context. The
// EmailName extractor adds the name of the email being built or sent, which
// callables put on the context:
//
//	log := logger.New(logger.Config{Level: "debug"}, logger.EmailName())
//	log.InfoContext(ctx, "delivered") // {"msg":"delivered","email_name":"welcome"}
//
// NewWithSentry also forwards warnings and errors to Sentry. An empty DSN
// falls back to stdout only, so development and production share one code
// path.
package logger
