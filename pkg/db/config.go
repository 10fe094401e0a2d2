package db

import "time"

// Config holds the PostgreSQL settings for the job queue.
type Config struct {
	URL string `env:"MAILER_DATABASE_URL,required"`

	MaxConns          int32         `env:"MAILER_DATABASE_MAX_CONNS" envDefault:"10"`
	MinConns          int32         `env:"MAILER_DATABASE_MIN_CONNS" envDefault:"2"`
	HealthCheckPeriod time.Duration `env:"MAILER_DATABASE_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"MAILER_DATABASE_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"MAILER_DATABASE_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `env:"MAILER_DATABASE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"MAILER_DATABASE_RETRY_INTERVAL" envDefault:"5s"`
}
