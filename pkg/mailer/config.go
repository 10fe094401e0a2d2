package mailer

import "sync/atomic"

// Config holds mailer configuration.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	// DefaultLayout is used by Markdown specs that declare no layout_template.
	DefaultLayout string `env:"MAILER_DEFAULT_LAYOUT"`

	// Connection delivers messages whose spec declares no connection.
	Connection Sender `env:"-"`
}

var defaults atomic.Pointer[Config]

// SetDefaults installs the process-wide configuration.
// Call it once at startup, before any email is sent.
func SetDefaults(cfg Config) {
	defaults.Store(&cfg)
}

// Defaults returns the process-wide configuration.
func Defaults() Config {
	if cfg := defaults.Load(); cfg != nil {
		return *cfg
	}
	return Config{}
}
