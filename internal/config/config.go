// Package config loads mailctl settings from a YAML file and MAILCTL_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Transport providers.
const (
	ProviderConsole = "console"
	ProviderResend  = "resend"
	ProviderGmail   = "gmail"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds everything mailctl needs.
type Config struct {
	Specs       SpecsConfig       `mapstructure:"specs"`
	Transport   TransportConfig   `mapstructure:"transport"`
	Dedupe      DedupeConfig      `mapstructure:"dedupe"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Preview     PreviewConfig     `mapstructure:"preview"`
	Links       LinksConfig       `mapstructure:"links"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Log         LogConfig         `mapstructure:"log"`
}

// SpecsConfig points at the spec file and the template directory.
type SpecsConfig struct {
	File          string `mapstructure:"file"`
	Templates     string `mapstructure:"templates"`
	DefaultLayout string `mapstructure:"default_layout"`
}

// TransportConfig selects and configures the delivery provider.
type TransportConfig struct {
	Provider string       `mapstructure:"provider"`
	Resend   ResendConfig `mapstructure:"resend"`
	Gmail    GmailConfig  `mapstructure:"gmail"`
}

// ResendConfig holds Resend API settings.
type ResendConfig struct {
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

// GmailConfig holds Gmail API settings. Either CredentialsJSON (service
// account) or the OAuth2 client triple must be set.
type GmailConfig struct {
	CredentialsJSON string `mapstructure:"credentials_json"`
	ClientID        string `mapstructure:"client_id"`
	ClientSecret    string `mapstructure:"client_secret"`
	RefreshToken    string `mapstructure:"refresh_token"`
	SenderAddress   string `mapstructure:"sender_address"`
	SenderName      string `mapstructure:"sender_name"`
}

// UsesToken reports whether the OAuth2 refresh token flow is configured.
func (c GmailConfig) UsesToken() bool {
	return c.CredentialsJSON == "" && c.RefreshToken != ""
}

// DedupeConfig enables duplicate suppression in Redis.
type DedupeConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
}

// RedisConfig holds the Redis connection.
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	PoolSize int    `mapstructure:"pool_size"`
}

// DatabaseConfig holds the PostgreSQL connection used by the job queue.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// QueueConfig configures the background worker.
type QueueConfig struct {
	MaxWorkers int              `mapstructure:"max_workers"`
	Schedules  []ScheduleConfig `mapstructure:"schedules"`
}

// ScheduleConfig sends an email on a cron schedule.
type ScheduleConfig struct {
	Email   string         `mapstructure:"email"`
	Cron    string         `mapstructure:"cron"`
	Payload map[string]any `mapstructure:"payload"`
}

// PreviewConfig configures the preview server.
type PreviewConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LinksConfig configures absolute URLs and signed links.
type LinksConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	TokenSecret string        `mapstructure:"token_secret"`
	TokenIssuer string        `mapstructure:"token_issuer"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

// AttachmentsConfig points at the S3 bucket attachments are loaded from.
type AttachmentsConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
	MaxSize         int64  `mapstructure:"max_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	SentryDSN   string `mapstructure:"sentry_dsn"`
	Environment string `mapstructure:"environment"`
}

// Load reads path (or mailctl.yaml from the working directory and
// /etc/mailctl when path is empty) and overlays MAILCTL_* variables.
// A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mailctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mailctl")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("MAILCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that do not depend on the command being run.
func (c *Config) Validate() error {
	switch c.Transport.Provider {
	case ProviderConsole:
	case ProviderResend:
		if c.Transport.Resend.APIKey == "" {
			return fmt.Errorf("%w: transport.resend.api_key is required", ErrInvalidConfig)
		}
	case ProviderGmail:
		g := c.Transport.Gmail
		if g.SenderAddress == "" {
			return fmt.Errorf("%w: transport.gmail.sender_address is required", ErrInvalidConfig)
		}
		if g.CredentialsJSON == "" && (g.ClientID == "" || g.ClientSecret == "" || g.RefreshToken == "") {
			return fmt.Errorf("%w: transport.gmail needs credentials_json or client_id, client_secret and refresh_token", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown transport provider %q", ErrInvalidConfig, c.Transport.Provider)
	}

	if c.Dedupe.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("%w: dedupe requires redis.url", ErrInvalidConfig)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("specs.file", "emails.yaml")
	v.SetDefault("specs.templates", "templates")
	v.SetDefault("specs.default_layout", "")

	v.SetDefault("transport.provider", ProviderConsole)
	v.SetDefault("transport.resend.api_key", "")
	v.SetDefault("transport.resend.from_email", "")
	v.SetDefault("transport.resend.from_name", "")
	v.SetDefault("transport.gmail.credentials_json", "")
	v.SetDefault("transport.gmail.client_id", "")
	v.SetDefault("transport.gmail.client_secret", "")
	v.SetDefault("transport.gmail.refresh_token", "")
	v.SetDefault("transport.gmail.sender_address", "")
	v.SetDefault("transport.gmail.sender_name", "")

	v.SetDefault("dedupe.enabled", false)
	v.SetDefault("dedupe.ttl", "24h")
	v.SetDefault("dedupe.prefix", "mailer:dedupe")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.migrate", true)

	v.SetDefault("queue.max_workers", 10)

	v.SetDefault("preview.addr", ":8025")
	v.SetDefault("preview.shutdown_timeout", "10s")

	v.SetDefault("links.base_url", "")
	v.SetDefault("links.token_secret", "")
	v.SetDefault("links.token_issuer", "mailctl")
	v.SetDefault("links.token_ttl", "24h")

	v.SetDefault("attachments.bucket", "")
	v.SetDefault("attachments.region", "us-east-1")
	v.SetDefault("attachments.endpoint", "")
	v.SetDefault("attachments.access_key_id", "")
	v.SetDefault("attachments.secret_access_key", "")
	v.SetDefault("attachments.path_style", false)
	v.SetDefault("attachments.max_size", 10<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.sentry_dsn", "")
	v.SetDefault("log.environment", "development")
}
