package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrymomot/emailkit/internal/config"
	"github.com/dmitrymomot/emailkit/pkg/health"
	"github.com/dmitrymomot/emailkit/pkg/mailer"
	"github.com/dmitrymomot/emailkit/pkg/mailer/console"
	"github.com/dmitrymomot/emailkit/pkg/mailer/dedupe"
	"github.com/dmitrymomot/emailkit/pkg/mailer/gmail"
	"github.com/dmitrymomot/emailkit/pkg/mailer/links"
	"github.com/dmitrymomot/emailkit/pkg/mailer/resend"
	"github.com/dmitrymomot/emailkit/pkg/mailer/s3attach"
	"github.com/dmitrymomot/emailkit/pkg/mailer/specfile"
	"github.com/dmitrymomot/emailkit/pkg/redis"
)

// attachKwarg carries the --attach object keys to the attachment loader.
const attachKwarg = "attach"

// siteURLKey is the context key holding the absolute site URL.
const siteURLKey = "SiteURL"

// environment is the wiring shared by every command.
type environment struct {
	specs    map[string]*mailer.Spec
	registry *mailer.Registry
	checks   health.Checks
	closers  []io.Closer
}

func (e *environment) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// environment loads the spec file, builds the transport and installs it as
// the process default connection.
func (a *app) environment(ctx context.Context) (*environment, error) {
	env := &environment{checks: health.Checks{}}

	conn, err := a.transport(ctx, env)
	if err != nil {
		return nil, errors.Join(err, env.Close())
	}
	mailer.SetDefaults(mailer.Config{
		DefaultLayout: a.cfg.Specs.DefaultLayout,
		Connection:    conn,
	})

	base, err := a.baseOptions()
	if err != nil {
		return nil, errors.Join(err, env.Close())
	}

	file := a.cfg.Specs.File
	defs, err := specfile.Load(os.DirFS(filepath.Dir(file)), filepath.Base(file))
	if err != nil {
		return nil, errors.Join(err, env.Close())
	}
	if env.specs, err = specfile.Build(defs, base...); err != nil {
		return nil, errors.Join(err, env.Close())
	}

	if env.registry, err = mailer.NewRegistry(); err != nil {
		return nil, errors.Join(err, env.Close())
	}
	if err := specfile.Register(env.registry, env.specs); err != nil {
		return nil, errors.Join(err, env.Close())
	}
	return env, nil
}

// baseOptions are applied to every root spec of the spec file.
func (a *app) baseOptions() ([]mailer.Option, error) {
	opts := []mailer.Option{
		mailer.WithRenderer(mailer.NewTemplates(os.DirFS(a.cfg.Specs.Templates))),
	}

	if base := a.cfg.Links.BaseURL; base != "" {
		urls, err := links.New(base)
		if err != nil {
			return nil, err
		}
		opts = append(opts, links.WithAbsoluteURL(urls, siteURLKey, "/"))
	}

	if ac := a.cfg.Attachments; ac.Bucket != "" {
		loader, err := s3attach.New(s3attach.Config{
			Bucket:    ac.Bucket,
			AccessKey: ac.AccessKeyID,
			SecretKey: ac.SecretAccessKey,
			Endpoint:  ac.Endpoint,
			Region:    ac.Region,
			PathStyle: ac.PathStyle,
			MaxSize:   ac.MaxSize,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, s3attach.Attach(loader, attachedObjects))
	}

	return opts, nil
}

// attachedObjects reads the object keys passed with --attach.
func attachedObjects(e *mailer.Instance) ([]s3attach.Object, error) {
	v, ok := e.Kwarg(attachKwarg)
	if !ok {
		return nil, nil
	}
	var keys []string
	switch vv := v.(type) {
	case []string:
		keys = vv
	case []any:
		// Keyword arguments decoded from a queued job.
		for _, k := range vv {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%s: expected object keys, got %T", attachKwarg, k)
			}
			keys = append(keys, key)
		}
	default:
		return nil, fmt.Errorf("%s: expected a list of object keys, got %T", attachKwarg, v)
	}
	objs := make([]s3attach.Object, 0, len(keys))
	for _, key := range keys {
		objs = append(objs, s3attach.Object{Key: key})
	}
	return objs, nil
}

// transport builds the configured sender, wrapped with Redis duplicate
// suppression when enabled.
func (a *app) transport(ctx context.Context, env *environment) (mailer.Sender, error) {
	tc := a.cfg.Transport

	var sender mailer.Sender
	switch tc.Provider {
	case config.ProviderResend:
		sender = resend.New(resend.Config{
			APIKey:      tc.Resend.APIKey,
			SenderEmail: tc.Resend.FromEmail,
			SenderName:  tc.Resend.FromName,
		}, resend.WithLogger(a.log))
	case config.ProviderGmail:
		var err error
		if sender, err = a.gmailSender(ctx, tc.Gmail); err != nil {
			return nil, err
		}
	default:
		sender = console.New(a.log, console.WithBody())
	}

	if !a.cfg.Dedupe.Enabled {
		return sender, nil
	}

	client, err := redis.Open(ctx, redis.Config{
		URL:      a.cfg.Redis.URL,
		PoolSize: a.cfg.Redis.PoolSize,
	})
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, client)
	env.checks["redis"] = health.CheckFunc(redis.Healthcheck(client))

	return dedupe.New(sender, client,
		dedupe.WithTTL(a.cfg.Dedupe.TTL),
		dedupe.WithPrefix(a.cfg.Dedupe.Prefix),
		dedupe.WithLogger(a.log),
	), nil
}

func (a *app) gmailSender(ctx context.Context, gc config.GmailConfig) (*gmail.Sender, error) {
	if gc.UsesToken() {
		return gmail.NewWithToken(ctx, gmail.TokenConfig{
			ClientID:      gc.ClientID,
			ClientSecret:  gc.ClientSecret,
			RefreshToken:  gc.RefreshToken,
			SenderAddress: gc.SenderAddress,
			SenderName:    gc.SenderName,
		})
	}
	return gmail.New(ctx, gmail.Config{
		CredentialsJSON: gc.CredentialsJSON,
		SenderAddress:   gc.SenderAddress,
		SenderName:      gc.SenderName,
	})
}
