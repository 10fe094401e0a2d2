// Package cli implements the mailctl commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/emailkit/internal/config"
	"github.com/dmitrymomot/emailkit/pkg/logger"
	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

type app struct {
	cfg     *config.Config
	log     *slog.Logger
	cfgPath string
}

// NewRootCommand returns the mailctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "mailctl",
		Short:         "Build, preview and deliver declarative emails",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			sentry.Flush(2 * time.Second)
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (default mailctl.yaml)")

	root.AddCommand(
		a.listCommand(),
		a.renderCommand(),
		a.sendCommand(),
		a.serveCommand(),
		a.enqueueCommand(),
		a.workerCommand(),
	)
	return root
}

func (a *app) init(logOut io.Writer) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.NewWithSentry(
		logger.Config{Output: logOut, Level: cfg.Log.Level, Format: cfg.Log.Format},
		logger.SentryConfig{DSN: cfg.Log.SentryDSN, Environment: cfg.Log.Environment},
		logger.EmailName(),
	)
	return nil
}

// invocation holds the flags shared by commands that build an email.
type invocation struct {
	data   string
	kwargs map[string]string
	attach []string
}

func (inv *invocation) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&inv.data, "data", "d", "", "JSON value passed as the first argument")
	cmd.Flags().StringToStringVarP(&inv.kwargs, "kw", "k", nil, "keyword argument (key=value)")
	cmd.Flags().StringSliceVar(&inv.attach, "attach", nil, "object key in the attachments bucket")
}

// args converts the flags into callable arguments.
func (inv *invocation) args() ([]any, error) {
	var args []any
	if inv.data != "" {
		var v any
		if err := json.Unmarshal([]byte(inv.data), &v); err != nil {
			return nil, fmt.Errorf("invalid --data: %w", err)
		}
		args = append(args, v)
	}

	if kw := inv.keywords(); len(kw) > 0 {
		args = append(args, kw)
	}
	return args, nil
}

// keywords merges --kw and --attach into keyword arguments.
func (inv *invocation) keywords() mailer.Kwargs {
	kwargs := make(mailer.Kwargs, len(inv.kwargs)+1)
	for k, v := range inv.kwargs {
		kwargs[k] = v
	}
	if len(inv.attach) > 0 {
		kwargs[attachKwarg] = inv.attach
	}
	return kwargs
}

func (inv *invocation) payload() (json.RawMessage, error) {
	if inv.data == "" {
		return nil, nil
	}
	if !json.Valid([]byte(inv.data)) {
		return nil, fmt.Errorf("invalid --data: not a JSON value")
	}
	return json.RawMessage(inv.data), nil
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the declared emails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.environment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			for _, name := range env.registry.Names() {
				c, err := env.registry.Lookup(name)
				if err != nil {
					return err
				}
				if doc := c.Doc(); doc != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, doc)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
