package cli

import (
	"log/slog"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

func (a *app) sendCommand() *cobra.Command {
	var (
		inv         invocation
		recipients  []string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "send NAME",
		Short: "Build an email and deliver it through the configured transport",
		Long: "Build an email and deliver it through the configured transport.\n\n" +
			"Each --to address receives its own copy. Without --to the recipients\n" +
			"declared by the email are used.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, names []string) error {
			env, err := a.environment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			spec, ok := env.specs[names[0]]
			if !ok {
				_, err := env.registry.Lookup(names[0])
				return err
			}
			args, err := inv.args()
			if err != nil {
				return err
			}

			callables, err := perRecipient(spec, recipients)
			if err != nil {
				return err
			}

			var sent atomic.Int64
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(concurrency, 1))
			for _, c := range callables {
				g.Go(func() error {
					n, err := c.Send(ctx, args...)
					sent.Add(int64(n))
					return err
				})
			}
			err = g.Wait()

			a.log.InfoContext(cmd.Context(), "emails sent",
				slog.String("email", spec.Name()),
				slog.Int64("sent", sent.Load()),
				slog.Int("requested", len(callables)),
			)
			return err
		},
	}

	inv.register(cmd)
	cmd.Flags().StringSliceVar(&recipients, "to", nil, "recipient address; repeat to send one copy each")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel deliveries")
	return cmd
}

// perRecipient returns one callable per address with to pinned, or a single
// callable over the declared recipients.
func perRecipient(spec *mailer.Spec, recipients []string) ([]*mailer.Callable, error) {
	if len(recipients) == 0 {
		c, err := spec.AsCallable(nil)
		if err != nil {
			return nil, err
		}
		return []*mailer.Callable{c}, nil
	}

	out := make([]*mailer.Callable, 0, len(recipients))
	for _, rcpt := range recipients {
		c, err := spec.AsCallable(mailer.Pins{mailer.FieldTo: rcpt})
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
