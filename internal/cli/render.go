package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/emailkit/pkg/mailer/preview"
)

// Render output formats.
const (
	formatJSON = "json"
	formatText = "text"
	formatHTML = "html"
)

func (a *app) renderCommand() *cobra.Command {
	var (
		inv    invocation
		format string
	)

	cmd := &cobra.Command{
		Use:   "render NAME",
		Short: "Build an email and print it without sending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, names []string) error {
			env, err := a.environment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			c, err := env.registry.Lookup(names[0])
			if err != nil {
				return err
			}
			args, err := inv.args()
			if err != nil {
				return err
			}

			msg, err := c.Message(cmd.Context(), args...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case formatText:
				_, err = fmt.Fprintln(out, msg.Body)
			case formatHTML:
				html := msg.HTML()
				if html == "" {
					return fmt.Errorf("%s has no HTML body", c.Name())
				}
				_, err = fmt.Fprintln(out, html)
			default:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				err = enc.Encode(preview.NewMessage(uuid.NewString(), c.Name(), msg))
			}
			return err
		},
	}

	inv.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "output format: json, text or html")
	return cmd
}
