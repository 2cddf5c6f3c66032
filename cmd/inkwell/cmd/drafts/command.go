// Package drafts implements the drafts command.
package drafts

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/inkwell/internal/appcontext"
	"github.com/agentstation/inkwell/internal/cmd/output"
	"github.com/agentstation/inkwell/pkg/errors"
)

// NewCommand creates the drafts command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "drafts",
		GroupID: "core",
		Short:   "Inspect locally stored drafts",
		Long: `Drafts shows the drafts kept in the local draft store: content
saved while offline or whose last sync attempt failed.`,
		Example: `  inkwell drafts list
  inkwell drafts show local-8b7c...
  inkwell drafts rm local-8b7c...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newListCommand(app), newShowCommand(app), newRemoveCommand(app))
	return cmd
}

func newListCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List drafts, most recently saved first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := app.Client()
			if err != nil {
				return err
			}
			format := output.DetectFormat(app.OutputFormat())
			return output.Print(cmd.OutOrStdout(), format, output.Drafts(c.Drafts()))
		},
	}
}

func newShowCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Client()
			if err != nil {
				return err
			}
			d, ok := c.Draft(args[0])
			if !ok {
				return errors.NewNotFoundError("draft", args[0])
			}
			format := output.DetectFormat(app.OutputFormat())
			if format == output.FormatTable {
				format = output.FormatYAML
			}
			return output.Print(cmd.OutOrStdout(), format, d)
		},
	}
}

func newRemoveCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"remove"},
		Short:   "Discard drafts without syncing them",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Client()
			if err != nil {
				return err
			}
			for _, id := range args {
				if _, ok := c.Draft(id); !ok {
					return errors.NewNotFoundError("draft", id)
				}
				if err := c.DiscardDraft(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Discarded %s\n", id)
			}
			return nil
		},
	}
}
