// Package inbox implements the notifications command.
package inbox

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/inkwell/internal/appcontext"
	"github.com/agentstation/inkwell/internal/cmd/output"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/logging"
	"github.com/agentstation/inkwell/pkg/notifications"
)

// NewCommand creates the notifications command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif", "inbox"},
		GroupID: "core",
		Short:   "List and manage notifications",
		Example: `  inkwell notifications list --unread
  inkwell notifications read 17
  inkwell notifications prefs --push=true`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newListCommand(app), newReadCommand(app), newPrefsCommand(app))
	return cmd
}

func poller(app appcontext.Interface) (*notifications.Poller, error) {
	c, err := app.Client()
	if err != nil {
		return nil, err
	}
	return c.Notifications()
}

func newListCommand(app appcontext.Interface) *cobra.Command {
	var unreadOnly bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List notifications",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := poller(app)
			if err != nil {
				return err
			}
			if err := p.Refresh(cmd.Context()); err != nil {
				return err
			}
			if err := p.RefreshUnreadCount(cmd.Context()); err != nil {
				return err
			}
			list := p.Notifications()
			if unreadOnly {
				unread := list[:0]
				for _, n := range list {
					if !n.IsRead {
						unread = append(unread, n)
					}
				}
				list = unread
			}
			format := output.DetectFormat(app.OutputFormat())
			if err := output.Print(cmd.OutOrStdout(), format, output.Notifications(list)); err != nil {
				return err
			}
			if format == output.FormatTable {
				fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", p.UnreadCount())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only unread notifications")
	return cmd
}

func newReadCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>...",
		Short: "Mark notifications as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := poller(app)
			if err != nil {
				return err
			}
			if err := p.Refresh(cmd.Context()); err != nil {
				return err
			}
			for _, id := range args {
				ctx := logging.WithNotification(cmd.Context(), id)
				if !p.MarkReadLocal(id) {
					logging.FromContext(ctx).Debug().Msg("Already read or unknown")
					fmt.Fprintf(cmd.OutOrStdout(), "%s was already read\n", id)
					continue
				}
				if err := p.ConfirmRead(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s read\n", id)
			}
			return nil
		},
	}
}

func newPrefsCommand(app appcontext.Interface) *cobra.Command {
	var next notifications.Preferences
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change notification preferences",
		Long: `Without flags prefs shows the current preferences. With flags the
changed settings are sent to the service and applied once it accepts them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := poller(app)
			if err != nil {
				return err
			}
			prefs := p.Preferences()
			changed := false
			for name, pair := range map[string][2]*bool{
				"email":     {&prefs.Email, &next.Email},
				"in-app":    {&prefs.InApp, &next.InApp},
				"push":      {&prefs.Push, &next.Push},
				"content":   {&prefs.Content, &next.Content},
				"community": {&prefs.Community, &next.Community},
				"platform":  {&prefs.Platform, &next.Platform},
			} {
				if cmd.Flags().Changed(name) {
					*pair[0] = *pair[1]
					changed = true
				}
			}
			if changed {
				if err := p.UpdatePreferences(cmd.Context(), prefs); err != nil {
					return errors.WrapResource("update", "preferences", "", err)
				}
			}
			return output.Print(cmd.OutOrStdout(), output.DetectFormat(app.OutputFormat()), output.Preferences(p.Preferences()))
		},
	}
	cmd.Flags().BoolVar(&next.Email, "email", false, "email notifications")
	cmd.Flags().BoolVar(&next.InApp, "in-app", false, "in-app notifications")
	cmd.Flags().BoolVar(&next.Push, "push", false, "push notifications")
	cmd.Flags().BoolVar(&next.Content, "content", false, "content notifications")
	cmd.Flags().BoolVar(&next.Community, "community", false, "community notifications")
	cmd.Flags().BoolVar(&next.Platform, "platform", false, "platform notifications")
	return cmd
}
