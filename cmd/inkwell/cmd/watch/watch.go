// Package watch implements the long running watch command.
package watch

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentstation/inkwell/internal/appcontext"
	"github.com/agentstation/inkwell/internal/server"
	"github.com/agentstation/inkwell/pkg/connectivity"
	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/reconcile"
)

// NewCommand creates the watch command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "core",
		Short:   "Keep drafts and notifications in sync until interrupted",
		Long: `Watch probes connectivity, syncs pending drafts whenever the blog
service becomes reachable and polls notifications. It runs until
interrupted.

With --addr a local status API is served on that address:

  /metrics                   Prometheus metrics
  /healthz                   200 while online, 503 while offline
  /api/v1/status             connectivity, pending drafts, unread count
  /api/v1/drafts[/{id}]      stored drafts (DELETE discards)
  /api/v1/sync               POST runs a sync sweep
  /api/v1/notifications      notification projection (?unread=true)
  /api/v1/events             Server-Sent Events of sync activity`,
		Example: `  inkwell watch
  inkwell watch --addr 127.0.0.1:7777`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), app, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "serve the status API on this address")
	return cmd
}

func run(ctx context.Context, app appcontext.Interface, addr string) error {
	logger := app.Logger()
	c, err := app.Client()
	if err != nil {
		return err
	}

	c.OnCreated(func(ch content.Change) {
		logger.Info().Str("item_id", ch.ID).Str("local_id", ch.LocalID).Msg("Post created")
	})
	c.OnUpdated(func(ch content.Change) {
		logger.Info().Str("item_id", ch.ID).Msg("Post updated")
	})
	c.OnListRefresh(func(r reconcile.SweepResult) {
		logger.Info().Int("committed", r.Committed).Int("pending", r.Pending).Msg("Drafts synced")
	})
	c.OnConnectivity(func(t connectivity.Transition) {
		logger.Info().Str("transition", string(t)).Msg("Connectivity")
	})

	var srv *server.Server
	if addr != "" {
		srv, err = server.New(c, server.Config{Addr: addr}, logger)
		if err != nil {
			return err
		}
		defer srv.Close()
	}

	if err := c.Start(ctx); err != nil {
		return err
	}
	logger.Info().Int("pending", c.PendingCount()).Msg("Watching; press Ctrl+C to stop")

	if srv != nil {
		if err := srv.Run(ctx); err != nil {
			return err
		}
	} else {
		<-ctx.Done()
	}
	logger.Info().Msg("Stopped watching")
	return nil
}
