// Command inkwell syncs offline blog drafts and notifications with the
// blog service.
package main

import (
	"context"
	"os"

	"github.com/agentstation/inkwell/cmd/inkwell/app"
	"github.com/agentstation/inkwell/pkg/constants"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	application, err := app.New(version, commit, date)
	if err != nil {
		app.ExitOnError(err)
	}

	ctx, cancel := app.ContextWithSignals(context.Background())
	runErr := application.Execute(ctx, os.Args[1:])
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer shutdownCancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		application.Logger().Error().Err(err).Msg("Shutdown failed")
	}
	app.ExitOnError(runErr)
}
