package app

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentstation/inkwell/cmd/inkwell/cmd/drafts"
	"github.com/agentstation/inkwell/cmd/inkwell/cmd/inbox"
	"github.com/agentstation/inkwell/cmd/inkwell/cmd/posts"
	"github.com/agentstation/inkwell/cmd/inkwell/cmd/watch"
	"github.com/agentstation/inkwell/internal/cmd/output"
)

// flags holds persistent flag values until they are applied to Config.
type flags struct {
	configFile string
	verbose    bool
	quiet      bool
	noColor    bool
	format     string
	logLevel   string
	serverURL  string
	userID     string
	offline    bool
}

// Execute runs the CLI with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.createRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:   "inkwell",
		Short: "Offline-first blog drafts and notifications",
		Long: `inkwell keeps blog drafts safe on this machine and syncs them with
the blog service whenever it is reachable. It also lists and manages
your notifications.`,
		Version: a.version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, &f)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if a.out != nil {
		root.SetOut(a.out)
	}
	root.AddGroup(&cobra.Group{ID: "core", Title: "Commands:"})

	pf := root.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "config file (default is $HOME/.inkwell.yaml)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	pf.BoolVarP(&f.quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	pf.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	pf.StringVarP(&f.format, "format", "o", "", "output format: table, json, yaml")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	pf.StringVar(&f.serverURL, "server", "", "blog service base URL")
	pf.StringVar(&f.userID, "user", "", "user id for notifications")
	pf.BoolVar(&f.offline, "offline", false, "do not contact the blog service; keep everything as drafts")

	root.SetVersionTemplate("inkwell {{.Version}}\n")
	root.AddCommand(
		drafts.NewCommand(a),
		posts.NewSaveCommand(a),
		posts.NewPublishCommand(a),
		posts.NewDeleteCommand(a),
		posts.NewSyncCommand(a),
		inbox.NewCommand(a),
		watch.NewCommand(a),
		a.newVersionCommand(),
	)
	return root
}

// setup reloads configuration when --config is given, applies flags
// and rebuilds the logger.
func (a *App) setup(cmd *cobra.Command, f *flags) error {
	if f.configFile != "" {
		config, err := LoadConfig(f.configFile)
		if err != nil {
			return err
		}
		a.config = config
	}
	if _, err := output.ParseFormat(f.format); err != nil {
		return err
	}
	a.config.UpdateFromFlags(f.verbose, f.quiet, f.noColor, f.format, f.logLevel, f.serverURL, f.userID)
	if cmd.Flags().Changed("offline") {
		a.config.Offline = f.offline
	}

	logger := NewLogger(a.config)
	a.logger = &logger
	return nil
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "inkwell version %s\n", a.version)
			fmt.Fprintf(w, "commit: %s\n", a.commit)
			fmt.Fprintf(w, "built: %s\n", a.date)
			fmt.Fprintf(w, "go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// ExitOnError prints err and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
