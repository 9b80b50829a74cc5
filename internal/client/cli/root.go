package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophadmin/internal/client/config"
	"github.com/spf13/cobra"
)

// runner is what the commands drive. *App implements it.
type runner interface {
	RunREPL(ctx context.Context) error
	Serve(ctx context.Context) error
	ShowStatus(ctx context.Context) error
	SignOut(ctx context.Context) error
	Close() error
}

// Factory builds a runner for the given mode.
type Factory func(ctx context.Context, mode Mode) (runner, error)

// NewRootCommand builds the command tree. Configuration flags (-a, -d, -l,
// -t, -w, -r, -s, -c) are read by the config package and ignored here; put
// them after the subcommand name.
func NewRootCommand(newRunner Factory) *cobra.Command {
	repl := runWith(newRunner, ModeREPL, runner.RunREPL)

	root := &cobra.Command{
		Use:   "console",
		Short: "Back-office operator console",
		Long: `Operator console for the back-office API.

Run without a subcommand to start the interactive shell. The session is kept
in a local database and survives restarts until it expires, is revoked or
the operator stays idle for too long.`,
		SilenceUsage: true,
		RunE:         repl,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "repl",
			Short: "Start the interactive shell",
			RunE:  repl,
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the web console",
			RunE:  runWith(newRunner, ModeServe, runner.Serve),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the stored session",
			RunE:  runWith(newRunner, ModeOneShot, runner.ShowStatus),
		},
		&cobra.Command{
			Use:   "logout",
			Short: "End the stored session",
			RunE:  runWith(newRunner, ModeOneShot, runner.SignOut),
		},
	)

	whitelistUnknownFlags(root)
	return root
}

func whitelistUnknownFlags(cmd *cobra.Command) {
	cmd.FParseErrWhitelist = cobra.FParseErrWhitelist{UnknownFlags: true}
	for _, c := range cmd.Commands() {
		whitelistUnknownFlags(c)
	}
}

func runWith(newRunner Factory, mode Mode, fn func(runner, context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		r, err := newRunner(ctx, mode)
		if err != nil {
			return err
		}
		defer func() {
			if err := r.Close(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "close:", err)
			}
		}()
		return fn(r, ctx)
	}
}

// DefaultFactory loads the configuration and opens the App.
func DefaultFactory(ctx context.Context, mode Mode) (runner, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return NewApp(ctx, cfg, mode)
}

// Execute runs the console with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand(DefaultFactory).ExecuteContext(ctx)
}
