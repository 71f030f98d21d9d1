package adminctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/groceryplus/admin-console/internal/app"
	"github.com/groceryplus/admin-console/internal/config"
	"github.com/groceryplus/admin-console/internal/di"
	"github.com/groceryplus/admin-console/internal/tools/common"
	"github.com/groceryplus/admin-console/internal/tools/ui"
)

var errSessionExpired = errors.New("session expired, run `adminctl login`")

type options struct {
	envFile string
	ci      bool
	asJSON  bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "adminctl",
		Short:         "GroceryPlus admin console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional env file loaded before the environment")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print raw JSON results")
	cmd.AddCommand(
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newProductsCommand(opts),
		newCategoriesCommand(opts),
		newBannersCommand(opts),
		newOrdersCommand(opts),
		newDashboardCommand(opts),
		newGalleryCommand(opts),
		newServeCommand(opts),
		newLoadgenCommand(opts),
	)
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "adminctl:", err)
		if errors.Is(err, errSessionExpired) {
			return 3
		}
		return 1
	}
	return 0
}

func loadConfig(opts *options) (*config.Config, error) {
	if err := common.LoadEnvFile(opts.envFile); err != nil {
		return nil, err
	}
	return config.Load("")
}

// withConsole runs fn against a started console and releases it afterwards.
// A recovery triggered during fn is reported as errSessionExpired.
func withConsole(ctx context.Context, opts *options, fn func(ctx context.Context, c *app.Console) ([]string, error)) ([]string, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	console, cleanup, err := di.InitializeConsole(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	defer func() { _ = console.Close(context.WithoutCancel(ctx)) }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := console.Start(runCtx); err != nil {
		return nil, err
	}
	details, err := fn(runCtx, console)
	if _, expired := console.Navigator.Consume(); expired {
		return details, errors.Join(err, errSessionExpired)
	}
	return details, err
}

// run executes a console operation with a spinner, or plainly in CI mode.
func run(cmd *cobra.Command, opts *options, title string, fn func(ctx context.Context, c *app.Console) ([]string, error)) error {
	op := func(ctx context.Context) ([]string, error) { return withConsole(ctx, opts, fn) }
	var (
		details []string
		err     error
	)
	if opts.ci || opts.asJSON {
		details, err = op(cmd.Context())
	} else {
		details, err = ui.Run(title, op)
	}
	switch {
	case opts.ci:
		common.PrintCIResult(err == nil, title, details, err)
	case opts.asJSON:
		for _, d := range details {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
	}
	return err
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local gateway for the admin UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, cleanup, err := di.InitializeApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.Run(ctx)
		},
	}
}
