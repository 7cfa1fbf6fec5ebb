package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kakeibo/internal/backend"
	"kakeibo/internal/cli"
	"kakeibo/internal/config"
	"kakeibo/internal/log"
	"kakeibo/internal/storage"
)

// app holds what subcommands share once the root pre-run has loaded the
// configuration.
type app struct {
	cfg     *config.Config
	backend backend.Config
	logger  *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "kakeiboctl",
		Short:         "Administer a kakeibo installation",
		Long:          `Run schema migrations, inspect reports and seed data against the backend configured in the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(migrateCmd(a))
	root.AddCommand(userIDCmd())
	root.AddCommand(reportCmd(a))
	root.AddCommand(seedCategoriesCmd(a))
	root.AddCommand(snapshotsCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cli.LoadEnvFile()
	cfg := config.Load()
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	// Logs go to stderr so command output stays machine readable.
	a.logger = log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    cmd.ErrOrStderr(),
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	a.cfg, a.backend = cfg, bcfg
	return nil
}

// openStore opens the configured store, migrating SQL schemas.
func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	return backend.NewFactory(a.logger).Store(ctx, a.backend)
}

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
