package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kakeibo/internal/storage"
)

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQL schema",
		Long:  `Apply, roll back or inspect migrations of the sqlite or postgres data backend.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, dsn, err := a.backend.SQLTarget()
			if err != nil {
				return err
			}
			if err := storage.RunMigrations(d, dsn); err != nil {
				return err
			}
			return printVersion(cmd, d, dsn)
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			d, dsn, err := a.backend.SQLTarget()
			if err != nil {
				return err
			}
			if err := storage.RollbackMigrations(d, dsn, steps); err != nil {
				return err
			}
			return printVersion(cmd, d, dsn)
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, dsn, err := a.backend.SQLTarget()
			if err != nil {
				return err
			}
			return printVersion(cmd, d, dsn)
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, d storage.Dialect, dsn string) error {
	version, dirty, err := storage.MigrationVersion(d, dsn)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s schema version %d (%s)\n", d.Name, version, state)
	return nil
}
