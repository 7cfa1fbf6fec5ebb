package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"kakeibo/internal/backend"
	"kakeibo/internal/core"
	"kakeibo/internal/services"
	gsheets "kakeibo/internal/sheets/google"
)

func snapshotsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Rebuild or inspect month snapshots",
	}

	var days int
	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute the snapshots of every active month",
		Long: `Recompute and store the snapshot of every user month with transactions
in the lookback window, exporting each one when a spreadsheet is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f := backend.NewFactory(a.logger)
			store, err := f.Store(ctx, a.backend)
			if err != nil {
				return err
			}
			defer store.Close()
			exporter, err := f.Exporter(ctx, a.backend)
			if err != nil {
				return err
			}

			proc := services.NewSnapshotProcessor(store, exporter, services.SnapshotProcessorConfig{}, a.logger)
			t := time.Now().AddDate(0, 0, -days)
			since := core.NewDate(t.Year(), int(t.Month()), t.Day())
			n, err := proc.RebuildAll(ctx, since)
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d snapshots since %s\n", n, since)
			return err
		},
	}
	rebuild.Flags().IntVar(&days, "days", 62, "lookback window in days")

	var year int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the snapshots exported to the spreadsheet for a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.backend.ExportEnabled() {
				return errors.New("no spreadsheet configured, set GOOGLE_SPREADSHEET_ID")
			}
			exporter, err := gsheets.New(cmd.Context(), a.backend.Sheets, a.logger)
			if err != nil {
				return err
			}
			snaps, err := exporter.ReadSnapshots(cmd.Context(), year)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tMONTH\tINCOME\tEXPENSE\tBALANCE\tCOUNT")
			for _, s := range snaps {
				fmt.Fprintf(w, "%s\t%d-%02d\t%s\t%s\t%s\t%d\n", s.UserID, s.Year, s.Month,
					s.Summary.Income.StringFixed(2), s.Summary.Expense.StringFixed(2),
					s.Summary.Balance.StringFixed(2), s.Summary.Count)
			}
			return w.Flush()
		},
	}
	list.Flags().IntVar(&year, "year", time.Now().Year(), "year")

	cmd.AddCommand(rebuild, list)
	return cmd
}
