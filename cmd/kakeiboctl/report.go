package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
	"kakeibo/internal/report"
	"kakeibo/internal/services"
	"kakeibo/internal/userid"
)

func userIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "userid <id>...",
		Short: "Print the canonical user id of each identity",
		Long: `Normalize identities the way the server does: a UUID is kept as is,
anything else becomes the UUID-formatted MD5 of its bytes. One id is
printed per argument, in order.`,
		Args: cobra.MinimumNArgs(1),
		// no configuration needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, len(args))
			for i, raw := range args {
				id, err := userid.Normalize(raw)
				if err != nil {
					return fmt.Errorf("argument %d: %w", i+1, err)
				}
				ids[i] = id
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

// reportFlags are shared by the report subcommands.
type reportFlags struct {
	user   string
	year   int
	month  int
	period string
	kind   string
	asJSON bool
}

func (f *reportFlags) register(cmd *cobra.Command) {
	now := time.Now()
	cmd.Flags().StringVar(&f.user, "user", "", "user identity, normalized like the server does (required)")
	cmd.Flags().IntVar(&f.year, "year", now.Year(), "year")
	cmd.Flags().IntVar(&f.month, "month", int(now.Month()), "month (1-12)")
	cmd.Flags().StringVar(&f.period, "period", string(report.PeriodMonth), "month, quarter or year")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("user")
}

func (f *reportFlags) resolve() (string, report.Period, error) {
	id, err := userid.Normalize(f.user)
	if err != nil {
		return "", "", err
	}
	p, err := report.ParsePeriod(f.period)
	if err != nil {
		return "", "", err
	}
	return id, p, nil
}

func reportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print reports for one user",
	}

	var sf reportFlags
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Income, expense and balance of a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, p, err := sf.resolve()
			if err != nil {
				return err
			}
			return a.withReports(cmd, func(rs *services.ReportService) error {
				sum, err := rs.Summary(cmd.Context(), id, p, sf.year, sf.month)
				if err != nil {
					return err
				}
				if sf.asJSON {
					return writeJSON(cmd, sum)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Income\t%s\n", sum.Income.StringFixed(2))
				fmt.Fprintf(w, "Expense\t%s\n", sum.Expense.StringFixed(2))
				fmt.Fprintf(w, "Balance\t%s\n", sum.Balance.StringFixed(2))
				fmt.Fprintf(w, "Transactions\t%d\n", sum.Count)
				return w.Flush()
			})
		},
	}
	sf.register(summary)

	var df reportFlags
	daily := &cobra.Command{
		Use:   "daily",
		Short: "Per-day totals of a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _, err := df.resolve()
			if err != nil {
				return err
			}
			return a.withReports(cmd, func(rs *services.ReportService) error {
				days, err := rs.Daily(cmd.Context(), id, df.year, df.month)
				if err != nil {
					return err
				}
				if df.asJSON {
					return writeJSON(cmd, days)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "DATE\tINCOME\tEXPENSE\tNET")
				for _, d := range days {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Date, d.Income.StringFixed(2), d.Expense.StringFixed(2), d.Net.StringFixed(2))
				}
				return w.Flush()
			})
		},
	}
	df.register(daily)

	var cf reportFlags
	categories := &cobra.Command{
		Use:   "categories",
		Short: "Totals per category of one kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, p, err := cf.resolve()
			if err != nil {
				return err
			}
			kind, err := core.ParseKind(cf.kind)
			if err != nil {
				return err
			}
			return a.withReports(cmd, func(rs *services.ReportService) error {
				totals, err := rs.Categories(cmd.Context(), id, kind, p, cf.year, cf.month)
				if err != nil {
					return err
				}
				if cf.asJSON {
					return writeJSON(cmd, totals)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CATEGORY\tTOTAL\tSHARE %")
				for _, c := range totals {
					fmt.Fprintf(w, "%s\t%s\t%s\n", c.Label, c.Total.StringFixed(2), c.Share.StringFixed(2))
				}
				return w.Flush()
			})
		},
	}
	cf.register(categories)
	categories.Flags().StringVar(&cf.kind, "kind", string(core.KindExpense), "income or expense")

	cmd.AddCommand(summary, daily, categories)
	return cmd
}

// withReports opens the store for the duration of fn. Caching is off since
// every invocation runs a single query.
func (a *app) withReports(cmd *cobra.Command, fn func(*services.ReportService) error) error {
	store, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(services.NewReportService(store, nil, a.logger))
}

func seedCategoriesCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "seed-categories",
		Short: "Create the default categories for a user",
		Long:  `Create the default income and expense categories a user does not have yet. Running it twice is harmless.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := userid.Normalize(user)
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			ledger := services.NewLedgerService(store, nil, nil, a.logger)
			created, err := ledger.SeedDefaultCategories(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d categories for %s\n", len(created), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user identity (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
