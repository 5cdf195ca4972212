package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"LandingArticles/internal/app"
	"LandingArticles/internal/domain"
	"LandingArticles/internal/infrastructure/storage"
	"LandingArticles/internal/usecase"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				return a.Serve(cmd.Context())
			})
		},
	}
}

func newFillTodayCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "fill-today",
		Short: "Fill the slot of the current UTC date once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				report := a.Ingestor().FillToday(cmd.Context(), usecase.TriggerCLI)
				if err := printJSON(cmd, report); err != nil {
					return err
				}
				if report.Outcome.Failed() {
					return fmt.Errorf("fill %s: %s", report.Slot, report.Outcome)
				}
				return nil
			})
		},
	}
}

func newBackfillCmd(c *cli) *cobra.Command {
	var (
		days    int
		endDate string
	)
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Fill the last N days, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				end := a.Ingestor().Today()
				if endDate != "" {
					parsed, err := domain.ParseSlotDate(endDate)
					if err != nil {
						return err
					}
					end = parsed
				}
				reports, err := a.Ingestor().BackfillEnding(cmd.Context(), usecase.TriggerCLI, end, days)
				if err != nil {
					return err
				}
				for _, r := range reports {
					fmt.Fprintln(cmd.OutOrStdout(), usecase.Summary(r))
				}
				if aborted(reports) {
					return fmt.Errorf("backfill of %d days aborted", days)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 1, "number of days to fill")
	cmd.Flags().StringVar(&endDate, "end-date", "", "last date to fill, YYYY-MM-DD (default: today UTC)")
	return cmd
}

func aborted(reports []domain.RunReport) bool {
	for _, r := range reports {
		if r.Outcome.Failed() || r.Outcome == domain.OutcomeSkipped {
			return true
		}
	}
	return false
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := storage.Open(cmd.Context(), c.cfg.Database.Driver, c.cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer store.Close()

			applied, err := store.Migrate()
			if err != nil {
				return err
			}
			if applied {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			}
			return nil
		},
	}
}

func newFeedsCmd(c *cli) *cobra.Command {
	feeds := &cobra.Command{
		Use:   "feeds",
		Short: "Manage registered feeds",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered feeds",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				all, err := a.Feeds().List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tACTIVE\tNAME\tURL")
				for _, f := range all {
					fmt.Fprintf(w, "%d\t%t\t%s\t%s\n", f.ID, f.Active, f.Name, f.URL)
				}
				return w.Flush()
			})
		},
	}

	var name string
	add := &cobra.Command{
		Use:   "add <url>",
		Short: "Register a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				feed, err := a.Feeds().Register(cmd.Context(), args[0], name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered feed %d: %s\n", feed.ID, feed.URL)
				return nil
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name (default: feed host)")

	feeds.AddCommand(list, add)
	return feeds
}
