package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"NewsShorts/internal/app"
	"NewsShorts/internal/config"
	"NewsShorts/internal/domain"
	"NewsShorts/internal/logging"
	"NewsShorts/internal/usecase"
)

type cli struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "newsshorts",
		Short: "Turn breaking news into YouTube Shorts",
		Long: `NewsShorts fetches fresh headlines by category or trending keyword,
renders a news card, overlays it on a base clip and uploads the result
as a YouTube Short. Published items are remembered so nothing is
uploaded twice.

Examples:
  newsshorts run
  newsshorts run keywords --region us
  newsshorts schedule
  newsshorts history list --limit 50`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.cfg = config.Load(c.configPath)
			c.logger = logging.NewWithFormat(c.cfg.Logging.Level, c.cfg.Logging.Format, os.Stderr)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $NEWSSHORTS_CONFIG or config.yaml)")

	root.AddCommand(c.runCmd(), c.scheduleCmd(), c.historyCmd())
	return root
}

func (c *cli) runCmd() *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:       "run [all|categories|keywords]",
		Short:     "Run the pipeline once",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"all", "categories", "keywords"},
		RunE: func(cmd *cobra.Command, args []string) error {
			modes, err := c.modes(args, region)
			if err != nil {
				return err
			}
			application, err := app.New(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			reports, err := application.Run(cmd.Context(), modes)
			for _, r := range reports {
				fmt.Fprintln(cmd.OutOrStdout(), usecase.FormatReport(r))
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return runResult(reports, err)
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "two-letter region code (default news.region)")
	return cmd
}

func (c *cli) scheduleCmd() *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:   "schedule [all|categories|keywords]",
		Short: "Run the pipeline on the configured cron schedule",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modes, err := c.modes(args, region)
			if err != nil {
				return err
			}
			application, err := app.New(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Schedule(cmd.Context(), modes)
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "two-letter region code (default news.region)")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or prune the processed-item history",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent history records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := app.New(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			records, err := application.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "no history yet")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROCESSED\tOUTCOME\tVIDEO\tTITLE")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ProcessedAt.Format(time.DateTime), r.Outcome, r.RemoteVideoID, r.Title)
			}
			return w.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "number of records to show")

	var days int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete history older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := app.New(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			n, err := application.Prune(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d records\n", n)
			return nil
		},
	}
	prune.Flags().IntVar(&days, "days", 0, "retention in days (default pipeline.retentionDays)")

	cmd.AddCommand(list, prune)
	return cmd
}

func (c *cli) modes(args []string, region string) ([]domain.Mode, error) {
	selector := ""
	if len(args) > 0 {
		selector = args[0]
	}
	if region == "" {
		region = c.cfg.News.Region
	}
	return domain.ParseModes(selector, region)
}

// runResult maps the reports of a finished run to the command error.
// A fatal abort wins; otherwise any unrecorded item marks the run interrupted.
func runResult(reports []domain.RunReport, err error) error {
	for _, r := range reports {
		if r.Aborted() {
			return fmt.Errorf("%w: %v", errAborted, r.Fatal)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", errInterrupted, err)
	}
	if err != nil {
		return err
	}
	for _, r := range reports {
		if n := r.Count(domain.StatusUnrecorded); n > 0 {
			return fmt.Errorf("%w: run %s left %d items unrecorded", errInterrupted, r.RunID, n)
		}
	}
	return nil
}
