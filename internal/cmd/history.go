package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/tsvalidate/internal/history"
	"github.com/harrison/tsvalidate/internal/models"
)

// NewHistoryCommand creates the 'tsvalidate history' command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past validation runs",
		Long: `Without arguments, list the most recent runs with their pass/fail counts.
With a run ID, show every package of that run and where the failed ones stopped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().Int("limit", 10, "Number of runs to list (0 = all)")

	return cmd
}

// runHistory executes the history command
func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if cfg.HistoryDB == "" {
		return fmt.Errorf("run history is disabled (history_db is empty)")
	}
	if _, err := os.Stat(cfg.HistoryDB); os.IsNotExist(err) {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	store, err := history.NewStore(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if len(args) == 1 {
		return showRun(ctx, out, store, args[0])
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}
	displayRuns(out, runs)
	return nil
}

func displayRuns(out io.Writer, runs []models.RunRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "RUN ID\tSTARTED\tDURATION\tTOTAL\tPASSED\tFAILED\tCONCURRENCY")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Duration.Round(time.Second),
			r.Total, r.Passed, r.Failed, r.Concurrency)
	}
}

func showRun(ctx context.Context, out io.Writer, store *history.Store, id string) error {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	results, err := store.PackageResults(ctx, id)
	if err != nil {
		return fmt.Errorf("get package results: %w", err)
	}

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	bold.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "Started:     %s\n", run.StartedAt.Local().Format(time.RFC1123))
	fmt.Fprintf(out, "Duration:    %s\n", run.Duration.Round(time.Second))
	fmt.Fprintf(out, "Concurrency: %d\n", run.Concurrency)
	fmt.Fprintf(out, "Total %d, passed %d, failed %d\n\n", run.Total, run.Passed, run.Failed)

	for _, r := range results {
		if r.Passed {
			fmt.Fprintf(out, "  %s %s\n", green.Sprint("PASS"), r.Package)
			continue
		}
		fmt.Fprintf(out, "  %s %s (%s)", red.Sprint("FAIL"), r.Package, r.FailedStep)
		if r.Sandbox != "" {
			fmt.Fprintf(out, " sandbox: %s", r.Sandbox)
		}
		fmt.Fprintln(out)
	}
	return nil
}
