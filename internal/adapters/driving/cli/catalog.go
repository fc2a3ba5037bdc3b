package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

var (
	statusJSON  bool
	historyJSON bool
	runsLimit   int
	runsJSON    bool
)

var backfillYearsCmd = &cobra.Command{
	Use:   "backfill-years",
	Short: "Derive missing job years",
	Long: `Fills in the year of every job that has none, from a recorded year or
the ###-YY suffix of its ID. Years already set are never changed.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runBackfillYears,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog size and the last index run",
	Args:  usageArgs(cobra.NoArgs),
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history <job> <path>",
	Short: "Show every catalog row recorded for a file",
	Long: `Lists the live row and all tombstones for a path within a job,
newest first. Paths are relative to the job folder.`,
	Args: usageArgs(cobra.ExactArgs(2)),
	RunE: runHistory,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent index runs",
	Args:  usageArgs(cobra.NoArgs),
	RunE:  runRuns,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "number of runs to show")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(backfillYearsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(runsCmd)
}

func runBackfillYears(cmd *cobra.Command, _ []string) error {
	if catalogService == nil {
		return notConfigured("catalog")
	}
	n, err := catalogService.BackfillYears(cmd.Context())
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	cmd.Printf("Backfilled %s job years\n", formatCount(int64(n)))
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if catalogService == nil {
		return notConfigured("catalog")
	}
	stats, err := catalogService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	if statusJSON {
		return printJSON(cmd, stats)
	}

	cmd.Println(styles.Title.Render("Catalog"))
	cmd.Printf("  Jobs:          %s (%s without year)\n", formatCount(stats.Jobs), formatCount(stats.JobsWithoutYear))
	cmd.Printf("  Live files:    %s\n", formatCount(stats.LiveFiles))
	cmd.Printf("  Tombstones:    %s\n", formatCount(stats.DeletedFiles))
	cmd.Printf("  Full-text:     %s entries\n", formatCount(stats.FullTextEntries))
	if settingsService != nil {
		cmd.Printf("  Config:        %s\n", settingsService.ConfigPath())
	}

	cmd.Println()
	if stats.LastRun == nil {
		cmd.Println("No index runs recorded.")
	} else {
		printRunLine(cmd, "Last run", stats.LastRun)
	}

	if len(stats.Scheduled) > 0 {
		cmd.Println()
		cmd.Println(styles.Title.Render("Scheduled"))
		for i := range stats.Scheduled {
			printTaskLine(cmd, &stats.Scheduled[i])
		}
	}
	return nil
}

func printTaskLine(cmd *cobra.Command, r *domain.TaskResult) {
	state := styles.Success.Render("ok")
	if !r.Success {
		state = styles.Error.Render("failed: " + r.Error)
	}
	detail := fmt.Sprintf("%d jobs rolled up", r.RolledUp)
	if r.TaskID == domain.TaskIDIndex {
		detail = fmt.Sprintf("%d jobs, %s scanned", r.Jobs, formatCount(int64(r.Scanned)))
		if r.RunID != "" {
			detail += ", run " + r.RunID
		}
	}
	cmd.Printf("  %-14s %s  %s  %s\n", r.TaskID+":", formatAge(r.StartedAt), detail, state)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return notConfigured("catalog")
	}
	rows, err := catalogService.FileHistory(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if historyJSON {
		return printJSON(cmd, rows)
	}
	if len(rows) == 0 {
		cmd.Println("No rows recorded for this path.")
		return nil
	}

	for i := range rows {
		f := &rows[i]
		state := styles.Success.Render("live")
		if f.Deleted {
			state = styles.Muted.Render("deleted " + formatTimestamp(f.DeletedAt))
		}
		cmd.Printf("  #%d  %s  %s  %s  hash %s  first seen %s\n",
			f.ID, state, formatBytes(f.SizeBytes), formatTimestamp(f.MTime), f.Hash16, formatTimestamp(f.FirstSeen))
	}
	return nil
}

func runRuns(cmd *cobra.Command, _ []string) error {
	if catalogService == nil {
		return notConfigured("catalog")
	}
	runs, err := catalogService.Runs(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if runsJSON {
		return printJSON(cmd, runs)
	}
	if len(runs) == 0 {
		cmd.Println("No index runs recorded.")
		return nil
	}
	for i := range runs {
		printRunLine(cmd, formatTimestamp(runs[i].StartedAt), &runs[i])
	}
	return nil
}

func printRunLine(cmd *cobra.Command, label string, r *domain.CrawlReport) {
	state := ""
	switch {
	case r.Cancelled:
		state = styles.Warning.Render(" cancelled")
	case r.JobsFailed > 0:
		state = styles.Error.Render(fmt.Sprintf(" %d jobs failed", r.JobsFailed))
	}
	if r.ScheduledBy != "" {
		state += styles.Muted.Render(" [" + r.ScheduledBy + "]")
	}
	cmd.Printf("  %s: %d jobs, %s scanned, %d created, %d updated, %d deleted, %d errors in %s (%s)%s\n",
		label, r.Jobs, formatCount(int64(r.Totals.Scanned)), r.Totals.Created, r.Totals.Updated,
		r.Totals.Deleted, r.Totals.Errors, r.Duration.Round(time.Second), formatAge(r.StartedAt), state)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
