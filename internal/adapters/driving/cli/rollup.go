package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rollupJob string

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Recompute job flags and totals",
	Long: `Recomputes every job's flags and aggregates from its live files.
Index passes already do this per job; rollup repairs jobs whose summary
was edited or left stale. The catalog schema is checked first.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runRollup,
}

func init() {
	rollupCmd.Flags().StringVar(&rollupJob, "job", "", "recompute a single job")
	rootCmd.AddCommand(rollupCmd)
}

func runRollup(cmd *cobra.Command, _ []string) error {
	if rollupService == nil {
		return notConfigured("rollup")
	}

	if rollupJob != "" {
		r, err := rollupService.RollupJob(cmd.Context(), rollupJob)
		if err != nil {
			return fmt.Errorf("rollup failed: %w", err)
		}
		cmd.Printf("%s  %s\n", styles.Title.Render("Job "+rollupJob), badges(r.Flags.Badges()))
		cmd.Printf("  Files:         %s (%s)\n", formatCount(r.FileCountTotal), formatBytes(r.ByteSizeTotal))
		cmd.Printf("  Completeness:  %.0f%%\n", r.ScoreCompleteness*100)
		cmd.Printf("  Errors:        %s\n", formatCount(r.ErrorsCount))
		return nil
	}

	n, err := rollupService.RollupAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("rollup failed: %w", err)
	}
	cmd.Printf("Recomputed %s jobs\n", formatCount(int64(n)))
	return nil
}
