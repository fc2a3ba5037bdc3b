package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

var (
	indexRebuildFTS bool
	indexYears      string
	indexYearMin    int
	indexYearMax    int
	indexDryRun     bool
	indexNoDelete   bool
	indexLimit      int
	indexJobs       []string
	indexJSON       bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Crawl job folders into the catalog",
	Long: `Walks the configured roots, fingerprints and classifies every file
and brings the catalog in line with what is on disk. Each job is written
in a single transaction together with its full-text entries and rollup.

Files that disappeared are tombstoned, never removed. Partial passes
(--limit, --no-delete) never tombstone.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runIndex,
}

func init() {
	f := indexCmd.Flags()
	f.BoolVar(&indexRebuildFTS, "rebuild-fts", false, "drop the full-text index and re-read every file")
	f.StringVar(&indexYears, "years", "", "job year range, e.g. 2018-2022")
	f.IntVar(&indexYearMin, "year-min", 0, "lowest job year to visit")
	f.IntVar(&indexYearMax, "year-max", 0, "highest job year to visit")
	f.BoolVar(&indexDryRun, "dry-run", false, "walk and classify without writing")
	f.BoolVar(&indexNoDelete, "no-delete", false, "do not tombstone missing files")
	f.IntVar(&indexLimit, "limit", 0, "stop after this many files (partial pass)")
	f.StringArrayVar(&indexJobs, "job", nil, "only index this job (repeatable)")
	f.BoolVar(&indexJSON, "json", false, "output the run report as JSON")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return notConfigured("index")
	}

	years, err := yearRange(indexYears, indexYearMin, indexYearMax)
	if err != nil {
		return err
	}

	report, err := indexService.Index(cmd.Context(), domain.CrawlOptions{
		Years:           years,
		JobIDs:          indexJobs,
		RebuildFullText: indexRebuildFTS,
		DryRun:          indexDryRun,
		NoDelete:        indexNoDelete,
		Limit:           indexLimit,
	})
	if report != nil {
		if indexJSON {
			if perr := printJSON(cmd, report); perr != nil {
				return perr
			}
		} else {
			printCrawlReport(cmd, report)
		}
	}
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	if report.JobsFailed > 0 {
		return fmt.Errorf("%d of %d jobs failed", report.JobsFailed, report.Jobs)
	}
	return nil
}

// yearRange combines --years with --year-min/--year-max.
func yearRange(text string, lo, hi int) (domain.YearRange, error) {
	if text != "" {
		if lo != 0 || hi != 0 {
			return domain.YearRange{}, fmt.Errorf("%w: use --years or --year-min/--year-max, not both", domain.ErrInvalidInput)
		}
		return domain.ParseYearRange(text)
	}
	r := domain.YearRange{Min: lo, Max: hi}
	return r, r.Validate()
}

func printCrawlReport(cmd *cobra.Command, r *domain.CrawlReport) {
	title := "Index complete"
	switch {
	case r.Cancelled:
		title = "Index cancelled"
	case r.DryRun:
		title = "Dry run complete"
	}
	cmd.Println(styles.Title.Render(title))
	cmd.Printf("  Jobs:          %s", formatCount(int64(r.Jobs)))
	if r.JobsFailed > 0 {
		cmd.Print(styles.Error.Render(fmt.Sprintf(" (%d failed)", r.JobsFailed)))
	}
	if r.OutOfYear > 0 {
		cmd.Printf(" (%d outside year range)", r.OutOfYear)
	}
	cmd.Println()

	t := r.Totals
	rows := []struct {
		label string
		n     int
	}{
		{"Scanned", t.Scanned},
		{"Created", t.Created},
		{"Updated", t.Updated},
		{"Unchanged", t.Unchanged},
		{"Deleted", t.Deleted},
		{"Errors", t.Errors},
		{"Path too long", t.PathTooLong},
		{"Full-text new", t.FullTextAdded},
		{"Ignored", t.IgnoredByRules},
	}
	for _, row := range rows {
		cmd.Printf("  %-14s %s\n", row.label+":", formatCount(int64(row.n)))
	}
	cmd.Printf("  Duration:      %s\n", r.Duration.Round(time.Millisecond))
	if r.RunID != "" {
		cmd.Println(styles.Muted.Render("  Run " + r.RunID))
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
