package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/logger"
)

var (
	watchInitial bool

	// watchRetryDelay is the wait before re-indexing a job that arrived
	// while another pass held the indexer.
	watchRetryDelay    = 5 * time.Second
	watchRetryAttempts = 12
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-index jobs as their folders change",
	Long: `Watches the configured roots and re-indexes a job once its folder has
been quiet for crawl.watch_debounce. New job folders are picked up as
they are created. Runs until interrupted.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "run a full index before watching")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return notConfigured("index")
	}
	if watcher == nil {
		return notConfigured("watch")
	}

	ctx := cmd.Context()
	if watchInitial {
		report, err := indexService.Index(ctx, domain.CrawlOptions{})
		if report != nil {
			printCrawlReport(cmd, report)
		}
		if err != nil {
			return fmt.Errorf("index failed: %w", err)
		}
	}
	return watchLoop(ctx, cmd)
}

// watchLoop indexes each job the watcher reports until ctx ends.
func watchLoop(ctx context.Context, cmd *cobra.Command) error {
	events, err := watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	cmd.Println("Watching for changes. Press Ctrl+C to stop.")

	for ev := range events {
		logger.Debug("Change in %s: %s", ev.JobID, ev.Path)
		report, err := indexChangedJob(ctx, ev.JobID)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			logger.Error("Indexing %s: %v", ev.JobID, err)
			continue
		}
		cmd.Printf("%s  %s: %d scanned, %d created, %d updated, %d deleted\n",
			time.Now().Format("15:04:05"), styles.Title.Render(report.JobID),
			report.Scanned, report.Created, report.Updated, report.Deleted)
	}
	return nil
}

// indexChangedJob retries while another pass holds the indexer.
func indexChangedJob(ctx context.Context, jobID string) (*domain.JobReport, error) {
	for attempt := 1; ; attempt++ {
		report, err := indexService.IndexJob(ctx, jobID)
		if !errors.Is(err, domain.ErrIndexInProgress) || attempt >= watchRetryAttempts {
			return report, err
		}
		logger.Debug("Index in progress, retrying %s in %s", jobID, watchRetryDelay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(watchRetryDelay):
		}
	}
}
