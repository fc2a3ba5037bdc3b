package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/tankfinder/internal/logger"
)

var daemonWatch bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled index and rollup passes",
	Long: `Runs the scheduler in the foreground: a full index every
scheduler.index_interval and a rollup repair every
scheduler.rollup_interval. With --watch, changed jobs are also
re-indexed as they change. Runs until interrupted.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonWatch, "watch", false, "also re-index jobs as their folders change")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return notConfigured("scheduler")
	}
	if daemonWatch && (watcher == nil || indexService == nil) {
		return notConfigured("watch")
	}

	cmd.Println("Daemon running. Press Ctrl+C to stop.")

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		logger.Info("Scheduler started")
		err := scheduler.Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		return scheduler.Stop()
	})
	if daemonWatch {
		g.Go(func() error {
			return watchLoop(ctx, cmd)
		})
	}

	return g.Wait()
}
