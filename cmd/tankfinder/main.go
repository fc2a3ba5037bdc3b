// Command tankfinder catalogs engineering job folders and searches them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	configfile "github.com/custodia-labs/tankfinder/internal/adapters/driven/config/file"
	"github.com/custodia-labs/tankfinder/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/tankfinder/internal/adapters/driving/cli"
	"github.com/custodia-labs/tankfinder/internal/connectors/filesystem"
	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driving"
	"github.com/custodia-labs/tankfinder/internal/core/services"
	"github.com/custodia-labs/tankfinder/internal/detectors"
	"github.com/custodia-labs/tankfinder/internal/hasher"
	"github.com/custodia-labs/tankfinder/internal/normalisers"
	"github.com/custodia-labs/tankfinder/internal/tokenizer"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cli.SetVersion(version)
	cli.SetApp(cli.App{
		Settings: openSettings,
		Services: buildServices,
	})

	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}

// openSettings returns a settings service over the TOML file at path.
func openSettings(path string) (driving.SettingsService, error) {
	store, err := configfile.NewConfigStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	return services.NewSettingsService(store), nil
}

// buildServices wires the catalog, crawler and query services.
func buildServices(_ cli.Options, s *domain.AppSettings) (*cli.Services, error) {
	walker, err := filesystem.NewWalker(s.Crawl, s.Ignore)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(s.Database.Path, sqlite.WithSeparators(s.Tokenizer.Separators))
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	tok := tokenizer.New(s.Tokenizer.Separators)
	indexer := services.NewIndexer(
		walker,
		store,
		store.FullTextIndex(),
		hasher.New(),
		detectors.Defaults(s.Detectors),
		normalisers.Defaults(s.Text),
		tok,
		services.IndexerConfigFromSettings(*s),
	)
	rollups := services.NewRollupService(store)

	return &cli.Services{
		Index:   indexer,
		Search:  services.NewSearchService(store, tok),
		Rollup:  rollups,
		Catalog: services.NewCatalogService(store),
		Scheduler: services.NewScheduler(
			domain.SchedulerConfigFromSettings(s.Scheduler),
			store.SchedulerStore(),
			indexer,
			rollups,
		),
		Watcher: filesystem.NewWatcher(walker, s.Crawl.WatchDebounce.Std()),
		Close:   store.Close,
	}, nil
}
