// Package cli provides the tankfinder command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driving"
	"github.com/custodia-labs/tankfinder/internal/logger"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Command annotations controlling how much is set up before RunE.
const (
	annotationSetup = "tankfinder/setup"
	setupNone       = "none"
	setupSettings   = "settings"
)

var version = "dev"

// Services injected by SetServices or the App hooks.
var (
	settingsService driving.SettingsService
	indexService    driving.IndexService
	searchService   driving.SearchService
	rollupService   driving.RollupService
	catalogService  driving.CatalogService
	scheduler       driving.Scheduler
	watcher         driven.Watcher
)

// Services are the ports the commands drive.
type Services struct {
	Index     driving.IndexService
	Search    driving.SearchService
	Rollup    driving.RollupService
	Catalog   driving.CatalogService
	Scheduler driving.Scheduler
	Watcher   driven.Watcher

	// Close releases whatever the services hold open.
	Close func() error
}

// Options are the persistent flags.
type Options struct {
	ConfigPath string
	DBPath     string
	LogFile    string
	Verbose    bool
}

// App builds services lazily so that commands such as version never
// touch the catalog.
type App struct {
	// Settings opens the settings service for a config path.
	Settings func(configPath string) (driving.SettingsService, error)

	// Services builds the catalog services from loaded settings.
	Services func(opts Options, settings *domain.AppSettings) (*Services, error)
}

var (
	app      App
	opts     Options
	cleanups []func() error
)

var rootCmd = &cobra.Command{
	Use:   "tankfinder",
	Short: "Catalog and search engineering job folders",
	Long: `TankFinder crawls job folders on the file server into a local catalog,
classifies the deliverables it finds and answers "which jobs contain X"
from the catalog alone.

Examples:
  tankfinder index --years 2018-2022
  tankfinder search open top tank --compress
  tankfinder search job:101-23 --files`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.tankfinder/config.toml)")
	flags.StringVar(&opts.DBPath, "db", "", "catalog database (overrides database.path)")
	flags.StringVar(&opts.LogFile, "log-file", "", "append log lines to this file")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "print progress and debug output")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	})
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	version = v
}

// SetApp installs the hooks used to build services before each command.
func SetApp(a App) {
	app = a
}

// SetServices injects services directly, bypassing App.Services.
func SetServices(settings driving.SettingsService, s *Services) {
	settingsService = settings
	if s == nil {
		return
	}
	indexService = s.Index
	searchService = s.Search
	rollupService = s.Rollup
	catalogService = s.Catalog
	scheduler = s.Scheduler
	watcher = s.Watcher
	if s.Close != nil {
		cleanups = append(cleanups, s.Close)
	}
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	// cmd.Print* defaults to stderr; results belong on stdout.
	rootCmd.SetOut(os.Stdout)
	err := rootCmd.ExecuteContext(ctx)
	if cerr := teardown(); cerr != nil {
		logger.Warn("Cleanup failed: %v", cerr)
	}
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
	}
	return ExitCode(err)
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrMalformedQuery), errors.Is(err, domain.ErrInvalidInput):
		return ExitUsage
	default:
		return ExitFailure
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(opts.Verbose)

	level := annotation(cmd)
	if level == setupNone {
		return nil
	}

	if app.Settings != nil {
		s, err := app.Settings(opts.ConfigPath)
		if err != nil {
			return err
		}
		settingsService = s
	}
	if level == setupSettings || settingsService == nil {
		return nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return err
	}
	if opts.DBPath != "" {
		settings.Database.Path = opts.DBPath
	}

	logFile := opts.LogFile
	if logFile == "" {
		logFile = settings.LogFile
	}
	if logFile != "" {
		closeLog, err := logger.OpenFile(logFile)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, closeLog)
	}
	logger.Debug("Config: %s", settingsService.ConfigPath())

	if app.Services == nil {
		return nil
	}
	services, err := app.Services(opts, settings)
	if err != nil {
		return err
	}
	SetServices(settingsService, services)
	return nil
}

// annotation returns the setup level of cmd or its nearest annotated parent.
func annotation(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if v, ok := c.Annotations[annotationSetup]; ok {
			return v
		}
	}
	return ""
}

// teardown runs cleanups in reverse order.
func teardown() error {
	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	cleanups = nil
	return errors.Join(errs...)
}

func notConfigured(name string) error {
	return fmt.Errorf("%s service not configured", name)
}

// joinArgs turns the remaining arguments into one query string.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// usageArgs wraps a positional argument validator so that its failures
// exit with the usage code.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return nil
	}
}
