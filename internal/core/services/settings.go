package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings, err := s.configStore.Load()
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save validates and persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: nil settings", domain.ErrInvalidInput)
	}
	if err := validateSettings(settings); err != nil {
		return err
	}
	return s.configStore.Save(*settings)
}

// Validate checks the stored settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return validateSettings(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if settings cannot be loaded.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	settings, err := s.Get()
	if err != nil {
		return domain.DefaultSchedulerConfig()
	}
	return domain.SchedulerConfigFromSettings(settings.Scheduler)
}

// ConfigPath returns the configuration file path.
func (s *SettingsService) ConfigPath() string {
	return s.configStore.Path()
}

// validateSettings collects every problem so a bad config file is fixed in
// one pass.
func validateSettings(s *domain.AppSettings) error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidInput}, args...)...))
	}

	if s.Crawl.JobIDPattern != "" {
		if _, err := regexp.Compile(s.Crawl.JobIDPattern); err != nil {
			bad("crawl.job_id_pattern: %v", err)
		}
	}
	if s.Crawl.Workers <= 0 {
		bad("crawl.workers must be positive, got %d", s.Crawl.Workers)
	}
	if s.Crawl.QueueSize <= 0 {
		bad("crawl.queue_size must be positive, got %d", s.Crawl.QueueSize)
	}
	if s.Crawl.MaxPathLength <= 0 {
		bad("crawl.max_path_length must be positive, got %d", s.Crawl.MaxPathLength)
	}
	if s.Crawl.MaxFilesPerSecond < 0 {
		bad("crawl.max_files_per_second cannot be negative")
	}
	if s.Crawl.WatchDebounce < 0 {
		bad("crawl.watch_debounce cannot be negative")
	}
	for _, root := range s.Crawl.Roots {
		if strings.TrimSpace(root) == "" {
			bad("crawl.roots contains an empty path")
		}
	}
	if s.Text.MaxChars < 0 || s.Text.MaxBytes < 0 {
		bad("text limits cannot be negative")
	}
	if s.Search.JobLimit < 0 || s.Search.FileLimit < 0 {
		bad("search limits cannot be negative")
	}
	for name, rule := range s.Detectors {
		if domain.ParseTag(name) == "" {
			bad("detectors: empty tag name")
		}
		for _, ext := range rule.ExtAny {
			if !strings.HasPrefix(ext, ".") {
				bad("detectors.%s.ext_any: %q must start with a dot", name, ext)
			}
		}
	}
	if s.Scheduler.IndexInterval < 0 || s.Scheduler.RollupInterval < 0 {
		bad("scheduler intervals cannot be negative")
	}
	return errors.Join(errs...)
}
