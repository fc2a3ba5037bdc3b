package driving

import "github.com/custodia-labs/tankfinder/internal/core/domain"

// SettingsService reads and writes application settings.
type SettingsService interface {
	// Get returns the current settings, defaults applied.
	Get() (*domain.AppSettings, error)

	// Save validates and persists settings.
	Save(settings *domain.AppSettings) error

	// Validate checks the stored settings.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// GetSchedulerConfig returns the daemon's task configuration.
	GetSchedulerConfig() domain.SchedulerConfig

	// ConfigPath returns where settings are stored.
	ConfigPath() string
}
