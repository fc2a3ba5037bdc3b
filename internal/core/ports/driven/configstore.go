package driven

import "github.com/custodia-labs/tankfinder/internal/core/domain"

// ConfigStore provides access to application configuration.
// Implementations handle persistence (e.g., TOML files) and defaults.
type ConfigStore interface {
	// Load reads settings from storage, applying defaults for missing keys.
	// A missing file yields the defaults.
	Load() (domain.AppSettings, error)

	// Save persists settings to storage.
	Save(settings domain.AppSettings) error

	// Path returns the configuration file path.
	Path() string
}
