// Package memory provides in-memory implementations of driven ports for tests.
package memory

import (
	"sync"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore is an in-memory implementation of driven.ConfigStore for testing.
type ConfigStore struct {
	mu       sync.RWMutex
	settings *domain.AppSettings
	saves    int

	// LoadErr and SaveErr, when set, are returned by Load and Save.
	LoadErr error
	SaveErr error
}

// NewConfigStore creates a new in-memory config store holding no settings.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{}
}

// Load returns the saved settings, or the defaults if nothing was saved.
func (s *ConfigStore) Load() (domain.AppSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LoadErr != nil {
		return domain.AppSettings{}, s.LoadErr
	}
	if s.settings == nil {
		return domain.DefaultAppSettings(), nil
	}
	return *s.settings, nil
}

// Save stores the settings.
func (s *ConfigStore) Save(settings domain.AppSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.settings = &settings
	s.saves++
	return nil
}

// Path returns a placeholder path.
func (s *ConfigStore) Path() string {
	return ":memory:"
}

// Saves reports how many times Save succeeded.
func (s *ConfigStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
