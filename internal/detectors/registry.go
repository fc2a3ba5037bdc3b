package detectors

import (
	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.DetectorRegistry = (*Registry)(nil)

// Registry runs every detector and unions the tags.
type Registry struct {
	detectors []driven.Detector
}

// NewRegistry creates a registry over the given detectors.
func NewRegistry(detectors ...driven.Detector) *Registry {
	return &Registry{detectors: detectors}
}

// Defaults builds the standard detector set with configured rule overrides.
func Defaults(overrides map[string]domain.DetectorRule) *Registry {
	return NewRegistry(
		NewExtensionDetector(MergeRules(DefaultRules(), overrides)),
		NewSignatureDetector(),
		NewOLEDetector(),
	)
}

// Detect returns the union of every detector's tags. A detector that
// panics on a malformed file is skipped.
func (r *Registry) Detect(p *domain.FileSample) domain.TagSet {
	set := domain.NewTagSet()
	for _, d := range r.detectors {
		for _, t := range safeDetect(d, p) {
			set.Add(t)
		}
	}
	return set
}

func safeDetect(d driven.Detector, p *domain.FileSample) (tags []domain.Tag) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Debug("detector %s panicked on %s: %v", d.Name(), p.Name, rec)
			tags = nil
		}
	}()
	return d.Detect(p)
}
