package driven

import "github.com/custodia-labs/tankfinder/internal/core/domain"

// Detector classifies a file. Detectors are independent and must not
// depend on each other's output.
type Detector interface {
	// Name identifies the detector in logs.
	Name() string

	// Detect returns the tags that apply. A nil FileSample.Content means only
	// the name is available.
	Detect(p *domain.FileSample) []domain.Tag
}

// DetectorRegistry runs every detector and unions the tags.
type DetectorRegistry interface {
	Detect(p *domain.FileSample) domain.TagSet
}
