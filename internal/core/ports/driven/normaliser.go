package driven

import (
	"context"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

// Normaliser extracts searchable text from one family of file formats.
type Normaliser interface {
	// SupportedExtensions returns the lower-case extensions handled.
	SupportedExtensions() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise returns the file's text. An empty string with no error
	// means the file holds no extractable text.
	Normalise(ctx context.Context, raw *domain.RawFile) (string, error)
}

// NormaliserRegistry picks a normaliser by extension.
type NormaliserRegistry interface {
	// Extract runs the preferred normaliser for raw.Ext. Files with no
	// normaliser yield "".
	Extract(ctx context.Context, raw *domain.RawFile) (string, error)

	// Supports reports whether any normaliser handles ext.
	Supports(ext string) bool
}
