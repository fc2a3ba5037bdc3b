package normalisers

import (
	"context"
	"sort"
	"strings"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/normalisers/html"
	"github.com/custodia-labs/tankfinder/internal/normalisers/office"
	"github.com/custodia-labs/tankfinder/internal/normalisers/pdf"
	"github.com/custodia-labs/tankfinder/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry maps extensions to normalisers, highest priority first.
type Registry struct {
	byExt map[string][]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string][]driven.Normaliser)}
}

// Register adds a normaliser for each of its extensions.
func (r *Registry) Register(n driven.Normaliser) {
	for _, ext := range n.SupportedExtensions() {
		ext = strings.ToLower(ext)
		list := append(r.byExt[ext], n)
		sort.SliceStable(list, func(i, j int) bool { return list[i].Priority() > list[j].Priority() })
		r.byExt[ext] = list
	}
}

// Supports reports whether any normaliser handles ext.
func (r *Registry) Supports(ext string) bool {
	return len(r.byExt[strings.ToLower(ext)]) > 0
}

// Extensions returns every registered extension in order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract runs the preferred normaliser for raw.Ext.
func (r *Registry) Extract(ctx context.Context, raw *domain.RawFile) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}
	list := r.byExt[strings.ToLower(raw.Ext)]
	if len(list) == 0 {
		return "", nil
	}
	return list[0].Normalise(ctx, raw)
}

// Defaults builds the registry described by the text settings.
// A disabled text pipeline yields an empty registry.
func Defaults(cfg domain.TextSettings) *Registry {
	r := NewRegistry()
	if !cfg.Enabled {
		return r
	}
	if cfg.IncludePlain {
		r.Register(plaintext.New(cfg.MaxBytes, cfg.CSVMaxLines))
		r.Register(html.New(cfg.MaxBytes))
	}
	if cfg.IncludeOffice {
		r.Register(office.New(cfg.XLSXSheetLimit, cfg.XLSXCellLimit))
	}
	if cfg.IncludePDF {
		r.Register(pdf.New(cfg.PDFMaxPages, cfg.PDFAllowTokens))
	}
	return r
}
