// Package pdf extracts the text layer of PDF drawings and reports.
package pdf

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser reads the first pages of a PDF.
type Normaliser struct {
	maxPages    int
	allowTokens []string
}

// New creates a PDF normaliser reading at most maxPages pages. When
// allowTokens is non-empty, only PDFs whose folder path contains one of
// the tokens are read.
func New(maxPages int, allowTokens []string) *Normaliser {
	lower := make([]string, 0, len(allowTokens))
	for _, t := range allowTokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lower = append(lower, t)
		}
	}
	return &Normaliser{maxPages: maxPages, allowTokens: lower}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Allowed reports whether a PDF at path passes the folder allow-list.
func (n *Normaliser) Allowed(path string) bool {
	if len(n.allowTokens) == 0 {
		return true
	}
	dir := strings.ToLower(filepath.Dir(path))
	for _, t := range n.allowTokens {
		if strings.Contains(dir, t) {
			return true
		}
	}
	return false
}

// Normalise returns the text of the first pages. Malformed files make the
// parser panic; that is reported as an error.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawFile) (out string, err error) {
	if raw == nil || raw.Content == nil {
		return "", domain.ErrInvalidInput
	}
	if !n.Allowed(raw.Path) {
		return "", nil
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("parsing pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(raw.Content, raw.Size)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	pages := reader.NumPage()
	if n.maxPages > 0 && pages > n.maxPages {
		pages = n.maxPages
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}
