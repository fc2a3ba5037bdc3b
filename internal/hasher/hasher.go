// Package hasher computes the 16 hex character fingerprints used to key
// files and full-text entries.
package hasher

import (
	"crypto/sha1" //nolint:gosec // path fingerprints are identifiers, not security
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

// Size is the fingerprint length in hex characters.
const Size = 16

// Ensure Hasher implements the interface.
var _ driven.Hasher = (*Hasher)(nil)

// Hasher fingerprints file content and paths.
type Hasher struct{}

// New creates a hasher.
func New() *Hasher {
	return &Hasher{}
}

// Fingerprint streams r through SHA-256 and returns the first 16 hex chars.
func (h *Hasher) Fingerprint(r io.Reader) (string, error) {
	sum := sha256.New()
	if _, err := io.Copy(sum, r); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(sum.Sum(nil))[:Size], nil
}

// PathFingerprint fingerprints a full path for files whose content was
// not read. Case is ignored so the same file seen through differently
// cased paths keeps one fingerprint.
func (h *Hasher) PathFingerprint(path string) string {
	sum := sha1.Sum([]byte(strings.ToLower(path))) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])[:Size]
}
