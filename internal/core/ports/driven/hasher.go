package driven

import "io"

// Hasher produces 16 hex character fingerprints.
type Hasher interface {
	// Fingerprint hashes content.
	Fingerprint(r io.Reader) (string, error)

	// PathFingerprint hashes a path for files whose content was not read.
	PathFingerprint(path string) string
}
