package plaintext

import (
	"bufio"
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text files. Text that is not valid UTF-8 is
// decoded as Windows-1252, which is what older calculation exports use.
type Normaliser struct {
	maxBytes    int64
	csvMaxLines int
}

// New creates a plain text normaliser. maxBytes caps how much of a file is
// read; csvMaxLines caps CSV files by line. Zero disables a cap.
func New(maxBytes int64, csvMaxLines int) *Normaliser {
	return &Normaliser{maxBytes: maxBytes, csvMaxLines: csvMaxLines}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".txt", ".md", ".log", ".xml", ".csv", ".ini", ".json", ".prn"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise returns the file's text.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawFile) (string, error) {
	if raw == nil || raw.Content == nil {
		return "", domain.ErrInvalidInput
	}

	size := raw.Size
	if n.maxBytes > 0 && size > n.maxBytes {
		size = n.maxBytes
	}
	r := io.NewSectionReader(raw.Content, 0, size)

	if raw.Ext == ".csv" && n.csvMaxLines > 0 {
		return readLines(ctx, r, n.csvMaxLines)
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return decode(b), nil
}

// readLines joins the first max lines with spaces.
func readLines(ctx context.Context, r io.Reader, limit int) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() && len(lines) < limit {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		lines = append(lines, strings.TrimSpace(decode(scanner.Bytes())))
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, " "), nil
}

func decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), " ")
	}
	return string(out)
}
