// Package tokenizer turns filenames and extracted text into search tokens.
//
// Tokens are case folded, stripped of diacritics and split on a configured
// separator set as well as on any rune that is not a letter or digit. The
// same rules are used for filenames, indexed content and queries so that
// terms always compare equal to what was stored.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

// Ensure Tokenizer implements the interface.
var _ driven.Tokenizer = (*Tokenizer)(nil)

// Tokenizer splits text into normalized tokens. It is safe for concurrent use.
type Tokenizer struct {
	separators map[rune]struct{}
	sepString  string
}

// New creates a tokenizer that splits on separators in addition to
// whitespace and punctuation. Empty separators uses the default set.
func New(separators string) *Tokenizer {
	if separators == "" {
		separators = domain.DefaultSeparators
	}
	t := &Tokenizer{
		separators: make(map[rune]struct{}, len(separators)),
		sepString:  separators,
	}
	for _, r := range separators {
		t.separators[r] = struct{}{}
	}
	return t
}

// Separators returns the configured separator set.
func (t *Tokenizer) Separators() string {
	return t.sepString
}

// Normalize case folds s and removes combining marks.
func (t *Tokenizer) Normalize(s string) string {
	// Transformers carry state, so each call builds its own chain.
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(chain, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

// Tokens returns the tokens of s in order of appearance, duplicates included.
func (t *Tokenizer) Tokens(s string) []string {
	s = t.Normalize(s)
	return strings.FieldsFunc(s, t.isSeparator)
}

// Set returns the distinct tokens of s in order of first appearance,
// truncated to limit when limit is positive.
func (t *Tokenizer) Set(s string, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range t.Tokens(s) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Text returns the tokens of s joined by single spaces, cut at maxChars
// on a token boundary when maxChars is positive.
func (t *Tokenizer) Text(s string, maxChars int) string {
	var b strings.Builder
	for _, tok := range t.Tokens(s) {
		if maxChars > 0 && b.Len()+len(tok)+1 > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
	}
	return b.String()
}

func (t *Tokenizer) isSeparator(r rune) bool {
	if _, ok := t.separators[r]; ok {
		return true
	}
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}
