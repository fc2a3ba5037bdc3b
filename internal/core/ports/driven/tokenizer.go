package driven

// Tokenizer normalizes filenames, content and queries the same way.
type Tokenizer interface {
	// Tokens returns normalized tokens in order, duplicates included.
	Tokens(s string) []string

	// Set returns distinct tokens in order of first appearance, at most
	// limit when limit is positive.
	Set(s string, limit int) []string

	// Text returns tokens joined by spaces, cut at maxChars.
	Text(s string, maxChars int) string
}
