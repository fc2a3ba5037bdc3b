package domain

import (
	"fmt"
	"strings"
)

// JobQueryPrefix selects job mode, e.g. "job:101-23".
const JobQueryPrefix = "job:"

// SearchMode is how a query string was interpreted.
type SearchMode string

// Search modes.
const (
	SearchModeJob    SearchMode = "job"
	SearchModeTerm   SearchMode = "term"
	SearchModeBrowse SearchMode = "browse"
)

// SearchRequest describes a search.
type SearchRequest struct {
	// Query is either "job:<id>" or free text. An empty query lists
	// the jobs that pass the filters.
	Query string

	// JobID scopes a term search to one job.
	JobID string

	// Years restricts term searches by job year.
	Years YearSet

	// Flags requires every listed job flag to be set.
	Flags []Flag

	// ContentOnly matches terms against extracted content only.
	ContentOnly bool

	// Near requires the terms to appear close together in content.
	// Filename matches still need every term.
	Near bool

	// IncludeFiles attaches matching files to each job hit.
	IncludeFiles bool

	// Limit caps the number of jobs returned. Zero means the default.
	Limit int

	// FileLimit caps the files listed per job. Zero means the default.
	FileLimit int
}

// HasFilters reports whether any job filter is set.
func (r SearchRequest) HasFilters() bool {
	return strings.TrimSpace(r.JobID) != "" || r.Years.IsSet() || len(r.Flags) > 0
}

// Search defaults.
const (
	DefaultJobLimit  = 50
	DefaultFileLimit = 50
)

// ParsedQuery is a SearchRequest's query after parsing.
type ParsedQuery struct {
	Mode  SearchMode
	JobID string
	Text  string
}

// ParseQuery splits job mode from term mode. An empty query is browse
// mode.
func ParseQuery(q string) (ParsedQuery, error) {
	q = strings.TrimSpace(q)
	if len(q) >= len(JobQueryPrefix) && strings.EqualFold(q[:len(JobQueryPrefix)], JobQueryPrefix) {
		id := strings.TrimSpace(q[len(JobQueryPrefix):])
		if id == "" || strings.ContainsAny(id, " \t") {
			return ParsedQuery{}, fmt.Errorf("%w: bad job id %q", ErrMalformedQuery, id)
		}
		return ParsedQuery{Mode: SearchModeJob, JobID: id}, nil
	}
	if q == "" {
		return ParsedQuery{Mode: SearchModeBrowse}, nil
	}
	return ParsedQuery{Mode: SearchModeTerm, Text: q}, nil
}

// TermQuery is what the store evaluates for term mode.
type TermQuery struct {
	Terms       []string
	JobID       string
	Years       YearSet
	Flags       []Flag
	ContentOnly bool
	Near        bool

	// Hashes restricts matches to these fingerprints when non-nil.
	Hashes []string
}

// JobHit is one job in a search response.
type JobHit struct {
	Job   Job          `json:"job"`
	Hits  int          `json:"hits"`
	Files []FileRecord `json:"files,omitempty"`
}

// SearchResponse is the result of a search.
type SearchResponse struct {
	Mode  SearchMode `json:"mode"`
	Terms []string   `json:"terms,omitempty"`
	Jobs  []JobHit   `json:"jobs"`
}

// ParseFlag maps a flag name to a Flag.
func ParseFlag(s string) (Flag, error) {
	switch f := Flag(strings.ToLower(strings.TrimSpace(s))); f {
	case FlagPDF, FlagCAD, FlagCompress, FlagAME, FlagPhotos, FlagLegacyCalc:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown flag %q", ErrInvalidInput, s)
	}
}
