package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Job is a project folder in the catalog.
// Flags and aggregates are derived from the job's live files by the rollup;
// RootPath and the seen timestamps are maintained by the crawler.
type Job struct {
	// ID is the job identifier, e.g. "101-23" or "Q2024" for quote folders.
	ID string `json:"job_id"`

	// RootPath is the absolute folder the job's files are relative to.
	RootPath string `json:"root_path"`

	// Year is the derived job year. Nil when the ID carries no year.
	Year *int `json:"job_year"`

	// RecordedYear is an explicitly recorded year that takes precedence
	// over the one parsed from the ID.
	RecordedYear *int `json:"recorded_year,omitempty"`

	Rollup

	// FirstSeen is when the crawler first created the job.
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen is when the crawler last visited the job.
	LastSeen time.Time `json:"last_seen"`
}

// JobRoot is a job folder as discovered by the crawler.
type JobRoot struct {
	ID           string
	RootPath     string
	RecordedYear *int
}

// EffectiveYear applies the year precedence to a discovered root.
func (r JobRoot) EffectiveYear() *int {
	return DeriveJobYear(r.ID, r.RecordedYear)
}

var jobYearPattern = regexp.MustCompile(`^\d{3}-(\d{2})$`)

// ParseJobYear extracts the year from a ###-YY job ID.
// Two-digit years of 90 and above are 19YY, everything else 20YY.
func ParseJobYear(jobID string) (int, bool) {
	m := jobYearPattern.FindStringSubmatch(strings.TrimSpace(jobID))
	if m == nil {
		return 0, false
	}
	yy, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	if yy >= 90 {
		return 1900 + yy, true
	}
	return 2000 + yy, true
}

// DeriveJobYear resolves a job's year: the recorded year when present,
// otherwise the year parsed from the ID, otherwise nil.
func DeriveJobYear(jobID string, recorded *int) *int {
	if recorded != nil {
		y := *recorded
		return &y
	}
	if y, ok := ParseJobYear(jobID); ok {
		return &y
	}
	return nil
}

// YearRange is an inclusive year filter. A zero bound is open.
type YearRange struct {
	Min int
	Max int
}

// IsSet reports whether either bound is set.
func (r YearRange) IsSet() bool {
	return r.Min > 0 || r.Max > 0
}

// Validate checks the bounds are ordered.
func (r YearRange) Validate() error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("%w: negative year", ErrInvalidInput)
	}
	if r.Min > 0 && r.Max > 0 && r.Min > r.Max {
		return fmt.Errorf("%w: year range %d-%d is inverted", ErrInvalidInput, r.Min, r.Max)
	}
	return nil
}

// Contains reports whether year falls in the range.
// A nil year only matches an unset range.
func (r YearRange) Contains(year *int) bool {
	if !r.IsSet() {
		return true
	}
	if year == nil {
		return false
	}
	if r.Min > 0 && *year < r.Min {
		return false
	}
	if r.Max > 0 && *year > r.Max {
		return false
	}
	return true
}

// String renders the range as MIN-MAX with open bounds left empty.
func (r YearRange) String() string {
	if !r.IsSet() {
		return ""
	}
	var lo, hi string
	if r.Min > 0 {
		lo = strconv.Itoa(r.Min)
	}
	if r.Max > 0 {
		hi = strconv.Itoa(r.Max)
	}
	return lo + "-" + hi
}

// ParseYearRange parses "2018-2022", "2018-", "-2022" or a single "2020".
func ParseYearRange(s string) (YearRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return YearRange{}, nil
	}
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	var r YearRange
	var err error
	if lo = strings.TrimSpace(lo); lo != "" {
		if r.Min, err = parseYear(lo); err != nil {
			return YearRange{}, err
		}
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		if r.Max, err = parseYear(hi); err != nil {
			return YearRange{}, err
		}
	}
	return r, r.Validate()
}

// YearSet is a union of year ranges, e.g. "2018-2021,2024".
// An empty set matches every year.
type YearSet []YearRange

// IsSet reports whether any range is set.
func (s YearSet) IsSet() bool {
	for _, r := range s {
		if r.IsSet() {
			return true
		}
	}
	return false
}

// Validate checks every range.
func (s YearSet) Validate() error {
	for _, r := range s {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether year falls in any range.
func (s YearSet) Contains(year *int) bool {
	if !s.IsSet() {
		return true
	}
	for _, r := range s {
		if r.IsSet() && r.Contains(year) {
			return true
		}
	}
	return false
}

// String renders the ranges comma separated.
func (s YearSet) String() string {
	parts := make([]string, 0, len(s))
	for _, r := range s {
		if r.IsSet() {
			parts = append(parts, r.String())
		}
	}
	return strings.Join(parts, ",")
}

// ParseYearSet parses comma separated year ranges. Empty chunks are
// skipped.
func ParseYearSet(s string) (YearSet, error) {
	var out YearSet
	for _, chunk := range strings.Split(s, ",") {
		r, err := ParseYearRange(chunk)
		if err != nil {
			return nil, err
		}
		if r.IsSet() {
			out = append(out, r)
		}
	}
	return out, nil
}

func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(s)
	if err != nil || y < 1000 || y > 9999 {
		return 0, fmt.Errorf("%w: bad year %q", ErrInvalidInput, s)
	}
	return y, nil
}
