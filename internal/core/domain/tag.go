package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// Tag is a detector classification attached to a file.
// Unknown tags read from the catalog pass through unchanged.
type Tag string

// Known detector tags. The string values are the persisted form.
const (
	TagPDF        Tag = "pdf"
	TagCAD        Tag = "cad"
	TagCompress   Tag = "compress"
	TagAMETank    Tag = "ametank"
	TagLegacyCalc Tag = "legacy_calc"
	TagPhoto      Tag = "photo"
	TagExcel      Tag = "excel"
	TagWord       Tag = "word"
	TagPowerPoint Tag = "powerpoint"
	TagArchive    Tag = "archive"
)

var knownTags = map[Tag]struct{}{
	TagPDF: {}, TagCAD: {}, TagCompress: {}, TagAMETank: {}, TagLegacyCalc: {},
	TagPhoto: {}, TagExcel: {}, TagWord: {}, TagPowerPoint: {}, TagArchive: {},
}

// ParseTag normalizes persisted text into a Tag.
func ParseTag(s string) Tag {
	return Tag(strings.ToLower(strings.TrimSpace(s)))
}

// IsKnown reports whether the tag is one this build produces.
func (t Tag) IsKnown() bool {
	_, ok := knownTags[t]
	return ok
}

// String returns the persisted form.
func (t Tag) String() string {
	return string(t)
}

// TagSet is an unordered set of tags.
type TagSet map[Tag]struct{}

// NewTagSet builds a set from tags, dropping empty ones.
func NewTagSet(tags ...Tag) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// Add inserts a tag.
func (s TagSet) Add(t Tag) {
	if t == "" {
		return
	}
	s[t] = struct{}{}
}

// Merge adds every tag of other.
func (s TagSet) Merge(other TagSet) {
	for t := range other {
		s.Add(t)
	}
}

// Has reports membership.
func (s TagSet) Has(t Tag) bool {
	_, ok := s[t]
	return ok
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []Tag {
	out := make([]Tag, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String returns the persisted comma-separated form, sorted so that
// identical sets always serialize identically.
func (s TagSet) String() string {
	tags := s.Sorted()
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

// Equal reports whether both sets hold the same tags.
func (s TagSet) Equal(other TagSet) bool {
	if len(s) != len(other) {
		return false
	}
	for t := range s {
		if !other.Has(t) {
			return false
		}
	}
	return true
}

// ParseTagSet reads the persisted form.
func ParseTagSet(s string) TagSet {
	set := make(TagSet)
	for _, part := range strings.Split(s, ",") {
		set.Add(ParseTag(part))
	}
	return set
}

// MarshalJSON encodes the set as a sorted list.
func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a list of tags.
func (s *TagSet) UnmarshalJSON(b []byte) error {
	var tags []Tag
	if err := json.Unmarshal(b, &tags); err != nil {
		return err
	}
	*s = NewTagSet(tags...)
	return nil
}
