package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagSet_StringIsSorted(t *testing.T) {
	s := NewTagSet(TagPDF, TagCAD, TagAMETank, TagPDF)
	assert.Equal(t, "ametank,cad,pdf", s.String())
}

func TestParseTagSet(t *testing.T) {
	t.Run("round trips known tags", func(t *testing.T) {
		s := ParseTagSet("pdf,cad")
		assert.True(t, s.Has(TagPDF))
		assert.True(t, s.Has(TagCAD))
		assert.Len(t, s, 2)
	})

	t.Run("unknown tags pass through", func(t *testing.T) {
		s := ParseTagSet("pdf, Future_Tool ,")
		assert.True(t, s.Has(Tag("future_tool")))
		assert.False(t, Tag("future_tool").IsKnown())
		assert.Equal(t, "future_tool,pdf", s.String())
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, ParseTagSet(""))
	})
}

func TestTagSet_Equal(t *testing.T) {
	assert.True(t, NewTagSet(TagPDF, TagCAD).Equal(NewTagSet(TagCAD, TagPDF)))
	assert.False(t, NewTagSet(TagPDF).Equal(NewTagSet(TagCAD)))
	assert.False(t, NewTagSet(TagPDF).Equal(NewTagSet(TagPDF, TagCAD)))
}

func TestTagSet_JSON(t *testing.T) {
	data, err := json.Marshal(NewTagSet(TagPhoto, TagArchive))
	require.NoError(t, err)
	assert.JSONEq(t, `["archive","photo"]`, string(data))

	var s TagSet
	require.NoError(t, json.Unmarshal(data, &s))
	assert.True(t, s.Has(TagPhoto))
}
