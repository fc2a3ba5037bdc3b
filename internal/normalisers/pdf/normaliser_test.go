package pdf

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

func TestNew(t *testing.T) {
	normaliser := New(10, []string{" Drawings ", ""})
	require.NotNil(t, normaliser)
	assert.Equal(t, []string{"drawings"}, normaliser.allowTokens)
}

func TestSupportedExtensions(t *testing.T) {
	assert.Equal(t, []string{".pdf"}, New(10, nil).SupportedExtensions())
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New(10, nil).Priority())
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		path   string
		want   bool
	}{
		{"no tokens allows all", nil, "/jobs/101-23/a.pdf", true},
		{"token in folder", []string{"issued"}, "/jobs/101-23/Issued Drawings/a.pdf", true},
		{"token only in file name", []string{"issued"}, "/jobs/101-23/issued.pdf", false},
		{"token missing", []string{"issued"}, "/jobs/101-23/calcs/a.pdf", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(10, tt.tokens).Allowed(tt.path))
		})
	}
}

func TestNormalise_NilFile(t *testing.T) {
	_, err := New(10, nil).Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_NotAllowedSkipsRead(t *testing.T) {
	raw := &domain.RawFile{
		Path:    "/jobs/101-23/calcs/a.pdf",
		Ext:     ".pdf",
		Size:    3,
		Content: strings.NewReader("bad"),
	}
	got, err := New(10, []string{"issued"}).Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalise_Malformed(t *testing.T) {
	data := "%PDF-1.4\nnot really a pdf"
	raw := &domain.RawFile{
		Path:    "/jobs/101-23/a.pdf",
		Ext:     ".pdf",
		Size:    int64(len(data)),
		Content: strings.NewReader(data),
	}
	got, err := New(10, nil).Normalise(context.Background(), raw)
	assert.Error(t, err)
	assert.Empty(t, got)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
