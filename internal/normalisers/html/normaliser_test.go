package html

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

func rawHTML(content string) *domain.RawFile {
	return &domain.RawFile{
		Path:    "/jobs/101-23/report.html",
		RelPath: "report.html",
		Ext:     ".html",
		Size:    int64(len(content)),
		Content: strings.NewReader(content),
	}
}

func TestSupportedExtensions(t *testing.T) {
	assert.Equal(t, []string{".html", ".htm"}, New(0).SupportedExtensions())
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New(0).Priority())
}

func TestNormalise_Success(t *testing.T) {
	content := `<html><head><title>Tank &amp; Vessel Report</title></head>
<body><h1>Design basis</h1><p>Wind load per <b>ASCE 7</b>.</p><script>x()</script></body></html>`

	got, err := New(0).Normalise(context.Background(), rawHTML(content))
	require.NoError(t, err)
	assert.Equal(t, "Tank & Vessel Report\nDesign basis\nWind load per ASCE 7.", got)
}

func TestNormalise_NoTitle(t *testing.T) {
	got, err := New(0).Normalise(context.Background(), rawHTML("<p>Only body</p>"))
	require.NoError(t, err)
	assert.Equal(t, "Only body", got)
}

func TestNormalise_ByteCap(t *testing.T) {
	got, err := New(12).Normalise(context.Background(), rawHTML("<p>Hello</p><p>World</p>"))
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
}

func TestNormalise_NilFile(t *testing.T) {
	_, err := New(0).Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "nested tags",
			input:    "<div><p><strong>Bold</strong> text</p></div>",
			expected: "Bold text",
		},
		{
			name:     "script and style removed",
			input:    "<style>.a{}</style><p>Before</p><script>alert('x');</script><p>After</p>",
			expected: "Before\nAfter",
		},
		{
			name:     "head removed",
			input:    "<head><title>Title</title></head><body>Content</body>",
			expected: "Content",
		},
		{
			name:     "br to newline",
			input:    "Line 1<br>Line 2<br/>Line 3",
			expected: "Line 1\nLine 2\nLine 3",
		},
		{
			name:     "entities decoded",
			input:    "<p>&lt;tag&gt; &amp; &quot;quotes&quot;</p>",
			expected: "<tag> & \"quotes\"",
		},
		{
			name:     "comments removed",
			input:    "<p>Before</p><!-- comment --><p>After</p>",
			expected: "Before\nAfter",
		},
		{
			name:     "table cells",
			input:    "<table><tr><td>Cell 1</td><td>Cell 2</td></tr></table>",
			expected: "Cell 1Cell 2",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stripHTML(tc.input))
		})
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
