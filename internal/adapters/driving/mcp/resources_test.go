package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

func TestExtractJobID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid job URI",
			uri:      "tankfinder://jobs/101-23",
			expected: "101-23",
		},
		{
			name:     "invalid prefix",
			uri:      "file://jobs/101-23",
			expected: "",
		},
		{
			name:     "nested path",
			uri:      "tankfinder://jobs/101-23/files",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJobID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleStatusResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil catalog service returns empty object", func(t *testing.T) {
		server := newTestServer(t, &mockSearchService{})

		result, err := server.handleStatusResource(ctx, makeReadResourceRequest("tankfinder://status"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "{}", result.Contents[0].Text)
	})

	t.Run("returns stats", func(t *testing.T) {
		catalog := &mockCatalogService{stats: &domain.CatalogStats{Jobs: 12, LiveFiles: 340}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Catalog: catalog})
		require.NoError(t, err)

		result, err := server.handleStatusResource(ctx, makeReadResourceRequest("tankfinder://status"))
		require.NoError(t, err)
		assert.Contains(t, result.Contents[0].Text, `"jobs": 12`)
		assert.Contains(t, result.Contents[0].Text, `"live_files": 340`)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	})

	t.Run("returns error on stats failure", func(t *testing.T) {
		catalog := &mockCatalogService{err: errors.New("database error")}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Catalog: catalog})
		require.NoError(t, err)

		_, err = server.handleStatusResource(ctx, makeReadResourceRequest("tankfinder://status"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading catalog stats")
	})
}

func TestServer_handleJobResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns job", func(t *testing.T) {
		search := &mockSearchService{resp: &domain.SearchResponse{
			Mode: domain.SearchModeJob,
			Jobs: []domain.JobHit{sampleHit()},
		}}
		server := newTestServer(t, search)

		result, err := server.handleJobResource(ctx, makeReadResourceRequest("tankfinder://jobs/101-23"))
		require.NoError(t, err)
		assert.Equal(t, "job:101-23", search.last.Query)
		assert.Contains(t, result.Contents[0].Text, `"job_id": "101-23"`)
		assert.Contains(t, result.Contents[0].Text, "calcs/shell.cw7")
	})

	t.Run("invalid URI returns not found", func(t *testing.T) {
		server := newTestServer(t, &mockSearchService{})
		_, err := server.handleJobResource(ctx, makeReadResourceRequest("tankfinder://invalid/uri"))
		require.Error(t, err)
	})

	t.Run("unknown job returns not found", func(t *testing.T) {
		server := newTestServer(t, &mockSearchService{err: domain.ErrMalformedQuery})
		_, err := server.handleJobResource(ctx, makeReadResourceRequest("tankfinder://jobs/999-99"))
		require.Error(t, err)
	})
}
