package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

// defaultLimit caps results when the caller gives no limit.
const defaultLimit = 10

// SearchInput is the input schema for the search_jobs tool.
type SearchInput struct {
	Query       string   `json:"query,omitempty" jsonschema:"search terms, every term must match a filename or extracted content; leave empty to browse by filters"`
	Years       string   `json:"years,omitempty" jsonschema:"job years such as 2018-2022, 2020, 2018- or 2018-2021,2024"`
	Flags       []string `json:"flags,omitempty" jsonschema:"required job flags: pdf, cad, compress, ame, photos, legacy"`
	JobID       string   `json:"job_id,omitempty" jsonschema:"restrict the search to one job"`
	ContentOnly bool     `json:"content_only,omitempty" jsonschema:"match extracted content only, ignoring filenames"`
	Near        bool     `json:"near,omitempty" jsonschema:"require the terms to appear close together in extracted content"`
	Files       bool     `json:"files,omitempty" jsonschema:"list matching files under each job"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of jobs to return (default 10)"`
}

// SearchOutput is the output schema for the search_jobs tool.
type SearchOutput struct {
	Terms []string    `json:"terms"`
	Jobs  []JobOutput `json:"jobs"`
	Count int         `json:"count"`
}

// JobOutput represents a single job.
type JobOutput struct {
	JobID        string       `json:"job_id"`
	RootPath     string       `json:"root_path"`
	Year         *int         `json:"year,omitempty"`
	Badges       []string     `json:"badges"`
	Completeness float64      `json:"score_completeness"`
	FileCount    int64        `json:"file_count"`
	ByteSize     int64        `json:"byte_size"`
	Errors       int64        `json:"errors"`
	LastModified string       `json:"last_modified,omitempty"`
	Hits         int          `json:"hits,omitempty"`
	Files        []FileOutput `json:"files,omitempty"`
}

// FileOutput represents a cataloged file.
type FileOutput struct {
	Path     string   `json:"path"`
	Kind     string   `json:"kind"`
	Size     int64    `json:"size"`
	Modified string   `json:"modified"`
	Tags     []string `json:"tags,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// JobInput is the input schema for the get_job tool.
type JobInput struct {
	JobID string `json:"job_id" jsonschema:"job identifier such as 101-23"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of files to list (default 50)"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_jobs",
		Description: "Search engineering job folders by filename and document content, or browse them by year, flag or job",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_job",
		Description: "Show a job's flags, totals and live files",
	}, s.handleGetJob)
}

// handleSearch handles the search_jobs tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	years, err := domain.ParseYearSet(input.Years)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	flags := make([]domain.Flag, 0, len(input.Flags))
	for _, name := range input.Flags {
		f, err := domain.ParseFlag(name)
		if err != nil {
			return nil, SearchOutput{}, err
		}
		flags = append(flags, f)
	}

	// Job mode is reserved for get_job.
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(input.Query)), domain.JobQueryPrefix) {
		return nil, SearchOutput{}, fmt.Errorf("%w: use get_job for job lookups", domain.ErrMalformedQuery)
	}

	resp, err := s.ports.Search.Search(ctx, domain.SearchRequest{
		Query:        input.Query,
		JobID:        input.JobID,
		Years:        years,
		Flags:        flags,
		ContentOnly:  input.ContentOnly,
		Near:         input.Near,
		IncludeFiles: input.Files,
		Limit:        limit,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Terms: resp.Terms,
		Jobs:  make([]JobOutput, len(resp.Jobs)),
		Count: len(resp.Jobs),
	}
	for i := range resp.Jobs {
		output.Jobs[i] = toJobOutput(&resp.Jobs[i])
	}

	return nil, output, nil
}

// handleGetJob handles the get_job tool invocation.
func (s *Server) handleGetJob(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input JobInput,
) (*mcp.CallToolResult, JobOutput, error) {
	id := strings.TrimSpace(input.JobID)
	if id == "" {
		return nil, JobOutput{}, fmt.Errorf("%w: job_id is required", domain.ErrInvalidInput)
	}

	resp, err := s.ports.Search.Search(ctx, domain.SearchRequest{
		Query:        domain.JobQueryPrefix + id,
		IncludeFiles: true,
		FileLimit:    input.Limit,
	})
	if err != nil {
		return nil, JobOutput{}, err
	}
	if len(resp.Jobs) == 0 {
		return nil, JobOutput{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}

	return nil, toJobOutput(&resp.Jobs[0]), nil
}

func toJobOutput(hit *domain.JobHit) JobOutput {
	job := &hit.Job
	out := JobOutput{
		JobID:        job.ID,
		RootPath:     job.RootPath,
		Year:         job.Year,
		Badges:       job.Flags.Badges(),
		Completeness: job.ScoreCompleteness,
		FileCount:    job.FileCountTotal,
		ByteSize:     job.ByteSizeTotal,
		Errors:       job.ErrorsCount,
		LastModified: formatTime(job.LastModified),
		Hits:         hit.Hits,
	}
	if out.Badges == nil {
		out.Badges = []string{}
	}
	for i := range hit.Files {
		f := &hit.Files[i]
		fo := FileOutput{
			Path:     f.RelPath,
			Kind:     string(f.Kind),
			Size:     f.SizeBytes,
			Modified: formatTime(f.MTime),
			Error:    f.ReadError,
		}
		for _, t := range f.DetectorHits.Sorted() {
			fo.Tags = append(fo.Tags, t.String())
		}
		if f.PathTooLong {
			fo.Error = domain.ErrPathTooLong.Error()
		}
		out.Files = append(out.Files, fo)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
