package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

func TestIndexCmd_Flags(t *testing.T) {
	for _, name := range []string{"rebuild-fts", "years", "year-min", "year-max", "dry-run", "no-delete", "limit", "job", "json"} {
		assert.NotNil(t, indexCmd.Flags().Lookup(name), name)
	}
}

func TestIndexCmd_PassesOptions(t *testing.T) {
	ts := setupTestServices(t)

	_, err := runCLI(t, "index", "--years", "2018-2022", "--rebuild-fts", "--dry-run",
		"--no-delete", "--limit", "100", "--job", "101-23", "--job", "092-25")
	require.NoError(t, err)

	opts := ts.index.opts
	assert.Equal(t, domain.YearRange{Min: 2018, Max: 2022}, opts.Years)
	assert.True(t, opts.RebuildFullText)
	assert.True(t, opts.DryRun)
	assert.True(t, opts.NoDelete)
	assert.Equal(t, 100, opts.Limit)
	assert.Equal(t, []string{"101-23", "092-25"}, opts.JobIDs)
}

func TestIndexCmd_YearBounds(t *testing.T) {
	ts := setupTestServices(t)

	_, err := runCLI(t, "index", "--year-min", "2020")
	require.NoError(t, err)
	assert.Equal(t, domain.YearRange{Min: 2020}, ts.index.opts.Years)
}

func TestIndexCmd_InvalidYears(t *testing.T) {
	setupTestServices(t)

	tests := [][]string{
		{"index", "--years", "2022-2018"},
		{"index", "--year-min", "2022", "--year-max", "2018"},
		{"index", "--years", "2020", "--year-min", "2019"},
		{"index", "--years", "soon"},
	}
	for _, args := range tests {
		_, err := runCLI(t, args...)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%v", args)
	}
}

func TestIndexCmd_PrintsReport(t *testing.T) {
	ts := setupTestServices(t)
	ts.index.report = &domain.CrawlReport{
		RunID:     "run-42",
		Jobs:      3,
		OutOfYear: 2,
		Totals: domain.JobReport{
			Scanned: 1200, Created: 10, Updated: 2, Unchanged: 1188, Deleted: 1,
			Errors: 4, PathTooLong: 1, FullTextAdded: 7, IgnoredByRules: 9,
		},
		Duration: 1500 * time.Millisecond,
	}

	out, err := runCLI(t, "index")
	require.NoError(t, err)

	assert.Contains(t, out, "Index complete")
	assert.Contains(t, out, "(2 outside year range)")
	assert.Contains(t, out, "Scanned:       1,200")
	assert.Contains(t, out, "Full-text new: 7")
	assert.Contains(t, out, "Run run-42")
}

func TestIndexCmd_DryRunTitle(t *testing.T) {
	ts := setupTestServices(t)
	ts.index.report = &domain.CrawlReport{DryRun: true}

	out, err := runCLI(t, "index", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run complete")
}

func TestIndexCmd_JSON(t *testing.T) {
	ts := setupTestServices(t)
	ts.index.report = &domain.CrawlReport{RunID: "run-7", Jobs: 1, Totals: domain.JobReport{Scanned: 5}}

	out, err := runCLI(t, "index", "--json")
	require.NoError(t, err)

	var got domain.CrawlReport
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "run-7", got.RunID)
	assert.Equal(t, 5, got.Totals.Scanned)
}

func TestIndexCmd_FailedJobs(t *testing.T) {
	ts := setupTestServices(t)
	ts.index.report = &domain.CrawlReport{Jobs: 4, JobsFailed: 1}

	out, err := runCLI(t, "index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 4 jobs failed")
	assert.Contains(t, out, "(1 failed)")
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestIndexCmd_CancelledPrintsPartialReport(t *testing.T) {
	ts := setupTestServices(t)
	ts.index.report = &domain.CrawlReport{Jobs: 2, Cancelled: true}
	ts.index.err = context.Canceled

	out, err := runCLI(t, "index")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, out, "Index cancelled")
}

func TestIndexCmd_InProgress(t *testing.T) {
	ts := setupTestServices(t)
	ts.index.report = nil
	ts.index.err = domain.ErrIndexInProgress

	_, err := runCLI(t, "index")
	assert.ErrorIs(t, err, domain.ErrIndexInProgress)
}

func TestIndexCmd_NotConfigured(t *testing.T) {
	setupTestServices(t)
	indexService = nil

	_, err := runCLI(t, "index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index service not configured")
}
