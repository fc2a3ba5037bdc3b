package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/hasher"
)

func TestIndexerConfigFromSettings(t *testing.T) {
	s := domain.DefaultAppSettings()
	s.Crawl.MaxFilesPerSecond = 20

	cfg := IndexerConfigFromSettings(s)

	assert.Equal(t, s.Crawl.Workers, cfg.Workers)
	assert.Equal(t, s.Crawl.QueueSize, cfg.QueueSize)
	assert.Equal(t, s.Crawl.MaxPathLength, cfg.MaxPathLength)
	assert.Equal(t, 20.0, cfg.MaxFilesPerSecond)
	assert.Equal(t, s.Text.MaxChars, cfg.MaxChars)
	assert.Equal(t, s.Text.MaxFileNameToks, cfg.MaxFileNameTokens)
	assert.True(t, cfg.ExtractText)
}

func TestNewIndexer_Defaults(t *testing.T) {
	i := NewIndexer(nil, nil, nil, nil, nil, nil, nil, IndexerConfig{})

	assert.Equal(t, 4, i.cfg.Workers)
	assert.Equal(t, 64, i.cfg.QueueSize)
	assert.Equal(t, 64, i.cfg.MaxFileNameTokens)
}

func TestIndexer_Index_FirstPass(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)

	report := env.index(t, domain.CrawlOptions{})

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Jobs)
	assert.Zero(t, report.JobsFailed)
	assert.Equal(t, 5, report.Totals.Scanned)
	assert.Equal(t, 5, report.Totals.Created)
	assert.Zero(t, report.Totals.Deleted)
	assert.Equal(t, 1, report.Totals.FullTextAdded, "only notes.txt has extractable text")
	assert.False(t, report.Cancelled)

	live := env.live(t, "092-25")
	require.Len(t, live, 3)
	pdf := live["open_top_tank.pdf"]
	assert.Equal(t, ".pdf", pdf.Ext)
	assert.Equal(t, domain.KindPDF, pdf.Kind)
	assert.Len(t, pdf.Hash16, 16)
	assert.True(t, pdf.DetectorHits.Has(domain.TagPDF))
	assert.Contains(t, pdf.TokensFname, "open")
	assert.Contains(t, pdf.TokensFname, "acme", "the job folder name is tokenized")
	assert.False(t, pdf.FirstSeen.IsZero())
	assert.Contains(t, live, "photos/site.jpg")

	job := env.job(t, "092-25")
	require.NotNil(t, job.Year)
	assert.Equal(t, 2025, *job.Year)
	assert.Equal(t, int64(3), job.FileCountTotal)
	assert.True(t, job.Flags.HasPDF)
	assert.True(t, job.Flags.HasPhotos)
	assert.False(t, job.Flags.HasDWGDXF)

	smith := env.job(t, "101-23")
	assert.True(t, smith.Flags.HasDWGDXF)
	assert.Equal(t, filepath.Join(env.root, "2023", "101-23 Smith Tank Farm"), smith.RootPath)

	runs, err := env.catalog.Runs(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].RunID)
}

func TestIndexer_Index_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)
	env.index(t, domain.CrawlOptions{})

	before, err := env.store.Stats(context.Background())
	require.NoError(t, err)

	report := env.index(t, domain.CrawlOptions{})

	assert.Equal(t, 5, report.Totals.Scanned)
	assert.Equal(t, 5, report.Totals.Unchanged)
	assert.Zero(t, report.Totals.Created)
	assert.Zero(t, report.Totals.Updated)
	assert.Zero(t, report.Totals.Deleted)
	assert.Zero(t, report.Totals.FullTextAdded)

	after, err := env.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before.LiveFiles, after.LiveFiles)
	assert.Equal(t, before.FullTextEntries, after.FullTextEntries)
}

func TestIndexer_Index_DetectsChange(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)
	env.index(t, domain.CrawlOptions{})
	original := env.live(t, "101-23")["calcs/notes.txt"]

	env.write(t, "2023/101-23 Smith Tank Farm/calcs/notes.txt", "Revised settlement report with annular plate")

	report := env.index(t, domain.CrawlOptions{})
	assert.Equal(t, 1, report.Totals.Updated)
	assert.Equal(t, 1, report.Totals.FullTextAdded)

	updated := env.live(t, "101-23")["calcs/notes.txt"]
	assert.Equal(t, original.ID, updated.ID, "an update keeps the row")
	assert.NotEqual(t, original.Hash16, updated.Hash16)
	assert.True(t, original.FirstSeen.Equal(updated.FirstSeen))
}

func TestIndexer_Index_SoftDelete(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)
	env.index(t, domain.CrawlOptions{})

	env.remove(t, "2025/092-25 Acme/open_bottom_tank.pdf")
	report := env.index(t, domain.CrawlOptions{})

	assert.Equal(t, 1, report.Totals.Deleted)
	assert.NotContains(t, env.live(t, "092-25"), "open_bottom_tank.pdf")

	history, err := env.catalog.FileHistory(context.Background(), "092-25", "open_bottom_tank.pdf")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Deleted)
	assert.False(t, history[0].DeletedAt.IsZero())
	assert.Equal(t, int64(2), env.job(t, "092-25").FileCountTotal)

	// A file that comes back gets a new row.
	env.write(t, "2025/092-25 Acme/open_bottom_tank.pdf", "%PDF-1.4 bottom")
	report = env.index(t, domain.CrawlOptions{})
	assert.Equal(t, 1, report.Totals.Created)

	history, err = env.catalog.FileHistory(context.Background(), "092-25", "open_bottom_tank.pdf")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.NotEqual(t, history[0].ID, history[1].ID)
}

func TestIndexer_Index_NoDelete(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)
	env.index(t, domain.CrawlOptions{})

	env.remove(t, "2025/092-25 Acme/open_bottom_tank.pdf")
	report := env.index(t, domain.CrawlOptions{NoDelete: true})

	assert.Zero(t, report.Totals.Deleted)
	assert.Contains(t, env.live(t, "092-25"), "open_bottom_tank.pdf")
}

func TestIndexer_Index_PathLengthBoundary(t *testing.T) {
	const jobDir = "101-23"
	const atLimit = "ok_tank.txt"
	const overLimit = "ok_tank1.txt"

	var jobRoot string
	env := newTestEnv(t, func(s *domain.AppSettings) {
		jobRoot = filepath.Join(s.Crawl.Roots[0], jobDir)
		s.Crawl.MaxPathLength = utf8.RuneCountInString(jobRoot) + 1 + len(atLimit)
	})
	env.write(t, jobDir+"/"+atLimit, "shell thickness at limit")
	env.write(t, jobDir+"/"+overLimit, "shell thickness over limit")

	report := env.index(t, domain.CrawlOptions{})
	assert.Equal(t, 2, report.Totals.Scanned)
	assert.Equal(t, 1, report.Totals.PathTooLong)
	assert.Equal(t, 1, report.Totals.Errors)
	assert.Equal(t, 1, report.Totals.FullTextAdded, "only the file within the limit is read")

	live := env.live(t, "101-23")
	ok := live[atLimit]
	assert.False(t, ok.PathTooLong)
	assert.NotEqual(t, hasher.New().PathFingerprint(filepath.Join(jobRoot, atLimit)), ok.Hash16)

	long := live[overLimit]
	assert.True(t, long.PathTooLong)
	assert.Equal(t, hasher.New().PathFingerprint(filepath.Join(jobRoot, overLimit)), long.Hash16)
	assert.Equal(t, int64(1), env.job(t, "101-23").ErrorsCount)

	// Still findable by name.
	resp, err := env.search.Search(context.Background(), domain.SearchRequest{Query: "tank1", IncludeFiles: true})
	require.NoError(t, err)
	require.Len(t, resp.Jobs, 1)
	require.Len(t, resp.Jobs[0].Files, 1)
	assert.Equal(t, overLimit, resp.Jobs[0].Files[0].RelPath)
}

func TestIndexer_Index_UnreadableFile(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)
	env.walker.set(func(w *testWalker) { w.failOpen = map[string]bool{"notes.txt": true} })

	report := env.index(t, domain.CrawlOptions{})
	assert.Equal(t, 1, report.Totals.Errors)
	assert.Equal(t, 5, report.Totals.Created, "unreadable files are still cataloged")
	assert.Zero(t, report.Totals.FullTextAdded)

	notes := env.live(t, "101-23")["calcs/notes.txt"]
	assert.NotEmpty(t, notes.ReadError)
	assert.Len(t, notes.Hash16, 16)
	assert.Equal(t, int64(1), env.job(t, "101-23").ErrorsCount)

	// The next pass retries the file even though it did not change.
	env.walker.set(func(w *testWalker) { w.failOpen = nil })
	report = env.index(t, domain.CrawlOptions{})
	assert.Equal(t, 1, report.Totals.Updated)
	assert.Equal(t, 1, report.Totals.FullTextAdded)
	assert.Empty(t, env.live(t, "101-23")["calcs/notes.txt"].ReadError)
	assert.Zero(t, env.job(t, "101-23").ErrorsCount)
}

func TestIndexer_Index_UnreadableDirKeepsFiles(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)
	env.index(t, domain.CrawlOptions{})

	env.walker.set(func(w *testWalker) { w.unreadable = "photos" })
	report := env.index(t, domain.CrawlOptions{})

	assert.Zero(t, report.Totals.Deleted)
	assert.Equal(t, 1, report.Totals.Errors)
	assert.Contains(t, env.live(t, "092-25"), "photos/site.jpg")
}

func TestIndexer_Index_DryRun(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)

	report := env.index(t, domain.CrawlOptions{DryRun: true})
	assert.True(t, report.DryRun)
	assert.Equal(t, 5, report.Totals.Created)

	stats, err := env.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Jobs)
	assert.Zero(t, stats.LiveFiles)
	assert.Zero(t, stats.FullTextEntries)
	assert.Nil(t, stats.LastRun, "dry runs are not recorded")
}

func TestIndexer_Index_Limit(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)
	env.index(t, domain.CrawlOptions{})

	env.remove(t, "2025/092-25 Acme/open_bottom_tank.pdf")
	report := env.index(t, domain.CrawlOptions{Limit: 2})

	assert.Equal(t, 2, report.Totals.Scanned)
	assert.Zero(t, report.Totals.Deleted, "a limited pass never deletes")
	assert.Contains(t, env.live(t, "092-25"), "open_bottom_tank.pdf")
}

func TestIndexer_Index_YearFilter(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)

	report := env.index(t, domain.CrawlOptions{Years: domain.YearRange{Min: 2024}})

	assert.Equal(t, 1, report.Jobs)
	assert.Equal(t, 1, report.OutOfYear)
	_, err := env.store.GetJob(context.Background(), "101-23")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexer_Index_JobFilter(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)

	report := env.index(t, domain.CrawlOptions{JobIDs: []string{"101-23", "999-99"}})

	assert.Equal(t, 1, report.Jobs)
	assert.Equal(t, 2, report.Totals.Scanned)
}

func TestIndexer_Index_InvalidOptions(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.indexer.Index(context.Background(), domain.CrawlOptions{Years: domain.YearRange{Min: 2025, Max: 2020}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.indexer.Index(context.Background(), domain.CrawlOptions{Limit: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexer_Index_RebuildFullText(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)
	env.index(t, domain.CrawlOptions{})

	report := env.index(t, domain.CrawlOptions{RebuildFullText: true})

	assert.Equal(t, 1, report.Totals.FullTextAdded)
	assert.Equal(t, 5, report.Totals.Unchanged)

	stats, err := env.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FullTextEntries)
}

func TestIndexer_Index_BackfillsFullTextAfterScopedRebuild(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)
	env.index(t, domain.CrawlOptions{})
	ctx := context.Background()
	settlement := domain.SearchRequest{Query: "settlement", ContentOnly: true}

	resp, err := env.search.Search(ctx, settlement)
	require.NoError(t, err)
	require.Len(t, resp.Jobs, 1)

	// The rebuild empties the whole index but only revisits 2025 jobs.
	env.index(t, domain.CrawlOptions{RebuildFullText: true, Years: domain.YearRange{Min: 2025, Max: 2025}})
	resp, err = env.search.Search(ctx, settlement)
	require.NoError(t, err)
	assert.Empty(t, resp.Jobs)

	report := env.index(t, domain.CrawlOptions{})
	assert.Equal(t, 1, report.Totals.FullTextAdded)
	assert.Equal(t, 5, report.Totals.Unchanged)

	resp, err = env.search.Search(ctx, settlement)
	require.NoError(t, err)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "101-23", resp.Jobs[0].Job.ID)

	report = env.index(t, domain.CrawlOptions{})
	assert.Zero(t, report.Totals.FullTextAdded, "indexed content is not re-read")
}

func TestIndexer_Index_FolderNamesTagFiles(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "2023/101-23 Smith/Codeware Compress/shell_design.out", "design output")
	env.write(t, "2023/101-23 Smith/AME Tank/model.txt", "tank model")
	env.write(t, "2023/101-23 Smith/Drawings/plan.txt", "plan")

	env.index(t, domain.CrawlOptions{})

	live := env.live(t, "101-23")
	assert.True(t, live["Codeware Compress/shell_design.out"].DetectorHits.Has(domain.TagCompress))
	assert.True(t, live["AME Tank/model.txt"].DetectorHits.Has(domain.TagAMETank))
	assert.Empty(t, live["Drawings/plan.txt"].DetectorHits.Sorted())

	job := env.job(t, "101-23")
	assert.True(t, job.Flags.HasCompress)
	assert.True(t, job.Flags.HasAME)
}

func TestIndexer_Index_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.indexer.Index(ctx, domain.CrawlOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexer_Index_InProgress(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)

	gate, entered := make(chan struct{}), make(chan struct{})
	env.walker.set(func(w *testWalker) { w.gate, w.entered = gate, entered })

	done := make(chan error, 1)
	go func() {
		_, err := env.indexer.Index(context.Background(), domain.CrawlOptions{})
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first pass did not start")
	}

	_, err := env.indexer.Index(context.Background(), domain.CrawlOptions{})
	assert.ErrorIs(t, err, domain.ErrIndexInProgress)

	_, err = env.indexer.IndexJob(context.Background(), "101-23")
	assert.ErrorIs(t, err, domain.ErrIndexInProgress)

	env.walker.set(func(w *testWalker) { w.gate = nil })
	close(gate)
	require.NoError(t, <-done)
}

func TestIndexer_IndexJob(t *testing.T) {
	env := newTestEnv(t)
	env.seedTankJobs(t)

	jr, err := env.indexer.IndexJob(context.Background(), "092-25")
	require.NoError(t, err)
	assert.Equal(t, "092-25", jr.JobID)
	assert.Equal(t, 3, jr.Created)

	_, err = env.store.GetJob(context.Background(), "101-23")
	assert.ErrorIs(t, err, domain.ErrNotFound, "other jobs are untouched")

	_, err = env.indexer.IndexJob(context.Background(), "999-99")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.indexer.IndexJob(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexer_FilenameTokens(t *testing.T) {
	env := newTestEnv(t)
	root := domain.JobRoot{ID: "101-23", RootPath: filepath.Join("srv", "101-23 Smith")}

	got := env.indexer.filenameTokens(root, "Drawings/GA/Shell_Plate.dwg")

	assert.Equal(t, "shell plate dwg drawings ga 101 23 smith", strings.Join(got, " "))
}
