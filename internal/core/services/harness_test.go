package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tankfinder/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/tankfinder/internal/connectors/filesystem"
	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/detectors"
	"github.com/custodia-labs/tankfinder/internal/hasher"
	"github.com/custodia-labs/tankfinder/internal/normalisers"
	"github.com/custodia-labs/tankfinder/internal/tokenizer"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// testEnv wires the real crawl stack over a temporary job root.
type testEnv struct {
	root     string
	store    *sqlite.Store
	walker   *testWalker
	settings domain.AppSettings
	indexer  *Indexer
	search   *SearchService
	rollups  *RollupService
	catalog  *CatalogService
}

func newTestEnv(t *testing.T, modify ...func(*domain.AppSettings)) *testEnv {
	t.Helper()

	root := t.TempDir()
	settings := domain.DefaultAppSettings()
	settings.Crawl.Roots = []string{root}
	settings.Crawl.Workers = 2
	for _, m := range modify {
		m(&settings)
	}

	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "catalog.db"), sqlite.WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	fsWalker, err := filesystem.NewWalker(settings.Crawl, settings.Ignore)
	require.NoError(t, err)
	walker := &testWalker{JobWalker: fsWalker}

	tok := tokenizer.New(settings.Tokenizer.Separators)
	indexer := NewIndexer(
		walker,
		store,
		store.FullTextIndex(),
		hasher.New(),
		detectors.Defaults(settings.Detectors),
		normalisers.Defaults(settings.Text),
		tok,
		IndexerConfigFromSettings(settings),
	)

	return &testEnv{
		root:     root,
		store:    store,
		walker:   walker,
		settings: settings,
		indexer:  indexer,
		search:   NewSearchService(store, tok),
		rollups:  NewRollupService(store),
		catalog:  NewCatalogService(store),
	}
}

// write creates a file beneath the job root, relative to env.root.
func (e *testEnv) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(e.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *testEnv) remove(t *testing.T, rel string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(e.root, filepath.FromSlash(rel))))
}

func (e *testEnv) index(t *testing.T, opts domain.CrawlOptions) *domain.CrawlReport {
	t.Helper()
	report, err := e.indexer.Index(context.Background(), opts)
	require.NoError(t, err)
	require.NotNil(t, report)
	return report
}

func (e *testEnv) live(t *testing.T, jobID string) map[string]domain.FileRecord {
	t.Helper()
	files, err := e.store.LiveFiles(context.Background(), jobID)
	require.NoError(t, err)
	out := make(map[string]domain.FileRecord, len(files))
	for _, f := range files {
		out[f.RelPath] = f
	}
	return out
}

func (e *testEnv) job(t *testing.T, jobID string) *domain.Job {
	t.Helper()
	job, err := e.store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	return job
}

// seedTankJobs lays out two jobs:
//
//	2023/101-23 Smith Tank Farm: closed_tank.dwg, calcs/notes.txt
//	2025/092-25 Acme: open_top_tank.pdf, open_bottom_tank.pdf, photos/site.jpg
func (e *testEnv) seedTankJobs(t *testing.T) {
	t.Helper()
	e.write(t, "2023/101-23 Smith Tank Farm/closed_tank.dwg", "AC1027 drawing")
	e.write(t, "2023/101-23 Smith Tank Farm/calcs/notes.txt", "Foundation settlement report for shell course one")
	e.write(t, "2025/092-25 Acme/open_top_tank.pdf", "%PDF-1.4 top")
	e.write(t, "2025/092-25 Acme/open_bottom_tank.pdf", "%PDF-1.4 bottom")
	e.write(t, "2025/092-25 Acme/photos/site.jpg", "jpeg bytes")
}

// testWalker wraps the filesystem walker with failure injection.
type testWalker struct {
	driven.JobWalker

	mu sync.Mutex
	// failOpen names files whose Open fails.
	failOpen map[string]bool
	// unreadable is a job-relative directory reported as unreadable.
	unreadable string
	// gate, when set, blocks DiscoverJobs until closed; entered is
	// closed once DiscoverJobs is waiting.
	gate    chan struct{}
	entered chan struct{}
}

func (w *testWalker) DiscoverJobs(ctx context.Context) ([]domain.JobRoot, error) {
	w.mu.Lock()
	gate, entered := w.gate, w.entered
	w.mu.Unlock()
	if gate != nil {
		close(entered)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return w.JobWalker.DiscoverJobs(ctx)
}

func (w *testWalker) WalkJob(ctx context.Context, root domain.JobRoot, fn func(domain.FileEntry) error) (int, error) {
	w.mu.Lock()
	dir := w.unreadable
	w.mu.Unlock()
	if dir == "" {
		return w.JobWalker.WalkJob(ctx, root, fn)
	}

	reported := false
	return w.JobWalker.WalkJob(ctx, root, func(e domain.FileEntry) error {
		if !strings.HasPrefix(e.RelPath, dir+"/") {
			return fn(e)
		}
		if reported {
			return nil
		}
		reported = true
		return fn(domain.FileEntry{
			RelPath:  dir,
			FullPath: filepath.Join(root.RootPath, dir),
			Dir:      true,
			Err:      os.ErrPermission,
		})
	})
}

func (w *testWalker) Open(path string) (domain.ContentFile, error) {
	w.mu.Lock()
	fail := w.failOpen[filepath.Base(path)]
	w.mu.Unlock()
	if fail {
		return nil, os.ErrPermission
	}
	return w.JobWalker.Open(path)
}

func (w *testWalker) set(fn func(w *testWalker)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w)
}
