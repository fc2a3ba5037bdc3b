package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	configfile "github.com/custodia-labs/tankfinder/internal/adapters/driven/config/file"
	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/core/services"
)

type mockIndexService struct {
	mu        sync.Mutex
	report    *domain.CrawlReport
	err       error
	opts      domain.CrawlOptions
	jobErrs   []error
	jobCalls  []string
	jobReport domain.JobReport
}

func (m *mockIndexService) Index(_ context.Context, opts domain.CrawlOptions) (*domain.CrawlReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts = opts
	return m.report, m.err
}

func (m *mockIndexService) IndexJob(_ context.Context, jobID string) (*domain.JobReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobCalls = append(m.jobCalls, jobID)
	if len(m.jobErrs) > 0 {
		err := m.jobErrs[0]
		m.jobErrs = m.jobErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	r := m.jobReport
	r.JobID = jobID
	return &r, nil
}

func (m *mockIndexService) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.jobCalls...)
}

type mockSearchService struct {
	resp *domain.SearchResponse
	err  error
	last  domain.SearchRequest
	calls int
}

func (m *mockSearchService) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	m.last = req
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.resp != nil {
		return m.resp, nil
	}
	return &domain.SearchResponse{Mode: domain.SearchModeTerm, Jobs: []domain.JobHit{}}, nil
}

type mockRollupService struct {
	rollup  domain.Rollup
	count   int
	err     error
	lastJob string
}

func (m *mockRollupService) RollupJob(_ context.Context, jobID string) (*domain.Rollup, error) {
	m.lastJob = jobID
	if m.err != nil {
		return nil, m.err
	}
	return &m.rollup, nil
}

func (m *mockRollupService) RollupAll(_ context.Context) (int, error) {
	return m.count, m.err
}

type mockCatalogService struct {
	stats    *domain.CatalogStats
	filled   int
	history  []domain.FileRecord
	runs     []domain.CrawlReport
	err      error
	histArgs []string
	runLimit int
}

func (m *mockCatalogService) Stats(_ context.Context) (*domain.CatalogStats, error) {
	return m.stats, m.err
}

func (m *mockCatalogService) BackfillYears(_ context.Context) (int, error) {
	return m.filled, m.err
}

func (m *mockCatalogService) FileHistory(_ context.Context, jobID, relPath string) ([]domain.FileRecord, error) {
	m.histArgs = []string{jobID, relPath}
	return m.history, m.err
}

func (m *mockCatalogService) Runs(_ context.Context, limit int) ([]domain.CrawlReport, error) {
	m.runLimit = limit
	return m.runs, m.err
}

type mockScheduler struct {
	started chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newMockScheduler() *mockScheduler {
	return &mockScheduler{started: make(chan struct{}), stopped: make(chan struct{})}
}

func (m *mockScheduler) Start(ctx context.Context) error {
	close(m.started)
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.once.Do(func() { close(m.stopped) })
	return nil
}

type mockWatcher struct {
	events chan driven.WatchEvent
	err    error
}

func (m *mockWatcher) Watch(_ context.Context) (<-chan driven.WatchEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.events, nil
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	index   *mockIndexService
	search  *mockSearchService
	rollup  *mockRollupService
	catalog *mockCatalogService
	sched   *mockScheduler
	watch   *mockWatcher
	config  string
}

// setupTestServices installs mocks behind a real settings service that
// stores its file in a temp dir.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	cfgPath := t.TempDir() + "/config.toml"
	store, err := configfile.NewConfigStore(cfgPath)
	require.NoError(t, err)

	ts := &testServices{
		index:   &mockIndexService{report: &domain.CrawlReport{RunID: "run-1"}},
		search:  &mockSearchService{},
		rollup:  &mockRollupService{},
		catalog: &mockCatalogService{stats: &domain.CatalogStats{}},
		sched:   newMockScheduler(),
		watch:   &mockWatcher{events: make(chan driven.WatchEvent, 4)},
		config:  cfgPath,
	}
	SetApp(App{})
	SetServices(services.NewSettingsService(store), &Services{
		Index:     ts.index,
		Search:    ts.search,
		Rollup:    ts.rollup,
		Catalog:   ts.catalog,
		Scheduler: ts.sched,
		Watcher:   ts.watch,
	})

	t.Cleanup(func() {
		SetApp(App{})
		settingsService = nil
		indexService = nil
		searchService = nil
		rollupService = nil
		catalogService = nil
		scheduler = nil
		watcher = nil
		_ = teardown()
	})
	return ts
}

// resetFlags restores every flag to its default so that values set by
// one test do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLIContext executes the root command with args and returns its output.
func runCLIContext(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLIContext(context.Background(), t, args...)
}

func sampleJobHit() domain.JobHit {
	year := 2023
	mtime := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	return domain.JobHit{
		Job: domain.Job{
			ID:       "101-23",
			RootPath: "/srv/jobs/2023/101-23 Smith Tank Farm",
			Year:     &year,
			Rollup: domain.Rollup{
				FileCountTotal:    2,
				ByteSizeTotal:     2048,
				Flags:             domain.JobFlags{HasDWGDXF: true, HasCompress: true},
				ScoreCompleteness: 0.4,
				ErrorsCount:       1,
				LastModified:      mtime,
			},
		},
		Hits: 3,
		Files: []domain.FileRecord{
			{
				RelPath:      "calcs/shell.cw7",
				SizeBytes:    1024,
				MTime:        mtime,
				DetectorHits: domain.NewTagSet(domain.TagCompress),
			},
			{
				RelPath:     "drawings/closed_tank.dwg",
				SizeBytes:   1024,
				MTime:       mtime,
				PathTooLong: true,
			},
		},
	}
}
