package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driving"
	"github.com/custodia-labs/tankfinder/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.IndexService = (*Indexer)(nil)

// headerSize is how much of a file the signature detectors see.
const headerSize = 4096

// errLimitReached stops a walk once the pass has seen enough files.
var errLimitReached = errors.New("file limit reached")

// IndexerConfig tunes the crawl pipeline.
type IndexerConfig struct {
	Workers           int
	QueueSize         int
	MaxPathLength     int
	MaxFilesPerSecond float64
	MaxChars          int
	MaxFileNameTokens int
	ExtractText       bool
}

// IndexerConfigFromSettings maps application settings to an IndexerConfig.
func IndexerConfigFromSettings(s domain.AppSettings) IndexerConfig {
	return IndexerConfig{
		Workers:           s.Crawl.Workers,
		QueueSize:         s.Crawl.QueueSize,
		MaxPathLength:     s.Crawl.MaxPathLength,
		MaxFilesPerSecond: s.Crawl.MaxFilesPerSecond,
		MaxChars:          s.Text.MaxChars,
		MaxFileNameTokens: s.Text.MaxFileNameToks,
		ExtractText:       s.Text.Enabled,
	}
}

// Indexer crawls job folders into the catalog. Each job is scanned by a
// pool of workers; finished scans are handed to a single writer that
// applies one job per transaction.
type Indexer struct {
	walker      driven.JobWalker
	store       driven.CatalogStore
	fts         driven.FullTextIndex
	hasher      driven.Hasher
	detectors   driven.DetectorRegistry
	normalisers driven.NormaliserRegistry
	tok         driven.Tokenizer
	cfg         IndexerConfig
	limiter     *rate.Limiter
	now         func() time.Time

	mu      sync.Mutex
	running bool
}

// NewIndexer creates an indexer. normalisers may be nil, in which case
// only filenames are searchable.
func NewIndexer(
	walker driven.JobWalker,
	store driven.CatalogStore,
	fts driven.FullTextIndex,
	hasher driven.Hasher,
	detectors driven.DetectorRegistry,
	normalisers driven.NormaliserRegistry,
	tok driven.Tokenizer,
	cfg IndexerConfig,
) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.MaxFileNameTokens <= 0 {
		cfg.MaxFileNameTokens = 64
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MaxFilesPerSecond > 0 {
		burst := int(cfg.MaxFilesPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxFilesPerSecond), burst)
	}

	return &Indexer{
		walker:      walker,
		store:       store,
		fts:         fts,
		hasher:      hasher,
		detectors:   detectors,
		normalisers: normalisers,
		tok:         tok,
		cfg:         cfg,
		limiter:     limiter,
		now:         time.Now,
	}
}

// Index runs a pass over every discovered job allowed by opts. A
// cancelled pass keeps every job transaction that committed and returns
// the context error alongside the report.
func (i *Indexer) Index(ctx context.Context, opts domain.CrawlOptions) (*domain.CrawlReport, error) {
	if err := opts.Years.Validate(); err != nil {
		return nil, err
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", domain.ErrInvalidInput)
	}
	if !i.acquire() {
		return nil, domain.ErrIndexInProgress
	}
	defer i.release()

	logger.Section("Index")
	report := &domain.CrawlReport{
		RunID:     uuid.NewString(),
		StartedAt: i.now(),
		Options:   opts,
		DryRun:    opts.DryRun,
	}

	if opts.RebuildFullText && !opts.DryRun {
		logger.Info("Rebuilding full-text index")
		if err := i.fts.Rebuild(ctx); err != nil {
			return nil, fmt.Errorf("rebuilding full-text index: %w", err)
		}
	}

	jobs, err := i.selectJobs(ctx, opts, report)
	if err != nil {
		return nil, err
	}
	logger.Info("Indexing %d jobs (run %s)", len(jobs), report.RunID)

	runErr := i.run(ctx, jobs, opts, report)
	return i.finish(ctx, report, runErr)
}

// IndexJob runs a full pass over one job.
func (i *Indexer) IndexJob(ctx context.Context, jobID string) (*domain.JobReport, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("%w: job id is required", domain.ErrInvalidInput)
	}
	root, err := i.walker.FindJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !i.acquire() {
		return nil, domain.ErrIndexInProgress
	}
	defer i.release()

	report := &domain.CrawlReport{
		RunID:     uuid.NewString(),
		StartedAt: i.now(),
		Options:   domain.CrawlOptions{JobIDs: []string{root.ID}},
	}
	runErr := i.run(ctx, []domain.JobRoot{*root}, report.Options, report)
	if _, err := i.finish(ctx, report, runErr); err != nil {
		return nil, err
	}
	if report.JobsFailed > 0 {
		return nil, fmt.Errorf("indexing job %s failed", root.ID)
	}
	totals := report.Totals
	totals.JobID = root.ID
	return &totals, nil
}

func (i *Indexer) acquire() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.running {
		return false
	}
	i.running = true
	return true
}

func (i *Indexer) release() {
	i.mu.Lock()
	i.running = false
	i.mu.Unlock()
}

// finish stamps and records the run. Runs are recorded even when the
// pass was cancelled.
func (i *Indexer) finish(ctx context.Context, report *domain.CrawlReport, runErr error) (*domain.CrawlReport, error) {
	report.FinishedAt = i.now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
	if ctx.Err() != nil {
		report.Cancelled = true
	}

	if !report.DryRun {
		if err := i.store.RecordRun(context.WithoutCancel(ctx), report); err != nil {
			logger.Warn("Could not record run %s: %v", report.RunID, err)
		}
	}

	t := report.Totals
	logger.Info("Run %s: %d jobs, %d scanned, %d created, %d updated, %d unchanged, %d deleted, %d errors in %s",
		report.RunID, report.Jobs, t.Scanned, t.Created, t.Updated, t.Unchanged, t.Deleted, t.Errors,
		report.Duration.Round(time.Millisecond))

	if runErr != nil {
		return report, runErr
	}
	return report, nil
}

// selectJobs applies the job and year filters to the discovered jobs.
func (i *Indexer) selectJobs(ctx context.Context, opts domain.CrawlOptions, report *domain.CrawlReport) ([]domain.JobRoot, error) {
	jobs, err := i.walker.DiscoverJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering jobs: %w", err)
	}

	if len(opts.JobIDs) > 0 {
		want := make(map[string]bool, len(opts.JobIDs))
		for _, id := range opts.JobIDs {
			want[strings.ToLower(id)] = false
		}
		var picked []domain.JobRoot
		for _, j := range jobs {
			key := strings.ToLower(j.ID)
			if _, ok := want[key]; ok {
				want[key] = true
				picked = append(picked, j)
			}
		}
		for id, found := range want {
			if !found {
				logger.Warn("Job %s not found under the configured roots", id)
			}
		}
		jobs = picked
	}

	if !opts.Years.IsSet() {
		return jobs, nil
	}

	ids := make([]string, len(jobs))
	for k, j := range jobs {
		ids[k] = j.ID
	}
	known, err := i.store.GetJobs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading jobs: %w", err)
	}

	var inRange []domain.JobRoot
	for _, j := range jobs {
		year := j.EffectiveYear()
		if existing, ok := known[j.ID]; ok && existing.Year != nil {
			year = existing.Year
		}
		if !opts.Years.Contains(year) {
			report.OutOfYear++
			continue
		}
		inRange = append(inRange, j)
	}
	return inRange, nil
}

// run scans jobs in order and feeds the writer through a bounded queue.
func (i *Indexer) run(ctx context.Context, jobs []domain.JobRoot, opts domain.CrawlOptions, report *domain.CrawlReport) error {
	var budget atomic.Int64
	changes := make(chan *domain.JobChangeSet, i.cfg.QueueSize)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(changes)
		for _, job := range jobs {
			if opts.Limit > 0 && budget.Load() >= int64(opts.Limit) {
				logger.Info("File limit of %d reached", opts.Limit)
				return nil
			}
			cs, err := i.scanJob(gctx, job, opts, &budget)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("Scanning job %s failed: %v", job.ID, err)
				mu.Lock()
				report.JobsFailed++
				mu.Unlock()
				continue
			}
			select {
			case changes <- cs:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case cs, ok := <-changes:
				if !ok {
					return nil
				}
				jr, err := i.apply(gctx, cs, opts)
				if err != nil {
					return fmt.Errorf("writing job %s: %w", cs.Root.ID, err)
				}
				logger.Debug("Job %s: %d created, %d updated, %d deleted", jr.JobID, jr.Created, jr.Updated, jr.Deleted)
				mu.Lock()
				report.Add(jr)
				mu.Unlock()
			}
		}
	})

	return g.Wait()
}

// fileResult is one worker's verdict on a walk entry.
type fileResult struct {
	record   *domain.FileRecord
	fullText *domain.FullTextEntry
	keep     string
	kept     bool
	err      error
}

// scanJob walks one job with a pool of workers and collects the results.
func (i *Indexer) scanJob(
	ctx context.Context,
	root domain.JobRoot,
	opts domain.CrawlOptions,
	budget *atomic.Int64,
) (*domain.JobChangeSet, error) {
	live, err := i.store.LiveFiles(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("loading live files: %w", err)
	}
	prev := make(map[string]*domain.FileRecord, len(live))
	for k := range live {
		prev[live[k].RelPath] = &live[k]
	}
	missing, err := i.missingFullText(ctx, live, opts)
	if err != nil {
		return nil, err
	}

	cs := &domain.JobChangeSet{
		Root:     root,
		Year:     root.EffectiveYear(),
		Complete: !opts.Partial(),
		Report:   domain.JobReport{JobID: root.ID},
	}

	entries := make(chan domain.FileEntry, i.cfg.QueueSize)
	results := make(chan fileResult, i.cfg.QueueSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(entries)
		ignored, err := i.walker.WalkJob(gctx, root, func(e domain.FileEntry) error {
			if !e.Dir && opts.Limit > 0 && budget.Add(1) > int64(opts.Limit) {
				return errLimitReached
			}
			select {
			case entries <- e:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		cs.Report.IgnoredByRules = ignored
		if errors.Is(err, errLimitReached) {
			return nil
		}
		return err
	})

	var workers sync.WaitGroup
	for range i.cfg.Workers {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for e := range entries {
				r := i.processEntry(gctx, root, e, prev[e.RelPath], missing, opts)
				select {
				case results <- r:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	hashes := make(map[string]struct{})
	for r := range results {
		if r.kept {
			cs.Kept = append(cs.Kept, r.keep)
		}
		if r.err != nil {
			cs.Report.Errors++
			logger.Warn("%s: %v", root.ID, r.err)
		}
		if r.record == nil {
			continue
		}
		cs.Report.Scanned++
		if r.record.PathTooLong {
			cs.Report.PathTooLong++
		}
		cs.Observed = append(cs.Observed, *r.record)
		if r.fullText != nil {
			if _, dup := hashes[r.fullText.Hash16]; !dup {
				hashes[r.fullText.Hash16] = struct{}{}
				cs.FullText = append(cs.FullText, *r.fullText)
			}
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cs, nil
}

// processEntry turns a walk entry into a file record. Failures are
// recorded on the result, never returned.
func (i *Indexer) processEntry(
	ctx context.Context,
	root domain.JobRoot,
	e domain.FileEntry,
	prev *domain.FileRecord,
	missing map[string]bool,
	opts domain.CrawlOptions,
) fileResult {
	if e.Err != nil {
		// Files under an unreadable directory, or a file that could not
		// be stat'ed, stay as they were.
		return fileResult{keep: e.RelPath, kept: true, err: fmt.Errorf("%w: %s: %v", domain.ErrTransientIO, e.RelPath, e.Err)}
	}
	if e.Dir {
		return fileResult{}
	}

	name := path.Base(e.RelPath)
	ext := strings.ToLower(path.Ext(name))
	rec := &domain.FileRecord{
		JobID:       root.ID,
		RelPath:     e.RelPath,
		Ext:         ext,
		SizeBytes:   e.Size,
		MTime:       e.MTime.UTC(),
		Kind:        domain.KindForExt(ext),
		TokensFname: i.filenameTokens(root, e.RelPath),
	}
	// Folder names count toward detection, so a file under "AME Tank/"
	// is tagged like one named that way.
	sample := &domain.FileSample{Name: name, Ext: ext, NameTokens: rec.TokensFname, Size: e.Size}

	if i.tooLong(root, e.RelPath) {
		rec.PathTooLong = true
		rec.Hash16 = i.hasher.PathFingerprint(e.FullPath)
		rec.DetectorHits = i.detectors.Detect(sample)
		return fileResult{record: rec, err: fmt.Errorf("%w: %s", domain.ErrPathTooLong, e.RelPath)}
	}

	if prev != nil && !opts.RebuildFullText && unchanged(prev, rec) {
		same := *prev
		res := fileResult{record: &same}
		if missing[prev.Hash16] {
			res.fullText = i.backfill(ctx, e, ext, prev.Hash16)
		}
		return res
	}

	if err := i.limiter.Wait(ctx); err != nil {
		return fileResult{keep: e.RelPath, kept: true, err: err}
	}

	f, err := i.walker.Open(e.FullPath)
	if err != nil {
		return fileResult{record: rec, err: i.markUnreadable(rec, prev, e, sample, err)}
	}
	defer f.Close()

	hash, err := i.hasher.Fingerprint(f)
	if err != nil {
		return fileResult{record: rec, err: i.markUnreadable(rec, prev, e, sample, err)}
	}
	rec.Hash16 = hash

	header := make([]byte, headerSize)
	n, err := f.ReadAt(header, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Debug("Reading header of %s: %v", e.FullPath, err)
	}
	sample.Header = header[:n]
	sample.Content = f
	rec.DetectorHits = i.detectors.Detect(sample)

	res := fileResult{record: rec}
	if text := i.extract(ctx, e, ext, f); text != "" {
		res.fullText = &domain.FullTextEntry{Hash16: hash, Content: text}
	}
	return res
}

// unchanged reports whether a file can skip reading. Rows with errors
// are always retried.
func unchanged(prev, cur *domain.FileRecord) bool {
	return prev.MTime.Equal(cur.MTime) &&
		prev.SizeBytes == cur.SizeBytes &&
		prev.Hash16 != "" &&
		!prev.HasError()
}

// markUnreadable records a read failure. The fingerprint falls back to
// the previous hash, then to the path.
func (i *Indexer) markUnreadable(rec, prev *domain.FileRecord, e domain.FileEntry, sample *domain.FileSample, err error) error {
	rec.ReadError = err.Error()
	if prev != nil && prev.Hash16 != "" {
		rec.Hash16 = prev.Hash16
	} else {
		rec.Hash16 = i.hasher.PathFingerprint(e.FullPath)
	}
	rec.DetectorHits = i.detectors.Detect(sample)
	return fmt.Errorf("%w: %s: %v", domain.ErrTransientIO, e.RelPath, err)
}

// missingFullText returns the fingerprints of live, extractable files
// that have no full-text entry, such as after a rebuild that did not
// visit every job.
func (i *Indexer) missingFullText(ctx context.Context, live []domain.FileRecord, opts domain.CrawlOptions) (map[string]bool, error) {
	if opts.RebuildFullText || i.fts == nil {
		return nil, nil
	}
	var hashes []string
	for _, f := range live {
		if f.Hash16 != "" && !f.HasError() && i.extractable(f.Ext) {
			hashes = append(hashes, f.Hash16)
		}
	}
	if len(hashes) == 0 {
		return nil, nil
	}
	missing, err := i.fts.Missing(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("checking full-text entries: %w", err)
	}
	return missing, nil
}

// backfill re-extracts an unchanged file whose content is not indexed.
func (i *Indexer) backfill(ctx context.Context, e domain.FileEntry, ext, hash string) *domain.FullTextEntry {
	if err := i.limiter.Wait(ctx); err != nil {
		return nil
	}
	f, err := i.walker.Open(e.FullPath)
	if err != nil {
		logger.Debug("Backfilling %s: %v", e.FullPath, err)
		return nil
	}
	defer f.Close()

	text := i.extract(ctx, e, ext, f)
	if text == "" {
		return nil
	}
	return &domain.FullTextEntry{Hash16: hash, Content: text}
}

func (i *Indexer) extractable(ext string) bool {
	return i.cfg.ExtractText && i.normalisers != nil && i.normalisers.Supports(ext)
}

func (i *Indexer) extract(ctx context.Context, e domain.FileEntry, ext string, f io.ReaderAt) string {
	if !i.extractable(ext) {
		return ""
	}
	text, err := i.normalisers.Extract(ctx, &domain.RawFile{
		Path:    e.FullPath,
		RelPath: e.RelPath,
		Ext:     ext,
		Size:    e.Size,
		Content: f,
	})
	if err != nil {
		logger.Debug("Extracting text from %s: %v", e.FullPath, err)
		return ""
	}
	return i.tok.Text(text, i.cfg.MaxChars)
}

// filenameTokens covers the file name, its folders within the job and
// the job folder name.
func (i *Indexer) filenameTokens(root domain.JobRoot, relPath string) []string {
	name := path.Base(relPath)
	dir := path.Dir(relPath)
	if dir == "." {
		dir = ""
	}
	return i.tok.Set(name+" "+dir+" "+filepath.Base(root.RootPath), i.cfg.MaxFileNameTokens)
}

// tooLong compares the full path length in characters with the limit.
func (i *Indexer) tooLong(root domain.JobRoot, relPath string) bool {
	if i.cfg.MaxPathLength <= 0 {
		return false
	}
	n := utf8.RuneCountInString(root.RootPath) + 1 + utf8.RuneCountInString(relPath)
	return n > i.cfg.MaxPathLength
}

// apply writes one job's changes, full-text entries and rollup in a
// single transaction. A dry run plans against a snapshot instead.
func (i *Indexer) apply(ctx context.Context, cs *domain.JobChangeSet, opts domain.CrawlOptions) (domain.JobReport, error) {
	if opts.DryRun {
		jr := cs.Report
		err := i.store.ReadTx(ctx, func(r driven.CatalogReader) error {
			live, err := r.LiveFiles(ctx, cs.Root.ID)
			if err != nil {
				return err
			}
			countPlan(&jr, cs.Plan(live))
			jr.FullTextAdded = len(cs.FullText)
			return nil
		})
		return jr, err
	}

	var jr domain.JobReport
	err := i.store.WithJobTx(ctx, func(tx driven.CatalogTx) error {
		// Retries start over from the scan counters.
		jr = cs.Report
		now := i.now()

		if err := tx.EnsureJob(ctx, cs.Root, cs.Year, now); err != nil {
			return err
		}
		live, err := tx.LiveFiles(ctx, cs.Root.ID)
		if err != nil {
			return err
		}

		plan := cs.Plan(live)
		for k := range plan.Creates {
			plan.Creates[k].FirstSeen = now
			if err := tx.InsertFile(ctx, &plan.Creates[k]); err != nil {
				return err
			}
		}
		for k := range plan.Updates {
			if err := tx.UpdateFile(ctx, &plan.Updates[k]); err != nil {
				return err
			}
		}
		for _, f := range plan.Deletes {
			if err := tx.MarkDeleted(ctx, f.ID, now); err != nil {
				return err
			}
		}
		countPlan(&jr, plan)

		for _, entry := range cs.FullText {
			added, err := tx.UpsertFullText(ctx, entry)
			if err != nil {
				return err
			}
			if added {
				jr.FullTextAdded++
			}
		}

		after, err := tx.LiveFiles(ctx, cs.Root.ID)
		if err != nil {
			return err
		}
		return tx.SaveRollup(ctx, cs.Root.ID, domain.ComputeRollup(after))
	})
	return jr, err
}

func countPlan(jr *domain.JobReport, plan domain.JobPlan) {
	jr.Created = len(plan.Creates)
	jr.Updated = len(plan.Updates)
	jr.Deleted = len(plan.Deletes)
	jr.Unchanged = plan.Unchanged
}
