// Package filesystem discovers job folders on the file server and
// enumerates the files beneath them.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/logger"
)

// Ensure Walker implements the interface.
var _ driven.JobWalker = (*Walker)(nil)

var (
	yearDirPattern  = regexp.MustCompile(`^\d{4}$`)
	quoteDirPattern = regexp.MustCompile(`^(19|20)\d{2}$`)
)

// Directories Windows maintains on every volume.
var systemDirs = map[string]struct{}{
	"$recycle.bin":              {},
	"system volume information": {},
}

// Walker walks the configured roots.
type Walker struct {
	roots         []string
	quotesRoots   []string
	quotesYearMin int
	onlyYearDirs  bool
	denylist      []string
	jobPattern    *regexp.Regexp
	ignoreExt     []string
	ignoreTokens  []string
}

// NewWalker builds a walker from crawl and ignore settings.
func NewWalker(crawl domain.CrawlSettings, ignore domain.IgnoreSettings) (*Walker, error) {
	pattern := crawl.JobIDPattern
	if pattern == "" {
		pattern = domain.DefaultJobIDPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: job id pattern: %v", domain.ErrInvalidInput, err)
	}

	w := &Walker{
		roots:         crawl.Roots,
		quotesRoots:   crawl.QuotesRoots,
		quotesYearMin: crawl.QuotesYearMin,
		onlyYearDirs:  crawl.OnlyYearDirs,
		jobPattern:    re,
		ignoreExt:     lowerAll(ignore.Ext),
		ignoreTokens:  lowerAll(ignore.DirTokens),
	}
	for _, p := range crawl.DenylistPaths {
		if p = strings.TrimSpace(p); p != "" {
			w.denylist = append(w.denylist, strings.ToLower(filepath.Clean(p)))
		}
	}
	return w, nil
}

// Roots returns the configured job and quote roots.
func (w *Walker) Roots() []string {
	return append(append([]string{}, w.roots...), w.quotesRoots...)
}

// JobID returns the job ID carried by a folder name.
func (w *Walker) JobID(name string) (string, bool) {
	m := w.jobPattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	if len(m) > 1 && m[1] != "" {
		return m[1], true
	}
	return m[0], true
}

// DiscoverJobs returns every job root ordered by ID. Roots that are
// missing or unreadable are logged and skipped.
func (w *Walker) DiscoverJobs(ctx context.Context) ([]domain.JobRoot, error) {
	found := make(map[string]domain.JobRoot)
	add := func(root domain.JobRoot) {
		if prev, ok := found[root.ID]; ok {
			logger.Warn("Job %s found twice: keeping %s, ignoring %s", root.ID, prev.RootPath, root.RootPath)
			return
		}
		found[root.ID] = root
	}

	for _, root := range w.roots {
		starts := []string{root}
		if w.onlyYearDirs {
			starts = w.yearChildren(root)
		}
		for _, start := range starts {
			if err := w.discover(ctx, start, add); err != nil {
				return nil, err
			}
		}
	}

	for _, root := range w.quotesRoots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, q := range w.quoteJobs(root) {
			add(q)
		}
	}

	jobs := make([]domain.JobRoot, 0, len(found))
	for _, j := range found {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].ID < jobs[k].ID })
	return jobs, nil
}

// FindJob locates one job's root.
func (w *Walker) FindJob(ctx context.Context, jobID string) (*domain.JobRoot, error) {
	jobs, err := w.DiscoverJobs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if strings.EqualFold(jobs[i].ID, jobID) {
			return &jobs[i], nil
		}
	}
	return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
}

// discover descends from dir until it reaches folders named like a job.
// Job folders are not descended into.
func (w *Walker) discover(ctx context.Context, dir string, add func(domain.JobRoot)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.skipDir(dir) {
		return nil
	}
	if id, ok := w.JobID(filepath.Base(dir)); ok {
		add(domain.JobRoot{ID: id, RootPath: dir})
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Debug("Skipping %s: %v", dir, err)
		return nil
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := w.discover(ctx, filepath.Join(dir, e.Name()), add); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) yearChildren(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Warn("Cannot read root %s: %v", root, err)
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && yearDirPattern.MatchString(e.Name()) {
			out = append(out, filepath.Join(root, e.Name()))
		}
	}
	return out
}

// quoteJobs turns each YYYY folder of a quotes root into job QYYYY.
func (w *Walker) quoteJobs(root string) []domain.JobRoot {
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Warn("Cannot read quotes root %s: %v", root, err)
		return nil
	}
	var out []domain.JobRoot
	for _, e := range entries {
		if !e.IsDir() || !quoteDirPattern.MatchString(e.Name()) {
			continue
		}
		year, _ := strconv.Atoi(e.Name())
		if year < w.quotesYearMin {
			continue
		}
		path := filepath.Join(root, e.Name())
		if w.skipDir(path) {
			continue
		}
		out = append(out, domain.JobRoot{ID: "Q" + e.Name(), RootPath: path, RecordedYear: &year})
	}
	return out
}

func (w *Walker) skipDir(path string) bool {
	if _, ok := systemDirs[strings.ToLower(filepath.Base(path))]; ok {
		return true
	}
	lower := strings.ToLower(filepath.Clean(path))
	for _, deny := range w.denylist {
		if strings.HasPrefix(lower, deny) {
			return true
		}
	}
	return false
}

// WalkJob calls fn for every regular file under the job root in path
// order. Directories that cannot be read are reported as entries with
// Dir set so the caller keeps the files it knows beneath them.
func (w *Walker) WalkJob(ctx context.Context, root domain.JobRoot, fn func(domain.FileEntry) error) (int, error) {
	ignored := 0
	var walk func(rel string) error
	walk = func(rel string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := filepath.Join(root.RootPath, filepath.FromSlash(rel))
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fn(domain.FileEntry{RelPath: rel, FullPath: dir, Dir: true, Err: err})
		}

		dirIgnored := w.ignoredDir(rel)
		for _, e := range entries {
			childRel := e.Name()
			if rel != "" {
				childRel = rel + "/" + e.Name()
			}
			full := filepath.Join(dir, e.Name())

			switch {
			case e.IsDir():
				if w.skipDir(full) {
					continue
				}
				if err := walk(childRel); err != nil {
					return err
				}
				continue
			case !e.Type().IsRegular():
				continue
			}

			if dirIgnored || w.ignoredFile(e.Name()) {
				ignored++
				continue
			}

			entry := domain.FileEntry{RelPath: childRel, FullPath: full}
			info, err := e.Info()
			if err != nil {
				entry.Err = err
			} else {
				entry.Size = info.Size()
				entry.MTime = info.ModTime().UTC()
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
		return nil
	}

	err := walk("")
	return ignored, err
}

// Open opens a file for reading.
func (w *Walker) Open(path string) (domain.ContentFile, error) {
	return os.Open(path)
}

func (w *Walker) ignoredDir(rel string) bool {
	if rel == "" || len(w.ignoreTokens) == 0 {
		return false
	}
	lower := strings.ToLower(rel)
	for _, tok := range w.ignoreTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func (w *Walker) ignoredFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range w.ignoreExt {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// isDir reports whether path is a directory, following no links.
func isDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&fs.ModeType == fs.ModeDir
}
