package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.Watcher = (*Watcher)(nil)

const defaultDebounce = 2 * time.Second

// Watcher reports changes beneath job folders. fsnotify watches are not
// recursive, so every directory of every job is added individually and
// new directories are added as they appear.
type Watcher struct {
	walker   *Walker
	debounce time.Duration

	mu   sync.Mutex
	jobs map[string]string // root path -> job ID
}

// NewWatcher creates a watcher. Events for a job are held until it has
// been quiet for debounce.
func NewWatcher(walker *Walker, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		walker:   walker,
		debounce: debounce,
		jobs:     make(map[string]string),
	}
}

// Watch starts watching and returns the event channel. The channel is
// closed once ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) (<-chan driven.WatchEvent, error) {
	jobs, err := w.walker.DiscoverJobs(ctx)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	// Roots are watched flat so new job folders show up as Create events.
	for _, root := range w.walker.Roots() {
		if err := fw.Add(root); err != nil {
			logger.Warn("Cannot watch root %s: %v", root, err)
		}
	}
	for _, job := range jobs {
		w.track(fw, job)
	}
	logger.Debug("Watching %d jobs", len(jobs))

	out := make(chan driven.WatchEvent, 16)
	go w.run(ctx, fw, out)
	return out, nil
}

func (w *Watcher) track(fw *fsnotify.Watcher, job domain.JobRoot) {
	w.mu.Lock()
	w.jobs[filepath.Clean(job.RootPath)] = job.ID
	w.mu.Unlock()
	w.addRecursive(fw, job.RootPath)
}

// addRecursive adds path and every directory beneath it.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, path string) {
	_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.walker.skipDir(p) {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			logger.Debug("Cannot watch %s: %v", p, err)
		}
		return nil
	})
}

// jobFor returns the job whose root contains path.
func (w *Watcher) jobFor(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	path = filepath.Clean(path)
	best, bestLen := "", -1
	for root, id := range w.jobs {
		if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
			continue
		}
		if len(root) > bestLen {
			best, bestLen = id, len(root)
		}
	}
	return best, bestLen >= 0
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, out chan<- driven.WatchEvent) {
	defer close(out)
	defer fw.Close()

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	type pendingEvent struct {
		path string
		last time.Time
	}
	pending := make(map[string]pendingEvent)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			jobID, ok := w.jobFor(ev.Name)
			if !ok {
				jobID, ok = w.newJob(fw, ev)
				if !ok {
					continue
				}
			} else if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				w.addRecursive(fw, ev.Name)
			}
			pending[jobID] = pendingEvent{path: ev.Name, last: time.Now()}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("Watch error: %v", err)

		case now := <-ticker.C:
			var ready []string
			for id, p := range pending {
				if now.Sub(p.last) >= w.debounce {
					ready = append(ready, id)
				}
			}
			sort.Strings(ready)
			for _, id := range ready {
				select {
				case out <- driven.WatchEvent{JobID: id, Path: pending[id].path}:
				case <-ctx.Done():
					return
				}
				delete(pending, id)
			}
		}
	}
}

// newJob starts tracking a job folder created under a root.
func (w *Watcher) newJob(fw *fsnotify.Watcher, ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) || !isDir(ev.Name) || w.walker.skipDir(ev.Name) {
		return "", false
	}
	id, ok := w.walker.JobID(filepath.Base(ev.Name))
	if !ok {
		return "", false
	}
	logger.Info("New job folder %s", ev.Name)
	w.track(fw, domain.JobRoot{ID: id, RootPath: ev.Name})
	return id, true
}
