package domain

import (
	"strings"
	"time"
)

// CrawlOptions control an index pass.
type CrawlOptions struct {
	// Years restricts the jobs visited by their derived year.
	Years YearRange

	// JobIDs restricts the pass to specific jobs. Empty means all.
	JobIDs []string

	// RebuildFullText drops the full-text index and re-reads every file.
	RebuildFullText bool

	// DryRun walks and classifies without writing to the catalog.
	DryRun bool

	// NoDelete skips the tombstoning of files that were not observed.
	NoDelete bool

	// Limit stops the pass after this many files. A limited pass is
	// partial and never tombstones.
	Limit int
}

// Partial reports whether the pass cannot prove a file is gone.
func (o CrawlOptions) Partial() bool {
	return o.NoDelete || o.Limit > 0
}

// JobChangeSet is what one job's scan observed. The writer diffs it
// against the job's live rows inside the job transaction.
type JobChangeSet struct {
	Root JobRoot
	Year *int

	// Observed holds the current state of every path seen.
	Observed []FileRecord

	// Kept lists paths, and directory prefixes, that could not be
	// examined. Live rows beneath them are neither updated nor deleted.
	// An empty string keeps the whole job.
	Kept []string

	// Complete allows the delete pass.
	Complete bool

	// FullText holds entries for content read in this pass.
	FullText []FullTextEntry

	// Report accumulates scan counters.
	Report JobReport
}

// JobPlan is the set of writes that bring live rows in line with a scan.
type JobPlan struct {
	Creates   []FileRecord
	Updates   []FileRecord
	Deletes   []FileRecord
	Unchanged int
}

// Plan diffs the observed files against live rows. Updates carry the
// live row's ID. Deletes are only planned for a complete scan.
func (cs *JobChangeSet) Plan(live []FileRecord) JobPlan {
	byPath := make(map[string]*FileRecord, len(live))
	for i := range live {
		byPath[live[i].RelPath] = &live[i]
	}

	var plan JobPlan
	seen := make(map[string]struct{}, len(cs.Observed))
	for _, obs := range cs.Observed {
		seen[obs.RelPath] = struct{}{}
		prev, ok := byPath[obs.RelPath]
		if !ok {
			plan.Creates = append(plan.Creates, obs)
			continue
		}
		if prev.SameContent(&obs) {
			plan.Unchanged++
			continue
		}
		obs.ID = prev.ID
		obs.FirstSeen = prev.FirstSeen
		plan.Updates = append(plan.Updates, obs)
	}

	if !cs.Complete {
		return plan
	}
	for _, f := range live {
		if _, ok := seen[f.RelPath]; ok || cs.kept(f.RelPath) {
			continue
		}
		plan.Deletes = append(plan.Deletes, f)
	}
	return plan
}

func (cs *JobChangeSet) kept(relPath string) bool {
	for _, k := range cs.Kept {
		if k == "" || relPath == k || strings.HasPrefix(relPath, k+"/") {
			return true
		}
	}
	return false
}

// JobReport counts what happened to one job.
type JobReport struct {
	JobID          string `json:"job_id"`
	Scanned        int    `json:"scanned"`
	Created        int    `json:"created"`
	Updated        int    `json:"updated"`
	Unchanged      int    `json:"unchanged"`
	Deleted        int    `json:"deleted"`
	Errors         int    `json:"errors"`
	PathTooLong    int    `json:"path_too_long"`
	FullTextAdded  int    `json:"fulltext_added"`
	IgnoredByRules int    `json:"ignored"`
}

// CrawlReport summarizes an index pass.
type CrawlReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Options    CrawlOptions  `json:"-"`
	DryRun     bool          `json:"dry_run"`
	Jobs       int           `json:"jobs"`
	JobsFailed int           `json:"jobs_failed"`
	OutOfYear  int           `json:"out_of_year"`
	Totals     JobReport     `json:"totals"`
	Duration   time.Duration `json:"duration"`
	Cancelled  bool          `json:"cancelled"`

	// ScheduledBy names the daemon task that started the pass, if any.
	ScheduledBy string `json:"scheduled_by,omitempty"`
}

// Add folds a job report into the totals.
func (r *CrawlReport) Add(j JobReport) {
	r.Jobs++
	r.Totals.Scanned += j.Scanned
	r.Totals.Created += j.Created
	r.Totals.Updated += j.Updated
	r.Totals.Unchanged += j.Unchanged
	r.Totals.Deleted += j.Deleted
	r.Totals.Errors += j.Errors
	r.Totals.PathTooLong += j.PathTooLong
	r.Totals.FullTextAdded += j.FullTextAdded
	r.Totals.IgnoredByRules += j.IgnoredByRules
}

// CatalogStats is a snapshot of catalog sizes.
type CatalogStats struct {
	Jobs            int64        `json:"jobs"`
	JobsWithoutYear int64        `json:"jobs_without_year"`
	LiveFiles       int64        `json:"live_files"`
	DeletedFiles    int64        `json:"deleted_files"`
	FullTextEntries int64        `json:"fulltext_entries"`
	LastRun         *CrawlReport `json:"last_run,omitempty"`
	Scheduled       []TaskResult `json:"scheduled,omitempty"`
}
