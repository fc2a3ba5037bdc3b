package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCrawlOptions_Partial(t *testing.T) {
	assert.False(t, CrawlOptions{}.Partial())
	assert.True(t, CrawlOptions{NoDelete: true}.Partial())
	assert.True(t, CrawlOptions{Limit: 10}.Partial())
	assert.False(t, CrawlOptions{DryRun: true, RebuildFullText: true}.Partial())
}

func TestJobChangeSet_Plan(t *testing.T) {
	mtime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := func(id int64, rel, hash string) FileRecord {
		return FileRecord{ID: id, JobID: "101-23", RelPath: rel, Ext: ".pdf", SizeBytes: 10,
			Hash16: hash, MTime: mtime, Kind: KindPDF, DetectorHits: NewTagSet(TagPDF), FirstSeen: first}
	}

	live := []FileRecord{
		rec(1, "a.pdf", "aaaa"),
		rec(2, "b.pdf", "bbbb"),
		rec(3, "gone.pdf", "cccc"),
		rec(4, "locked/d.pdf", "dddd"),
		rec(5, "stat-failed.pdf", "eeee"),
	}
	changed := rec(0, "b.pdf", "b2b2")
	changed.FirstSeen = time.Time{}

	cs := &JobChangeSet{
		Observed: []FileRecord{rec(0, "a.pdf", "aaaa"), changed, rec(0, "new.pdf", "ffff")},
		Kept:     []string{"locked", "stat-failed.pdf"},
		Complete: true,
	}

	plan := cs.Plan(live)

	assert.Equal(t, 1, plan.Unchanged)
	if assert.Len(t, plan.Updates, 1) {
		assert.Equal(t, int64(2), plan.Updates[0].ID)
		assert.Equal(t, "b2b2", plan.Updates[0].Hash16)
		assert.Equal(t, first, plan.Updates[0].FirstSeen)
	}
	if assert.Len(t, plan.Creates, 1) {
		assert.Equal(t, "new.pdf", plan.Creates[0].RelPath)
	}
	if assert.Len(t, plan.Deletes, 1) {
		assert.Equal(t, int64(3), plan.Deletes[0].ID)
	}
}

func TestJobChangeSet_Plan_PartialNeverDeletes(t *testing.T) {
	cs := &JobChangeSet{Complete: false}
	plan := cs.Plan([]FileRecord{{ID: 1, RelPath: "a.txt"}})
	assert.Empty(t, plan.Deletes)
}

func TestJobChangeSet_Plan_WholeJobKept(t *testing.T) {
	cs := &JobChangeSet{Complete: true, Kept: []string{""}}
	plan := cs.Plan([]FileRecord{{ID: 1, RelPath: "a.txt"}, {ID: 2, RelPath: "x/b.txt"}})
	assert.Empty(t, plan.Deletes)
}

func TestJobChangeSet_Plan_PrefixIsPathAware(t *testing.T) {
	cs := &JobChangeSet{Complete: true, Kept: []string{"calc"}}
	plan := cs.Plan([]FileRecord{{ID: 1, RelPath: "calc/a.txt"}, {ID: 2, RelPath: "calcs/b.txt"}})
	if assert.Len(t, plan.Deletes, 1) {
		assert.Equal(t, int64(2), plan.Deletes[0].ID)
	}
}

func TestCrawlReport_Add(t *testing.T) {
	var r CrawlReport
	r.Add(JobReport{Scanned: 3, Created: 2, Unchanged: 1, Errors: 1})
	r.Add(JobReport{Scanned: 2, Deleted: 1, FullTextAdded: 2, IgnoredByRules: 4})

	assert.Equal(t, 2, r.Jobs)
	assert.Equal(t, 5, r.Totals.Scanned)
	assert.Equal(t, 2, r.Totals.Created)
	assert.Equal(t, 1, r.Totals.Deleted)
	assert.Equal(t, 1, r.Totals.Errors)
	assert.Equal(t, 2, r.Totals.FullTextAdded)
	assert.Equal(t, 4, r.Totals.IgnoredByRules)
}
