package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driving"
	"github.com/custodia-labs/tankfinder/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService answers job lookups and term searches. Every search
// reads one snapshot, so it never sees a job half way through a crawl.
type SearchService struct {
	store driven.CatalogStore
	tok   driven.Tokenizer
}

// NewSearchService creates a new search service.
func NewSearchService(store driven.CatalogStore, tok driven.Tokenizer) *SearchService {
	return &SearchService{store: store, tok: tok}
}

// Search runs a job lookup ("job:101-23"), a term search, or with no
// query, lists the jobs that pass the filters.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", req.Query)

	parsed, err := domain.ParseQuery(req.Query)
	if err != nil {
		return nil, err
	}
	if err := req.Years.Validate(); err != nil {
		return nil, err
	}

	switch parsed.Mode {
	case domain.SearchModeJob:
		return s.jobSearch(ctx, parsed.JobID, req)
	case domain.SearchModeBrowse:
		if !req.HasFilters() {
			return nil, fmt.Errorf("%w: empty query needs a job, year or flag filter", domain.ErrMalformedQuery)
		}
		return s.termSearch(ctx, nil, domain.SearchModeBrowse, req)
	}

	terms := s.tok.Set(parsed.Text, 0)
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: %q has no searchable terms", domain.ErrMalformedQuery, parsed.Text)
	}
	logger.Debug("Terms: %v", terms)
	return s.termSearch(ctx, terms, domain.SearchModeTerm, req)
}

func (s *SearchService) jobSearch(ctx context.Context, jobID string, req domain.SearchRequest) (*domain.SearchResponse, error) {
	resp := &domain.SearchResponse{Mode: domain.SearchModeJob}
	err := s.store.ReadTx(ctx, func(r driven.CatalogReader) error {
		job, err := r.GetJob(ctx, jobID)
		if err != nil {
			return unknownJob(jobID, err)
		}
		files, err := r.LiveFiles(ctx, job.ID)
		if err != nil {
			return err
		}
		hit := domain.JobHit{Job: *job, Hits: len(files), Files: files}
		if req.FileLimit > 0 && len(hit.Files) > req.FileLimit {
			hit.Files = hit.Files[:req.FileLimit]
		}
		resp.Jobs = []domain.JobHit{hit}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// termSearch groups matching files by job. Without terms every live
// file of a filtered job matches.
func (s *SearchService) termSearch(ctx context.Context, terms []string, mode domain.SearchMode, req domain.SearchRequest) (*domain.SearchResponse, error) {
	jobLimit := req.Limit
	if jobLimit <= 0 {
		jobLimit = domain.DefaultJobLimit
	}
	fileLimit := req.FileLimit
	if fileLimit <= 0 {
		fileLimit = domain.DefaultFileLimit
	}

	resp := &domain.SearchResponse{Mode: mode, Terms: terms, Jobs: []domain.JobHit{}}
	err := s.store.ReadTx(ctx, func(r driven.CatalogReader) error {
		jobID := strings.TrimSpace(req.JobID)
		if jobID != "" {
			job, err := r.GetJob(ctx, jobID)
			if err != nil {
				return unknownJob(jobID, err)
			}
			jobID = job.ID
		}

		files, err := r.SearchFiles(ctx, domain.TermQuery{
			Terms:       terms,
			JobID:       jobID,
			Years:       req.Years,
			Flags:       req.Flags,
			ContentOnly: req.ContentOnly,
			Near:        req.Near,
		})
		if err != nil {
			return err
		}

		byJob := make(map[string][]domain.FileRecord)
		var ids []string
		for _, f := range files {
			if _, ok := byJob[f.JobID]; !ok {
				ids = append(ids, f.JobID)
			}
			byJob[f.JobID] = append(byJob[f.JobID], f)
		}

		jobs, err := r.GetJobs(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			job, ok := jobs[id]
			if !ok {
				continue
			}
			hit := domain.JobHit{Job: job, Hits: len(byJob[id])}
			if req.IncludeFiles {
				hit.Files = byJob[id]
				if len(hit.Files) > fileLimit {
					hit.Files = hit.Files[:fileLimit]
				}
			}
			resp.Jobs = append(resp.Jobs, hit)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortHits(resp.Jobs)
	if len(resp.Jobs) > jobLimit {
		resp.Jobs = resp.Jobs[:jobLimit]
	}
	logger.Debug("Matched %d jobs", len(resp.Jobs))
	return resp, nil
}

// sortHits orders jobs by root path, then most recent modification,
// then ID.
func sortHits(hits []domain.JobHit) {
	sort.SliceStable(hits, func(a, b int) bool {
		ja, jb := hits[a].Job, hits[b].Job
		if ja.RootPath != jb.RootPath {
			return ja.RootPath < jb.RootPath
		}
		if !ja.LastModified.Equal(jb.LastModified) {
			return ja.LastModified.After(jb.LastModified)
		}
		return ja.ID < jb.ID
	})
}

func unknownJob(jobID string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: unknown job %s", domain.ErrMalformedQuery, jobID)
	}
	return err
}
