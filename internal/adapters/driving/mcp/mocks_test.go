package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	resp *domain.SearchResponse
	err  error
	last domain.SearchRequest
}

func (m *mockSearchService) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	if m.resp == nil {
		return &domain.SearchResponse{Mode: domain.SearchModeTerm, Jobs: []domain.JobHit{}}, nil
	}
	return m.resp, nil
}

// mockCatalogService is a mock implementation of driving.CatalogService.
type mockCatalogService struct {
	stats *domain.CatalogStats
	err   error
}

func (m *mockCatalogService) Stats(_ context.Context) (*domain.CatalogStats, error) {
	return m.stats, m.err
}

func (m *mockCatalogService) BackfillYears(_ context.Context) (int, error) {
	return 0, m.err
}

func (m *mockCatalogService) FileHistory(_ context.Context, _, _ string) ([]domain.FileRecord, error) {
	return nil, m.err
}

func (m *mockCatalogService) Runs(_ context.Context, _ int) ([]domain.CrawlReport, error) {
	return nil, m.err
}

func sampleHit() domain.JobHit {
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
				LastModified:      mtime,
			},
		},
		Hits: 2,
		Files: []domain.FileRecord{
			{
				RelPath:      "calcs/shell.cw7",
				Kind:         domain.KindOther,
				SizeBytes:    1024,
				MTime:        mtime,
				DetectorHits: domain.NewTagSet(domain.TagCompress),
			},
			{
				RelPath:     "drawings/very long name.dwg",
				Kind:        domain.KindCAD,
				SizeBytes:   1024,
				MTime:       mtime,
				PathTooLong: true,
			},
		},
	}
}
