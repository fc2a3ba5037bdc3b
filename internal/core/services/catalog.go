package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driving"
	"github.com/custodia-labs/tankfinder/internal/logger"
)

// Ensure CatalogService implements the interface.
var _ driving.CatalogService = (*CatalogService)(nil)

// CatalogService reports on and maintains the catalog itself.
type CatalogService struct {
	store driven.CatalogStore
}

// NewCatalogService creates a catalog service.
func NewCatalogService(store driven.CatalogStore) *CatalogService {
	return &CatalogService{store: store}
}

// Stats returns catalog sizes and the last run.
func (s *CatalogService) Stats(ctx context.Context) (*domain.CatalogStats, error) {
	return s.store.Stats(ctx)
}

// BackfillYears derives job_year for jobs that have none. Jobs whose ID
// carries no year stay NULL. Running it again changes nothing.
func (s *CatalogService) BackfillYears(ctx context.Context) (int, error) {
	jobs, err := s.store.JobsMissingYear(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing jobs without a year: %w", err)
	}

	filled := 0
	for _, job := range jobs {
		year := domain.DeriveJobYear(job.ID, job.RecordedYear)
		if year == nil {
			logger.Debug("Job %s has no derivable year", job.ID)
			continue
		}
		changed, err := s.store.SetJobYear(ctx, job.ID, *year)
		if err != nil {
			return filled, fmt.Errorf("setting year of %s: %w", job.ID, err)
		}
		if changed {
			filled++
		}
	}
	return filled, nil
}

// FileHistory returns every row recorded for a path, oldest first.
func (s *CatalogService) FileHistory(ctx context.Context, jobID, relPath string) ([]domain.FileRecord, error) {
	jobID = strings.TrimSpace(jobID)
	relPath = strings.Trim(strings.ReplaceAll(relPath, `\`, "/"), "/ ")
	if jobID == "" || relPath == "" {
		return nil, fmt.Errorf("%w: job and path are required", domain.ErrInvalidInput)
	}
	return s.store.FileHistory(ctx, jobID, relPath)
}

// Runs returns recent index passes, newest first.
func (s *CatalogService) Runs(ctx context.Context, limit int) ([]domain.CrawlReport, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.ListRuns(ctx, limit)
}
