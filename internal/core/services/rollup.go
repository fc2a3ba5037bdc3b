package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driving"
	"github.com/custodia-labs/tankfinder/internal/logger"
)

// Ensure RollupService implements the interface.
var _ driving.RollupService = (*RollupService)(nil)

// RollupService repairs job flags and aggregates outside of a crawl.
type RollupService struct {
	store driven.CatalogStore
}

// NewRollupService creates a rollup service.
func NewRollupService(store driven.CatalogStore) *RollupService {
	return &RollupService{store: store}
}

// RollupJob recomputes one job.
func (s *RollupService) RollupJob(ctx context.Context, jobID string) (*domain.Rollup, error) {
	if err := s.store.VerifySchema(ctx); err != nil {
		return nil, err
	}
	return s.rollup(ctx, jobID)
}

// RollupAll recomputes every job. A failing job is logged and skipped;
// the failures are returned together once the sweep ends.
func (s *RollupService) RollupAll(ctx context.Context) (int, error) {
	if err := s.store.VerifySchema(ctx); err != nil {
		return 0, err
	}

	jobs, err := s.store.ListJobs(ctx, domain.YearRange{})
	if err != nil {
		return 0, fmt.Errorf("listing jobs: %w", err)
	}
	logger.Debug("Rolling up %d jobs", len(jobs))

	var errs []error
	updated := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if _, err := s.rollup(ctx, job.ID); err != nil {
			logger.Warn("Rollup of %s failed: %v", job.ID, err)
			errs = append(errs, fmt.Errorf("rollup %s: %w", job.ID, err))
			continue
		}
		updated++
	}
	return updated, errors.Join(errs...)
}

func (s *RollupService) rollup(ctx context.Context, jobID string) (*domain.Rollup, error) {
	var r domain.Rollup
	err := s.store.WithJobTx(ctx, func(tx driven.CatalogTx) error {
		if _, err := tx.GetJob(ctx, jobID); err != nil {
			return err
		}
		live, err := tx.LiveFiles(ctx, jobID)
		if err != nil {
			return err
		}
		r = domain.ComputeRollup(live)
		return tx.SaveRollup(ctx, jobID, r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}
