package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

// schedulerStore keeps daemon task state and links each scheduled index
// pass to the crawl run it recorded.
type schedulerStore struct {
	store *Store
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const taskColumns = `id, name, interval_seconds, last_run, next_run, last_error, last_success, last_run_id, enabled`

const resultColumns = `task_id, run_id, started_at, ended_at, success, error,
	jobs, scanned, created, updated, deleted, rolled_up`

// GetTask returns nil and no error for an unknown task.
func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, taskID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading task %s: %w", taskID, err)
	}
	return task, nil
}

// ListTasks returns every task ordered by ID.
func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

// SaveTask upserts a task by ID.
func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.store.wdb.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_seconds = excluded.interval_seconds,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			last_success = excluded.last_success,
			last_run_id = excluded.last_run_id,
			enabled = excluded.enabled
	`, task.ID, task.Name, int64(task.Interval/time.Second),
		formatNullableTime(task.LastRun), formatNullableTime(task.NextRun),
		nullString(task.LastError), formatNullableTime(task.LastSuccess),
		nullString(task.LastRunID), boolToInt(task.Enabled))
	if err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return nil
}

// RecordResult appends an execution. A run ID with no crawl_runs row
// (a dry pass, or one that failed before recording) is stored as NULL.
func (s *schedulerStore) RecordResult(ctx context.Context, r *domain.TaskResult) error {
	if r == nil || r.TaskID == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.store.wdb.ExecContext(ctx, `
		INSERT INTO task_results (`+resultColumns+`)
		VALUES (?, (SELECT id FROM crawl_runs WHERE id = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.TaskID, nullString(r.RunID), formatTime(r.StartedAt), formatTime(r.EndedAt),
		boolToInt(r.Success), nullString(r.Error),
		r.Jobs, r.Scanned, r.Created, r.Updated, r.Deleted, r.RolledUp)
	if err != nil {
		return fmt.Errorf("recording %s result: %w", r.TaskID, err)
	}
	return nil
}

// LatestResults returns the most recent execution of each task.
func (s *schedulerStore) LatestResults(ctx context.Context) ([]domain.TaskResult, error) {
	return s.queryResults(ctx, `
		WHERE id IN (SELECT MAX(id) FROM task_results GROUP BY task_id)
		ORDER BY task_id`)
}

// recentResults returns up to limit executions of one task, newest first.
func (s *schedulerStore) recentResults(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	return s.queryResults(ctx, `WHERE task_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`, taskID, limit)
}

func (s *schedulerStore) queryResults(ctx context.Context, clause string, args ...any) ([]domain.TaskResult, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+resultColumns+` FROM task_results `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("querying task results: %w", err)
	}
	defer rows.Close()

	var results []domain.TaskResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.TaskResult
		var runID, errMsg sql.NullString
		var started, ended string
		var success int
		if err := rows.Scan(&r.TaskID, &runID, &started, &ended, &success, &errMsg,
			&r.Jobs, &r.Scanned, &r.Created, &r.Updated, &r.Deleted, &r.RolledUp); err != nil {
			return nil, fmt.Errorf("scanning task result: %w", err)
		}
		r.RunID = runID.String
		r.StartedAt = parseTime(started)
		r.EndedAt = parseTime(ended)
		r.Success = success == 1
		r.Error = errMsg.String
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task results: %w", err)
	}
	return results, nil
}

// PruneHistory keeps the newest keep executions of each task.
func (s *schedulerStore) PruneHistory(ctx context.Context, keep int) error {
	_, err := s.store.wdb.ExecContext(ctx, `
		DELETE FROM task_results WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY started_at DESC, id DESC) AS rn
				FROM task_results
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning task results: %w", err)
	}
	return nil
}

func scanTask(s scanner) (*domain.ScheduledTask, error) {
	var task domain.ScheduledTask
	var seconds int64
	var lastRun, nextRun, lastError, lastSuccess, lastRunID sql.NullString
	var enabled int
	if err := s.Scan(&task.ID, &task.Name, &seconds, &lastRun, &nextRun,
		&lastError, &lastSuccess, &lastRunID, &enabled); err != nil {
		return nil, err
	}
	task.Interval = time.Duration(seconds) * time.Second
	task.LastRun = parseNullableTime(lastRun)
	task.NextRun = parseNullableTime(nextRun)
	task.LastError = lastError.String
	task.LastSuccess = parseNullableTime(lastSuccess)
	task.LastRunID = lastRunID.String
	task.Enabled = enabled == 1
	return &task, nil
}
