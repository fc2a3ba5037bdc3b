package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// LastRunID is the crawl run of the most recent index pass.
	LastRunID string

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult is one scheduled execution. Index passes carry the crawl
// run they produced and its counters; rollup repairs carry RolledUp.
type TaskResult struct {
	TaskID    string    `json:"task_id"`
	RunID     string    `json:"run_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`

	Jobs     int `json:"jobs"`
	Scanned  int `json:"scanned"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
	RolledUp int `json:"rolled_up"`
}

// RecordCrawl copies the run ID and file counters of an index pass.
// A nil report leaves the result untouched.
func (r *TaskResult) RecordCrawl(report *CrawlReport) {
	if report == nil {
		return
	}
	r.RunID = report.RunID
	r.Jobs = report.Jobs
	r.Scanned = report.Totals.Scanned
	r.Created = report.Totals.Created
	r.Updated = report.Totals.Updated
	r.Deleted = report.Totals.Deleted
}

// Duration is how long the execution took.
func (r *TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// TaskConfigs holds per-task configuration.
	TaskConfigs map[string]TaskConfig
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	// Enabled indicates whether this task should run.
	Enabled bool

	// Interval defines how often the task should run.
	Interval time.Duration
}

// GetTaskConfig returns the configuration for a specific task.
// Returns a zero TaskConfig if the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// SchedulerConfigFromSettings builds the scheduler configuration.
func SchedulerConfigFromSettings(s SchedulerSettings) SchedulerConfig {
	return SchedulerConfig{
		Enabled: s.Enabled,
		TaskConfigs: map[string]TaskConfig{
			TaskIDIndex: {
				Enabled:  s.IndexInterval > 0,
				Interval: s.IndexInterval.Std(),
			},
			TaskIDRollupRepair: {
				Enabled:  s.RollupInterval > 0,
				Interval: s.RollupInterval.Std(),
			},
		},
	}
}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfigFromSettings(DefaultAppSettings().Scheduler)
}

// Task IDs for built-in tasks.
const (
	TaskIDIndex        = "index"
	TaskIDRollupRepair = "rollup-repair"
)
