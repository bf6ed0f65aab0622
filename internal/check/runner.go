package check

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jaki95/check-engine/internal/domain"
	"github.com/jaki95/check-engine/internal/job"
	"github.com/jaki95/check-engine/internal/progress"
	"github.com/jaki95/check-engine/internal/storage"
)

// DefaultTimeout keeps a check from hanging indefinitely.
const DefaultTimeout = 45 * time.Minute

// Runner drives a Checker for tasks registered in a job.Manager.
type Runner struct {
	jobs    *job.Manager
	checker Checker
	archive storage.Storage
	timeout time.Duration
}

// NewRunner creates a runner. archive may be nil, in which case finished
// results are not archived.
func NewRunner(jobs *job.Manager, checker Checker, archive storage.Storage) *Runner {
	return &Runner{
		jobs:    jobs,
		checker: checker,
		archive: archive,
		timeout: DefaultTimeout,
	}
}

// SetTimeout overrides the per-task timeout.
func (r *Runner) SetTimeout(timeout time.Duration) {
	r.timeout = timeout
}

// Validate rejects rule configurations the checker cannot run.
func (r *Runner) Validate(ruleConfig json.RawMessage) error {
	_, err := ParseRules(ruleConfig)
	return err
}

// RunSync checks a project without registering a task.
func (r *Runner) RunSync(ctx context.Context, projectID string, ruleConfig json.RawMessage) (*domain.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req := Request{ProjectID: projectID, RuleConfig: ruleConfig}
	return r.checker.Run(ctx, req, func(Step) error { return ctx.Err() })
}

// Run executes a registered task until it completes, fails or is cancelled.
// ctx must be the context returned by job.Manager.CreateJob.
func (r *Runner) Run(ctx context.Context, taskID string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	task, err := r.jobs.GetJob(taskID)
	if err != nil {
		slog.Error("Job failed to retrieve", "jobId", taskID, "error", err)
		return
	}
	ruleConfig, err := r.jobs.RuleConfig(taskID)
	if err != nil {
		slog.Error("Job failed to retrieve rule config", "jobId", taskID, "error", err)
		return
	}

	if err := r.jobs.MarkRunning(taskID, "planning"); err != nil {
		slog.Warn("Job not started", "jobId", taskID, "error", err)
		return
	}
	slog.Info("Starting check", "jobId", taskID, "projectId", task.ProjectID)

	req := Request{TaskID: taskID, ProjectID: task.ProjectID, RuleConfig: ruleConfig}
	result, err := r.execute(ctx, req)
	r.finish(ctx, req, result, err)
}

func (r *Runner) execute(ctx context.Context, req Request) (*domain.Result, error) {
	totals, err := r.checker.Totals(ctx, req)
	if err != nil {
		return nil, err
	}

	tracker := progress.NewProgressTracker()
	for cat, total := range totals {
		tracker.SetTotal(cat, total)
	}
	tracker.AddListener(func(event progress.Event) {
		if event.Stage != progress.StageChecking {
			return
		}
		if err := r.jobs.UpdateProgress(req.TaskID, event.Progress, event.Phase, event.Counters); err != nil {
			// paused or cancelled between batches; the next batch catches up
			slog.Debug("Progress update skipped", "jobId", req.TaskID, "error", err)
		}
	})

	emit := func(step Step) error {
		if err := r.jobs.WaitWhilePaused(ctx, req.TaskID); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		tracker.Advance(step.Category, step.Processed, step.Errors, step.Message)
		return nil
	}

	return r.checker.Run(ctx, req, emit)
}

func (r *Runner) finish(ctx context.Context, req Request, result *domain.Result, err error) {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("Job cancelled", "jobId", req.TaskID)
			return
		}
		slog.Error("Job failed", "jobId", req.TaskID, "error", err)
		if ferr := r.jobs.Fail(req.TaskID, err); ferr != nil {
			slog.Warn("Job failure not recorded", "jobId", req.TaskID, "error", ferr)
		}
		return
	}

	if err := r.jobs.Complete(req.TaskID, result); err != nil {
		slog.Warn("Job completion not recorded", "jobId", req.TaskID, "error", err)
		return
	}
	slog.Info("Job completed successfully", "jobId", req.TaskID, "errors", len(result.Errors))

	if r.archive == nil {
		return
	}
	path, err := r.archive.SaveRun(context.WithoutCancel(ctx), req.ProjectID, req.TaskID, result)
	if err != nil {
		slog.Error("Failed to archive result", "jobId", req.TaskID, "error", err)
		return
	}
	slog.Debug("Result archived", "jobId", req.TaskID, "path", path)
}
