package check

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaki95/check-engine/internal/domain"
	"github.com/jaki95/check-engine/internal/storage"
)

// DefaultBatchSize is how many records FixtureChecker reports per step.
const DefaultBatchSize = 5

// FixtureChecker replays the archived result of a project, category by
// category, so the full task lifecycle can be exercised without detectors.
type FixtureChecker struct {
	store     storage.Storage
	batchSize int
	stepDelay time.Duration
}

// NewFixtureChecker creates a checker that reads results from store.
// stepDelay is slept between batches.
func NewFixtureChecker(store storage.Storage, stepDelay time.Duration) *FixtureChecker {
	return &FixtureChecker{
		store:     store,
		batchSize: DefaultBatchSize,
		stepDelay: stepDelay,
	}
}

// Totals counts the archived records per enabled category.
func (f *FixtureChecker) Totals(ctx context.Context, req Request) (map[domain.Category]int, error) {
	_, byCategory, err := f.load(ctx, req)
	if err != nil {
		return nil, err
	}
	totals := make(map[domain.Category]int, len(byCategory))
	for cat, records := range byCategory {
		totals[cat] = len(records)
	}
	return totals, nil
}

// Run emits the archived records in batches and returns the filtered result.
func (f *FixtureChecker) Run(ctx context.Context, req Request, emit func(Step) error) (*domain.Result, error) {
	archived, byCategory, err := f.load(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &domain.Result{
		ServiceUnavailable:  archived.ServiceUnavailable,
		UnavailableServices: archived.UnavailableServices,
		Summary:             make(map[domain.Category]int),
	}

	for _, cat := range domain.Categories {
		records := byCategory[cat]
		for start := 0; start < len(records); start += f.batchSize {
			end := min(start+f.batchSize, len(records))

			if err := sleepCtx(ctx, f.stepDelay); err != nil {
				return nil, err
			}
			step := Step{
				Category:  cat,
				Processed: end - start,
				Errors:    end - start,
				Message:   fmt.Sprintf("checked %d/%d %s items", end, len(records), cat),
			}
			if err := emit(step); err != nil {
				return nil, err
			}
		}
		result.Errors = append(result.Errors, records...)
		result.Summary[cat] = len(records)
	}

	slog.Debug("Fixture check replayed", "taskId", req.TaskID, "projectId", req.ProjectID, "errors", len(result.Errors))
	return result, nil
}

func (f *FixtureChecker) load(ctx context.Context, req Request) (*domain.Result, map[domain.Category][]domain.ErrorRecord, error) {
	rules, err := ParseRules(req.RuleConfig)
	if err != nil {
		return nil, nil, err
	}

	archived, err := f.store.LoadResult(ctx, req.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load fixture for project %s: %w", req.ProjectID, err)
	}

	byCategory := make(map[domain.Category][]domain.ErrorRecord)
	for _, r := range archived.Errors {
		if rules.Enabled(r.Category) {
			byCategory[r.Category] = append(byCategory[r.Category], r)
		}
	}
	return archived, byCategory, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
