package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/tsvalidate/internal/models"
)

// Logger receives run progress. Implementations must be safe for concurrent
// use. The scheduler reports one completion at a time, so package results and
// progress counts arrive in completion order.
type Logger interface {
	LogRunStart(total, concurrency int, outputPath string)
	LogPackageResult(result models.ValidationResult) error
	LogProgress(completed, total int)
	LogSummary(report models.RunReport)
	LogWarn(message string)
}

// Worker validates a single package.
type Worker func(ctx context.Context, name models.PackageName) (models.ValidationResult, error)

// Scheduler runs a worker over a list of packages with at most limit workers
// in flight. A new worker starts as soon as any running one finishes.
type Scheduler struct {
	limit  int
	logger Logger
}

// NewScheduler constructs a Scheduler. The logger is optional and may be nil.
func NewScheduler(limit int, logger Logger) (*Scheduler, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, limit)
	}
	return &Scheduler{limit: limit, logger: logger}, nil
}

// Limit returns the concurrency limit.
func (s *Scheduler) Limit() int {
	return s.limit
}

// RunAll applies worker to every item and returns the results in input
// order, whatever order the workers finished in.
//
// A worker error stops any further items from starting; workers already in
// flight run to completion, then the first error is returned with no results.
// Cancelling ctx has the same effect, and running commands are killed.
func (s *Scheduler) RunAll(ctx context.Context, items []models.PackageName, worker Worker) ([]models.ValidationResult, error) {
	results := make([]models.ValidationResult, len(items))
	if len(items) == 0 {
		return results, nil
	}

	var (
		g       errgroup.Group
		stopped atomic.Bool

		// mu orders completion reports so progress counts never go backwards.
		mu        sync.Mutex
		completed int
	)
	g.SetLimit(s.limit)

	for i, name := range items {
		if stopped.Load() || ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			// A slot may free up because a sibling just failed.
			if stopped.Load() || ctx.Err() != nil {
				return nil
			}

			res, err := worker(ctx, name)
			if err != nil {
				stopped.Store(true)
				return fmt.Errorf("validating %s: %w", name, err)
			}
			if res.Package == "" {
				res.Package = name
			}
			results[i] = res

			mu.Lock()
			defer mu.Unlock()
			completed++
			if s.logger != nil {
				if err := s.logger.LogPackageResult(res); err != nil {
					s.logger.LogWarn(fmt.Sprintf("could not log result for %s: %v", name, err))
				}
				s.logger.LogProgress(completed, len(items))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
