package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/tsvalidate/internal/filelock"
	"github.com/harrison/tsvalidate/internal/models"
	"github.com/harrison/tsvalidate/internal/report"
)

// Recorder stores finished runs. Recording is best-effort: a failure is
// logged as a warning and never fails the run.
type Recorder interface {
	RecordRun(ctx context.Context, run *models.RunReport) error
}

// ServiceConfig holds the run-level settings.
type ServiceConfig struct {
	OutputPath     string
	MaxConcurrency int
	Validator      ValidatorConfig
}

// Service validates a set of packages end to end: it prepares the output
// root, schedules one validator per package, and aggregates and persists
// the logs.
type Service struct {
	cfg      ServiceConfig
	resolver PackageResolver
	runner   CommandRunner
	sink     report.Sink
	logger   Logger
	recorder Recorder
}

// NewService constructs a Service. The logger is optional and may be nil.
func NewService(cfg ServiceConfig, resolver PackageResolver, runner CommandRunner, sink report.Sink, logger Logger) (*Service, error) {
	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, cfg.MaxConcurrency)
	}
	if cfg.OutputPath == "" {
		return nil, errors.New("output path is required")
	}
	if resolver == nil || runner == nil || sink == nil {
		return nil, errors.New("resolver, runner and sink are required")
	}
	return &Service{
		cfg:      cfg,
		resolver: resolver,
		runner:   runner,
		sink:     sink,
		logger:   logger,
	}, nil
}

// SetRecorder enables run history.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// Run validates names and returns the finished report. Failed packages are
// part of a successful run; an error means the run itself could not be
// carried out and no report was persisted.
func (s *Service) Run(ctx context.Context, names []models.PackageName) (*models.RunReport, error) {
	if err := models.CheckNames(names); err != nil {
		return nil, err
	}

	root := s.cfg.OutputPath
	lock := filelock.ForDirectory(root)
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, filelock.ErrLocked) {
			return nil, NewInfrastructureError("another run in progress", err)
		}
		return nil, NewInfrastructureError("lock output directory", err)
	}
	defer lock.Unlock()

	if err := recreateDir(root); err != nil {
		return nil, NewInfrastructureError("could not recreate output directory", err)
	}

	started := time.Now()
	runID := uuid.NewString()
	if s.logger != nil {
		s.logger.LogRunStart(len(names), s.cfg.MaxConcurrency, root)
	}

	scheduler, err := NewScheduler(s.cfg.MaxConcurrency, s.logger)
	if err != nil {
		return nil, err
	}
	validator := NewValidator(s.resolver, NewSandboxBuilder(root), s.runner, s.cfg.Validator)

	results, err := scheduler.RunAll(ctx, names, validator.Validate)
	if err != nil {
		return nil, err
	}

	log, summary := report.NewAggregator(root).Aggregate(results)
	run := &models.RunReport{
		RunID:       runID,
		StartedAt:   started,
		Duration:    time.Since(started),
		Concurrency: s.cfg.MaxConcurrency,
		OutputPath:  root,
		Results:     results,
		Summary:     summary,
		Log:         log,
	}

	if err := report.Persist(s.sink, log); err != nil {
		return nil, fmt.Errorf("failed to persist run logs: %w", err)
	}

	if s.recorder != nil {
		if err := s.recorder.RecordRun(ctx, run); err != nil && s.logger != nil {
			s.logger.LogWarn(fmt.Sprintf("could not record run history: %v", err))
		}
	}

	if s.logger != nil {
		s.logger.LogSummary(*run)
	}
	return run, nil
}

// recreateDir removes dir and everything in it, then creates it empty.
func recreateDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}
