package models

import "time"

// RunSummary holds the counts of a finished run. It is built once from the
// full result set and exposes copies only, so it cannot be changed afterwards.
type RunSummary struct {
	total  int
	passed []PackageName
	failed []PackageName
}

// NewRunSummary derives a summary from results given in input order.
func NewRunSummary(results []ValidationResult) RunSummary {
	s := RunSummary{total: len(results)}
	for _, r := range results {
		if r.Passed {
			s.passed = append(s.passed, r.Package)
		} else {
			s.failed = append(s.failed, r.Package)
		}
	}
	return s
}

// Total returns the number of packages in the run.
func (s RunSummary) Total() int { return s.total }

// Passed returns the number of packages that passed.
func (s RunSummary) Passed() int { return len(s.passed) }

// Failed returns the number of packages that failed.
func (s RunSummary) Failed() int { return len(s.failed) }

// PassedNames returns the passed packages in input order.
func (s RunSummary) PassedNames() []PackageName {
	return append([]PackageName(nil), s.passed...)
}

// FailedNames returns the failed packages in input order.
func (s RunSummary) FailedNames() []PackageName {
	return append([]PackageName(nil), s.failed...)
}

// AggregatedLog is the merged report: info and error lines grouped per
// package, packages in input order.
type AggregatedLog struct {
	Info   []string
	Errors []string
}

// RunReport is everything a finished run hands back to its caller.
type RunReport struct {
	RunID       string
	StartedAt   time.Time
	Duration    time.Duration
	Concurrency int
	OutputPath  string
	Results     []ValidationResult
	Summary     RunSummary
	Log         AggregatedLog
}
