package models

import "time"

// RunRecord is a finished run as stored in the run history.
type RunRecord struct {
	ID          string
	StartedAt   time.Time
	Duration    time.Duration
	Total       int
	Passed      int
	Failed      int
	Concurrency int
}

// PackageRecord is one package's outcome within a stored run.
type PackageRecord struct {
	Package    PackageName
	Passed     bool
	FailedStep string
	Sandbox    string
	Position   int
}
