package models

import "time"

// Level tags a line record as informational or error output.
type Level string

// Line record levels
const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Validation steps, recorded on a failed result to tell where it stopped.
const (
	StepSandbox   = "sandbox"
	StepInstall   = "install"
	StepTypeCheck = "typecheck"
)

// LineRecord is one line of a package's validation log.
type LineRecord struct {
	Level Level
	Text  string
}

// ValidationResult represents the outcome of validating a single package.
// It is produced once per package per run and not modified afterwards.
type ValidationResult struct {
	Package    PackageName   // The package that was validated
	Passed     bool          // True only if install and type-check both succeeded
	Log        []LineRecord  // Chronological log of this package's own operations
	FailedStep string        // Step that failed: "sandbox", "install", "typecheck" (empty when passed)
	Sandbox    string        // Sandbox left on disk for inspection (empty when removed)
	Duration   time.Duration // Time taken to validate
}

// Status returns "Passed" or "Failed".
func (r ValidationResult) Status() string {
	if r.Passed {
		return "Passed"
	}
	return "Failed"
}

// InfoLines returns the text of the result's info-level records, in order.
func (r ValidationResult) InfoLines() []string {
	return r.lines(LevelInfo)
}

// ErrorLines returns the text of the result's error-level records, in order.
func (r ValidationResult) ErrorLines() []string {
	return r.lines(LevelError)
}

func (r ValidationResult) lines(level Level) []string {
	var out []string
	for _, rec := range r.Log {
		if rec.Level == level {
			out = append(out, rec.Text)
		}
	}
	return out
}
