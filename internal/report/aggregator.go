// Package report merges per-package validation logs into the run's two
// ordered output streams and persists them.
package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/tsvalidate/internal/models"
)

// Stream names handed to the log sink.
const (
	InfoStream  = "validate"
	ErrorStream = "validate-errors"
)

// Sink persists a named stream of lines.
type Sink interface {
	WriteStream(name string, lines []string) error
}

// Aggregator builds the aggregated log and summary for a finished run.
type Aggregator struct {
	outputPath string
}

// NewAggregator creates an Aggregator for a run whose sandboxes live under outputPath.
func NewAggregator(outputPath string) *Aggregator {
	return &Aggregator{outputPath: outputPath}
}

// Aggregate consumes results in input order. Each package's lines stay
// together and packages appear in the order given, whatever order they
// finished in.
func (a *Aggregator) Aggregate(results []models.ValidationResult) (models.AggregatedLog, models.RunSummary) {
	summary := models.NewRunSummary(results)

	log := models.AggregatedLog{
		Info:   Preamble(a.outputPath),
		Errors: []string{},
	}
	for _, r := range results {
		log.Info = append(log.Info, r.InfoLines()...)
		log.Errors = append(log.Errors, r.ErrorLines()...)
	}
	log.Info = append(log.Info, Trailer(summary)...)

	return log, summary
}

// Preamble returns the lines that open the info stream.
func Preamble(outputPath string) []string {
	return []string{
		"",
		"Using output path: " + outputPath,
		"Running tests....",
		"",
	}
}

// Trailer returns the summary lines that close the info stream.
func Trailer(s models.RunSummary) []string {
	lines := []string{
		"",
		"",
		fmt.Sprintf("Total  %d", s.Total()),
		fmt.Sprintf("Passed %d", s.Passed()),
		fmt.Sprintf("Failed %d", s.Failed()),
		"",
	}
	if failed := s.FailedNames(); len(failed) > 0 {
		names := make([]string, len(failed))
		for i, n := range failed {
			names[i] = n.String()
		}
		lines = append(lines, "These packages failed: "+strings.Join(names, ","))
	}
	return lines
}

// Persist writes both streams. Both writes are attempted; the returned error
// joins whichever failed.
func Persist(sink Sink, log models.AggregatedLog) error {
	var errs []error
	if err := sink.WriteStream(InfoStream, log.Info); err != nil {
		errs = append(errs, fmt.Errorf("write %s: %w", InfoStream, err))
	}
	if err := sink.WriteStream(ErrorStream, log.Errors); err != nil {
		errs = append(errs, fmt.Errorf("write %s: %w", ErrorStream, err))
	}
	return errors.Join(errs...)
}
