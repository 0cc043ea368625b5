//go:build property

package executor

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestSchedulerProperties checks ordering and the concurrency bound over
// random list lengths and limits.
func TestSchedulerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("results follow input order", prop.ForAll(
		func(length int, limit int) bool {
			s, err := NewScheduler(limit, nil)
			if err != nil {
				return false
			}
			items := names(length)
			results, err := s.RunAll(context.Background(), items, newTrackingWorker(time.Millisecond, int64(length*31+limit)).run)
			if err != nil || len(results) != len(items) {
				return false
			}
			for i := range items {
				if results[i].Package != items[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.IntRange(1, 12),
	))

	properties.Property("never more than limit workers in flight", prop.ForAll(
		func(length int, limit int) bool {
			s, err := NewScheduler(limit, nil)
			if err != nil {
				return false
			}
			w := newTrackingWorker(2*time.Millisecond, int64(length+limit))
			if _, err := s.RunAll(context.Background(), names(length), w.run); err != nil {
				return false
			}
			bound := limit
			if length < bound {
				bound = length
			}
			return int(w.peak.Load()) <= bound
		},
		gen.IntRange(1, 30),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
