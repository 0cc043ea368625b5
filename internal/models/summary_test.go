package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRunSummary(t *testing.T) {
	results := []ValidationResult{
		{Package: "c", Passed: true},
		{Package: "a", FailedStep: StepInstall},
		{Package: "b", Passed: true},
	}

	s := NewRunSummary(results)
	assert.Equal(t, 3, s.Total())
	assert.Equal(t, 2, s.Passed())
	assert.Equal(t, 1, s.Failed())
	assert.Equal(t, []PackageName{"c", "b"}, s.PassedNames())
	assert.Equal(t, []PackageName{"a"}, s.FailedNames())
	assert.Equal(t, s.Total(), s.Passed()+s.Failed())
}

func TestRunSummaryEmpty(t *testing.T) {
	s := NewRunSummary(nil)
	assert.Zero(t, s.Total())
	assert.Empty(t, s.PassedNames())
	assert.Empty(t, s.FailedNames())
}

func TestRunSummaryReturnsCopies(t *testing.T) {
	s := NewRunSummary([]ValidationResult{{Package: "a", Passed: true}})

	names := s.PassedNames()
	names[0] = "mutated"

	assert.Equal(t, []PackageName{"a"}, s.PassedNames())
}

func TestValidationResultLines(t *testing.T) {
	r := ValidationResult{
		Package: "a",
		Log: []LineRecord{
			{Level: LevelInfo, Text: "Processing `a`..."},
			{Level: LevelError, Text: "npm ERR! 404"},
			{Level: LevelInfo, Text: "Failed!"},
		},
	}

	assert.Equal(t, []string{"Processing `a`...", "Failed!"}, r.InfoLines())
	assert.Equal(t, []string{"npm ERR! 404"}, r.ErrorLines())
	assert.Equal(t, "Failed", r.Status())

	r.Passed = true
	assert.Equal(t, "Passed", r.Status())
}
