package logger

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harrison/tsvalidate/internal/models"
)

// colorScheme defines consistent colors for run output.
// Green: passed packages and counts
// Red: failed packages and counts
// Yellow: warnings
// Cyan: labels and identifiers
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	bold    *color.Color
}

// newColorScheme creates the standard color scheme.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		bold:    color.New(color.Bold),
	}
}

// levelColor returns the color used for a level tag.
func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "INFO":
		return color.New(color.FgBlue)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

// formatStatus renders "Passed"/"Failed" for a result, colored when enabled.
func formatStatus(result models.ValidationResult, scheme *colorScheme) string {
	if scheme == nil {
		return result.Status()
	}
	if result.Passed {
		return scheme.success.Sprint(result.Status())
	}
	return scheme.fail.Sprint(result.Status())
}

// formatCount renders "label: n". Non-zero failure counts are red.
func formatCount(label string, n int, failure bool, scheme *colorScheme) string {
	if scheme == nil {
		return fmt.Sprintf("%s: %d", label, n)
	}
	value := fmt.Sprintf("%d", n)
	switch {
	case failure && n > 0:
		value = scheme.fail.Sprint(value)
	case !failure && n > 0:
		value = scheme.success.Sprint(value)
	}
	return fmt.Sprintf("%s: %s", scheme.label.Sprint(label), value)
}
