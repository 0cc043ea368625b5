// Package logger provides logging implementations for tsvalidate runs.
//
// The logger package offers leveled logging of run progress and summaries
// (ConsoleLogger, FileLogger) and the isolated per-package Buffer that a
// validator writes its diagnostics into. Console and file loggers are
// thread-safe; a Buffer belongs to exactly one validator goroutine.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/tsvalidate/internal/models"
	"github.com/mattn/go-isatty"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// It supports log level filtering to control message verbosity.
// Color output is enabled only when the writer is a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	scheme      *colorScheme
	progress    *ProgressBar
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	useColor := isTerminal(writer)

	cl := &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: useColor,
	}
	if useColor {
		cl.scheme = newColorScheme()
	}
	return cl
}

// isTerminal reports whether w is a TTY that should receive colored output.
// NO_COLOR (honored by fatih/color) disables color even on a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if _, ok := levelValues[normalized]; ok {
		return normalized
	}
	return "info"
}

var levelValues = map[string]int{
	"trace": levelTrace,
	"debug": levelDebug,
	"info":  levelInfo,
	"warn":  levelWarn,
	"error": levelError,
}

// IsValidLevel reports whether level is one of trace, debug, info, warn, error.
func IsValidLevel(level string) bool {
	_, ok := levelValues[strings.ToLower(strings.TrimSpace(level))]
	return ok
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	if v, ok := levelValues[level]; ok {
		return v
	}
	return levelInfo
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	tag := level
	if cl.colorOutput {
		tag = levelColor(level).Sprint(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), tag, message)
}

// LogRunStart logs the start of a run at INFO level and resets the progress bar.
// Format: "[HH:MM:SS] Validating <n> packages (max concurrency: <c>)"
func (cl *ConsoleLogger) LogRunStart(total, concurrency int, outputPath string) {
	if cl.writer == nil {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	cl.progress = NewProgressBar(total, 20, cl.colorOutput)
	if !cl.shouldLog("info") {
		return
	}

	label := "packages"
	if total == 1 {
		label = "package"
	}
	header := "Validating"
	if cl.colorOutput {
		header = cl.scheme.bold.Sprint(header)
	}
	fmt.Fprintf(cl.writer, "[%s] %s %d %s (max concurrency: %d)\n", timestamp(), header, total, label, concurrency)
	fmt.Fprintf(cl.writer, "[%s] Using output path: %s\n", timestamp(), outputPath)
}

// LogPackageResult logs the completion of one package at INFO level.
// Format: "[HH:MM:SS] <name> -- Passed." or "... -- Failed."
func (cl *ConsoleLogger) LogPackageResult(result models.ValidationResult) error {
	if cl.writer == nil || !cl.shouldLog("info") {
		return nil
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	line := fmt.Sprintf("[%s] %s -- %s.", timestamp(), result.Package, formatStatus(result, cl.scheme))
	if !result.Passed && result.FailedStep != "" {
		line += fmt.Sprintf(" (%s)", result.FailedStep)
	}
	if cl.shouldLog("debug") && result.Duration > 0 {
		line += fmt.Sprintf(" [%s]", formatDuration(result.Duration))
	}
	_, err := fmt.Fprintln(cl.writer, line)
	return err
}

// LogProgress logs run progress at DEBUG level.
// Format: "[HH:MM:SS] Progress: [====      ] 4/10 (40%)"
func (cl *ConsoleLogger) LogProgress(completed, total int) {
	if cl.writer == nil || !cl.shouldLog("debug") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	if cl.progress == nil || cl.progress.Total() != total {
		cl.progress = NewProgressBar(total, 20, cl.colorOutput)
	}
	cl.progress.Update(completed)
	fmt.Fprintf(cl.writer, "[%s] Progress: %s\n", timestamp(), cl.progress.Render())
}

// LogSummary logs the run summary at INFO level, including the failed package names.
func (cl *ConsoleLogger) LogSummary(report models.RunReport) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	s := report.Summary

	header := "=== Validation Summary ==="
	if cl.colorOutput {
		header = cl.scheme.bold.Sprint(header)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", ts, header)
	fmt.Fprintf(&b, "[%s] %s\n", ts, formatCount("Total", s.Total(), false, nil))
	fmt.Fprintf(&b, "[%s] %s\n", ts, formatCount("Passed", s.Passed(), false, cl.scheme))
	fmt.Fprintf(&b, "[%s] %s\n", ts, formatCount("Failed", s.Failed(), true, cl.scheme))
	fmt.Fprintf(&b, "[%s] Duration: %s\n", ts, formatDuration(report.Duration))

	if failed := s.FailedNames(); len(failed) > 0 {
		title := "Failed packages:"
		if cl.colorOutput {
			title = cl.scheme.fail.Sprint(title)
		}
		fmt.Fprintf(&b, "[%s] %s\n", ts, title)
		for _, r := range report.Results {
			if r.Passed {
				continue
			}
			detail := ""
			if r.Sandbox != "" {
				detail = fmt.Sprintf(" (sandbox kept at %s)", r.Sandbox)
			}
			fmt.Fprintf(&b, "[%s]   - %s%s\n", ts, r.Package, detail)
		}
	}

	cl.writer.Write([]byte(b.String()))
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, remainder/time.Second)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, remainder/time.Second)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// LogRunStart is a no-op implementation.
func (n *NoOpLogger) LogRunStart(total, concurrency int, outputPath string) {}

// LogPackageResult is a no-op implementation.
func (n *NoOpLogger) LogPackageResult(result models.ValidationResult) error { return nil }

// LogProgress is a no-op implementation.
func (n *NoOpLogger) LogProgress(completed, total int) {}

// LogSummary is a no-op implementation.
func (n *NoOpLogger) LogSummary(report models.RunReport) {}

// LogWarn is a no-op implementation.
func (n *NoOpLogger) LogWarn(message string) {}
