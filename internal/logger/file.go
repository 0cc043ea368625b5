package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/tsvalidate/internal/filelock"
	"github.com/harrison/tsvalidate/internal/models"
)

// StreamExtension is appended to persisted stream names ("validate" -> "validate.md").
const StreamExtension = ".md"

// FileLogger logs run events to files in the log directory.
// It creates a timestamped per-run log file, per-package detailed logs,
// maintains a latest.log symlink pointing to the most recent run, and
// persists the aggregated report streams.
// It is thread-safe and supports log level filtering.
type FileLogger struct {
	logDir      string
	runLog      *os.File
	runFile     string
	packagesDir string
	logLevel    string
	mu          sync.Mutex
}

// NewFileLogger creates a FileLogger writing to logDir with the given level.
// It creates the directory if needed, opens a timestamped run log file,
// and points latest.log at it.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	packagesDir := filepath.Join(logDir, "packages")
	if err := os.MkdirAll(packagesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create packages directory: %w", err)
	}

	// run-YYYYMMDD-HHMMSS.log
	ts := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", ts))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:      logDir,
		runLog:      file,
		runFile:     runFile,
		packagesDir: packagesDir,
		logLevel:    normalizeLogLevel(logLevel),
	}

	fl.writeRunLog("=== tsvalidate Run Log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return fl, nil
}

// RunFile returns the path of this run's log file.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

// StreamPath returns the file a named stream is persisted to.
func (fl *FileLogger) StreamPath(name string) string {
	return StreamPath(fl.logDir, name)
}

// StreamPath returns the file a named stream is persisted to inside logDir.
func StreamPath(logDir, name string) string {
	return filepath.Join(logDir, name+StreamExtension)
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogRunStart logs the start of a run at INFO level.
func (fl *FileLogger) LogRunStart(total, concurrency int, outputPath string) {
	if !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Validating %d package(s) (max concurrency: %d, output path: %s)\n",
		timestamp(), total, concurrency, outputPath))
}

// LogPackageResult writes one line to the run log and the package's full
// log to packages/<name>.log.
func (fl *FileLogger) LogPackageResult(result models.ValidationResult) error {
	if fl.shouldLog("info") {
		fl.writeRunLog(fmt.Sprintf("[%s] %s -- %s. (%.1fs)\n",
			timestamp(), result.Package, result.Status(), result.Duration.Seconds()))
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	path := filepath.Join(fl.packagesDir, result.Package.DirName()+".log")

	var b strings.Builder
	fmt.Fprintf(&b, "=== Package %s ===\n", result.Package)
	fmt.Fprintf(&b, "Status: %s\n", result.Status())
	if result.FailedStep != "" {
		fmt.Fprintf(&b, "Failed step: %s\n", result.FailedStep)
	}
	if result.Sandbox != "" {
		fmt.Fprintf(&b, "Sandbox: %s\n", result.Sandbox)
	}
	fmt.Fprintf(&b, "Duration: %.1fs\n\n", result.Duration.Seconds())
	for _, rec := range result.Log {
		tag := "INFO "
		if rec.Level == models.LevelError {
			tag = "ERROR"
		}
		fmt.Fprintf(&b, "%s %s\n", tag, rec.Text)
	}
	fmt.Fprintf(&b, "\nCompleted at: %s\n", time.Now().Format(time.RFC3339))

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write package log: %w", err)
	}
	return nil
}

// LogProgress is a no-op: progress bars are console-only.
func (fl *FileLogger) LogProgress(completed, total int) {}

// LogSummary logs the run summary at INFO level.
func (fl *FileLogger) LogSummary(report models.RunReport) {
	if !fl.shouldLog("info") {
		return
	}

	ts := timestamp()
	s := report.Summary

	status := "SUCCESS"
	if s.Failed() > 0 {
		status = "PARTIAL"
		if s.Passed() == 0 {
			status = "FAILED"
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s] === VALIDATION SUMMARY ===\n", ts)
	fmt.Fprintf(&b, "[%s] Run ID:       %s\n", ts, report.RunID)
	fmt.Fprintf(&b, "[%s] Total:        %d\n", ts, s.Total())
	fmt.Fprintf(&b, "[%s] Passed:       %d\n", ts, s.Passed())
	fmt.Fprintf(&b, "[%s] Failed:       %d\n", ts, s.Failed())
	fmt.Fprintf(&b, "[%s] Total time:   %.1fs\n", ts, report.Duration.Seconds())
	fmt.Fprintf(&b, "[%s] Status:       %s (%d/%d packages passed)\n", ts, status, s.Passed(), s.Total())
	for _, name := range s.FailedNames() {
		fmt.Fprintf(&b, "[%s]   failed: %s\n", ts, name)
	}
	fmt.Fprintf(&b, "[%s] Completed at: %s\n", ts, time.Now().Format(time.RFC3339))

	fl.writeRunLog(b.String())
}

// WriteStream persists a named stream as <logDir>/<name>.md, one line per
// entry. The file is replaced atomically under a file lock, so concurrent
// runs sharing a log directory never interleave their reports.
func (fl *FileLogger) WriteStream(name string, lines []string) error {
	if name == "" {
		return fmt.Errorf("stream name is required")
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := filelock.LockAndWrite(fl.StreamPath(name), []byte(content)); err != nil {
		return fmt.Errorf("failed to persist %s: %w", name, err)
	}
	return nil
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
