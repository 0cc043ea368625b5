package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/tsvalidate/internal/models"
)

// ErrInvalidConcurrency is returned when the concurrency limit is below one.
var ErrInvalidConcurrency = errors.New("max concurrency must be at least 1")

// SandboxPhase identifies which sandbox operation failed.
type SandboxPhase int

const (
	// PhaseCreate covers creating the directory and writing the manifest files.
	PhaseCreate SandboxPhase = iota
	// PhaseCleanup covers removing a sandbox after a passing validation.
	PhaseCleanup
)

// String returns the string representation of SandboxPhase.
func (p SandboxPhase) String() string {
	switch p {
	case PhaseCreate:
		return "create"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// SandboxError reports a filesystem failure while building or removing a
// package sandbox. It is always turned into a Failed result for the package,
// never into a run-level error.
type SandboxError struct {
	Package models.PackageName // Package whose sandbox failed
	Phase   SandboxPhase       // Operation that failed
	Path    string             // File or directory involved
	Err     error              // Underlying error
}

// Error implements the error interface for SandboxError.
func (e *SandboxError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("sandbox %s for %s", e.Phase, e.Package))
	if e.Path != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", e.Path))
	}
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *SandboxError) Unwrap() error {
	return e.Err
}

// InfrastructureError reports a failure of the machinery around validation:
// the output root cannot be locked or recreated, a working directory is
// missing, or an external tool cannot be started. It aborts the run.
type InfrastructureError struct {
	Op        string    // Operation that failed, e.g. "recreate output directory"
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

// NewInfrastructureError creates a new InfrastructureError with the current timestamp.
func NewInfrastructureError(op string, err error) *InfrastructureError {
	return &InfrastructureError{
		Op:        op,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for InfrastructureError.
func (e *InfrastructureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("infrastructure failure: %s", e.Op)
	}
	return fmt.Sprintf("infrastructure failure: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// IsInfrastructureError checks if the error is or wraps an InfrastructureError.
func IsInfrastructureError(err error) bool {
	if err == nil {
		return false
	}
	var ie *InfrastructureError
	return errors.As(err, &ie)
}

// IsSandboxError checks if the error is or wraps a SandboxError.
func IsSandboxError(err error) bool {
	if err == nil {
		return false
	}
	var se *SandboxError
	return errors.As(err, &se)
}
