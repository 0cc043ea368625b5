package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Wait blocks on output pipes held open by
// grandchildren after the process itself has been killed.
const waitDelay = 5 * time.Second

// Command is an external tool invocation, run with a sandbox as its working directory.
type Command struct {
	Description string   // Short label used in log lines, e.g. "npm"
	Name        string   // Executable
	Args        []string // Arguments
}

// String returns the command line as typed.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// ParseCommand splits a configured command line on whitespace. The first
// field is the executable; description defaults to its base name.
func ParseCommand(description, line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("command line is empty")
	}
	if description == "" {
		description = fields[0]
	}
	return Command{Description: description, Name: fields[0], Args: fields[1:]}, nil
}

// CommandResult is the outcome of one command run. It is a value, not an
// error: a command that ran and failed is reported here with Succeeded false.
type CommandResult struct {
	Succeeded bool
	Stdout    string
	Stderr    string
	ExitCode  int
	TimedOut  bool
	Duration  time.Duration
}

// FailureReason describes why a run did not succeed. It is empty on success.
func (r CommandResult) FailureReason() string {
	switch {
	case r.Succeeded:
		return ""
	case r.TimedOut:
		return fmt.Sprintf("timed out after %s", r.Duration.Round(time.Second))
	case r.ExitCode != 0:
		return fmt.Sprintf("exit status %d", r.ExitCode)
	default:
		return "unexpected output on stderr"
	}
}

// CommandRunner abstracts external process execution for testability.
// Implementations return an error only when the command could not be run at
// all; a run that exits badly is a CommandResult with Succeeded false.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command, dir string) (CommandResult, error)
}

// ProcessRunner runs commands as child processes.
type ProcessRunner struct {
	Timeout     time.Duration // Per-command limit; zero means none
	AllowStderr bool          // Treat stderr output on a zero exit as success
	Env         []string      // Extra environment entries appended to os.Environ()
}

// NewProcessRunner creates a ProcessRunner.
func NewProcessRunner(timeout time.Duration, allowStderr bool) *ProcessRunner {
	return &ProcessRunner{Timeout: timeout, AllowStderr: allowStderr}
}

// Run executes cmd in dir and waits for it. Stdout and stderr are captured
// separately. A run counts as successful only when the process exits 0 and,
// unless AllowStderr is set, writes nothing but whitespace to stderr.
func (r *ProcessRunner) Run(ctx context.Context, cmd Command, dir string) (CommandResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return CommandResult{}, NewInfrastructureError(fmt.Sprintf("working directory %s", dir), err)
	}
	if !info.IsDir() {
		return CommandResult{}, NewInfrastructureError(fmt.Sprintf("working directory %s", dir), errors.New("not a directory"))
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	c.Dir = dir
	c.WaitDelay = waitDelay
	if len(r.Env) > 0 {
		c.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	if err := c.Start(); err != nil {
		return CommandResult{}, NewInfrastructureError(fmt.Sprintf("start %s", cmd.Name), err)
	}
	waitErr := c.Wait()

	result := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	// The caller's context going away aborts the run; our own deadline does not.
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			if result.Stderr == "" {
				result.Stderr = waitErr.Error()
			}
		}
		return result, nil
	}

	result.Succeeded = r.AllowStderr || strings.TrimSpace(result.Stderr) == ""
	return result, nil
}
