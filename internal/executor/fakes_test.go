package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/harrison/tsvalidate/internal/models"
)

var (
	testInstall   = Command{Description: "npm", Name: "npm", Args: []string{"install"}}
	testTypeCheck = Command{Description: "tsc", Name: "tsc"}
)

func testValidatorConfig() ValidatorConfig {
	return ValidatorConfig{Install: testInstall, TypeCheck: testTypeCheck}
}

// scriptedRunner returns canned results keyed by "<sandbox dir name>/<command description>".
// Unscripted commands succeed with empty output.
type scriptedRunner struct {
	mu       sync.Mutex
	results  map[string]CommandResult
	errors   map[string]error
	delay    time.Duration
	calls    []string
	inFlight int
	maxSeen  int
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{
		results: make(map[string]CommandResult),
		errors:  make(map[string]error),
	}
}

func (r *scriptedRunner) script(pkg models.PackageName, cmd Command, res CommandResult) {
	r.results[pkg.DirName()+"/"+cmd.Description] = res
}

func (r *scriptedRunner) fail(pkg models.PackageName, cmd Command, err error) {
	r.errors[pkg.DirName()+"/"+cmd.Description] = err
}

func (r *scriptedRunner) Run(ctx context.Context, cmd Command, dir string) (CommandResult, error) {
	key := filepath.Base(dir) + "/" + cmd.Description

	r.mu.Lock()
	r.calls = append(r.calls, key)
	r.inFlight++
	if r.inFlight > r.maxSeen {
		r.maxSeen = r.inFlight
	}
	res, scripted := r.results[key]
	err := r.errors[key]
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return CommandResult{}, ctx.Err()
		}
	}
	if err != nil {
		return CommandResult{}, err
	}
	if !scripted {
		res = CommandResult{Succeeded: true}
	}
	return res, nil
}

func (r *scriptedRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *scriptedRunner) MaxConcurrent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxSeen
}

// typesResolver depends every package on "@types/<name>".
type typesResolver struct {
	missing map[models.PackageName]bool
}

func (r typesResolver) Lookup(name models.PackageName) (models.Package, error) {
	if r.missing[name] {
		return models.Package{}, fmt.Errorf("package %s not found", name)
	}
	return models.Package{Name: name, DependencyName: "@types/" + name.DirName()}, nil
}

// memorySink keeps persisted streams in memory.
type memorySink struct {
	mu      sync.Mutex
	streams map[string][]string
	writes  int
}

func (s *memorySink) WriteStream(name string, lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streams == nil {
		s.streams = make(map[string][]string)
	}
	s.streams[name] = append([]string(nil), lines...)
	s.writes++
	return nil
}

// recordingLogger captures logger callbacks.
type recordingLogger struct {
	mu        sync.Mutex
	started   int
	completed []models.PackageName
	progress  []int
	warnings  []string
	summaries int
}

func (l *recordingLogger) LogRunStart(total, concurrency int, outputPath string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started++
}

func (l *recordingLogger) LogPackageResult(result models.ValidationResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed = append(l.completed, result.Package)
	return nil
}

func (l *recordingLogger) LogProgress(completed, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = append(l.progress, completed)
}

func (l *recordingLogger) LogSummary(report models.RunReport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summaries++
}

func (l *recordingLogger) LogWarn(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, message)
}
