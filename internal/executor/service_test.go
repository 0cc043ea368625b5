package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/tsvalidate/internal/filelock"
	"github.com/harrison/tsvalidate/internal/models"
	"github.com/harrison/tsvalidate/internal/report"
)

type fakeRecorder struct {
	runs []*models.RunReport
	err  error
}

func (r *fakeRecorder) RecordRun(ctx context.Context, run *models.RunReport) error {
	if r.err != nil {
		return r.err
	}
	r.runs = append(r.runs, run)
	return nil
}

func newTestService(t *testing.T, limit int, runner CommandRunner) (*Service, *memorySink, *recordingLogger, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "validate")
	sink := &memorySink{}
	log := &recordingLogger{}
	svc, err := NewService(ServiceConfig{
		OutputPath:     root,
		MaxConcurrency: limit,
		Validator:      testValidatorConfig(),
	}, typesResolver{}, runner, sink, log)
	require.NoError(t, err)
	return svc, sink, log, root
}

func TestServiceSinglePackagePasses(t *testing.T) {
	svc, sink, log, root := newTestService(t, 1, newScriptedRunner())

	run, err := svc.Run(context.Background(), []models.PackageName{"left-pad"})
	require.NoError(t, err)

	require.Len(t, run.Results, 1)
	assert.Equal(t, models.PackageName("left-pad"), run.Results[0].Package)
	assert.True(t, run.Results[0].Passed)
	assert.Equal(t, 1, run.Summary.Total())
	assert.Equal(t, 1, run.Summary.Passed())
	assert.Equal(t, 0, run.Summary.Failed())
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, root, run.OutputPath)

	assert.Equal(t, run.Log.Info, sink.streams[report.InfoStream])
	assert.Contains(t, sink.streams[report.InfoStream], "Using output path: "+root)
	assert.Equal(t, 1, log.started)
	assert.Equal(t, 1, log.summaries)
}

func TestServiceMixedResultsKeepInputOrder(t *testing.T) {
	runner := newScriptedRunner()
	runner.delay = 5 * time.Millisecond
	runner.script("b", testInstall, CommandResult{ExitCode: 1, Stderr: "npm ERR! 404\n"})
	svc, sink, _, root := newTestService(t, 2, runner)

	run, err := svc.Run(context.Background(), []models.PackageName{"a", "b", "c"})
	require.NoError(t, err)

	require.Len(t, run.Results, 3)
	for i, want := range []models.PackageName{"a", "b", "c"} {
		assert.Equal(t, want, run.Results[i].Package)
	}
	assert.True(t, run.Results[0].Passed)
	assert.False(t, run.Results[1].Passed)
	assert.True(t, run.Results[2].Passed)
	assert.Equal(t, []models.PackageName{"b"}, run.Summary.FailedNames())

	assert.NotContains(t, runner.Calls(), "b/tsc")
	_, statErr := os.Stat(filepath.Join(root, "b"))
	assert.NoError(t, statErr, "failed sandbox should remain")
	_, statErr = os.Stat(filepath.Join(root, "a"))
	assert.True(t, os.IsNotExist(statErr), "passing sandbox should be removed")

	assert.Contains(t, sink.streams[report.ErrorStream], "npm ERR! 404")
	info := sink.streams[report.InfoStream]
	assert.Equal(t, "These packages failed: b", info[len(info)-1])
}

func TestServiceCapAboveListLength(t *testing.T) {
	runner := newScriptedRunner()
	runner.delay = 10 * time.Millisecond
	svc, _, _, _ := newTestService(t, 10, runner)

	run, err := svc.Run(context.Background(), []models.PackageName{"a", "b", "c"})
	require.NoError(t, err)

	assert.Len(t, run.Results, 3)
	assert.LessOrEqual(t, runner.MaxConcurrent(), 3)
}

func TestServiceOutputRootFailureAbortsBeforeResults(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	runner := newScriptedRunner()
	sink := &memorySink{}
	svc, err := NewService(ServiceConfig{
		OutputPath:     filepath.Join(blocker, "validate"),
		MaxConcurrency: 2,
		Validator:      testValidatorConfig(),
	}, typesResolver{}, runner, sink, nil)
	require.NoError(t, err)

	run, err := svc.Run(context.Background(), []models.PackageName{"a"})
	require.Error(t, err)
	assert.True(t, IsInfrastructureError(err))
	assert.Nil(t, run)
	assert.Empty(t, runner.Calls())
	assert.Zero(t, sink.writes, "no partial log may be written")
}

func TestServiceInfrastructureErrorDuringRun(t *testing.T) {
	runner := newScriptedRunner()
	runner.fail("b", testInstall, NewInfrastructureError("start npm", errors.New("not found")))
	svc, sink, _, _ := newTestService(t, 1, runner)

	run, err := svc.Run(context.Background(), []models.PackageName{"a", "b", "c"})
	require.Error(t, err)
	assert.True(t, IsInfrastructureError(err))
	assert.Nil(t, run)
	assert.Zero(t, sink.writes)
	assert.NotContains(t, runner.Calls(), "c/npm")
}

func TestServiceRejectsConcurrentRun(t *testing.T) {
	svc, _, _, root := newTestService(t, 1, newScriptedRunner())

	held := filelock.ForDirectory(root)
	require.NoError(t, held.TryLock())
	defer held.Unlock()

	_, err := svc.Run(context.Background(), []models.PackageName{"a"})
	require.Error(t, err)
	assert.True(t, IsInfrastructureError(err))
	assert.ErrorIs(t, err, filelock.ErrLocked)
}

func TestServiceRecreatesOutputRoot(t *testing.T) {
	svc, _, _, root := newTestService(t, 1, newScriptedRunner())
	stale := filepath.Join(root, "stale")
	require.NoError(t, os.MkdirAll(stale, 0755))

	_, err := svc.Run(context.Background(), []models.PackageName{"a"})
	require.NoError(t, err)

	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr), "previous run's sandboxes should be cleared")
}

func TestServiceRejectsDuplicateNames(t *testing.T) {
	runner := newScriptedRunner()
	svc, _, _, _ := newTestService(t, 1, runner)

	_, err := svc.Run(context.Background(), []models.PackageName{"a", "a"})
	require.Error(t, err)
	assert.Empty(t, runner.Calls())
}

func TestServiceRejectsNamesSharingASandbox(t *testing.T) {
	runner := newScriptedRunner()
	runner.delay = 20 * time.Millisecond
	svc, sink, _, root := newTestService(t, 2, runner)

	_, err := svc.Run(context.Background(), []models.PackageName{"@a/b", "a__b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both map to sandbox")
	assert.Empty(t, runner.Calls())
	assert.Zero(t, sink.writes)
	assert.NoDirExists(t, filepath.Join(root, "a__b"))
}

func TestServiceRecordsHistory(t *testing.T) {
	svc, _, log, _ := newTestService(t, 1, newScriptedRunner())
	rec := &fakeRecorder{}
	svc.SetRecorder(rec)

	run, err := svc.Run(context.Background(), []models.PackageName{"a"})
	require.NoError(t, err)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, run.RunID, rec.runs[0].RunID)
	assert.Empty(t, log.warnings)
}

func TestServiceHistoryFailureIsAWarning(t *testing.T) {
	svc, _, log, _ := newTestService(t, 1, newScriptedRunner())
	svc.SetRecorder(&fakeRecorder{err: errors.New("database is locked")})

	_, err := svc.Run(context.Background(), []models.PackageName{"a"})
	require.NoError(t, err)
	require.Len(t, log.warnings, 1)
	assert.Contains(t, log.warnings[0], "database is locked")
}

func TestNewServiceValidatesConfig(t *testing.T) {
	_, err := NewService(ServiceConfig{OutputPath: "x", MaxConcurrency: 0}, typesResolver{}, newScriptedRunner(), &memorySink{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConcurrency)

	_, err = NewService(ServiceConfig{MaxConcurrency: 1}, typesResolver{}, newScriptedRunner(), &memorySink{}, nil)
	assert.Error(t, err)
}
