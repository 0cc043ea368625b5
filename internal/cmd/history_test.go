package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/tsvalidate/internal/history"
	"github.com/harrison/tsvalidate/internal/models"
)

func historyConfig(t *testing.T, dbPath string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf("history_db: %q\n", dbPath)), 0644))
	return configPath
}

func seedRun(t *testing.T, dbPath string) string {
	t.Helper()
	store, err := history.NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	results := []models.ValidationResult{
		{Package: "left-pad", Passed: true},
		{Package: "broken", FailedStep: models.StepTypeCheck, Sandbox: "/out/broken"},
	}
	run := &models.RunReport{
		RunID:       uuid.NewString(),
		StartedAt:   time.Now(),
		Duration:    3 * time.Second,
		Concurrency: 25,
		Results:     results,
		Summary:     models.NewRunSummary(results),
	}
	require.NoError(t, store.RecordRun(context.Background(), run))
	return run.RunID
}

func TestHistoryListsRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	id := seedRun(t, dbPath)

	out, err := executeCommand("history", "--config", historyConfig(t, dbPath))
	require.NoError(t, err)
	assert.Contains(t, out, "RUN ID")
	assert.Contains(t, out, id)
}

func TestHistoryShowsRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	id := seedRun(t, dbPath)

	out, err := executeCommand("history", "--config", historyConfig(t, dbPath), id)
	require.NoError(t, err)
	assert.Contains(t, out, "Total 2, passed 1, failed 1")
	assert.Contains(t, out, "left-pad")
	assert.Contains(t, out, "broken (typecheck) sandbox: /out/broken")
}

func TestHistoryUnknownRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	seedRun(t, dbPath)

	_, err := executeCommand("history", "--config", historyConfig(t, dbPath), uuid.NewString())
	assert.ErrorIs(t, err, history.ErrRunNotFound)
}

func TestHistoryWithoutDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	out, err := executeCommand("history", "--config", historyConfig(t, dbPath))
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet.")
}

func TestHistoryDisabled(t *testing.T) {
	_, err := executeCommand("history", "--config", historyConfig(t, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}
