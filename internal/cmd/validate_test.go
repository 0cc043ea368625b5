package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/tsvalidate/internal/history"
)

// testWorkspace lays out a types directory, a config file pointing every
// path into a temp dir, and returns the config path and the root.
func testWorkspace(t *testing.T, install, typeCheck string, pkgs ...string) (string, string) {
	t.Helper()
	for _, bin := range []string{install, typeCheck} {
		if _, err := exec.LookPath(strings.Fields(bin)[0]); err != nil {
			t.Skipf("%s not available", bin)
		}
	}

	root := t.TempDir()
	types := filepath.Join(root, "types")
	require.NoError(t, os.MkdirAll(types, 0755))
	for _, p := range pkgs {
		dir := filepath.Join(types, p)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.d.ts"), []byte("export {};\n"), 0644))
	}

	configPath := filepath.Join(root, "config.yaml")
	content := fmt.Sprintf(`max_concurrency: 2
log_dir: %q
output_path: %q
types_path: %q
history_db: %q
install_command: %q
typecheck_command: %q
`,
		filepath.Join(root, "logs"),
		filepath.Join(root, "validate"),
		types,
		filepath.Join(root, "history.db"),
		install, typeCheck)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath, root
}

func executeCommand(args ...string) (string, error) {
	cmd := NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateAllWithNamesIsRejected(t *testing.T) {
	_, err := executeCommand("validate", "--all", "left-pad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflictingSelection))
}

func TestValidateListedPackagesPass(t *testing.T) {
	configPath, root := testWorkspace(t, "true", "true")

	out, err := executeCommand("validate", "--config", configPath, "left-pad", "@babel/core")
	require.NoError(t, err, out)

	assert.Contains(t, out, "left-pad -- Passed.")
	assert.Contains(t, out, "@babel/core -- Passed.")
	assert.Contains(t, out, "Run ID:")

	report, err := os.ReadFile(filepath.Join(root, "logs", "validate.md"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Processing `left-pad`...")
	assert.Contains(t, string(report), "Passed 2")

	_, err = os.Stat(filepath.Join(root, "logs", "validate-errors.md"))
	assert.NoError(t, err, "error stream is always written")
}

func TestValidateAllUsesTypesDirectory(t *testing.T) {
	configPath, root := testWorkspace(t, "true", "true", "react", "left-pad")

	out, err := executeCommand("validate", "--config", configPath, "--all")
	require.NoError(t, err, out)

	report, err := os.ReadFile(filepath.Join(root, "logs", "validate.md"))
	require.NoError(t, err)
	text := string(report)
	assert.Contains(t, text, "Total  2")
	assert.Less(t, strings.Index(text, "`left-pad`"), strings.Index(text, "`react`"), "--all validates in sorted order")
}

func TestValidateFailuresExitZeroByDefault(t *testing.T) {
	configPath, root := testWorkspace(t, "true", "false")

	out, err := executeCommand("validate", "--config", configPath, "a", "b")
	require.NoError(t, err, out)
	assert.Contains(t, out, "a -- Failed.")
	assert.Contains(t, out, "Errors written to:")

	report, err := os.ReadFile(filepath.Join(root, "logs", "validate.md"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "These packages failed: a,b")

	_, err = os.Stat(filepath.Join(root, "validate", "a"))
	assert.NoError(t, err, "failed sandbox should be kept")
}

func TestValidateFailOnError(t *testing.T) {
	configPath, _ := testWorkspace(t, "true", "false")

	_, err := executeCommand("validate", "--config", configPath, "--fail-on-error", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 package(s) failed")
}

func TestValidateRecordsHistory(t *testing.T) {
	configPath, root := testWorkspace(t, "true", "true")

	_, err := executeCommand("validate", "--config", configPath, "a")
	require.NoError(t, err)

	store, err := history.NewStore(filepath.Join(root, "history.db"))
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Passed)
}

func TestValidateFlagsOverrideConfig(t *testing.T) {
	configPath, root := testWorkspace(t, "true", "true")
	otherOutput := filepath.Join(root, "elsewhere")

	out, err := executeCommand("validate", "--config", configPath, "--output-path", otherOutput, "--max-concurrency", "1", "a")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Using output path: "+otherOutput)
	assert.Contains(t, out, "max concurrency: 1")
}

func TestValidateRejectsInvalidFlags(t *testing.T) {
	configPath, _ := testWorkspace(t, "true", "true")

	_, err := executeCommand("validate", "--config", configPath, "--max-concurrency", "0", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrency")

	_, err = executeCommand("validate", "--config", configPath, "--timeout", "soon", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timeout format")
}

func TestValidateNothingToDo(t *testing.T) {
	configPath, _ := testWorkspace(t, "true", "true")

	out, err := executeCommand("validate", "--config", configPath, "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "No packages to validate.")
}
