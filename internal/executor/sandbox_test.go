package executor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/tsvalidate/internal/models"
)

func TestSandboxBuildWritesManifestFiles(t *testing.T) {
	root := t.TempDir()
	b := NewSandboxBuilder(root)
	pkg := models.Package{Name: "left-pad", DependencyName: "@types/left-pad"}

	dir, err := b.Build(pkg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "left-pad"), dir)

	var m map[string]interface{}
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "left-pad_test", m["name"])
	assert.Equal(t, "1.0.0", m["version"])
	assert.Equal(t, "ISC", m["license"])
	assert.Equal(t, map[string]interface{}{"@types/left-pad": "latest"}, m["dependencies"])

	var ts struct {
		CompilerOptions map[string]interface{} `json:"compilerOptions"`
	}
	data, err = os.ReadFile(filepath.Join(dir, TSConfigFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &ts))
	assert.Equal(t, "commonjs", ts.CompilerOptions["module"])
	assert.Equal(t, "es5", ts.CompilerOptions["target"])
	assert.Equal(t, false, ts.CompilerOptions["noImplicitAny"])
	assert.Equal(t, false, ts.CompilerOptions["strictNullChecks"])
	assert.Equal(t, true, ts.CompilerOptions["noEmit"])
	assert.Equal(t, []interface{}{"es5", "es2015.promise", "dom"}, ts.CompilerOptions["lib"])

	entry, err := os.ReadFile(filepath.Join(dir, EntryFile))
	require.NoError(t, err)
	assert.Equal(t, "/// <reference types=\"left-pad\" />\r\n", string(entry))
}

func TestSandboxBuildIsIdempotent(t *testing.T) {
	b := NewSandboxBuilder(t.TempDir())
	pkg := models.Package{Name: "react", DependencyName: "@types/react"}

	dir, err := b.Build(pkg)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)

	_, err = b.Build(pkg)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSandboxPathFlattensScopedNames(t *testing.T) {
	b := NewSandboxBuilder("/out")

	assert.Equal(t, filepath.Join("/out", "babel__core"), b.Path("@babel/core"))
	assert.NotEqual(t, b.Path("@babel/core"), b.Path("babel/core"))
}

func TestSandboxBuildRejectsIncompletePackage(t *testing.T) {
	b := NewSandboxBuilder(t.TempDir())

	_, err := b.Build(models.Package{Name: "x"})
	require.Error(t, err)
	assert.True(t, IsSandboxError(err))
}

func TestSandboxBuildReportsUnwritableRoot(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	b := NewSandboxBuilder(blocker)
	_, err := b.Build(models.Package{Name: "x", DependencyName: "@types/x"})

	var se *SandboxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, PhaseCreate, se.Phase)
}

func TestSandboxRemove(t *testing.T) {
	b := NewSandboxBuilder(t.TempDir())
	dir, err := b.Build(models.Package{Name: "x", DependencyName: "@types/x"})
	require.NoError(t, err)

	require.NoError(t, b.Remove("x", dir))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
