package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrison/tsvalidate/internal/models"
)

// Files written into every sandbox.
const (
	ManifestFile = "package.json"
	TSConfigFile = "tsconfig.json"
	EntryFile    = "index.ts"
)

// manifest is the sandbox's package.json. It depends on nothing but the
// published package under test, pinned to "latest".
type manifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Description  string            `json:"description"`
	Author       string            `json:"author"`
	License      string            `json:"license"`
	Repository   string            `json:"repository"`
	Dependencies map[string]string `json:"dependencies"`
}

type compilerOptions struct {
	Module           string   `json:"module"`
	Target           string   `json:"target"`
	NoImplicitAny    bool     `json:"noImplicitAny"`
	StrictNullChecks bool     `json:"strictNullChecks"`
	NoEmit           bool     `json:"noEmit"`
	Lib              []string `json:"lib"`
}

type tsconfig struct {
	CompilerOptions compilerOptions `json:"compilerOptions"`
}

// SandboxBuilder lays out one isolated directory per package under a shared
// output root.
type SandboxBuilder struct {
	root string
}

// NewSandboxBuilder creates a builder whose sandboxes live under root.
func NewSandboxBuilder(root string) *SandboxBuilder {
	return &SandboxBuilder{root: root}
}

// Root returns the output root.
func (b *SandboxBuilder) Root() string {
	return b.root
}

// Path returns the sandbox directory for a package. Distinct package names
// always get distinct directories.
func (b *SandboxBuilder) Path(name models.PackageName) string {
	return filepath.Join(b.root, name.DirName())
}

// Build creates the sandbox for pkg and writes its three files. Building the
// same package twice overwrites the files with identical content.
func (b *SandboxBuilder) Build(pkg models.Package) (string, error) {
	if err := pkg.Validate(); err != nil {
		return "", &SandboxError{Package: pkg.Name, Phase: PhaseCreate, Err: err}
	}

	dir := b.Path(pkg.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return dir, &SandboxError{Package: pkg.Name, Phase: PhaseCreate, Path: dir, Err: err}
	}

	files := []struct {
		name    string
		content func() ([]byte, error)
	}{
		{ManifestFile, func() ([]byte, error) { return marshalJSON(newManifest(pkg)) }},
		{TSConfigFile, func() ([]byte, error) { return marshalJSON(newTSConfig()) }},
		{EntryFile, func() ([]byte, error) { return []byte(entrySource(pkg)), nil }},
	}

	for _, f := range files {
		path := filepath.Join(dir, f.name)
		data, err := f.content()
		if err != nil {
			return dir, &SandboxError{Package: pkg.Name, Phase: PhaseCreate, Path: path, Err: err}
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return dir, &SandboxError{Package: pkg.Name, Phase: PhaseCreate, Path: path, Err: err}
		}
	}

	return dir, nil
}

// Remove deletes a sandbox directory and everything in it.
func (b *SandboxBuilder) Remove(name models.PackageName, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return &SandboxError{Package: name, Phase: PhaseCleanup, Path: dir, Err: err}
	}
	return nil
}

func newManifest(pkg models.Package) manifest {
	return manifest{
		Name:         pkg.Name.DirName() + "_test",
		Version:      "1.0.0",
		Description:  "test",
		Author:       "",
		License:      "ISC",
		Repository:   "https://github.com/Microsoft/types-publisher",
		Dependencies: map[string]string{pkg.DependencyName: "latest"},
	}
}

func newTSConfig() tsconfig {
	return tsconfig{
		CompilerOptions: compilerOptions{
			Module:           "commonjs",
			Target:           "es5",
			NoImplicitAny:    false,
			StrictNullChecks: false,
			NoEmit:           true,
			Lib:              []string{"es5", "es2015.promise", "dom"},
		},
	}
}

// entrySource is the single reference directive that pulls the package's
// declarations into the compilation.
func entrySource(pkg models.Package) string {
	return fmt.Sprintf("/// <reference types=\"%s\" />\r\n", pkg.Name)
}

func marshalJSON(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
