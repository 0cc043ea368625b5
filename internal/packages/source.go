// Package packages locates the type declaration packages a run validates
// and resolves each one to the registry name its sandbox depends on.
package packages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harrison/tsvalidate/internal/models"
)

// DeclarationFile marks a directory as a package.
const DeclarationFile = "index.d.ts"

// Source lists packages and resolves them to sandbox metadata.
type Source interface {
	List(ctx context.Context) ([]models.PackageName, error)
	Lookup(name models.PackageName) (models.Package, error)
}

// FullPackageName returns the registry name for name under scope.
// Scoped names are mangled the way declaration packages are published:
// "@foo/bar" under "@types" becomes "@types/foo__bar".
func FullPackageName(scope string, name models.PackageName) string {
	return scope + "/" + name.DirName()
}

// DirectorySource treats every immediate sub-directory of root that holds
// an index.d.ts as a package.
type DirectorySource struct {
	root  string
	scope string
}

// NewDirectorySource creates a DirectorySource.
func NewDirectorySource(root, scope string) *DirectorySource {
	return &DirectorySource{root: root, scope: scope}
}

// Root returns the package directory.
func (s *DirectorySource) Root() string {
	return s.root
}

// List returns every package in root, sorted by name.
func (s *DirectorySource) List(ctx context.Context) ([]models.PackageName, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory %s: %w", s.root, err)
	}

	var names []models.PackageName
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if s.hasDeclarations(e.Name()) {
			names = append(names, models.PackageName(e.Name()))
		}
	}

	sortNames(names)
	return names, nil
}

// Lookup resolves name to the package its sandbox depends on. The package
// does not need to exist locally: the sandbox installs the published copy.
func (s *DirectorySource) Lookup(name models.PackageName) (models.Package, error) {
	if err := checkName(name); err != nil {
		return models.Package{}, err
	}
	pkg := models.Package{Name: name, DependencyName: FullPackageName(s.scope, name)}
	return pkg, pkg.Validate()
}

func (s *DirectorySource) hasDeclarations(dir string) bool {
	info, err := os.Stat(filepath.Join(s.root, dir, DeclarationFile))
	return err == nil && !info.IsDir()
}

// checkName accepts "name" and "@scope/name" and nothing that could escape
// the output root.
func checkName(name models.PackageName) error {
	s := string(name)
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("package name is empty")
	}
	rest := s
	if strings.HasPrefix(s, "@") {
		parts := strings.Split(s[1:], "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("invalid scoped package name %q", s)
		}
		rest = parts[0] + parts[1]
	}
	if strings.ContainsAny(rest, `/\`) || strings.Contains(s, "..") {
		return fmt.Errorf("invalid package name %q", s)
	}
	return nil
}

func sortNames(names []models.PackageName) {
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
}
