package models

import (
	"errors"
	"fmt"
	"strings"
)

// PackageName identifies one type declaration package within a run.
// Plain names ("left-pad") and scoped names ("@babel/core") are both accepted.
type PackageName string

// String returns the name as a plain string.
func (n PackageName) String() string {
	return string(n)
}

// DirName returns a filesystem-safe directory name for the package.
// Scoped names are flattened so that "@babel/core" becomes "babel__core".
// The flattening is not injective: "@a/b" and "a__b" share a directory,
// which CheckNames rejects within a run.
func (n PackageName) DirName() string {
	s := string(n)
	if strings.HasPrefix(s, "@") {
		s = strings.Replace(s[1:], "/", "__", 1)
	}
	return s
}

// Package holds the metadata needed to build a sandbox manifest for one package.
type Package struct {
	Name           PackageName // Name as it appears in the package source
	DependencyName string      // Registry name the sandbox depends on, e.g. "@types/left-pad"
}

// Validate checks if the package has all required fields
func (p *Package) Validate() error {
	if p.Name == "" {
		return errors.New("package name is required")
	}
	if p.DependencyName == "" {
		return fmt.Errorf("package %s: dependency name is required", p.Name)
	}
	return nil
}

// CheckNames verifies a run's input list: every name non-empty, unique, and
// mapped to a directory no other name in the list maps to.
func CheckNames(names []PackageName) error {
	seen := make(map[PackageName]bool, len(names))
	dirs := make(map[string]PackageName, len(names))
	for i, name := range names {
		if strings.TrimSpace(string(name)) == "" {
			return fmt.Errorf("package name at position %d is empty", i)
		}
		if seen[name] {
			return fmt.Errorf("package %q listed more than once", name)
		}
		seen[name] = true

		dir := name.DirName()
		if other, ok := dirs[dir]; ok {
			return fmt.Errorf("packages %q and %q both map to sandbox %q", other, name, dir)
		}
		dirs[dir] = name
	}
	return nil
}

// ToPackageNames converts raw CLI arguments to package names.
func ToPackageNames(args []string) []PackageName {
	names := make([]PackageName, 0, len(args))
	for _, a := range args {
		names = append(names, PackageName(a))
	}
	return names
}
