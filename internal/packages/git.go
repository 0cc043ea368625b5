package packages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/harrison/tsvalidate/internal/models"
)

// GitChangedSource lists the packages whose directory has staged, unstaged,
// or untracked changes relative to HEAD in the enclosing git work tree.
// Packages deleted in the work tree are skipped.
type GitChangedSource struct {
	*DirectorySource
	repoPath string
}

// NewGitChangedSource creates a GitChangedSource for the packages in dir.
// repoPath may be any directory inside the work tree.
func NewGitChangedSource(repoPath string, dir *DirectorySource) *GitChangedSource {
	return &GitChangedSource{DirectorySource: dir, repoPath: repoPath}
}

// List returns the changed packages, sorted by name.
func (s *GitChangedSource) List(ctx context.Context) ([]models.PackageName, error) {
	repo, err := git.PlainOpenWithOptions(s.repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("getting worktree status: %w", err)
	}

	prefix, err := s.relativeRoot(wt.Filesystem.Root())
	if err != nil {
		return nil, err
	}

	seen := make(map[models.PackageName]bool)
	var names []models.PackageName
	for path, fs := range status {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if fs.Staging == git.Unmodified && fs.Worktree == git.Unmodified {
			continue
		}
		dir, ok := packageDir(path, prefix)
		if !ok {
			continue
		}
		name := models.PackageName(dir)
		if seen[name] || !s.hasDeclarations(dir) {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	sortNames(names)
	return names, nil
}

// relativeRoot returns the package directory relative to the work tree root,
// slash-separated, with a trailing slash ("" when they coincide).
func (s *GitChangedSource) relativeRoot(worktreeRoot string) (string, error) {
	absRoot, err := filepath.Abs(s.Root())
	if err != nil {
		return "", err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolving package directory: %w", err)
	}
	wtRoot, err := filepath.EvalSymlinks(worktreeRoot)
	if err != nil {
		return "", fmt.Errorf("resolving worktree root: %w", err)
	}

	rel, err := filepath.Rel(wtRoot, absRoot)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("package directory %s is outside the git work tree %s", s.Root(), worktreeRoot)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel) + "/", nil
}

// packageDir returns the first path element below prefix, if path is
// inside a package directory.
func packageDir(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	i := strings.Index(rest, "/")
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}
