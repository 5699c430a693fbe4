// Package testutil provides a temp git repository builder for tests that
// exercise real working-tree status.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// GitRepo is a throwaway git repository rooted in a test temp dir.
type GitRepo struct {
	t    *testing.T
	Root string
}

// NewGitRepo initializes a fresh repository. Tests are skipped when the
// git binary is not available.
func NewGitRepo(t *testing.T) *GitRepo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	g := &GitRepo{t: t, Root: t.TempDir()}
	g.Git("init", "-b", "main")
	g.Git("config", "user.email", "test@example.com")
	g.Git("config", "user.name", "Test User")
	return g
}

// Git runs a git command in the repository, failing the test on error.
func (g *GitRepo) Git(args ...string) string {
	g.t.Helper()
	cmd := exec.Command("git", append([]string{"-C", g.Root}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		g.t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return string(out)
}

// WriteFile creates or overwrites a file at a repo-relative path.
func (g *GitRepo) WriteFile(rel, content string) {
	g.t.Helper()
	path := filepath.Join(g.Root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		g.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		g.t.Fatal(err)
	}
}

// Remove deletes a file at a repo-relative path.
func (g *GitRepo) Remove(rel string) {
	g.t.Helper()
	if err := os.Remove(filepath.Join(g.Root, rel)); err != nil {
		g.t.Fatal(err)
	}
}

// CommitAll stages everything and commits.
func (g *GitRepo) CommitAll(msg string) {
	g.t.Helper()
	g.Git("add", ".")
	g.Git("commit", "-m", msg)
}
