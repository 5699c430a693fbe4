// Package gitstatus queries and normalizes git working-tree status.
//
// The reconciliation engine treats version control as an external
// collaborator reached through the Client interface; the only operations it
// needs are a porcelain status query and the current HEAD commit.
package gitstatus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotRepository is returned when the reconciliation root is not inside
// a git working tree. Callers surface this as a failure-status result
// rather than a fatal error.
var ErrNotRepository = errors.New("not a git repository")

// Client provides the status query against a working tree.
type Client interface {
	// QueryStatus returns one normalized entry per changed path, plus
	// diagnostics for status lines that could not be decoded.
	QueryStatus(ctx context.Context, root string) ([]Entry, []Diagnostic, error)
	// Head returns the current HEAD commit hash.
	Head(ctx context.Context, root string) (string, error)
}

// ShellClient implements Client by shelling out to the git command.
type ShellClient struct{}

// NewShellClient creates a git client that uses the git command.
func NewShellClient() *ShellClient {
	return &ShellClient{}
}

// QueryStatus runs git status --porcelain=v1 in root and normalizes its
// output. One blocking call per reconciliation pass.
func (c *ShellClient) QueryStatus(ctx context.Context, root string) ([]Entry, []Diagnostic, error) {
	if err := c.checkRepository(root); err != nil {
		return nil, nil, err
	}

	cmd := exec.CommandContext(ctx, "git", "-C", root, "status", "--porcelain=v1")
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, nil, fmt.Errorf("git status failed: %w: %s", err, exitErr.Stderr)
		}
		return nil, nil, fmt.Errorf("git status failed: %w", err)
	}

	entries, diags := Normalize(string(output))
	return entries, diags, nil
}

// Head returns the HEAD commit hash, or an empty string for a repository
// without commits.
func (c *ShellClient) Head(ctx context.Context, root string) (string, error) {
	if err := c.checkRepository(root); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, "git", "-C", root, "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		// A fresh repository has no HEAD yet; that is not an error
		// worth failing the pass over.
		return "", nil
	}

	return strings.TrimSpace(string(output)), nil
}

// checkRepository verifies that root exists and contains a git repository.
func (c *ShellClient) checkRepository(root string) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("%w: %s", ErrNotRepository, root)
	}
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return fmt.Errorf("%w: %s", ErrNotRepository, root)
	}
	return nil
}
