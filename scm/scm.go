// Package scm is a thin, synchronous wrapper over the `git` binary:
// repo_root, repo_name, branch_exists, plus the worktree add/remove
// primitives the checkout manager builds on. There is no RPC framing
// here — git's CLI output is the protocol.
package scm

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// RepoRoot returns the top-level directory of the working tree containing
// dir, or an error if dir is not inside a git working tree.
func RepoRoot(dir string) (string, error) {
	out, err := run(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not inside a git working tree: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// RepoName returns the basename of the repo root, used as the worktree
// base directory component.
func RepoName(root string) string {
	trimmed := strings.TrimRight(root, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// BranchExists reports whether branch exists in the repo rooted at root.
func BranchExists(root, branch string) bool {
	_, err := run(root, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// AddWorktree creates (or attaches to) an isolated working copy of the
// repo rooted at root, for branch, at path. If the branch does not yet
// exist it is created from the current HEAD.
func AddWorktree(root, path, branch string) error {
	if BranchExists(root, branch) {
		_, err := run(root, "worktree", "add", path, branch)
		return err
	}
	_, err := run(root, "worktree", "add", "-b", branch, path)
	return err
}

// RemoveWorktree removes a worktree at path, best-effort.
func RemoveWorktree(root, path string) error {
	_, err := run(root, "worktree", "remove", "--force", path)
	return err
}

func run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}
