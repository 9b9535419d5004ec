// Package git reads lightweight repository status for run context, shelling
// out to the git binary rather than linking a git implementation.
package git

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Info describes the state of a git repository.
type Info struct {
	Branch string // Current branch name (or "HEAD" when detached)
	Hash   string // Short (7-char) commit hash
	Dirty  bool   // Uncommitted changes present
	Ahead  int    // Commits ahead of upstream (0 without upstream)
	Behind int    // Commits behind upstream (0 without upstream)
}

// GetInfo returns repository info for dir, or (nil, nil) when dir is not
// inside a git work tree.
func GetInfo(dir string) (*Info, error) {
	if out, err := runGit(dir, "rev-parse", "--is-inside-work-tree"); err != nil || strings.TrimSpace(out) != "true" {
		return nil, nil
	}

	info := &Info{}

	branch, err := runGit(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to read branch: %w", err)
	}
	info.Branch = strings.TrimSpace(branch)

	hash, err := runGit(dir, "rev-parse", "--short=7", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to read commit hash: %w", err)
	}
	info.Hash = strings.TrimSpace(hash)

	status, err := runGit(dir, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}
	info.Dirty = strings.TrimSpace(status) != ""

	// Ahead/behind only exist relative to an upstream; without one they
	// stay zero.
	counts, err := runGit(dir, "rev-list", "--left-right", "--count", "@{upstream}...HEAD")
	if err == nil {
		fields := strings.Fields(strings.TrimSpace(counts))
		if len(fields) == 2 {
			info.Behind, _ = strconv.Atoi(fields[0])
			info.Ahead, _ = strconv.Atoi(fields[1])
		}
	}

	return info, nil
}

// runGit executes a git command in dir and returns its stdout.
func runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
