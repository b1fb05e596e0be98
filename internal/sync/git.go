package sync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitDestination commits the JSONL backup and the iCalendar file to a
// branch of an existing local clone and pushes it. file names the JSONL
// path inside the repo; the calendar sits next to it with an .ics
// extension.
type GitDestination struct {
	repo   string
	file   string
	branch string
}

func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch}
}

func (d *GitDestination) Name() string { return "git" }

// Write commits only when an artifact changed.
func (d *GitDestination) Write(ctx context.Context, snap *Snapshot) error {
	artifacts, err := Render(snap)
	if err != nil {
		return err
	}

	if _, err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}
	// The remote may not have the branch yet.
	_, _ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		rel := artifactPath(filepath.ToSlash(d.file), a)
		full := filepath.Join(d.repo, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		if err := os.WriteFile(full, a.Body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
		paths = append(paths, rel)
	}

	if _, err := d.git(ctx, append([]string{"add", "--"}, paths...)...); err != nil {
		return err
	}
	if _, err := d.git(ctx, "diff", "--cached", "--quiet"); err == nil {
		return nil
	}

	msg := fmt.Sprintf("sync %s: %s", snap.Taken.UTC().Format("2006-01-02T15:04Z"), snap.Summary())
	if _, err := d.git(ctx, "commit", "--quiet", "-m", msg); err != nil {
		return err
	}
	if _, err := d.git(ctx, "push", "--quiet", "origin", d.branch); err != nil {
		return err
	}
	return nil
}

// git runs a git subcommand in the clone. Failures carry git's own output.
func (d *GitDestination) git(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(out.String()))
	}
	return out.Bytes(), nil
}
