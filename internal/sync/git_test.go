package sync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

func TestGitDestination(t *testing.T) {
	repoDir := newClone(t)

	dest := NewGitDestination(repoDir, "rendezvous.jsonl", "main")
	snap := &Snapshot{
		Profiles: []*model.Profile{{ID: "pf-ada", Name: "Ada", Timezone: "UTC", IsActive: true}},
		Taken:    syncTime,
	}

	if err := dest.Write(context.Background(), snap); err != nil {
		t.Fatalf("first write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repoDir, "rendezvous.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(got), `"pf-ada"`) {
		t.Fatalf("expected profile in file, got %q", string(got))
	}
	if _, err := os.Stat(filepath.Join(repoDir, "rendezvous.ics")); err != nil {
		t.Fatalf("calendar not written: %v", err)
	}
	head := revParse(t, repoDir)
	if msg := lastMessage(t, repoDir); msg != "sync 2024-03-10T12:00Z: 1 profiles, 0 events, 0 ledger entries" {
		t.Fatalf("commit message = %q", msg)
	}

	// Same snapshot: nothing to commit.
	if err := dest.Write(context.Background(), snap); err != nil {
		t.Fatalf("second write (no-op): %v", err)
	}
	if revParse(t, repoDir) != head {
		t.Fatal("expected no commit for unchanged data")
	}

	snap.Profiles[0].Name = "Ada L."
	if err := dest.Write(context.Background(), snap); err != nil {
		t.Fatalf("third write: %v", err)
	}
	if revParse(t, repoDir) == head {
		t.Fatal("expected a new commit for changed data")
	}
}

func TestGitDestination_SubDirectory(t *testing.T) {
	repoDir := newClone(t)
	dest := NewGitDestination(repoDir, "backups/rendezvous.jsonl", "main")

	if err := dest.Write(context.Background(), &Snapshot{Taken: syncTime}); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(repoDir, "backups", "rendezvous.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.HasPrefix(string(got), `{"version":"1","type":"header"`) {
		t.Fatalf("expected header line, got %q", string(got))
	}
	if _, err := os.Stat(filepath.Join(repoDir, "backups", "rendezvous.ics")); err != nil {
		t.Fatalf("calendar not written: %v", err)
	}
}

func TestGitDestination_ErrorCarriesOutput(t *testing.T) {
	repoDir := newClone(t)
	dest := NewGitDestination(repoDir, "rendezvous.jsonl", "no-such-branch")

	err := dest.Write(context.Background(), &Snapshot{Taken: syncTime})
	if err == nil || !strings.Contains(err.Error(), "git checkout") {
		t.Fatalf("expected checkout failure, got %v", err)
	}
}

// newClone creates a bare remote with one commit on main and returns a
// clone of it ready for commits.
func newClone(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remoteDir := t.TempDir()
	run(t, remoteDir, "git", "init", "--bare")

	workDir := t.TempDir()
	run(t, workDir, "git", "clone", remoteDir, "repo")
	repoDir := filepath.Join(workDir, "repo")

	run(t, repoDir, "git", "config", "user.email", "sync@rendezvous.test")
	run(t, repoDir, "git", "config", "user.name", "Rendezvous Sync")
	run(t, repoDir, "git", "symbolic-ref", "HEAD", "refs/heads/main")

	if err := os.WriteFile(filepath.Join(repoDir, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	run(t, repoDir, "git", "add", ".")
	run(t, repoDir, "git", "commit", "-m", "init")
	run(t, repoDir, "git", "push", "origin", "main")
	return repoDir
}

func lastMessage(t *testing.T, dir string) string {
	t.Helper()
	out, err := exec.Command("git", "-C", dir, "log", "-1", "--format=%s").Output()
	if err != nil {
		t.Fatalf("git log: %v", err)
	}
	return strings.TrimSpace(string(out))
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("%s %v failed: %v", name, args, err)
	}
}

func revParse(t *testing.T, dir string) string {
	t.Helper()
	out, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	if err != nil {
		t.Fatalf("git rev-parse: %v", err)
	}
	return strings.TrimSpace(string(out))
}
