package reconcile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"manisyncd/internal/config"
	"manisyncd/internal/gitstatus"
	"manisyncd/internal/manifest"
	"manisyncd/internal/testutil"
)

// seedRepo populates a repository with the declared files and a manifest,
// committed clean.
func seedRepo(t *testing.T, repo *testutil.GitRepo) *config.Config {
	t.Helper()

	man := map[string]any{
		"version": "1.0.0",
		"files": map[string]any{
			"src/main.py":          map[string]any{"hash": "abc123", "size": 100},
			"src/utils.py":         map[string]any{"hash": "def456", "size": 200},
			"config/settings.json": map[string]any{"hash": "ghi789", "size": 50},
			"docs/README.md":       map[string]any{"hash": "jkl012", "size": 300},
		},
		"dependencies": map[string]any{"flask": "2.0.0", "requests": "2.28.0"},
	}
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	repo.WriteFile("manifest.json", string(data))
	for _, p := range []string{"src/main.py", "src/utils.py", "config/settings.json", "docs/README.md"} {
		repo.WriteFile(p, "Content of "+p)
	}
	repo.CommitAll("initial")

	return &config.Config{
		Repo:     config.RepoConfig{Root: repo.Root},
		Manifest: config.ManifestConfig{Path: "manifest.json"},
		Sync:     config.SyncConfig{Strategy: config.StrategyMerge},
	}
}

func runPass(t *testing.T, cfg *config.Config) *Result {
	t.Helper()
	engine := NewEngine(cfg, gitstatus.NewShellClient(), testLogger(), false)
	result, err := engine.Reconcile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func TestEndToEnd_CleanState(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	cfg := seedRepo(t, repo)

	result := runPass(t, cfg)
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if !result.Changes.IsEmpty() {
		t.Fatalf("clean repository should yield an empty change set, got %+v", result.Changes)
	}
}

func TestEndToEnd_MixedState(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	cfg := seedRepo(t, repo)

	// Unstaged modification
	repo.WriteFile("src/main.py", "Modified in working directory")
	// Staged modification
	repo.WriteFile("src/utils.py", "Staged modification")
	repo.Git("add", "src/utils.py")
	// Untracked file
	repo.WriteFile("src/untracked.py", "new")
	// Deleted file
	repo.Remove("docs/README.md")
	// Staged new file
	repo.WriteFile("src/staged_new.py", "new")
	repo.Git("add", "src/staged_new.py")

	result := runPass(t, cfg)
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}

	cs := result.Changes
	if !slices.Contains(cs.Modified, "src/main.py") {
		t.Errorf("src/main.py missing from modified: %v", cs.Modified)
	}
	if !slices.Contains(cs.Modified, "src/utils.py") {
		t.Errorf("src/utils.py missing from modified: %v", cs.Modified)
	}
	if !slices.Contains(cs.Added, "src/untracked.py") {
		t.Errorf("src/untracked.py missing from added: %v", cs.Added)
	}
	if !slices.Contains(cs.Added, "src/staged_new.py") {
		t.Errorf("src/staged_new.py missing from added: %v", cs.Added)
	}
	if !slices.Contains(cs.Deleted, "docs/README.md") {
		t.Errorf("docs/README.md missing from deleted: %v", cs.Deleted)
	}
	assertDisjoint(t, cs)
}

func TestEndToEnd_PartiallyStaged(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	cfg := seedRepo(t, repo)

	repo.WriteFile("src/main.py", "First change\nSecond change\nThird change")
	repo.Git("add", "src/main.py")
	repo.WriteFile("src/main.py", "First change\nModified second change\nThird change\nFourth change")

	result := runPass(t, cfg)
	count := 0
	for _, p := range result.Changes.Modified {
		if p == "src/main.py" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("MM path should appear in modified exactly once, got %d", count)
	}
	assertDisjoint(t, result.Changes)
}

func TestEndToEnd_IgnoredFiles(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	repo.WriteFile(".gitignore", "*.pyc\n__pycache__/\n.env\nbuild/\ndist/\n")
	cfg := seedRepo(t, repo)

	repo.WriteFile("src/__pycache__/main.pyc", "bytecode")
	repo.WriteFile(".env", "SECRET_KEY=test")
	repo.WriteFile("build/output.txt", "artifact")
	repo.WriteFile("src/new_module.py", "new")

	result := runPass(t, cfg)
	cs := result.Changes

	if !slices.Contains(cs.Added, "src/new_module.py") {
		t.Errorf("src/new_module.py missing from added: %v", cs.Added)
	}
	for _, seq := range [][]string{cs.Added, cs.Modified, cs.Deleted, cs.Conflicts} {
		for _, p := range seq {
			if p == ".env" || p == "build/output.txt" || p == "build/" {
				t.Errorf("ignored path %q surfaced in change set", p)
			}
		}
	}
}

func TestEndToEnd_Rename(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	cfg := seedRepo(t, repo)

	repo.Git("mv", "src/utils.py", "src/helpers.py")

	result := runPass(t, cfg)
	cs := result.Changes

	if !slices.Contains(cs.Added, "src/helpers.py") {
		t.Errorf("new rename path missing from added: %v", cs.Added)
	}
	if !slices.Contains(cs.Deleted, "src/utils.py") {
		t.Errorf("old rename path missing from deleted: %v", cs.Deleted)
	}
	assertDisjoint(t, cs)
}

func TestEndToEnd_Strategies(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	cfg := seedRepo(t, repo)

	repo.WriteFile("src/main.py", "Modified")
	repo.WriteFile("src/new.py", "new")

	cfg.Sync.Strategy = config.StrategyMerge
	merge := runPass(t, cfg)
	if merge.Strategy != config.StrategyMerge {
		t.Errorf("strategy not echoed: %s", merge.Strategy)
	}
	if len(merge.Changes.Modified) == 0 {
		t.Error("merge should report the modification")
	}

	cfg.Sync.Strategy = config.StrategyOverwrite
	overwrite := runPass(t, cfg)
	if overwrite.Strategy != config.StrategyOverwrite {
		t.Errorf("strategy not echoed: %s", overwrite.Strategy)
	}
	// Every declared path is reported, changed ones as modified.
	if got := overwrite.Changes.Count(); got != 4 {
		t.Errorf("overwrite should classify all 4 declared paths, got %d", got)
	}
	if !slices.Contains(overwrite.Changes.Modified, "src/main.py") {
		t.Errorf("src/main.py should be overwritten: %v", overwrite.Changes.Modified)
	}

	cfg.Sync.Strategy = config.StrategySelective
	selective := runPass(t, cfg)
	if selective.Strategy != config.StrategySelective {
		t.Errorf("strategy not echoed: %s", selective.Strategy)
	}
	for _, p := range selective.Changes.Added {
		if filepath.Ext(p) != ".py" {
			t.Errorf("selective admitted out-of-scope path %q", p)
		}
	}
}

func TestEndToEnd_BaselineConflict(t *testing.T) {
	repo := testutil.NewGitRepo(t)
	cfg := seedRepo(t, repo)
	cfg.Paths.StateDir = filepath.Join(t.TempDir(), "state")

	// Establish the baseline on a clean tree.
	first := runPass(t, cfg)
	if !first.Changes.IsEmpty() {
		t.Fatalf("expected clean first pass, got %+v", first.Changes)
	}

	// Local edit plus a manifest-side fingerprint move for the same path.
	repo.WriteFile("src/main.py", "Local changes")
	man, err := manifest.LoadFile(cfg.ManifestPath())
	if err != nil {
		t.Fatal(err)
	}
	declared := man.Files["src/main.py"]
	declared.Hash = "different_hash"
	declared.Size = 500
	man.Files["src/main.py"] = declared
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.ManifestPath(), data, 0644); err != nil {
		t.Fatal(err)
	}

	second := runPass(t, cfg)
	if !slices.Contains(second.Changes.Conflicts, "src/main.py") {
		t.Errorf("both sides changed src/main.py, expected a conflict: %+v", second.Changes)
	}
	if slices.Contains(second.Changes.Modified, "src/main.py") {
		t.Error("conflicted path must not also appear in modified")
	}
}
