// Package reconcile implements the manifest reconciliation engine: it
// compares a declarative file manifest against live git working-tree
// status and classifies every discrepancy into an actionable change set
// under a selectable strategy.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"manisyncd/internal/config"
	"manisyncd/internal/gitstatus"
	"manisyncd/internal/manifest"
	"manisyncd/internal/pattern"
)

// Engine orchestrates reconciliation passes
type Engine struct {
	cfg    *config.Config
	git    gitstatus.Client
	logger *slog.Logger
	dryRun bool
}

// NewEngine creates a new reconciliation engine
func NewEngine(cfg *config.Config, gitClient gitstatus.Client, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		cfg:    cfg,
		git:    gitClient,
		logger: logger,
		dryRun: dryRun,
	}
}

// Reconcile executes one complete pass: validate strategy, load the
// manifest, query working-tree status once, classify, persist the
// baseline. Each call is independent; the result is fresh per invocation.
//
// A failed status query (for example a root that is not a git repository)
// yields a failure-status result and a nil error so callers can branch on
// result.Status. Malformed manifests and unknown strategies are fatal and
// produce no result.
func (e *Engine) Reconcile(ctx context.Context) (*Result, error) {
	strategy := e.cfg.Sync.Strategy

	// Strategy validation happens before any status query.
	switch strategy {
	case config.StrategyMerge, config.StrategyOverwrite, config.StrategySelective:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	e.logger.Info("starting reconciliation",
		"root", e.cfg.Repo.Root,
		"strategy", strategy,
		"dry_run", e.dryRun)

	man, err := manifest.LoadFile(e.cfg.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	e.logger.Info("manifest loaded",
		"path", e.cfg.ManifestPath(),
		"version", man.Version,
		"files", man.FileCount())

	result := &Result{
		Status:   StatusSuccess,
		Strategy: strategy,
		PassID:   uuid.NewString(),
	}

	entries, diags, err := e.git.QueryStatus(ctx, e.cfg.Repo.Root)
	if err != nil {
		e.logger.Error("status query failed", "error", err)
		result.Status = StatusFailure
		result.Diagnostics = append(result.Diagnostics, gitstatus.Diagnostic{
			Reason: fmt.Sprintf("status query failed: %v", err),
		})
		return result, nil
	}
	result.Diagnostics = append(result.Diagnostics, diags...)

	// Load the previous baseline for conflict detection
	baseline, err := e.loadBaseline()
	if err != nil {
		e.logger.Warn("failed to load baseline (will treat as fresh sync)", "error", err)
		baseline = nil
	}

	var filter *pattern.Filter
	if strategy == config.StrategySelective {
		sel := e.cfg.Sync.Selective
		filter = pattern.New(sel.Suffixes, sel.Includes, sel.Excludes)
	}

	changes, err := Classify(man, baseline, entries, strategy, filter)
	if err != nil {
		return nil, err
	}
	result.Changes = changes

	e.logger.Info("change set",
		"added", len(changes.Added),
		"modified", len(changes.Modified),
		"deleted", len(changes.Deleted),
		"conflicts", len(changes.Conflicts),
		"diagnostics", len(result.Diagnostics))

	if commit, err := e.git.Head(ctx, e.cfg.Repo.Root); err == nil {
		result.Commit = commit
	}

	if e.dryRun {
		e.logChangeDetails(&changes)
		e.logger.Info("dry-run complete, baseline not updated")
		return result, nil
	}

	// The baseline only advances on conflict-free passes: conflicted
	// paths must keep conflicting on the next pass until resolved.
	if len(changes.Conflicts) > 0 {
		e.logger.Warn("conflicts present, baseline not advanced",
			"conflicts", len(changes.Conflicts))
	} else if err := e.saveBaseline(newBaseline(result.Commit, man)); err != nil {
		return nil, fmt.Errorf("failed to save baseline: %w", err)
	}

	e.logger.Info("reconciliation completed", "pass_id", result.PassID)
	return result, nil
}

// logChangeDetails logs per-path information for dry-run
func (e *Engine) logChangeDetails(changes *ChangeSet) {
	for _, path := range changes.Added {
		e.logger.Info("[dry-run] added", "path", path)
	}
	for _, path := range changes.Modified {
		e.logger.Info("[dry-run] modified", "path", path)
	}
	for _, path := range changes.Deleted {
		e.logger.Info("[dry-run] deleted", "path", path)
	}
	for _, path := range changes.Conflicts {
		e.logger.Info("[dry-run] conflict", "path", path)
	}
}

// loadBaseline loads the previous baseline from disk. A missing file or
// unconfigured state dir yields a nil baseline.
func (e *Engine) loadBaseline() (*Baseline, error) {
	statePath := e.cfg.StateFilePath()
	if statePath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var baseline Baseline
	if err := json.Unmarshal(data, &baseline); err != nil {
		return nil, err
	}

	return &baseline, nil
}

// saveBaseline persists the baseline to disk. A no-op when no state dir
// is configured.
func (e *Engine) saveBaseline(baseline *Baseline) error {
	statePath := e.cfg.StateFilePath()
	if statePath == "" {
		return nil
	}

	if err := os.MkdirAll(e.cfg.Paths.StateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(baseline, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(statePath, data, 0644)
}
