// Package watch re-runs reconciliation when the working tree or the
// manifest changes on disk. Events are debounced so that bursts of writes
// (editor saves, git operations) collapse into a single pass.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"manisyncd/internal/config"
	"manisyncd/internal/gitstatus"
	"manisyncd/internal/reconcile"
)

// Runner owns the filesystem watcher and drives passes from its events
type Runner struct {
	cfg    *config.Config
	git    gitstatus.Client
	logger *slog.Logger
}

// NewRunner creates a watch runner
func NewRunner(cfg *config.Config, gitClient gitstatus.Client, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		git:    gitClient,
		logger: logger,
	}
}

// Run performs an initial pass, then blocks watching the tree until the
// context is cancelled
func (r *Runner) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := r.addTree(watcher, r.cfg.Repo.Root); err != nil {
		return err
	}

	r.runPass(ctx)

	debounce := time.Duration(r.cfg.Watch.DebounceSeconds) * time.Second
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if r.ignoreEvent(event) {
				continue
			}
			// New directories need their own watch
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = r.addTree(watcher, event.Name)
				}
			}
			r.logger.Debug("filesystem event", "op", event.Op.String(), "path", event.Name)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			pending = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", "error", err)

		case <-pending:
			pending = nil
			r.runPass(ctx)
		}
	}
}

// addTree watches root and every directory below it, skipping the git
// metadata directory
func (r *Runner) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" && path != root {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// ignoreEvent filters events from the git metadata directory, which churns
// on every status query
func (r *Runner) ignoreEvent(event fsnotify.Event) bool {
	rel, err := filepath.Rel(r.cfg.Repo.Root, event.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel == ".git" || strings.HasPrefix(rel, ".git/")
}

// runPass executes one reconciliation pass, logging instead of failing the
// watch loop on errors
func (r *Runner) runPass(ctx context.Context) {
	engine := reconcile.NewEngine(r.cfg, r.git, r.logger, false)
	result, err := engine.Reconcile(ctx)
	if err != nil {
		r.logger.Error("reconciliation failed", "error", err)
		return
	}
	if result.Status != reconcile.StatusSuccess {
		r.logger.Warn("reconciliation pass reported failure", "pass_id", result.PassID)
	}
}
