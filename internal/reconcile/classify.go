package reconcile

import (
	"fmt"

	"manisyncd/internal/config"
	"manisyncd/internal/gitstatus"
	"manisyncd/internal/manifest"
	"manisyncd/internal/pattern"
)

// Classify joins normalized working-tree status against the manifest index
// and produces the change set for the given strategy. The baseline carries
// the fingerprints recorded by the last applied pass and may be nil, which
// disables conflict detection (fresh-sync semantics).
func Classify(man *manifest.Manifest, baseline *Baseline, entries []gitstatus.Entry, strategy config.Strategy, filter *pattern.Filter) (ChangeSet, error) {
	var cs ChangeSet

	switch strategy {
	case config.StrategyMerge:
		cs = classifyMerge(man, baseline, entries)

	case config.StrategyOverwrite:
		cs = classifyOverwrite(man, entries)

	case config.StrategySelective:
		// Selective is merge semantics on a reduced scope: paths
		// outside the filter are dropped silently.
		if filter == nil {
			filter = pattern.New(nil, nil, nil)
		}
		scoped := make([]gitstatus.Entry, 0, len(entries))
		for _, entry := range entries {
			if filter.Match(entry.Path) {
				scoped = append(scoped, entry)
			}
		}
		cs = classifyMerge(man, baseline, scoped)

	default:
		return ChangeSet{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	cs.sortPaths()
	return cs, nil
}

// classifyMerge preserves local modifications: every changed path is
// reported under the state the tree claims for it. Paths in the manifest
// with no status entry are clean and stay out of every sequence.
//
// Renames are split into their path pair: the new path is reported as
// added, the old path as deleted. Rename identity is not preserved in the
// change set.
func classifyMerge(man *manifest.Manifest, baseline *Baseline, entries []gitstatus.Entry) ChangeSet {
	var cs ChangeSet

	for _, entry := range entries {
		switch {
		case entry.IsRenamed():
			cs.Added = append(cs.Added, entry.Path)
			cs.Deleted = append(cs.Deleted, entry.OrigPath)

		case entry.HasModification():
			// Both sides claiming ownership of the same change is
			// a conflict: the manifest declares a new fingerprint
			// for the path while the tree carries a local edit.
			// Conflicts take precedence over modified.
			if isConflict(man, baseline, entry.Path) {
				cs.Conflicts = append(cs.Conflicts, entry.Path)
			} else {
				cs.Modified = append(cs.Modified, entry.Path)
			}

		case entry.IsAdded(), entry.IsUntracked():
			cs.Added = append(cs.Added, entry.Path)

		case entry.IsDeleted():
			cs.Deleted = append(cs.Deleted, entry.Path)
		}
	}

	return cs
}

// classifyOverwrite ignores the direction of local changes: every manifest
// path with a status entry is to be overwritten, every manifest path
// without one is to be created. Local-only paths absent from the manifest
// are not reported; overwrite never deletes unmanifested files.
func classifyOverwrite(man *manifest.Manifest, entries []gitstatus.Entry) ChangeSet {
	var cs ChangeSet

	changed := make(map[string]bool, len(entries))
	for _, entry := range entries {
		changed[entry.Path] = true
		if entry.OrigPath != "" {
			changed[entry.OrigPath] = true
		}
	}

	for _, path := range man.Paths() {
		if changed[path] {
			cs.Modified = append(cs.Modified, path)
		} else {
			cs.Added = append(cs.Added, path)
		}
	}

	return cs
}

// isConflict reports whether the manifest-side fingerprint for path moved
// since the last applied pass. Requires the path to be declared both in
// the manifest and in the baseline.
func isConflict(man *manifest.Manifest, baseline *Baseline, path string) bool {
	if baseline == nil {
		return false
	}
	declared, ok := man.Lookup(path)
	if !ok {
		return false
	}
	known, ok := baseline.Files[path]
	if !ok {
		return false
	}
	return declared.Hash != known.Hash
}
