package reconcile

import "manisyncd/internal/manifest"

// Baseline records the manifest fingerprints as of the last applied pass.
// The next pass compares the freshly loaded manifest against it to detect
// paths whose declared fingerprint moved while the tree also carries a
// local edit.
type Baseline struct {
	Commit string                    `json:"commit"`
	Files  map[string]manifest.Entry `json:"files"`
}

// newBaseline snapshots a manifest for persistence after a pass.
func newBaseline(commit string, man *manifest.Manifest) *Baseline {
	b := &Baseline{
		Commit: commit,
		Files:  make(map[string]manifest.Entry, man.FileCount()),
	}
	for path, entry := range man.Files {
		b.Files[path] = entry
	}
	return b
}
