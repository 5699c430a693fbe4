package reconcile

import (
	"errors"
	"sort"

	"manisyncd/internal/config"
	"manisyncd/internal/gitstatus"
)

// ErrUnknownStrategy is returned when the configured strategy is not one
// of merge, overwrite, or selective. It is surfaced before any status
// query is issued.
var ErrUnknownStrategy = errors.New("unknown reconciliation strategy")

// Status reports the outcome of a reconciliation pass.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ChangeSet holds the classified discrepancies of one pass. The four
// sequences are disjoint: a path appears in at most one of them, and a
// path under active conflict appears only in Conflicts.
type ChangeSet struct {
	Added     []string `json:"added"`
	Modified  []string `json:"modified"`
	Deleted   []string `json:"deleted"`
	Conflicts []string `json:"conflicts"`
}

// IsEmpty returns true when no path was classified.
func (c *ChangeSet) IsEmpty() bool {
	return c.Count() == 0
}

// Count returns the total number of classified paths.
func (c *ChangeSet) Count() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted) + len(c.Conflicts)
}

// sortPaths puts every sequence in deterministic order.
func (c *ChangeSet) sortPaths() {
	sort.Strings(c.Added)
	sort.Strings(c.Modified)
	sort.Strings(c.Deleted)
	sort.Strings(c.Conflicts)
}

// Result is the outcome of one reconciliation pass. It is created fresh
// per invocation and never mutated after return.
type Result struct {
	Status      Status                 `json:"status"`
	Strategy    config.Strategy        `json:"strategy"`
	Changes     ChangeSet              `json:"changes"`
	Diagnostics []gitstatus.Diagnostic `json:"diagnostics,omitempty"`
	PassID      string                 `json:"pass_id"`
	Commit      string                 `json:"commit,omitempty"`
}
