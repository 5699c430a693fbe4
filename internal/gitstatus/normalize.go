package gitstatus

import (
	"bufio"
	"fmt"
	"strings"
)

// Entry is the normalized per-path status record. Index and Worktree hold
// the two porcelain status slots for the path.
type Entry struct {
	Path     string // repo-relative path (new path for renames)
	OrigPath string // old path for renames, empty otherwise
	Index    byte   // staged status slot
	Worktree byte   // unstaged status slot
}

// Diagnostic records a status line that could not be decoded. Unknown
// codes are surfaced here instead of being dropped silently, and the
// affected path never enters a change set.
type Diagnostic struct {
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

// knownCodes are the porcelain slot values the normalizer decodes.
const knownCodes = " MADR?!"

// HasModification reports whether either slot flags the path modified,
// staged or unstaged.
func (e Entry) HasModification() bool {
	return e.Index == 'M' || e.Worktree == 'M'
}

// IsUntracked reports the ?? status.
func (e Entry) IsUntracked() bool {
	return e.Index == '?' && e.Worktree == '?'
}

// IsAdded reports a staged-new file.
func (e Entry) IsAdded() bool {
	return e.Index == 'A'
}

// IsDeleted reports a staged or unstaged deletion.
func (e Entry) IsDeleted() bool {
	return e.Index == 'D' || e.Worktree == 'D'
}

// IsRenamed reports a staged rename.
func (e Entry) IsRenamed() bool {
	return e.Index == 'R' || e.Worktree == 'R'
}

// isIgnored reports the !! status. Ignored paths are filtered out during
// normalization and never reach the classifier.
func (e Entry) isIgnored() bool {
	return e.Index == '!' && e.Worktree == '!'
}

// Normalize decodes raw porcelain v1 output into per-path entries.
//
// Each line is two status characters, a space, then the path; rename
// entries carry "old -> new". Ignored paths are excluded entirely.
// Lines with unrecognized status codes become diagnostics.
func Normalize(raw string) ([]Entry, []Diagnostic) {
	var entries []Entry
	var diags []Diagnostic

	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if len(line) < 4 {
			diags = append(diags, Diagnostic{Line: line, Reason: "truncated status line"})
			continue
		}

		entry := Entry{
			Index:    line[0],
			Worktree: line[1],
		}

		if !isKnownCode(entry.Index) || !isKnownCode(entry.Worktree) {
			diags = append(diags, Diagnostic{
				Line:   line,
				Reason: fmt.Sprintf("unrecognized status code %q", line[:2]),
			})
			continue
		}

		path := line[3:]
		if entry.IsRenamed() {
			old, current, ok := splitRename(path)
			if !ok {
				diags = append(diags, Diagnostic{Line: line, Reason: "rename entry without path pair"})
				continue
			}
			entry.OrigPath = unquotePath(old)
			entry.Path = unquotePath(current)
		} else {
			entry.Path = unquotePath(path)
		}

		if entry.isIgnored() {
			continue
		}

		entries = append(entries, entry)
	}

	return entries, diags
}

func isKnownCode(c byte) bool {
	return strings.IndexByte(knownCodes, c) >= 0
}

func splitRename(path string) (old, current string, ok bool) {
	old, current, ok = strings.Cut(path, " -> ")
	if !ok || old == "" || current == "" {
		return "", "", false
	}
	return old, current, true
}

// unquotePath strips git's quoting of paths with special characters.
func unquotePath(path string) string {
	if strings.HasPrefix(path, "\"") && strings.HasSuffix(path, "\"") && len(path) >= 2 {
		return path[1 : len(path)-1]
	}
	return path
}
