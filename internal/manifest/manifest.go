// Package manifest provides the declarative file manifest consumed by the
// reconciliation engine.
//
// A manifest is a JSON document with the schema
//
//	{
//	  "version": "1.0.0",
//	  "files": {"src/main.py": {"hash": "abc123", "size": 100}},
//	  "dependencies": {"flask": "2.0.0"}
//	}
//
// Manifests are read-only inputs: they are loaded once per reconciliation
// pass and never written back. Dependencies are carried through opaquely.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// Entry describes a single declared file.
type Entry struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Validate checks that the entry carries a fingerprint and a sane size.
func (e Entry) Validate() error {
	if e.Hash == "" {
		return fmt.Errorf("%w: %s: missing hash", ErrInvalidEntry, e.Path)
	}
	if e.Size < 0 {
		return fmt.Errorf("%w: %s: negative size %d", ErrInvalidEntry, e.Path, e.Size)
	}
	return nil
}

// Manifest is the in-memory index of the declared file set. It is immutable
// once loaded for a reconciliation pass.
type Manifest struct {
	Version      string            `json:"version"`
	Files        map[string]Entry  `json:"files"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// rawEntry uses pointers so that missing fields can be told apart from
// zero values during validation.
type rawEntry struct {
	Hash *string `json:"hash"`
	Size *int64  `json:"size"`
}

type rawManifest struct {
	Version      string              `json:"version"`
	Files        map[string]rawEntry `json:"files"`
	Dependencies map[string]string   `json:"dependencies"`
}

// Load reads and validates a serialized manifest.
func Load(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Files == nil {
		return nil, fmt.Errorf("%w: missing files key", ErrMalformed)
	}

	m := &Manifest{
		Version:      raw.Version,
		Files:        make(map[string]Entry, len(raw.Files)),
		Dependencies: raw.Dependencies,
	}

	for path, re := range raw.Files {
		if re.Hash == nil {
			return nil, fmt.Errorf("%w: %s: missing hash", ErrMalformed, path)
		}
		if re.Size == nil {
			return nil, fmt.Errorf("%w: %s: missing size", ErrMalformed, path)
		}
		entry := Entry{Path: path, Hash: *re.Hash, Size: *re.Size}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		m.Files[path] = entry
	}

	return m, nil
}

// LoadFile reads and validates the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	return Load(f)
}

// Lookup returns the entry for a repo-relative path.
func (m *Manifest) Lookup(path string) (Entry, bool) {
	e, ok := m.Files[path]
	return e, ok
}

// Paths returns the declared paths in deterministic (sorted) order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// FileCount returns the number of declared files.
func (m *Manifest) FileCount() int {
	return len(m.Files)
}

// Fingerprint computes the SHA256 hash of a file on disk, in the same
// format manifests declare for their entries.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
