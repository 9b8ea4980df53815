// Package scratch provides per-invocation scratch directories for
// external tool calls.
//
// Every subprocess invocation gets its own uniquely named directory and
// removes it on every exit path. Concurrent requests must never share
// scratch filenames: the fixed-name temp files this replaces were a
// real defect class, where two in-flight verifications overwrote each
// other's templates.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kweli-data/minutiae.registry/internal/monitoring"
)

// Dir is a scratch directory scoped to one external invocation. Acquire
// with New, release with Close (normally via defer).
type Dir struct {
	path string
}

// New creates a uniquely named scratch directory under the system temp
// root.
func New(prefix string) (*Dir, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s", prefix, uuid.NewString()))
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Join returns the path of name inside the scratch directory.
func (d *Dir) Join(name string) string {
	return filepath.Join(d.path, name)
}

// WriteFile writes data to name inside the scratch directory and
// returns its full path.
func (d *Dir) WriteFile(name string, data []byte) (string, error) {
	path := d.Join(name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write scratch file %s: %w", name, err)
	}
	return path, nil
}

// Close removes the directory and everything in it. Safe to call more
// than once.
func (d *Dir) Close() {
	if d.path == "" {
		return
	}
	if err := os.RemoveAll(d.path); err != nil {
		monitoring.Logf("scratch: failed to remove %s: %v", d.path, err)
	}
	d.path = ""
}
