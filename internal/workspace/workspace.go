// Package workspace owns the per-run scratch directory for intermediate media.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Workspace struct {
	dir string
	log zerolog.Logger
}

// New creates a fresh directory under base (os.TempDir when empty).
func New(base string, log zerolog.Logger) (*Workspace, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("workspace base: %w", err)
	}
	dir := filepath.Join(base, "clipcraft-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	return &Workspace{dir: dir, log: log}, nil
}

func (w *Workspace) Dir() string { return w.dir }

// Path returns a unique file path "<prefix>-<uuid>.<ext>" inside the workspace.
// Nothing is created on disk.
func (w *Workspace) Path(prefix, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	name := prefix + "-" + uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(w.dir, name)
}

// Remove deletes path, logging instead of failing so a cleanup problem never
// masks the error that triggered it.
func (w *Workspace) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.log.Warn().Err(err).Str("path", path).Msg("cleanup failed")
	}
}

// Close removes the workspace and everything left in it.
func (w *Workspace) Close() {
	if err := os.RemoveAll(w.dir); err != nil {
		w.log.Warn().Err(err).Str("dir", w.dir).Msg("workspace cleanup failed")
	}
}
