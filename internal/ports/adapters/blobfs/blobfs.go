// Package blobfs is a BlobStore backed by a local directory.
package blobfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidKey = errors.New("invalid key")

type Store struct {
	baseDir string
}

func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) BaseDir() string { return s.baseDir }

// Upload writes data under "<uuid>-<name>" and returns that key as the handle.
// mimeType is recorded only by stores that keep metadata.
func (s *Store) Upload(ctx context.Context, data []byte, name, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, name)
	}
	key := uuid.NewString() + "-" + base
	path, err := s.Path(key)
	if err != nil {
		return "", err
	}

	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return key, nil
}

// Path resolves a key to its file, rejecting keys that escape the base dir.
func (s *Store) Path(key string) (string, error) {
	path := filepath.Join(s.baseDir, key)
	rel, err := filepath.Rel(filepath.Clean(s.baseDir), filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: path traversal detected", ErrInvalidKey)
	}
	return path, nil
}
