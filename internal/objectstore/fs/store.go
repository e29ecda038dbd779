// Package fs provides an object store on the local filesystem.
//
// Every object is one regular file directly under <root>/<bucket>, named by
// the path-escaped key ("alice/docs/readme" is stored as
// "alice%2Fdocs%2Freadme"). Keys never map to directories, so a key and its
// prefix ("alice/docs", "alice/docs/readme") coexist the way they do in S3.
package fs

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/filekeeper/internal/errs"
	"github.com/and161185/filekeeper/internal/fpath"
	"github.com/and161185/filekeeper/internal/repository"
)

// Store keeps objects under a root directory.
type Store struct {
	root string
	log  *zap.Logger
}

// New creates a store rooted at root/bucket, creating the directory if needed.
func New(root, bucket string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Join(root, bucket)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return &Store{root: abs, log: log}, nil
}

// Root returns the absolute bucket directory.
func (s *Store) Root() string { return s.root }

// abs maps a key to its file directly under root.
func (s *Store) abs(key string) (string, error) {
	name := url.PathEscape(key)
	joined := filepath.Join(s.root, name)
	rel, err := filepath.Rel(s.root, joined)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", key)
	}
	if rel != name {
		return "", fmt.Errorf("path %q does not map to a single file", key)
	}
	return joined, nil
}

// Exists reports whether a regular file is stored for p.
func (s *Store) Exists(_ context.Context, p fpath.FilePath) (bool, error) {
	name, err := s.abs(p.Normalized())
	if err != nil {
		s.log.Error("resolve object path", zap.String("key", p.Normalized()), zap.Error(err))
		return false, errs.Server("checking file existence failed")
	}
	info, err := os.Stat(name)
	switch {
	case err == nil:
		return info.Mode().IsRegular(), nil
	case errors.Is(err, iofs.ErrNotExist):
		return false, nil
	default:
		s.log.Error("stat object", zap.String("key", p.Normalized()), zap.Error(err))
		return false, errs.Server("checking file existence failed")
	}
}

// Create writes an empty file via temp file + rename, replacing any existing one.
func (s *Store) Create(_ context.Context, p fpath.FilePath) error {
	if err := s.create(p.Normalized()); err != nil {
		s.log.Error("create object", zap.String("key", p.Normalized()), zap.Error(err))
		return errs.Server("failed to create file object")
	}
	return nil
}

func (s *Store) create(key string) error {
	dest, err := s.abs(key)
	if err != nil {
		return err
	}
	// CreateTemp opens with O_EXCL, so it never picks an existing object
	f, err := os.CreateTemp(s.root, ".fk-*.tmp")
	if err != nil {
		return fmt.Errorf("open tmp: %w", err)
	}
	tmp := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("flush: %w", err)
	}
	if err := os.Chmod(tmp, 0o640); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("rename to %q: %w", dest, err)
	}
	return nil
}

var _ repository.ObjectStore = (*Store)(nil)
