// Package disk manages the on-disk video cache directory.
//
// The store owns a single cache root. Completed downloads are written to
// uuid-named temp files inside the root and promoted to their final address
// with an atomic rename, so a reader never observes a partially written
// entry: a path either does not exist or holds the complete file.
package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// tmpDirName is the subdirectory holding in-progress downloads. It lives
// under the cache root so renames stay on one filesystem.
const tmpDirName = ".partial"

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("disk store is closed")

// Store manages the cache directory: existence checks, temp file creation
// and atomic commit of completed downloads.
//
// Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	root   string
	closed bool

	dirOnce sync.Once
	dirErr  error
}

// Config holds configuration for the disk store.
type Config struct {
	// Root is the cache directory, e.g. <platform-cache-root>/VideoCache.
	Root string

	// DirMode is the permission mode for created directories.
	// Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for temp files.
	// Default: 0644
	FileMode os.FileMode
}

// New creates a disk store rooted at cfg.Root. The directory is not created
// until first use.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("cache root is required")
	}
	return &Store{root: cfg.Root}, nil
}

// NewWithRoot creates a disk store with default configuration.
func NewWithRoot(root string) (*Store, error) {
	return New(Config{Root: root})
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// ensureDir lazily creates the cache root and temp directory. Idempotent.
func (s *Store) ensureDir() error {
	s.dirOnce.Do(func() {
		s.dirErr = os.MkdirAll(filepath.Join(s.root, tmpDirName), 0755)
	})
	return s.dirErr
}

// Exists reports whether a committed entry is present at path.
//
// Only fully committed files are ever visible at final paths, so a positive
// answer means the entry is complete.
func (s *Store) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// TempFile creates a new uuid-named file for an in-progress download.
// The caller owns the file and must either Commit or Discard it.
func (s *Store) TempFile() (*os.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if err := s.ensureDir(); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	name := filepath.Join(s.root, tmpDirName, uuid.NewString()+".tmp")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return f, nil
}

// Commit promotes a completed temp file to its final path with an atomic
// rename. After Commit returns, Exists(finalPath) observes the complete
// file. On failure the temp file is removed.
func (s *Store) Commit(tempPath, finalPath string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	if err := s.ensureDir(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("create cache dir: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("commit %s: %w", filepath.Base(finalPath), err)
	}
	return nil
}

// Discard removes an abandoned temp file. Idempotent: discarding a missing
// file succeeds.
func (s *Store) Discard(tempPath string) error {
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Remove deletes a committed entry. Idempotent.
func (s *Store) Remove(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Entries lists the final paths of all committed entries in the cache root.
func (s *Store) Entries() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	dirents, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Directory is created lazily
		}
		return nil, err
	}

	var paths []string
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(s.root, d.Name()))
	}
	return paths, nil
}

// Writable reports whether the cache root can be created and written to.
// Used by readiness probes.
func (s *Store) Writable() error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	f, err := s.TempFile()
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return s.Discard(name)
}

// Close marks the store closed and sweeps leftover temp files from
// interrupted downloads. Final entries are untouched.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	tmpDir := filepath.Join(s.root, tmpDirName)
	dirents, err := os.ReadDir(tmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, d := range dirents {
		os.Remove(filepath.Join(tmpDir, d.Name()))
	}
	return nil
}
