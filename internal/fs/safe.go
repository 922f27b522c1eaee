package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath   = errors.New("path must not be empty")
	ErrAbsolute    = errors.New("absolute paths are not allowed")
	ErrPathEscapes = errors.New("path escapes root")
)

// SafeFS confines every file operation to one root directory. Staging
// paths are assembled from names that arrive from remote systems, issue
// keys and attachment filenames, so each path is validated before it
// touches the real filesystem.
type SafeFS struct {
	root string
}

func NewSafeFS(root string) (*SafeFS, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, fmt.Errorf("invalid root: %w", ErrEmptyPath)
	}

	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, err
	}

	return &SafeFS{root: abs}, nil
}

func (s *SafeFS) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

// Resolve maps a relative path into the root. Absolute paths and any
// cleaned path that would land outside the root are rejected.
func (s *SafeFS) Resolve(path string) (string, error) {
	if s == nil {
		return "", errors.New("safe filesystem is nil")
	}

	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrEmptyPath
	}
	if filepath.IsAbs(trimmed) {
		return "", ErrAbsolute
	}

	cleaned := filepath.Clean(trimmed)
	if cleaned == "." {
		return s.root, nil
	}
	if escapesUpward(cleaned) {
		return "", ErrPathEscapes
	}

	target := filepath.Join(s.root, cleaned)
	rel, err := filepath.Rel(s.root, target)
	if err != nil {
		return "", err
	}
	if escapesUpward(rel) {
		return "", ErrPathEscapes
	}

	return target, nil
}

func escapesUpward(cleaned string) bool {
	return cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator))
}

func (s *SafeFS) EnsureDir(path string, perm os.FileMode) error {
	resolved, err := s.Resolve(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(resolved, perm)
}

// WriteFileAtomic writes data through a temp file and a rename.
func (s *SafeFS) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	_, err := s.writeAtomic(path, perm, func(temp *os.File) (int64, error) {
		n, err := temp.Write(data)
		return int64(n), err
	})
	return err
}

// WriteReaderAtomic streams content through a temp file and a rename,
// returning the byte count, so a torn download never leaves a partial
// attachment at the final path.
func (s *SafeFS) WriteReaderAtomic(path string, content io.Reader, perm os.FileMode) (int64, error) {
	return s.writeAtomic(path, perm, func(temp *os.File) (int64, error) {
		return io.Copy(temp, content)
	})
}

// writeAtomic fills a temp file next to the target and renames it into
// place once the write, chmod and close have all succeeded. Readers
// only ever observe complete files.
func (s *SafeFS) writeAtomic(path string, perm os.FileMode, fill func(*os.File) (int64, error)) (int64, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return 0, err
	}

	temp, err := os.CreateTemp(filepath.Dir(resolved), "."+filepath.Base(resolved)+".tmp-*")
	if err != nil {
		return 0, err
	}
	defer func() { _ = os.Remove(temp.Name()) }()

	written, err := fill(temp)
	if err != nil {
		_ = temp.Close()
		return 0, err
	}
	if err := temp.Chmod(perm); err != nil {
		_ = temp.Close()
		return 0, err
	}
	if err := temp.Close(); err != nil {
		return 0, err
	}

	if err := os.Rename(temp.Name(), resolved); err != nil {
		return 0, err
	}
	return written, nil
}

func (s *SafeFS) Open(path string) (*os.File, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(resolved)
}

// ReadDir lists a directory. A directory that does not exist yet reads
// as empty; the staging tree is created lazily on first write.
func (s *SafeFS) ReadDir(path string) ([]os.DirEntry, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}

func (s *SafeFS) Exists(path string) (bool, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(resolved); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *SafeFS) Rename(fromPath, toPath string) error {
	fromResolved, err := s.Resolve(fromPath)
	if err != nil {
		return err
	}
	toResolved, err := s.Resolve(toPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(toResolved), 0o755); err != nil {
		return err
	}

	return os.Rename(fromResolved, toResolved)
}

func (s *SafeFS) ReadFile(path string) ([]byte, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(resolved)
}

// Remove deletes a file; a missing file is not an error.
func (s *SafeFS) Remove(path string) error {
	resolved, err := s.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(resolved); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
