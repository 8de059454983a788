package stage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore stores upload payloads under a target filename.
type FileStore interface {
	Write(name string, r io.Reader) (string, error)
}

// DirFileStore writes files into a flat directory.
type DirFileStore struct {
	Dir string
}

// NewDirFileStore creates dir if needed.
func NewDirFileStore(dir string) (*DirFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &DirFileStore{Dir: dir}, nil
}

// Write stores r as name and returns the written path. Names with path
// separators are rejected.
func (s *DirFileStore) Write(name string, r io.Reader) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid upload filename %q", name)
	}
	path := filepath.Join(s.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

func copyFile(dst FileStore, name, src string) (string, int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}
	path, err := dst.Write(name, f)
	if err != nil {
		return "", 0, err
	}
	return path, info.Size(), nil
}
