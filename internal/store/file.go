package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore writes one snapshot file per room code under a directory.
// Writes are atomic (temp file + rename) so a reader never observes a
// partially written snapshot.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Save(_ context.Context, code string, snapshot []byte) error {
	path, err := f.path(code)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, snapshot, 0o644)
}

func (f *FileStore) Load(_ context.Context, code string) ([]byte, error) {
	path, err := f.path(code)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

func (f *FileStore) Delete(_ context.Context, code string) error {
	path, err := f.path(code)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// path maps a room code to its snapshot file. Codes are restricted to
// ASCII letters and digits so a code can never escape the directory.
func (f *FileStore) path(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("empty room code")
	}
	for _, c := range code {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		default:
			return "", fmt.Errorf("invalid room code %q", code)
		}
	}
	return filepath.Join(f.dir, code+".json"), nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over the final path. The rename is atomic on POSIX, so readers
// see either the old snapshot or the new one, never a partial write.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tmp = nil

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filename); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
