package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore is a BlobStore backed by a directory tree on local disk,
// one file per key with '/' mapped onto the platform path separator.
// Writes are atomic: temp file in the same directory, then rename.
type LocalStore struct {
	dir string
}

var _ BlobStore = (*LocalStore)(nil)

// NewLocalStore creates a LocalStore rooted at dir, creating it if
// necessary.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (l *LocalStore) path(key string) string {
	return filepath.Join(l.dir, filepath.FromSlash(key))
}

// Put writes data to key, replacing any prior content atomically.
func (l *LocalStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Get reads the blob stored at key, returning ErrNotFound if absent.
func (l *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// List returns every key under prefix, in lexical order.
func (l *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	root := l.path(prefix)
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	var keys []string
	err = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.dir, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Delete removes the blob stored at key. Deleting a missing key is
// not an error.
func (l *LocalStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(l.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
