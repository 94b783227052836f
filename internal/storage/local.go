package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"sort"

	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// LocalBackend stores files on an afero filesystem rooted at the media root.
type LocalBackend struct {
	fs afero.Fs
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend creates the media root if needed and confines all access
// to it.
func NewLocalBackend(root string) (*LocalBackend, error) {
	if root == "" {
		return nil, errors.New("media root is required")
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("creating media root %s: %w", root, err)
	}
	return NewFsBackend(afero.NewBasePathFs(osFs, root)), nil
}

// NewFsBackend wraps an existing filesystem, typically afero.NewMemMapFs in
// tests.
func NewFsBackend(fsys afero.Fs) *LocalBackend {
	return &LocalBackend{fs: fsys}
}

// Fs exposes the underlying filesystem.
func (b *LocalBackend) Fs() afero.Fs {
	return b.fs
}

// EnsureDir implements Backend.
func (b *LocalBackend) EnsureDir(_ context.Context, dir string) (bool, error) {
	info, err := b.fs.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return false, nil
	case err == nil:
		return false, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("stat %s: %w", dir, err)
	}

	if err := b.fs.MkdirAll(dir, dirPerm); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return true, nil
}

// Exists implements Backend.
func (b *LocalBackend) Exists(_ context.Context, p string) (bool, error) {
	info, err := b.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
	return !info.IsDir(), nil
}

// Write implements Backend. Exclusive writes use O_EXCL so two concurrent
// uploads cannot claim the same name.
func (b *LocalBackend) Write(_ context.Context, p string, r io.Reader, _ int64, _ string, mode WriteMode) error {
	if err := b.fs.MkdirAll(path.Dir(p), dirPerm); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("mkdir %s: %w", path.Dir(p), err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if mode == WriteExclusive {
		flags |= os.O_EXCL
	} else {
		flags |= os.O_TRUNC
	}

	f, err := b.fs.OpenFile(p, flags, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrFileExists, p)
		}
		return fmt.Errorf("open %s: %w", p, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = b.fs.Remove(p)
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		_ = b.fs.Remove(p)
		return fmt.Errorf("close %s: %w", p, err)
	}
	return nil
}

// Open implements Backend.
func (b *LocalBackend) Open(_ context.Context, p string) (io.ReadCloser, FileInfo, error) {
	info, err := b.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, FileInfo{}, fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		return nil, FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	f, err := b.fs.Open(p)
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("open %s: %w", p, err)
	}
	return f, FileInfo{
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(path.Ext(p)),
		ModTime:     info.ModTime(),
	}, nil
}

// Remove implements Backend.
func (b *LocalBackend) Remove(_ context.Context, p string) error {
	if err := b.fs.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

// ListDirs implements Backend.
func (b *LocalBackend) ListDirs(_ context.Context, dir string) ([]string, error) {
	entries, err := afero.ReadDir(b.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
