package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bytesReader(s string) io.Reader {
	return bytes.NewReader([]byte(s))
}

func TestLocalBackend_EnsureDir(t *testing.T) {
	b := NewFsBackend(afero.NewMemMapFs())
	ctx := context.Background()

	created, err := b.EnsureDir(ctx, "a/b/c")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = b.EnsureDir(ctx, "a/b/c")
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, b.Write(ctx, "a/file", bytesReader("x"), 1, "", WriteOverwrite))
	_, err = b.EnsureDir(ctx, "a/file")
	assert.True(t, errors.Is(err, ErrNotDirectory))
}

func TestLocalBackend_WriteOpenRemove(t *testing.T) {
	b := NewFsBackend(afero.NewMemMapFs())
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, "p/q/doc.pdf", bytesReader("hello"), 5, "application/pdf", WriteExclusive))

	ok, err := b.Exists(ctx, "p/q/doc.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Exists(ctx, "p/q")
	require.NoError(t, err)
	assert.False(t, ok, "directories are not files")

	rc, info, err := b.Open(ctx, "p/q/doc.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "application/pdf", info.ContentType)

	require.NoError(t, b.Remove(ctx, "p/q/doc.pdf"))
	_, _, err = b.Open(ctx, "p/q/doc.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(b.Remove(ctx, "p/q/doc.pdf"), ErrNotFound))

	_, _, err = b.Open(ctx, "p/q")
	assert.True(t, errors.Is(err, ErrNotFound), "directories cannot be opened as files")
}

func TestLocalBackend_ExclusiveWriteLeavesReaderUntouched(t *testing.T) {
	b := NewFsBackend(afero.NewMemMapFs())
	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "x.txt", bytesReader("first"), 5, "", WriteExclusive))

	r := strings.NewReader("second")
	err := b.Write(ctx, "x.txt", r, 6, "", WriteExclusive)
	assert.True(t, errors.Is(err, ErrFileExists))
	assert.Equal(t, 6, r.Len(), "reader must not be consumed")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestLocalBackend_WriteFailureRemovesPartialFile(t *testing.T) {
	b := NewFsBackend(afero.NewMemMapFs())
	ctx := context.Background()

	err := b.Write(ctx, "broken.bin", failingReader{}, 10, "", WriteExclusive)
	require.Error(t, err)

	ok, err := b.Exists(ctx, "broken.bin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalBackend_ListDirs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	b := NewFsBackend(fsys)
	ctx := context.Background()

	for _, d := range []string{"root/b", "root/a", "root/c/nested"} {
		require.NoError(t, fsys.MkdirAll(d, 0o755))
	}
	require.NoError(t, afero.WriteFile(fsys, "root/file.txt", []byte("x"), 0o644))

	names, err := b.ListDirs(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	names, err = b.ListDirs(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestNewLocalBackend_ConfinedToRoot(t *testing.T) {
	root := t.TempDir()
	b, err := NewLocalBackend(filepath.Join(root, "media"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, "projects/p/a.txt", bytesReader("ok"), 2, "", WriteExclusive))
	data, err := os.ReadFile(filepath.Join(root, "media", "projects", "p", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))

	_, err = NewLocalBackend("")
	assert.Error(t, err)
}
