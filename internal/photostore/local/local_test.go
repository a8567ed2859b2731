package local

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/opname/internal/photostore"
)

func TestLocalPhotoStoreWriteAndOpen(t *testing.T) {
	tmpdir := t.TempDir()
	store, err := NewLocalPhotoStore(tmpdir)
	require.NoError(t, err)

	ctx := context.Background()
	imageData := []byte("fake jpeg data")

	err = store.Write(ctx, "audits/a1/sections/ventilatie/foto.jpg", bytes.NewReader(imageData))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(tmpdir, "audits", "a1", "sections", "ventilatie", "foto.jpg"))

	reader, mimeType, err := store.Open(ctx, "audits/a1/sections/ventilatie/foto.jpg")
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "image/jpeg", mimeType)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, imageData, data)
}

func TestLocalPhotoStoreRemove(t *testing.T) {
	store, err := NewLocalPhotoStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "audits/a1/x.png", bytes.NewReader([]byte("png"))))
	require.NoError(t, store.Remove(ctx, "audits/a1/x.png"))

	_, _, err = store.Open(ctx, "audits/a1/x.png")
	assert.ErrorIs(t, err, photostore.ErrNotFound)

	assert.ErrorIs(t, store.Remove(ctx, "audits/a1/x.png"), photostore.ErrNotFound)
}

func TestLocalPhotoStoreRemoveTree(t *testing.T) {
	tmpdir := t.TempDir()
	store, err := NewLocalPhotoStore(tmpdir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "audits/a1/x.jpg", bytes.NewReader([]byte("a"))))
	require.NoError(t, store.Write(ctx, "audits/a1/sections/koeling/y.jpg", bytes.NewReader([]byte("b"))))

	require.NoError(t, store.RemoveTree(ctx, "audits/a1"))
	assert.NoDirExists(t, filepath.Join(tmpdir, "audits", "a1"))

	// Missing directories are fine.
	assert.NoError(t, store.RemoveTree(ctx, "audits/a1"))
}

func TestLocalPhotoStoreListDirs(t *testing.T) {
	tmpdir := t.TempDir()
	store, err := NewLocalPhotoStore(tmpdir)
	require.NoError(t, err)
	ctx := context.Background()

	dirs, err := store.ListDirs(ctx, "audits")
	require.NoError(t, err)
	assert.Empty(t, dirs)

	require.NoError(t, store.Write(ctx, "audits/a1/x.jpg", bytes.NewReader([]byte("a"))))
	require.NoError(t, store.Write(ctx, "audits/a2/x.jpg", bytes.NewReader([]byte("a"))))
	require.NoError(t, os.WriteFile(filepath.Join(tmpdir, "audits", "stray.txt"), []byte("x"), 0o644))

	dirs, err = store.ListDirs(ctx, "audits")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2"}, dirs)
}

func TestLocalPhotoStoreListFiles(t *testing.T) {
	store, err := NewLocalPhotoStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "audits/a1/x.jpg", bytes.NewReader([]byte("a"))))
	require.NoError(t, store.Write(ctx, "audits/a1/sections/koeling/y.jpg", bytes.NewReader([]byte("b"))))

	files, err := store.ListFiles(ctx, "audits/a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"audits/a1/sections/koeling/y.jpg", "audits/a1/x.jpg"}, files)

	files, err = store.ListFiles(ctx, "audits/none")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLocalPhotoStorePathTraversal(t *testing.T) {
	store, err := NewLocalPhotoStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = store.Open(ctx, "../../etc/passwd")
	assert.Error(t, err)

	assert.Error(t, store.Write(ctx, "../escape.jpg", bytes.NewReader(nil)))
	assert.Error(t, store.RemoveTree(ctx, ".."))
	assert.Error(t, store.RemoveTree(ctx, ""), "the media root itself must never be removed")
}
