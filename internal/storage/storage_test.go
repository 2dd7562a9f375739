package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_PutGet(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFSStore(fs, "/scans")
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	key := NewKey()
	data := []byte("\x89PNG fake payload")
	err := s.Put(context.Background(), key, data, Metadata{
		Format: "png", ContentType: "image/png", Extension: ".png",
		Width: 640, Height: 480, Operation: "rectify",
	})
	require.NoError(t, err)

	ok, err := afero.Exists(fs, "/scans/"+key+".png")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = afero.Exists(fs, "/scans/"+key+".json")
	require.NoError(t, err)
	assert.True(t, ok)

	got, meta, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, key, meta.Key)
	assert.Equal(t, len(data), meta.Size)
	assert.Equal(t, 640, meta.Width)
	assert.Equal(t, "rectify", meta.Operation)
	assert.True(t, fixed.Equal(meta.CreatedAt))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
}

func TestFSStore_NotFound(t *testing.T) {
	s := NewFSStore(afero.NewMemMapFs(), "/scans")
	_, _, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStore_InvalidKey(t *testing.T) {
	s := NewFSStore(afero.NewMemMapFs(), "/scans")
	for _, key := range []string{"", "../etc/passwd", "a/b", ".hidden"} {
		assert.Error(t, s.Put(context.Background(), key, []byte("x"), Metadata{}), key)
		_, _, err := s.Get(context.Background(), key)
		assert.Error(t, err, key)
	}
}

func TestFSStore_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewFSStore(afero.NewMemMapFs(), "/scans")
	assert.ErrorIs(t, s.Put(ctx, NewKey(), []byte("x"), Metadata{}), context.Canceled)
}

func TestFSStore_ReadOnly(t *testing.T) {
	s := NewFSStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/scans")
	assert.Error(t, s.Put(context.Background(), NewKey(), []byte("x"), Metadata{Extension: ".png"}))
}

func TestNewKey(t *testing.T) {
	a, b := NewKey(), NewKey()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
	assert.True(t, ValidKey(a))
}
