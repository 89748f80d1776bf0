package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageWriteDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "/uploads/")
	require.NoError(t, err)

	ctx := context.Background()
	key := "photos/u1/p1.jpg"
	require.NoError(t, s.Write(ctx, key, strings.NewReader("jpeg-bytes"), -1, "image/jpeg"))

	data, err := os.ReadFile(filepath.Join(dir, "photos", "u1", "p1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, "/uploads/photos/u1/p1.jpg", s.URL(key))

	require.NoError(t, s.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(dir, "photos", "u1", "p1.jpg"))
	assert.True(t, os.IsNotExist(err))

	// deleting again is fine
	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)

	err = s.Write(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
}
