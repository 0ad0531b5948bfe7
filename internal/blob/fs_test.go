package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/assurelog/internal/core"
)

const name = "0123456789abcdef0123456789abcdef.png"

func TestFS_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFS(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	n, err := store.Put(ctx, name, strings.NewReader("pixels"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	rc, err := store.Open(ctx, name)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "pixels", string(data))

	require.NoError(t, store.Delete(ctx, name))
	_, err = store.Open(ctx, name)
	assert.ErrorIs(t, err, core.ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, name))
}

func TestFS_PutNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store, err := NewFS(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(ctx, name, strings.NewReader("first"))
	require.NoError(t, err)
	_, err = store.Put(ctx, name, strings.NewReader("second"))
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(store.Dir, name))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestFS_RejectsUnsafeNames(t *testing.T) {
	ctx := context.Background()
	store, err := NewFS(t.TempDir())
	require.NoError(t, err)

	for _, bad := range []string{"../secret.png", "a/b.png", "", "UPPERCASE0123456789abcdef01234567.png"} {
		_, err := store.Put(ctx, bad, strings.NewReader("x"))
		assert.ErrorIs(t, err, core.ErrNotFound, bad)

		_, err = store.Open(ctx, bad)
		assert.ErrorIs(t, err, core.ErrNotFound, bad)
	}
}

func TestFS_PutCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store, err := NewFS(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(ctx, name, strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)

	_, err = os.Stat(filepath.Join(store.Dir, name))
	assert.True(t, os.IsNotExist(err))
}
