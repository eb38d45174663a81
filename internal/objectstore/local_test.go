package objectstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	ls, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = ls.Put(ctx, "scenes/1/poster.webp", bytes.NewReader([]byte("poster-bytes")), PutOptions{})
	require.NoError(t, err)

	r, attrs, err := ls.Get(ctx, "scenes/1/poster.webp")
	require.NoError(t, err)
	defer r.Close()
	assert.EqualValues(t, len("poster-bytes"), attrs.Size)

	exists, err := ls.Exists(ctx, "scenes/1/poster.webp")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, ls.Delete(ctx, "scenes/1/poster.webp"))
	exists, err = ls.Exists(ctx, "scenes/1/poster.webp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	ls, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = ls.Get(ctx, "../escape")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	ls, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = ls.Get(ctx, "nope.webp")
	assert.ErrorIs(t, err, ErrNotFound)
}
