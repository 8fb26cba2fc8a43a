package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key := UploadKey(uuid.New())
	uri, err := store.Put(ctx, key, []byte("%PDF-1.4 test"), "application/pdf")
	require.NoError(t, err)
	assert.Contains(t, uri, "file://")

	content, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 test"), content)

	url, err := store.SignedURL(ctx, key, 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "expires_in=900")

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorageMissingObject(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(ctx, "uploads/missing.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = store.SignedURL(ctx, "uploads/missing.pdf", time.Minute)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, store.Delete(ctx, "uploads/missing.pdf"))
}

func TestLocalStorageList(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	first := ResultKey(uuid.New())
	second := ResultKey(uuid.New())
	_, err = store.Put(ctx, first, []byte("{}"), "application/json")
	require.NoError(t, err)
	_, err = store.Put(ctx, second, []byte("{}"), "application/json")
	require.NoError(t, err)
	_, err = store.Put(ctx, UploadKey(uuid.New()), []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)

	keys, err := store.List(ctx, ResultsPrefix())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first, second}, keys)

	keys, err = store.List(ctx, "nothing-here/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStorageKeys(t *testing.T) {
	recordID := uuid.New()
	assert.Equal(t, "uploads/"+recordID.String()+".pdf", UploadKey(recordID))
	assert.Equal(t, "results/"+recordID.String()+".json", ResultKey(recordID))
}
