package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonk-labs/tonk/internal/core/entities"
)

func TestMemorySaveAndLoadAll(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveSnapshot(ctx, entities.DocumentSnapshot{ID: "a", Content: []byte("1"), RootID: "r1"}))
	require.NoError(t, m.SaveSnapshot(ctx, entities.DocumentSnapshot{ID: "b", Content: []byte("2"), RootID: "r2"}))

	snaps, err := m.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
	require.NoError(t, m.Close())
}

func TestMemorySaveOverwritesSameID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveSnapshot(ctx, entities.DocumentSnapshot{ID: "a", Content: []byte("1")}))
	require.NoError(t, m.SaveSnapshot(ctx, entities.DocumentSnapshot{ID: "a", Content: []byte("2")}))

	snaps, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, []byte("2"), snaps[0].Content)
}

func TestFileSaveAndLoadAllRoundTrips(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	f, err := NewFile(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, f.SaveSnapshot(ctx, entities.DocumentSnapshot{ID: "doc-1", Content: []byte("hello"), RootID: "root-1"}))
	require.NoError(t, f.SaveSnapshot(ctx, entities.DocumentSnapshot{ID: "doc-2", Content: []byte("world"), RootID: "root-2"}))

	snaps, err := f.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	byID := map[entities.DocumentId]entities.DocumentSnapshot{}
	for _, s := range snaps {
		byID[s.ID] = s
	}
	assert.Equal(t, "hello", string(byID["doc-1"].Content))
	assert.Equal(t, "root-2", byID["doc-2"].RootID)
	require.NoError(t, f.Close())
}

func TestFileRequiresNonEmptyRoot(t *testing.T) {
	_, err := NewFile("")
	assert.Error(t, err)
}

func TestFileLoadAllOnEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)

	snaps, err := f.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
