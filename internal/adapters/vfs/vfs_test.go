package vfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonk-labs/tonk/internal/adapters/repo"
	"github.com/tonk-labs/tonk/internal/core/entities"
)

func newVfs(t *testing.T) *Vfs {
	t.Helper()
	r := repo.New()
	v, err := New(context.Background(), r)
	require.NoError(t, err)
	return v
}

func TestCreateFileRequiresExistingParent(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()
	err := v.CreateFile(ctx, "/a/b.txt", "hi")
	assert.Error(t, err)
}

func TestCreateAndReadFile(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()
	require.NoError(t, v.CreateFile(ctx, "/a.txt", "hello"))

	view, err := v.ReadFile(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", view.Content)
}

func TestDistinctPathsHoldDistinctContent(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()
	require.NoError(t, v.CreateFile(ctx, "/p.txt", "X"))
	require.NoError(t, v.CreateFile(ctx, "/q.txt", "Y"))

	p, err := v.ReadFile(ctx, "/p.txt")
	require.NoError(t, err)
	q, err := v.ReadFile(ctx, "/q.txt")
	require.NoError(t, err)
	assert.Equal(t, "X", p.Content)
	assert.Equal(t, "Y", q.Content)
}

func TestCreateDirectoryAndNestedFile(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()
	require.NoError(t, v.CreateDirectory(ctx, "/docs"))
	require.NoError(t, v.CreateFile(ctx, "/docs/readme.txt", "hi"))

	view, err := v.ReadFile(ctx, "/docs/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", view.Content)
}

func TestListDirectorySortedByName(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()
	require.NoError(t, v.CreateFile(ctx, "/b.txt", "1"))
	require.NoError(t, v.CreateFile(ctx, "/a.txt", "2"))
	require.NoError(t, v.CreateDirectory(ctx, "/c"))

	entries, err := v.ListDirectory(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, "b.txt", entries[1].Name)
	assert.Equal(t, "c", entries[2].Name)
}

func TestExists(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()
	ok, err := v.Exists(ctx, "/missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v.CreateFile(ctx, "/present.txt", "x"))
	ok, err = v.Exists(ctx, "/present.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteFile(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()
	require.NoError(t, v.CreateFile(ctx, "/a.txt", "x"))
	require.NoError(t, v.DeleteFile(ctx, "/a.txt"))

	ok, err := v.Exists(ctx, "/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRenamePreservesIdentityAndContent(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()
	require.NoError(t, v.CreateFile(ctx, "/old.txt", "payload"))

	before, err := v.GetMetadata(ctx, "/old.txt")
	require.NoError(t, err)

	require.NoError(t, v.Rename(ctx, "/old.txt", "/new.txt"))

	ok, err := v.Exists(ctx, "/old.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := v.GetMetadata(ctx, "/new.txt")
	require.NoError(t, err)
	assert.Equal(t, before.Pointer, after.Pointer)

	view, err := v.ReadFile(ctx, "/new.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", view.Content)
}

func TestRenameFailsWhenTargetExists(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()
	require.NoError(t, v.CreateFile(ctx, "/a.txt", "1"))
	require.NoError(t, v.CreateFile(ctx, "/b.txt", "2"))
	err := v.Rename(ctx, "/a.txt", "/b.txt")
	assert.Error(t, err)
}

func TestRenameRejectsCyclicMove(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()
	require.NoError(t, v.CreateDirectory(ctx, "/a"))
	require.NoError(t, v.CreateDirectory(ctx, "/a/b"))

	err := v.Rename(ctx, "/a", "/a/b/a")
	assert.Error(t, err)
}

func TestWatchFileFiresOnUpdateAndSurvivesRename(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()
	require.NoError(t, v.CreateFile(ctx, "/watched.txt", "v1"))

	var seen []string
	handle, err := v.WatchFile(ctx, "/watched.txt", func(fv entities.FileView) {
		if fv.Deleted {
			seen = append(seen, "<deleted>")
			return
		}
		seen = append(seen, fv.Content)
	})
	require.NoError(t, err)
	defer handle.Cancel()

	require.NoError(t, v.UpdateFile(ctx, "/watched.txt", "v2"))
	require.NoError(t, v.Rename(ctx, "/watched.txt", "/renamed.txt"))
	require.NoError(t, v.UpdateFile(ctx, "/renamed.txt", "v3"))

	assert.Equal(t, []string{"v1", "v2", "v2", "v3"}, seen)
}

func TestWatchFileFinalCallbackOnDelete(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()
	require.NoError(t, v.CreateFile(ctx, "/x.txt", "v1"))

	var deleted bool
	_, err := v.WatchFile(ctx, "/x.txt", func(fv entities.FileView) {
		if fv.Deleted {
			deleted = true
		}
	})
	require.NoError(t, err)

	require.NoError(t, v.DeleteFile(ctx, "/x.txt"))
	assert.True(t, deleted)
}

func TestWatchDirectoryReportsAddedAndRemoved(t *testing.T) {
	v := newVfs(t)
	ctx := context.Background()

	var kinds []entities.DirChangeKind
	_, err := v.WatchDirectory(ctx, "/", func(c entities.DirChange) {
		kinds = append(kinds, c.Kind)
	})
	require.NoError(t, err)

	require.NoError(t, v.CreateFile(ctx, "/new.txt", "x"))
	require.NoError(t, v.DeleteFile(ctx, "/new.txt"))

	assert.Contains(t, kinds, entities.DirChangeUpdated)
	assert.Contains(t, kinds, entities.DirChangeAdded)
	assert.Contains(t, kinds, entities.DirChangeRemoved)
}
