package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerIDRandomWhenNotInjected(t *testing.T) {
	r1 := New()
	r2 := New()
	assert.Len(t, r1.PeerID(), 32)
	assert.NotEqual(t, r1.PeerID(), r2.PeerID())
}

func TestWithPeerID(t *testing.T) {
	r := New(WithPeerID("fixed-peer"))
	assert.Equal(t, "fixed-peer", r.PeerID())
}

func TestCreateFindApply(t *testing.T) {
	ctx := context.Background()
	r := New()
	id, err := r.CreateDocument(ctx, []byte("v1"))
	require.NoError(t, err)

	content, err := r.FindDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))

	require.NoError(t, r.Apply(ctx, id, []byte("v2")))
	content, err = r.FindDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))
}

func TestFindDocumentNotFound(t *testing.T) {
	r := New()
	_, err := r.FindDocument(context.Background(), "missing")
	assert.Error(t, err)
}

func TestSubscribeDeliversCurrentThenChanges(t *testing.T) {
	ctx := context.Background()
	r := New()
	id, _ := r.CreateDocument(ctx, []byte("v1"))

	var received []string
	handle, err := r.Subscribe(ctx, id, func(content []byte) {
		received = append(received, string(content))
	})
	require.NoError(t, err)

	require.NoError(t, r.Apply(ctx, id, []byte("v2")))
	require.NoError(t, r.Apply(ctx, id, []byte("v3")))

	assert.Equal(t, []string{"v1", "v2", "v3"}, received)

	handle.Cancel()
	require.NoError(t, r.Apply(ctx, id, []byte("v4")))
	assert.Equal(t, []string{"v1", "v2", "v3"}, received)
}

func TestDeleteDocumentNotifiesWatchersOnce(t *testing.T) {
	ctx := context.Background()
	r := New()
	id, _ := r.CreateDocument(ctx, []byte("v1"))

	calls := 0
	_, err := r.Subscribe(ctx, id, func(content []byte) { calls++ })
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	require.NoError(t, r.DeleteDocument(ctx, id))
	assert.Equal(t, 2, calls)

	_, err = r.FindDocument(ctx, id)
	assert.Error(t, err)
}

func TestSnapshotAndLoadSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := New()
	id, _ := r.CreateDocument(ctx, []byte("hello"))

	snap, err := r.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, snap.ID)
	assert.NotEmpty(t, snap.RootID)

	r2 := New()
	require.NoError(t, r2.LoadSnapshot(ctx, snap))
	content, err := r2.FindDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestListDocuments(t *testing.T) {
	ctx := context.Background()
	r := New()
	id1, _ := r.CreateDocument(ctx, []byte("a"))
	id2, _ := r.CreateDocument(ctx, []byte("b"))

	ids, err := r.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, id1)
	assert.Contains(t, ids, id2)
}
