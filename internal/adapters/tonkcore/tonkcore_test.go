package tonkcore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonk-labs/tonk/internal/adapters/bundle"
	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// fakeTransport is an in-memory usecases.SyncTransport for exercising
// ConnectWebsocket without a real relay.
type fakeTransport struct {
	connectedURL string
	connectedTo  string
	frames       chan []byte
	closed       chan struct{}
	closeCount   int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{frames: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeTransport) Connect(ctx context.Context, url string, peerID string) error {
	f.connectedURL = url
	f.connectedTo = peerID
	return nil
}
func (f *fakeTransport) Send(ctx context.Context, frame []byte) error { return nil }
func (f *fakeTransport) Frames() <-chan []byte                        { return f.frames }
func (f *fakeTransport) Closed() <-chan struct{}                      { return f.closed }
func (f *fakeTransport) Err() error                                   { return nil }
func (f *fakeTransport) Close() error {
	f.closeCount++
	close(f.frames)
	return nil
}

var _ usecases.SyncTransport = (*fakeTransport)(nil)

func TestNewIsEmptyWithRootOnly(t *testing.T) {
	ctx := context.Background()
	tc, err := New(ctx, Options{})
	require.NoError(t, err)

	entries, err := tc.Vfs().ListDirectory(ctx, "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWithPeerIdInjectsIdentity(t *testing.T) {
	ctx := context.Background()
	tc, err := WithPeerId(ctx, "custom-peer")
	require.NoError(t, err)
	assert.Equal(t, "custom-peer", tc.GetPeerId())
}

func TestFromBundleHydratesFileTree(t *testing.T) {
	ctx := context.Background()
	b, err := bundle.FromFiles(map[string][]byte{
		"/index.html":    []byte("<html></html>"),
		"/assets/app.js": []byte("console.log(1)"),
	}, bundle.CreateOptions{})
	require.NoError(t, err)

	tc, err := FromBundle(ctx, b, Options{})
	require.NoError(t, err)

	view, err := tc.Vfs().ReadFile(ctx, "/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", view.Content)

	view2, err := tc.Vfs().ReadFile(ctx, "/assets/app.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", view2.Content)
}

func TestToBytesRoundTripsThroughFromBytes(t *testing.T) {
	ctx := context.Background()
	tc, err := New(ctx, Options{})
	require.NoError(t, err)
	require.NoError(t, tc.Vfs().CreateFile(ctx, "/hello.txt", "world"))

	data, _, err := tc.ToBytes(ctx)
	require.NoError(t, err)

	reloaded, err := FromBytes(ctx, data, Options{})
	require.NoError(t, err)
	view, err := reloaded.Vfs().ReadFile(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "world", view.Content)
}

func TestConnectWebsocketPerformsHandshakeAndAppliesFrames(t *testing.T) {
	ctx := context.Background()
	ft := newFakeTransport()
	tc, err := New(ctx, Options{NewTransport: func() usecases.SyncTransport { return ft }})
	require.NoError(t, err)

	require.NoError(t, tc.ConnectWebsocket(ctx, "wss://relay.example/sync"))
	assert.Equal(t, "wss://relay.example/sync", ft.connectedURL)
	assert.Equal(t, tc.GetPeerId(), ft.connectedTo)

	docID, err := tc.repo.CreateDocument(ctx, []byte("seed"))
	require.NoError(t, err)

	frame, err := json.Marshal(changeFrame{DocID: docID, Content: []byte("remote-update")})
	require.NoError(t, err)
	ft.frames <- frame

	require.Eventually(t, func() bool {
		content, err := tc.repo.FindDocument(ctx, docID)
		return err == nil && string(content) == "remote-update"
	}, time.Second, 10*time.Millisecond)
}

func TestConnectWebsocketIsIdempotentPerURL(t *testing.T) {
	ctx := context.Background()
	first := newFakeTransport()
	calls := 0
	tc, err := New(ctx, Options{NewTransport: func() usecases.SyncTransport {
		calls++
		if calls == 1 {
			return first
		}
		return newFakeTransport()
	}})
	require.NoError(t, err)

	require.NoError(t, tc.ConnectWebsocket(ctx, "wss://relay.example/sync"))
	require.NoError(t, tc.ConnectWebsocket(ctx, "wss://relay.example/sync"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, first.closeCount)
}

func TestConnectWebsocketToNewUrlClosesPriorSession(t *testing.T) {
	ctx := context.Background()
	first := newFakeTransport()
	second := newFakeTransport()
	calls := 0
	tc, err := New(ctx, Options{NewTransport: func() usecases.SyncTransport {
		calls++
		if calls == 1 {
			return first
		}
		return second
	}})
	require.NoError(t, err)

	require.NoError(t, tc.ConnectWebsocket(ctx, "wss://relay.example/a"))
	require.NoError(t, tc.ConnectWebsocket(ctx, "wss://relay.example/b"))
	assert.Equal(t, 1, first.closeCount)
	assert.Equal(t, "wss://relay.example/b", second.connectedURL)

	require.NoError(t, tc.DisconnectWebsocket())
	assert.Equal(t, 1, second.closeCount)
}

func TestRenameProxiesToVfs(t *testing.T) {
	ctx := context.Background()
	tc, err := New(ctx, Options{})
	require.NoError(t, err)
	require.NoError(t, tc.Vfs().CreateFile(ctx, "/a.txt", "x"))
	require.NoError(t, tc.Rename(ctx, "/a.txt", "/b.txt"))

	ok, err := tc.Vfs().Exists(ctx, "/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}
