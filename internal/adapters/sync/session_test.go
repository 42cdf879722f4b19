package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relayServer is a minimal mock of the sync relay: it accepts one
// connection, performs the hello handshake, then echoes every frame
// it receives back to the caller (so a single Session can observe its
// own round trip).
func relayServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		ctx := r.Context()

		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
		if err := conn.Write(ctx, websocket.MessageBinary, []byte(`{"type":"hello","peerId":"relay","protocolVersion":1}`)); err != nil {
			return
		}

		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if err := conn.Write(ctx, typ, data); err != nil {
				return
			}
		}
	})
	return httptest.NewServer(handler)
}

func wsURL(s *httptest.Server) string {
	return "ws" + s.URL[len("http"):]
}

func TestConnectPerformsHelloHandshake(t *testing.T) {
	srv := relayServer(t)
	defer srv.Close()

	sess := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := sess.Connect(ctx, wsURL(srv), "client-peer")
	require.NoError(t, err)
	defer sess.Close()
}

func TestSendEchoesThroughFrames(t *testing.T) {
	srv := relayServer(t)
	defer srv.Close()

	sess := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Connect(ctx, wsURL(srv), "client-peer"))
	defer sess.Close()

	require.NoError(t, sess.Send(ctx, []byte("crdt-payload")))

	select {
	case frame := <-sess.Frames():
		assert.Equal(t, "crdt-payload", string(frame))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echoed frame")
	}
}

func TestConnectFailsOnInvalidURL(t *testing.T) {
	sess := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := sess.Connect(ctx, "ws://127.0.0.1:1/no-such-relay", "client-peer")
	assert.Error(t, err)
}

func TestSendDropsOldestFrameWhenQueueFull(t *testing.T) {
	sess := New(nil)
	sess.capacity = 2

	ctx := context.Background()
	require.NoError(t, sess.Send(ctx, []byte("a")))
	require.NoError(t, sess.Send(ctx, []byte("b")))
	require.NoError(t, sess.Send(ctx, []byte("c")))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	require.Len(t, sess.queue, 2)
	assert.Equal(t, []byte("b"), sess.queue[0])
	assert.Equal(t, []byte("c"), sess.queue[1])
}

func TestCloseEndsSessionWithoutReconnect(t *testing.T) {
	srv := relayServer(t)
	defer srv.Close()

	sess := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Connect(ctx, wsURL(srv), "client-peer"))

	require.NoError(t, sess.Close())

	select {
	case <-sess.Closed():
	case <-time.After(time.Second):
		t.Fatal("session did not close")
	}
	assert.NoError(t, sess.Err())
}
