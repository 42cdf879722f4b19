package handlers

import (
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// Relay is the server side of the WebSocket sync transport
// (internal/adapters/sync.Session is the client side): it accepts
// connections at /_sync, performs the same hello handshake, and
// rebroadcasts every frame it receives from one peer to every other
// connected peer, so two TonkCore instances pointed at the same relay
// URL converge on each other's changes.
type Relay struct {
	logger usecases.Logger

	mu    sync.Mutex
	peers map[string]*relayPeer
}

type relayPeer struct {
	id   string
	send chan []byte
}

// NewRelay creates an empty relay with no connected peers.
func NewRelay(logger usecases.Logger) *Relay {
	return &Relay{logger: logger, peers: make(map[string]*relayPeer)}
}

// ServeHTTP upgrades the request to a WebSocket and runs the peer's
// read/broadcast loop until it disconnects or the request context is
// cancelled.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	conn, err := websocket.Accept(w, req, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(64 << 20)
	defer conn.Close(websocket.StatusNormalClosure, "relay closing")

	peer := &relayPeer{id: uuid.New().String(), send: make(chan []byte, 64)}
	r.register(peer)
	defer r.unregister(peer.id)

	// Hello handshake: echo the connecting peer's hello back so both
	// sides agree the relay is alive, matching sync.Session's Connect.
	_, helloFrame, err := conn.Read(ctx)
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageBinary, helloFrame); err != nil {
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for frame := range peer.send {
			if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
				return
			}
		}
	}()

	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			return
		}
		r.broadcast(peer.id, frame)
	}
}

func (r *Relay) register(p *relayPeer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.id] = p
	if r.logger != nil {
		r.logger.Info("relay peer connected", "peerId", p.id, "total", len(r.peers))
	}
}

func (r *Relay) unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[id]; ok {
		close(p.send)
		delete(r.peers, id)
	}
	if r.logger != nil {
		r.logger.Info("relay peer disconnected", "peerId", id, "total", len(r.peers))
	}
}

// broadcast forwards frame to every connected peer other than from.
func (r *Relay) broadcast(from string, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.peers {
		if id == from {
			continue
		}
		select {
		case p.send <- frame:
		default:
			if r.logger != nil {
				r.logger.Warn("relay peer send buffer full, dropping frame", "peerId", id)
			}
		}
	}
}
