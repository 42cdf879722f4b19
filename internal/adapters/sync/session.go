// Package sync implements the sync session transport (component F,
// §4.5): a single-shot, non-reconnecting WebSocket connection to a
// relay that exchanges a hello handshake followed by opaque CRDT
// payload frames. Backpressure is cooperative: outbound frames queue
// in a bounded buffer, and overflow drops the oldest non-handshake
// frame with a warning rather than blocking the caller.
package sync

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"

	"github.com/tonk-labs/tonk/internal/core/entities"
	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// ProtocolVersion is advertised in every hello message (§4.5).
const ProtocolVersion = 1

// DefaultQueueCapacity bounds the outbound frame buffer (§4.5
// backpressure).
const DefaultQueueCapacity = 256

// hello is the handshake payload exchanged by both sides on open.
type hello struct {
	Type            string `json:"type"`
	PeerID          string `json:"peerId"`
	ProtocolVersion int    `json:"protocolVersion"`
}

// Session is a WebSocket-backed usecases.SyncTransport.
type Session struct {
	conn   *websocket.Conn
	logger usecases.Logger

	mu       sync.Mutex
	queue    [][]byte
	capacity int
	notify   chan struct{}

	frames chan []byte
	closed chan struct{}
	err    error
	once   sync.Once
}

var _ usecases.SyncTransport = (*Session)(nil)

// New returns a Session ready to Connect. logger may be nil.
func New(logger usecases.Logger) *Session {
	return &Session{
		logger:   logger,
		capacity: DefaultQueueCapacity,
		notify:   make(chan struct{}, 1),
		frames:   make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

// Connect dials url and performs the hello handshake (§4.5).
func (s *Session) Connect(ctx context.Context, url string, peerId string) error {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return &entities.ConnectionError{URL: url, Message: "dial failed", Err: err}
	}
	conn.SetReadLimit(64 << 20)
	s.conn = conn

	helloMsg, err := json.Marshal(hello{Type: "hello", PeerID: peerId, ProtocolVersion: ProtocolVersion})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "marshal hello")
		return &entities.ConnectionError{URL: url, Message: "failed to encode hello", Err: err}
	}
	if err := conn.Write(ctx, websocket.MessageBinary, helloMsg); err != nil {
		conn.Close(websocket.StatusInternalError, "write hello")
		return &entities.ConnectionError{URL: url, Message: "hello handshake failed", Err: err}
	}

	_, remoteHello, err := conn.Read(ctx)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "read hello")
		return &entities.ConnectionError{URL: url, Message: "hello handshake failed", Err: err}
	}
	var h hello
	if err := json.Unmarshal(remoteHello, &h); err != nil || h.Type != "hello" {
		conn.Close(websocket.StatusProtocolError, "invalid hello")
		return &entities.ConnectionError{URL: url, Message: "relay sent a non-hello first message"}
	}

	go s.readLoop(ctx)
	go s.writeLoop(ctx)
	return nil
}

// Send enqueues an opaque CRDT payload frame. If the outbound queue is
// full, the oldest queued non-handshake frame is dropped and a
// warning logged (§4.5 backpressure). Hello frames never reach Send;
// only Connect sends those.
func (s *Session) Send(ctx context.Context, frame []byte) error {
	s.mu.Lock()
	if len(s.queue) >= s.capacity {
		s.queue = s.queue[1:]
		if s.logger != nil {
			s.logger.Warn("sync outbound queue full, dropping oldest frame", "capacity", s.capacity)
		}
	}
	s.queue = append(s.queue, frame)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// Frames returns the channel of frames received from the relay.
func (s *Session) Frames() <-chan []byte { return s.frames }

// Closed is closed when the session ends.
func (s *Session) Closed() <-chan struct{} { return s.closed }

// Err returns the terminal error, or nil on a clean close.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears down the session. It never reconnects (§4.5).
func (s *Session) Close() error {
	s.finish(nil)
	if s.conn != nil {
		return s.conn.Close(websocket.StatusNormalClosure, "closing")
	}
	return nil
}

func (s *Session) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.closed)
	})
}

func (s *Session) readLoop(ctx context.Context) {
	defer close(s.frames)
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.finish(&entities.ConnectionError{Message: "read failed", Err: err})
			return
		}
		select {
		case s.frames <- data:
		case <-s.closed:
			return
		}
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-s.closed:
			return
		case <-s.notify:
			for {
				s.mu.Lock()
				if len(s.queue) == 0 {
					s.mu.Unlock()
					break
				}
				frame := s.queue[0]
				s.queue = s.queue[1:]
				s.mu.Unlock()

				if err := s.conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
					s.finish(&entities.ConnectionError{Message: "write failed", Err: err})
					return
				}
			}
		}
	}
}
