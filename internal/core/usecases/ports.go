// Package usecases defines the ports that core operations are built
// against and the orchestration that wires adapters to them. Adapters
// under internal/adapters implement these interfaces; nothing in this
// package imports an adapter package.
package usecases

import (
	"context"
	"time"

	"github.com/tonk-labs/tonk/internal/core/entities"
)

// DocumentRepository is the CRDT document store port (§4.2). It is
// deliberately narrow: the CRDT engine itself is treated as an opaque
// black box, so this interface only exposes document lifecycle,
// snapshotting, and change notification — never the internal
// operation log or merge algorithm.
type DocumentRepository interface {
	// PeerID returns this repo instance's stable actor identifier.
	PeerID() string

	// CreateDocument allocates a new document seeded with content and
	// returns its id.
	CreateDocument(ctx context.Context, content []byte) (entities.DocumentId, error)

	// FindDocument returns the current content of id, or
	// entities.ErrNotFound if no such document exists.
	FindDocument(ctx context.Context, id entities.DocumentId) ([]byte, error)

	// ListDocuments returns every known document id.
	ListDocuments(ctx context.Context) ([]entities.DocumentId, error)

	// Apply replaces id's content with content, advancing its causal
	// history. It never blocks on network I/O.
	Apply(ctx context.Context, id entities.DocumentId, content []byte) error

	// DeleteDocument removes id from the repo. Existing watchers are
	// notified once, then unsubscribed.
	DeleteDocument(ctx context.Context, id entities.DocumentId) error

	// Subscribe registers fn to be called, in causal order, whenever
	// id's content changes. The returned WatcherHandle cancels the
	// subscription.
	Subscribe(ctx context.Context, id entities.DocumentId, fn func(content []byte)) (WatcherHandle, error)

	// SubscribeAll registers fn to be called once for every existing
	// document's current content, then again whenever any document is
	// created or changed. A sync session uses this to push an initial
	// catch-up and then every subsequent local write to a peer; a
	// storage backend uses it to persist a write-through snapshot log.
	SubscribeAll(ctx context.Context, fn func(id entities.DocumentId, content []byte)) (WatcherHandle, error)

	// Snapshot returns a persistable snapshot of id's current state.
	Snapshot(ctx context.Context, id entities.DocumentId) (entities.DocumentSnapshot, error)

	// LoadSnapshot restores a document from a previously produced
	// snapshot, preserving its id.
	LoadSnapshot(ctx context.Context, snap entities.DocumentSnapshot) error
}

// WatcherHandle cancels a Subscribe registration.
type WatcherHandle interface {
	Cancel()
}

// Storage is the persistence port for a TonkCore instance's document
// snapshot log (§4.4, §5). Implementations live under
// internal/adapters/storage.
type Storage interface {
	// SaveSnapshot persists a single document snapshot.
	SaveSnapshot(ctx context.Context, snap entities.DocumentSnapshot) error

	// LoadAll returns every persisted snapshot, in no particular
	// order.
	LoadAll(ctx context.Context) ([]entities.DocumentSnapshot, error)

	// Close releases any held resources (file handles, connections).
	Close() error
}

// SyncTransport is the sync session port (§4.5): a bidirectional,
// opaque byte-frame channel to a relay peer, established over
// WebSocket in the shipped adapter.
type SyncTransport interface {
	// Connect dials url and performs the hello handshake, returning
	// once the session is ready to exchange frames.
	Connect(ctx context.Context, url string, peerId string) error

	// Send enqueues an opaque CRDT payload frame for delivery.
	Send(ctx context.Context, frame []byte) error

	// Frames returns the channel of opaque payload frames received
	// from the relay.
	Frames() <-chan []byte

	// Closed returns a channel closed when the session ends; Err
	// returns the terminal error (nil on a clean close).
	Closed() <-chan struct{}
	Err() error

	// Close tears down the session. It never reconnects.
	Close() error
}

// Logger is the structured logging port, modeled on the teacher's
// stderr-JSON logger (§7).
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, err error, keysAndValues ...any)
	WithFields(keysAndValues ...any) Logger
	WithContext(ctx context.Context) Logger
}

// OutputEncoder serializes values for CLI output in either JSON or
// TOON form (§6.5).
type OutputEncoder interface {
	EncodeJSON(v any) ([]byte, error)
	DecodeJSON(data []byte, v any) error
	EncodeTOON(v any) ([]byte, error)
	DecodeTOON(data []byte, v any) error
}

// ProgressReporter reports incremental progress during long-running
// CLI operations (pack, watch).
type ProgressReporter interface {
	Start(msg string)
	Step(msg string)
	Success(msg string)
	Warning(msg string)
	Error(msg string, err error)
}

// ReportFormatter prints structured results to the terminal (§4.7,
// §6.5).
type ReportFormatter interface {
	PrintValidationResult(result *entities.ValidationResult)
	PrintManifest(m *entities.Manifest)
}

// ConfigLoader loads the layered Tonk configuration (CLI flags > env
// vars > project tonk.toml > global XDG tonk.toml > defaults).
type ConfigLoader interface {
	Load() (*TonkConfig, error)
}

// TonkConfig is the resolved configuration surface for the CLI.
type TonkConfig struct {
	Pack struct {
		Source   string
		Output   string
		Ignore   []string
		Watch    bool
		Debounce time.Duration
	}
	Serve struct {
		Address string
		Port    int
	}
	Sync struct {
		RelayURL string
	}
}

// PathResolver resolves XDG-compliant application directories (§9).
type PathResolver interface {
	ConfigHome() string
	DataHome() string
	CacheHome() string
	ConfigFile() string
	StorageDir() string
}

// FileWatcher reports debounced filesystem change events rooted at a
// directory, used by `tonk pack --watch` (§6.5).
type FileWatcher interface {
	Watch(ctx context.Context, root string, ignore []string) (<-chan FileChangeEvent, error)
	Stop() error
}

// FileChangeEvent is a single debounced filesystem change.
type FileChangeEvent struct {
	Path string
	Op   string
}
