// Package repo implements the document repository port (§3.4, §4.2):
// an in-memory table of opaque, CRDT-shaped documents with change
// notification and snapshotting. The CRDT engine itself is treated as
// a black box throughout this codebase (§9 design note) — Apply
// simply replaces a document's content and Snapshot/LoadSnapshot
// round-trip whatever bytes the caller hands in. This keeps the
// engine substitutable without touching the VFS or TonkCore layers
// built on top of DocumentRepository.
package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tonk-labs/tonk/internal/core/entities"
	"github.com/tonk-labs/tonk/internal/core/usecases"
)

var _ usecases.DocumentRepository = (*Repo)(nil)

// TimeProvider returns milliseconds since epoch. Tests override it for
// determinism (§4.2).
type TimeProvider func() int64

func defaultTimeProvider() int64 { return time.Now().UnixMilli() }

// Repo is the in-memory document store.
type Repo struct {
	mu             sync.Mutex
	peerID         string
	docs           map[entities.DocumentId]*document
	now            TimeProvider
	globalWatchers map[int]func(entities.DocumentId, []byte)
	nextGlobalID   int
}

type document struct {
	content  []byte
	watchers map[int]func([]byte)
	nextID   int
}

// Option configures New.
type Option func(*Repo)

// WithPeerID injects a stable peer identifier instead of a random one.
func WithPeerID(id string) Option {
	return func(r *Repo) { r.peerID = id }
}

// WithTimeProvider injects a deterministic clock for tests.
func WithTimeProvider(fn TimeProvider) Option {
	return func(r *Repo) { r.now = fn }
}

// New returns an empty Repo. Without WithPeerID, a random 32-character
// hex peer id is generated (§4.2).
func New(opts ...Option) *Repo {
	r := &Repo{
		docs:           make(map[entities.DocumentId]*document),
		now:            defaultTimeProvider,
		globalWatchers: make(map[int]func(entities.DocumentId, []byte)),
	}
	for _, o := range opts {
		o(r)
	}
	if r.peerID == "" {
		r.peerID = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	return r
}

// PeerID returns the repo's stable sync identifier.
func (r *Repo) PeerID() string { return r.peerID }

// CreateDocument allocates a new document.
func (r *Repo) CreateDocument(ctx context.Context, content []byte) (entities.DocumentId, error) {
	id := entities.DocumentId(uuid.New().String())
	r.mu.Lock()
	r.docs[id] = &document{content: cloneBytes(content), watchers: make(map[int]func([]byte))}
	globalWatchers := r.snapshotGlobalWatchers()
	r.mu.Unlock()

	for _, fn := range globalWatchers {
		fn(id, cloneBytes(content))
	}
	return id, nil
}

// FindDocument returns id's current content.
func (r *Repo) FindDocument(ctx context.Context, id entities.DocumentId) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, &entities.FileNotFoundError{Path: id.String()}
	}
	return cloneBytes(doc.content), nil
}

// ListDocuments returns every known document id.
func (r *Repo) ListDocuments(ctx context.Context) ([]entities.DocumentId, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.DocumentId, 0, len(r.docs))
	for id := range r.docs {
		out = append(out, id)
	}
	return out, nil
}

// Apply replaces id's content and notifies watchers in registration
// order, satisfying the monotonic-delivery guarantee of §4.2 (each
// watcher only ever observes this Repo's own causally-later writes).
func (r *Repo) Apply(ctx context.Context, id entities.DocumentId, content []byte) error {
	r.mu.Lock()
	doc, ok := r.docs[id]
	if !ok {
		r.mu.Unlock()
		return &entities.FileNotFoundError{Path: id.String()}
	}
	doc.content = cloneBytes(content)
	watchers := snapshotWatchers(doc)
	globalWatchers := r.snapshotGlobalWatchers()
	r.mu.Unlock()

	for _, fn := range watchers {
		fn(cloneBytes(content))
	}
	for _, fn := range globalWatchers {
		fn(id, cloneBytes(content))
	}
	return nil
}

// DeleteDocument removes id, notifying existing watchers once before
// clearing them (§3.6: a watcher is a weak subscription that goes
// inert, not an error, when its document disappears).
func (r *Repo) DeleteDocument(ctx context.Context, id entities.DocumentId) error {
	r.mu.Lock()
	doc, ok := r.docs[id]
	if !ok {
		r.mu.Unlock()
		return &entities.FileNotFoundError{Path: id.String()}
	}
	watchers := snapshotWatchers(doc)
	delete(r.docs, id)
	r.mu.Unlock()

	// A nil payload is the Repo's deletion signal: watchers (e.g. the
	// VFS's WatchFile) distinguish it from an empty-but-live document.
	for _, fn := range watchers {
		fn(nil)
	}
	return nil
}

// watcherHandle cancels a Subscribe registration.
type watcherHandle struct {
	repo *Repo
	id   entities.DocumentId
	key  int
}

func (h *watcherHandle) Cancel() {
	h.repo.mu.Lock()
	defer h.repo.mu.Unlock()
	if doc, ok := h.repo.docs[h.id]; ok {
		delete(doc.watchers, h.key)
	}
}

// Subscribe registers fn, invoking it immediately with the current
// content, then again on every subsequent Apply/DeleteDocument call
// (§4.2).
func (r *Repo) Subscribe(ctx context.Context, id entities.DocumentId, fn func(content []byte)) (usecases.WatcherHandle, error) {
	r.mu.Lock()
	doc, ok := r.docs[id]
	if !ok {
		r.mu.Unlock()
		return nil, &entities.FileNotFoundError{Path: id.String()}
	}
	key := doc.nextID
	doc.nextID++
	doc.watchers[key] = fn
	current := cloneBytes(doc.content)
	r.mu.Unlock()

	fn(current)
	return &watcherHandle{repo: r, id: id, key: key}, nil
}

// globalWatcherHandle cancels a SubscribeAll registration.
type globalWatcherHandle struct {
	repo *Repo
	key  int
}

func (h *globalWatcherHandle) Cancel() {
	h.repo.mu.Lock()
	defer h.repo.mu.Unlock()
	delete(h.repo.globalWatchers, h.key)
}

// SubscribeAll registers fn to be called, in registration order, for
// the current content of every existing document, then again
// whenever any document is created or changed. This is the
// repo-wide counterpart to Subscribe: a sync session uses it to push
// a full catch-up of local state to a newly connected peer and to
// then broadcast every subsequent local write (§4.5, §2 data flow).
func (r *Repo) SubscribeAll(ctx context.Context, fn func(id entities.DocumentId, content []byte)) (usecases.WatcherHandle, error) {
	r.mu.Lock()
	key := r.nextGlobalID
	r.nextGlobalID++
	r.globalWatchers[key] = fn

	type seeded struct {
		id      entities.DocumentId
		content []byte
	}
	current := make([]seeded, 0, len(r.docs))
	for id, doc := range r.docs {
		current = append(current, seeded{id: id, content: cloneBytes(doc.content)})
	}
	r.mu.Unlock()

	for _, s := range current {
		fn(s.id, s.content)
	}
	return &globalWatcherHandle{repo: r, key: key}, nil
}

// Snapshot produces a persistable checkpoint of id's current state,
// stamped with a merkle-hash-like root id (§3.4).
func (r *Repo) Snapshot(ctx context.Context, id entities.DocumentId) (entities.DocumentSnapshot, error) {
	r.mu.Lock()
	doc, ok := r.docs[id]
	if !ok {
		r.mu.Unlock()
		return entities.DocumentSnapshot{}, &entities.FileNotFoundError{Path: id.String()}
	}
	content := cloneBytes(doc.content)
	r.mu.Unlock()

	sum := sha256.Sum256(content)
	return entities.DocumentSnapshot{ID: id, Content: content, RootID: hex.EncodeToString(sum[:])}, nil
}

// LoadSnapshot restores a document under its original id, creating it
// if absent.
func (r *Repo) LoadSnapshot(ctx context.Context, snap entities.DocumentSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[snap.ID]
	if !ok {
		doc = &document{watchers: make(map[int]func([]byte))}
		r.docs[snap.ID] = doc
	}
	doc.content = cloneBytes(snap.Content)
	return nil
}

// snapshotGlobalWatchers must be called while r.mu is held.
func (r *Repo) snapshotGlobalWatchers() []func(entities.DocumentId, []byte) {
	out := make([]func(entities.DocumentId, []byte), 0, len(r.globalWatchers))
	keys := make([]int, 0, len(r.globalWatchers))
	for k := range r.globalWatchers {
		keys = append(keys, k)
	}
	sortInts(keys)
	for _, k := range keys {
		out = append(out, r.globalWatchers[k])
	}
	return out
}

func snapshotWatchers(doc *document) []func([]byte) {
	out := make([]func([]byte), 0, len(doc.watchers))
	keys := make([]int, 0, len(doc.watchers))
	for k := range doc.watchers {
		keys = append(keys, k)
	}
	sortInts(keys)
	for _, k := range keys {
		out = append(out, doc.watchers[k])
	}
	return out
}

func sortInts(keys []int) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
