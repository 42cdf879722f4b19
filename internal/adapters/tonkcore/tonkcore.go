// Package tonkcore implements the TonkCore façade (component E, §4.4):
// it composes a Bundle, a document Repo, and a Vfs behind a single
// object, owning their lifetime exclusively (§3.6) and providing the
// from-bundle/from-bytes/to-bytes/fork-to-bytes operations a host
// calls to move a Tonk between its archive and live forms.
package tonkcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tonk-labs/tonk/internal/adapters/bundle"
	"github.com/tonk-labs/tonk/internal/adapters/repo"
	syncadapter "github.com/tonk-labs/tonk/internal/adapters/sync"
	"github.com/tonk-labs/tonk/internal/adapters/vfs"
	"github.com/tonk-labs/tonk/internal/core/entities"
	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// State tracks the lifecycle of a TonkCore instance (§7 propagation
// policy: an internal error transitions the instance to failed and
// subsequent mutations fail fast).
type State string

const (
	StateReady  State = "ready"
	StateFailed State = "failed"
)

// TonkCore composes the Repo and Vfs and, optionally, an active sync
// transport.
type TonkCore struct {
	mu      sync.Mutex
	repo    usecases.DocumentRepository
	vfs     *vfs.Vfs
	storage usecases.Storage
	state   State
	failure error

	logger       usecases.Logger
	newTransport func() usecases.SyncTransport
	transport    usecases.SyncTransport
	syncWatcher  usecases.WatcherHandle
	connectedURL string

	// applyingRemote suppresses the sync watcher's own Send while a
	// just-received remote frame is being applied to the Repo, so a
	// change this TonkCore learned about from the relay is not
	// immediately echoed back to it (§4.5: the relay already excludes
	// the sender, but echoing wastes a round trip for no reason).
	applyingRemote bool

	storageWatcher usecases.WatcherHandle
}

// Options configures New/WithPeerId/FromBundle/FromBytes.
type Options struct {
	PeerID  string
	Storage usecases.Storage
	Logger  usecases.Logger

	// NewTransport constructs the sync transport used by
	// ConnectWebsocket. Defaults to a websocket-backed
	// syncadapter.Session; tests inject a fake here.
	NewTransport func() usecases.SyncTransport
}

// changeFrame is the sync-session wire envelope (§4.5): CRDT sync
// payloads are opaque to the transport, but the Repo still needs to
// know which document a remote change applies to, so every frame
// carries the target document id alongside the opaque content.
type changeFrame struct {
	DocID   entities.DocumentId `json:"docId"`
	Content []byte              `json:"content"`
}

// New creates an empty TonkCore: empty repo, VFS root only (§4.4).
func New(ctx context.Context, opts Options) (*TonkCore, error) {
	var repoOpts []repo.Option
	if opts.PeerID != "" {
		repoOpts = append(repoOpts, repo.WithPeerID(opts.PeerID))
	}
	r := repo.New(repoOpts...)
	v, err := vfs.New(ctx, r)
	if err != nil {
		return nil, err
	}
	newTransport := opts.NewTransport
	if newTransport == nil {
		newTransport = func() usecases.SyncTransport { return syncadapter.New(opts.Logger) }
	}
	tc := &TonkCore{repo: r, vfs: v, storage: opts.Storage, state: StateReady, logger: opts.Logger, newTransport: newTransport}
	if opts.Storage != nil {
		if err := tc.hydrateFromStorage(ctx); err != nil {
			return nil, err
		}
		if err := tc.wireStorageWriteThrough(ctx); err != nil {
			return nil, err
		}
	}
	return tc, nil
}

// WithPeerId is sugar for New with an injected peer identity.
func WithPeerId(ctx context.Context, peerID string) (*TonkCore, error) {
	return New(ctx, Options{PeerID: peerID})
}

// FromBundle loads a TonkCore from an in-memory Bundle: every payload
// file becomes a CRDT document snapshot hydrated into the Repo and
// wired into the VFS tree under its bundle path (§4.4).
func FromBundle(ctx context.Context, b *bundle.Bundle, opts Options) (*TonkCore, error) {
	tc, err := New(ctx, Options{PeerID: opts.PeerID, Logger: opts.Logger, NewTransport: opts.NewTransport})
	if err != nil {
		return nil, err
	}
	tc.storage = opts.Storage

	for _, path := range b.ListFiles() {
		desc := b.GetFile(path)
		data, _ := b.GetFileData(path)
		if err := tc.ensureParents(ctx, path); err != nil {
			return nil, err
		}
		if strings.HasPrefix(desc.ContentType, "text/") || desc.ContentType == "application/json" || desc.ContentType == "application/javascript" {
			if err := tc.vfs.CreateFile(ctx, path, string(data)); err != nil {
				return nil, err
			}
		} else {
			if err := tc.vfs.CreateFileWithBytes(ctx, path, "", data); err != nil {
				return nil, err
			}
		}
	}
	if opts.Storage != nil {
		if err := tc.hydrateFromStorage(ctx); err != nil {
			return nil, err
		}
		if err := tc.wireStorageWriteThrough(ctx); err != nil {
			return nil, err
		}
	}
	return tc, nil
}

// FromBytes is equivalent to Bundle.Parse followed by FromBundle
// (§4.4).
func FromBytes(ctx context.Context, data []byte, opts Options) (*TonkCore, error) {
	b, err := bundle.Parse(data, 0)
	if err != nil {
		return nil, err
	}
	return FromBundle(ctx, b, opts)
}

// ensureParents creates every missing intermediate directory on path.
func (tc *TonkCore) ensureParents(ctx context.Context, path string) error {
	p, err := entities.ParsePath(path)
	if err != nil {
		return err
	}
	segments := p.Segments()
	current := ""
	for i := 0; i < len(segments)-1; i++ {
		current += "/" + segments[i]
		exists, err := tc.vfs.Exists(ctx, current)
		if err != nil {
			return err
		}
		if !exists {
			if err := tc.vfs.CreateDirectory(ctx, current); err != nil {
				return err
			}
		}
	}
	return nil
}

func (tc *TonkCore) hydrateFromStorage(ctx context.Context) error {
	snaps, err := tc.storage.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if err := tc.repo.LoadSnapshot(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

// wireStorageWriteThrough persists a document snapshot through
// storage.SaveSnapshot every time a document is created or changed,
// so the storage log stays current with the live Repo (§4.4: "Storage
// is a write-through log of document snapshots").
func (tc *TonkCore) wireStorageWriteThrough(ctx context.Context) error {
	watcher, err := tc.repo.SubscribeAll(ctx, func(id entities.DocumentId, content []byte) {
		snap, err := tc.repo.Snapshot(ctx, id)
		if err != nil {
			return
		}
		if err := tc.storage.SaveSnapshot(ctx, snap); err != nil && tc.logger != nil {
			tc.logger.Warn("failed to persist document snapshot", "docId", id, "error", err)
		}
	})
	if err != nil {
		return err
	}
	tc.storageWatcher = watcher
	return nil
}

// GetPeerId returns the underlying Repo's peer identifier.
func (tc *TonkCore) GetPeerId() string { return tc.repo.PeerID() }

// Vfs exposes the composed virtual filesystem for direct operations
// (createFile, readFile, rename, watch*, ...). The TonkCore does not
// re-wrap every VFS method; callers use this accessor, matching the
// façade's "compose, don't re-expose" role (§4.4).
func (tc *TonkCore) Vfs() *vfs.Vfs { return tc.vfs }

// Rename proxies to the VFS (§4.4).
func (tc *TonkCore) Rename(ctx context.Context, oldPath, newPath string) error {
	return tc.vfs.Rename(ctx, oldPath, newPath)
}

// ConnectWebsocket opens a sync session to url (§4.4, §4.5). It is
// idempotent per URL: a second call with the same url that is already
// connected is a no-op, while a call with a different url tears down
// the prior session first (the spec describes one connection per
// call; only one session is live at a time per TonkCore). It resolves
// once the initial hello handshake completes. From then on, two
// background processes keep the session and the Repo in sync:
// applyRemoteFrames decodes every inbound frame and applies it, and a
// repo-wide watcher (registered here) pushes every current document
// plus every subsequent local change out through transport.Send as a
// changeFrame, so peers on the same relay converge on each other's
// edits (§2 "peers exchange changes", §4.5).
func (tc *TonkCore) ConnectWebsocket(ctx context.Context, url string) error {
	if err := tc.checkFailed(); err != nil {
		return err
	}

	tc.mu.Lock()
	if tc.transport != nil {
		if tc.connectedURL == url {
			tc.mu.Unlock()
			return nil
		}
		prior := tc.transport
		priorWatcher := tc.syncWatcher
		tc.transport = nil
		tc.syncWatcher = nil
		tc.connectedURL = ""
		tc.mu.Unlock()
		if priorWatcher != nil {
			priorWatcher.Cancel()
		}
		prior.Close()
	} else {
		tc.mu.Unlock()
	}

	transport := tc.newTransport()
	if err := transport.Connect(ctx, url, tc.GetPeerId()); err != nil {
		return err
	}

	watcher, err := tc.repo.SubscribeAll(ctx, func(id entities.DocumentId, content []byte) {
		tc.mu.Lock()
		suppress := tc.applyingRemote
		tc.mu.Unlock()
		if suppress {
			return
		}
		frame, err := json.Marshal(changeFrame{DocID: id, Content: content})
		if err != nil {
			return
		}
		if err := transport.Send(ctx, frame); err != nil && tc.logger != nil {
			tc.logger.Warn("failed to send local change", "docId", id, "error", err)
		}
	})
	if err != nil {
		transport.Close()
		return err
	}

	tc.mu.Lock()
	tc.transport = transport
	tc.syncWatcher = watcher
	tc.connectedURL = url
	tc.mu.Unlock()

	go tc.applyRemoteFrames(ctx, transport)
	return nil
}

// applyRemoteFrames decodes every frame received from transport and
// applies it to the Repo, as peers exchange changes (§2 data flow).
// A frame naming a document this Repo has not seen yet (the remote
// peer created it) is loaded as a new snapshot rather than rejected,
// since Apply only ever updates an existing document. Decode failures
// are logged and skipped; they never tear down the session (§7:
// transport errors, not malformed payloads, close a session).
func (tc *TonkCore) applyRemoteFrames(ctx context.Context, transport usecases.SyncTransport) {
	for frame := range transport.Frames() {
		var cf changeFrame
		if err := json.Unmarshal(frame, &cf); err != nil {
			if tc.logger != nil {
				tc.logger.Warn("discarding malformed sync frame", "error", err)
			}
			continue
		}

		tc.mu.Lock()
		tc.applyingRemote = true
		tc.mu.Unlock()

		err := tc.repo.Apply(ctx, cf.DocID, cf.Content)
		if err != nil && errors.Is(err, entities.ErrNotFound) {
			err = tc.repo.LoadSnapshot(ctx, entities.DocumentSnapshot{ID: cf.DocID, Content: cf.Content})
		}

		tc.mu.Lock()
		tc.applyingRemote = false
		tc.mu.Unlock()

		if err != nil && tc.logger != nil {
			tc.logger.Warn("failed to apply remote change", "docId", cf.DocID, "error", err)
		}
	}
}

// DisconnectWebsocket closes the active sync session, if any. Local
// watchers remain attached; only remote propagation stops (§4.5).
func (tc *TonkCore) DisconnectWebsocket() error {
	tc.mu.Lock()
	transport := tc.transport
	watcher := tc.syncWatcher
	tc.transport = nil
	tc.syncWatcher = nil
	tc.connectedURL = ""
	tc.mu.Unlock()
	if watcher != nil {
		watcher.Cancel()
	}
	if transport == nil {
		return nil
	}
	return transport.Close()
}

// Close tears down the TonkCore: the sync session (if any) is closed,
// and every watcher this instance registered on the Repo — the sync
// broadcaster and the storage write-through log — is cancelled (§3.6:
// destroying a TonkCore cancels pending sync I/O and stops its
// watchers). It does not affect watchers callers registered directly
// through Vfs().
func (tc *TonkCore) Close() error {
	tc.mu.Lock()
	storageWatcher := tc.storageWatcher
	tc.storageWatcher = nil
	tc.mu.Unlock()
	if storageWatcher != nil {
		storageWatcher.Cancel()
	}
	return tc.DisconnectWebsocket()
}

func (tc *TonkCore) checkFailed() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.state == StateFailed {
		return fmt.Errorf("tonk core is in failed state: %w", tc.failure)
	}
	return nil
}

func (tc *TonkCore) fail(err error) {
	tc.mu.Lock()
	tc.state = StateFailed
	tc.failure = err
	tc.mu.Unlock()
}

// ToBytes serializes the current live state into a bundle: every
// document is snapshotted, the manifest regenerated, files list
// reflecting the current VFS tree (§4.4).
func (tc *TonkCore) ToBytes(ctx context.Context) ([]byte, string, error) {
	if err := tc.checkFailed(); err != nil {
		return nil, "", err
	}
	b, rootID, err := tc.snapshotToBundle(ctx)
	if err != nil {
		tc.fail(err)
		return nil, "", err
	}
	data, err := b.ToBytes(bundle.ToBytesOptions{})
	if err != nil {
		tc.fail(err)
		return nil, "", err
	}
	return data, rootID, nil
}

// ForkToBytes produces a logically independent copy of the current
// state (used by the "new Tonk from existing" workflow, §4.4, §9).
// The bundle wire format (§6.2) carries no document-id field, so
// every FromBundle/FromBytes load already mints fresh document ids
// regardless of which method produced the bytes; ForkToBytes exists
// as its own entry point so a future storage backend that does
// persist document identity across a save/reload round trip (for
// continued CRDT merge with the source) has a place to special-case
// the non-forked path without changing this method's signature.
func (tc *TonkCore) ForkToBytes(ctx context.Context) ([]byte, string, error) {
	if err := tc.checkFailed(); err != nil {
		return nil, "", err
	}
	b, rootID, err := tc.snapshotToBundle(ctx)
	if err != nil {
		tc.fail(err)
		return nil, "", err
	}
	data, err := b.ToBytes(bundle.ToBytesOptions{})
	if err != nil {
		tc.fail(err)
		return nil, "", err
	}
	return data, rootID, nil
}

func (tc *TonkCore) snapshotToBundle(ctx context.Context) (*bundle.Bundle, string, error) {
	b := bundle.CreateEmpty(bundle.CreateOptions{})
	rootSnap, err := tc.repo.Snapshot(ctx, tc.vfs.RootID())
	if err != nil {
		return nil, "", err
	}

	var walk func(dirPath string, dirID entities.DocumentId) error
	walk = func(dirPath string, dirID entities.DocumentId) error {
		entries, err := tc.vfs.ListDirectory(ctx, dirPath)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			childPath := dirPath
			if !strings.HasSuffix(childPath, "/") {
				childPath += "/"
			}
			childPath += entry.Name

			if entry.Type == entities.NodeTypeDirectory {
				if err := walk(childPath, entry.Pointer); err != nil {
					return err
				}
				continue
			}
			view, err := tc.vfs.ReadFile(ctx, childPath)
			if err != nil {
				return err
			}
			data := view.Bytes
			if !view.HasBytes {
				data = []byte(view.Content)
			}
			desc := entities.FileDescriptor{Path: childPath, ContentType: entities.MimeForPath(childPath)}
			if err := b.AddFile(desc, data, bundle.AddFileOptions{}); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk("/", tc.vfs.RootID()); err != nil {
		return nil, "", err
	}
	return b, rootSnap.RootID, nil
}
