// Package hostbridge implements the service-worker message protocol
// and fetch-to-VFS translation (component G, §4.6, §6.3). It models
// the browser service worker's single mutable state machine and
// request/response dispatch as a plain Go type so the same logic
// backs both an in-browser host (via the request/response JSON shape)
// and the "tonk serve" HTTP dev server (internal/api), which exercises
// the fetch-translation rules outside a browser.
package hostbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tonk-labs/tonk/internal/adapters/tonkcore"
	"github.com/tonk-labs/tonk/internal/core/entities"
	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// Status mirrors the service worker's tonkState.status (§4.6).
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusLoading       Status = "loading"
	StatusReady         Status = "ready"
	StatusFailed        Status = "failed"
)

// RequestTimeout is the host-bridge message timeout (§5, §6.3): a
// caller that does not get a response within this window treats the
// request as failed.
const RequestTimeout = 120 * time.Second

// initialSyncPollInterval/initialSyncPollCount bound waitForReady: a
// request that arrives while a load is in flight polls up to 20 x 500ms
// for the bridge to leave the loading state.
const (
	initialSyncPollInterval = 500 * time.Millisecond
	initialSyncPollCount    = 20
)

// Request is one message sent from the host page to the bridge.
type Request struct {
	Type    string         `json:"type"`
	ID      string         `json:"id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Response is returned for every Request (§6.3).
type Response struct {
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Event is an unsolicited broadcast from the bridge to the host page
// (ready, fileChanged, directoryChanged).
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// NewTransport constructs a usecases.SyncTransport; the relay URL is
// passed later to its Connect. The bridge calls it lazily so tests can
// inject a fake.
type NewTransport func() usecases.SyncTransport

// Bridge holds the service worker's process-local state (§5, §4.6).
// Mutation happens only from Handle; fetch translation
// (ResolveFetchPath/Fetch) reads an immutable snapshot of the current
// TonkCore reference.
type Bridge struct {
	newTransport NewTransport
	logger       usecases.Logger

	mu       sync.Mutex
	status   Status
	tc       *tonkcore.TonkCore
	manifest *entities.Manifest
	slug     string
	failure  error

	fileWatchers map[string]usecases.WatcherHandle
	dirWatchers  map[string]usecases.WatcherHandle
	nextWatchID  int

	events chan Event
}

// New returns a bridge in the uninitialized state.
func New(newTransport NewTransport, logger usecases.Logger) *Bridge {
	return &Bridge{
		newTransport: newTransport,
		logger:       logger,
		status:       StatusUninitialized,
		fileWatchers: make(map[string]usecases.WatcherHandle),
		dirWatchers:  make(map[string]usecases.WatcherHandle),
		events:       make(chan Event, 32),
	}
}

// Events returns the broadcast channel (ready/fileChanged/directoryChanged).
func (b *Bridge) Events() <-chan Event { return b.events }

// Status reports the current service-worker state machine status.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// ManifestSnapshot returns the manifest of the currently loaded bundle,
// or nil if none has been loaded yet.
func (b *Bridge) ManifestSnapshot() *entities.Manifest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.manifest
}

// Activate corresponds to the service worker's activate step: claim
// clients, announce readiness for a bundle (§4.6 step 2).
func (b *Bridge) Activate() {
	b.emit(Event{Type: "ready", Data: map[string]any{"needsBundle": true}})
}

func (b *Bridge) emit(e Event) {
	select {
	case b.events <- e:
	default:
		if b.logger != nil {
			b.logger.Warn("hostbridge event channel full, dropping event", "type", e.Type)
		}
	}
}

// Handle dispatches one request and returns its response. It never
// panics: handler errors are converted to {success:false, error} per
// §7's "every error becomes {success:false,error:string}" rule.
func (b *Bridge) Handle(ctx context.Context, req Request) Response {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	data, err := b.dispatch(ctx, req)
	if err != nil {
		return Response{ID: req.ID, Success: false, Error: err.Error()}
	}
	return Response{ID: req.ID, Success: true, Data: data}
}

func (b *Bridge) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Type {
	case "setAppSlug":
		return nil, b.setAppSlug(req)
	case "init":
		return nil, b.init(ctx, req)
	case "loadBundle":
		return nil, b.loadBundle(ctx, req)
	case "initializeFromUrl":
		return nil, b.initializeFromUrl(ctx, req)
	case "readFile":
		return b.readFile(ctx, req)
	case "writeFile":
		return nil, b.writeFile(ctx, req)
	case "deleteFile":
		return nil, b.deleteFile(ctx, req)
	case "rename":
		return nil, b.rename(ctx, req)
	case "listDirectory":
		return b.listDirectory(ctx, req)
	case "exists":
		return b.exists(ctx, req)
	case "watchFile":
		return nil, b.watchFile(ctx, req)
	case "watchDirectory":
		return nil, b.watchDirectory(ctx, req)
	case "unwatchFile":
		return nil, b.unwatchFile(req)
	case "unwatchDirectory":
		return nil, b.unwatchDirectory(req)
	case "toBytes":
		return b.toBytes(ctx)
	case "forkToBytes":
		return b.forkToBytes(ctx)
	case "getServerUrl":
		return b.getServerURL(), nil
	default:
		return nil, fmt.Errorf("unrecognized message type %q", req.Type)
	}
}

func stringField(payload map[string]any, key string) (string, error) {
	v, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("missing required field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q must be a string", key)
	}
	return s, nil
}

func (b *Bridge) setAppSlug(req Request) error {
	slug, err := stringField(req.Payload, "slug")
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.slug = slug
	b.mu.Unlock()
	return nil
}

// Close releases the bridge's current TonkCore, if any, cancelling
// its sync session and watchers (§3.6).
func (b *Bridge) Close() error {
	b.mu.Lock()
	tc := b.tc
	b.mu.Unlock()
	if tc == nil {
		return nil
	}
	return tc.Close()
}

// currentTonk returns the active TonkCore, failing if uninitialized.
func (b *Bridge) currentTonk() (*tonkcore.TonkCore, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != StatusReady || b.tc == nil {
		return nil, &entities.FileSystemError{Kind: "not-initialized", Message: "tonk core is not initialized", Err: entities.ErrNotInitialized}
	}
	return b.tc, nil
}

// init is idempotent: succeeds immediately if already ready, and
// blocks until loading completes if a load is in flight (§6.3).
func (b *Bridge) init(ctx context.Context, req Request) error {
	b.mu.Lock()
	status := b.status
	b.mu.Unlock()

	switch status {
	case StatusReady:
		return nil
	case StatusLoading:
		return b.waitForReady(ctx)
	default:
		manifestRaw, ok := req.Payload["manifest"]
		if !ok {
			return fmt.Errorf("missing required field %q", "manifest")
		}
		manifestJSON, err := json.Marshal(manifestRaw)
		if err != nil {
			return err
		}
		var m entities.Manifest
		if err := json.Unmarshal(manifestJSON, &m); err != nil {
			return fmt.Errorf("invalid manifest payload: %w", err)
		}

		b.mu.Lock()
		b.status = StatusLoading
		b.manifest = &m
		b.mu.Unlock()

		tc, err := tonkcore.New(ctx, tonkcore.Options{NewTransport: b.newTransport, Logger: b.logger})
		if err != nil {
			b.fail(err)
			return err
		}
		b.mu.Lock()
		b.tc = tc
		b.status = StatusReady
		b.mu.Unlock()

		wsURL, _ := req.Payload["wsUrl"].(string)
		if wsURL != "" {
			if err := b.connectSync(ctx, tc, wsURL); err != nil {
				return err
			}
		}
		return nil
	}
}

func (b *Bridge) waitForReady(ctx context.Context) error {
	for i := 0; i < initialSyncPollCount; i++ {
		b.mu.Lock()
		status := b.status
		failure := b.failure
		b.mu.Unlock()
		if status == StatusReady {
			return nil
		}
		if status == StatusFailed {
			return failure
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(initialSyncPollInterval):
		}
	}
	return fmt.Errorf("timed out waiting for tonk core to become ready")
}

// loadBundle initializes TonkCore from archive bytes and, when wsUrl is
// given, opens a sync session (§6.3). It returns as soon as the
// session's hello handshake completes; it does not wait for a first
// sync frame from the relay.
func (b *Bridge) loadBundle(ctx context.Context, req Request) error {
	raw, ok := req.Payload["bundleBytes"]
	if !ok {
		return fmt.Errorf("missing required field %q", "bundleBytes")
	}
	data, err := coerceBytes(raw)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.status = StatusLoading
	b.mu.Unlock()

	tc, err := tonkcore.FromBytes(ctx, data, tonkcore.Options{NewTransport: b.newTransport, Logger: b.logger})
	if err != nil {
		b.fail(err)
		return err
	}

	b.mu.Lock()
	b.tc = tc
	b.status = StatusReady
	b.mu.Unlock()

	wsURL, _ := req.Payload["wsUrl"].(string)
	if wsURL != "" {
		return b.connectSync(ctx, tc, wsURL)
	}
	return nil
}

// initializeFromUrl fetches a bundle archive over HTTP and delegates
// to loadBundle (§6.3). A browser host instead wires its own fetch
// implementation through the request path; this dev-server host has a
// real network stack, so a plain net/http client does the fetch.
func (b *Bridge) initializeFromUrl(ctx context.Context, req Request) error {
	url, err := stringField(req.Payload, "url")
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: status %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read bundle from %s: %w", url, err)
	}

	loadPayload := map[string]any{"bundleBytes": data}
	if wsURL, ok := req.Payload["wsUrl"].(string); ok && wsURL != "" {
		loadPayload["wsUrl"] = wsURL
	}
	return b.loadBundle(ctx, Request{ID: req.ID, Type: "loadBundle", Payload: loadPayload})
}

// connectSync opens the sync session through the TonkCore façade
// (§4.4), which performs the hello handshake synchronously and then
// applies inbound CRDT frames to the Repo on its own goroutine
// (§2 data flow). It returns once the handshake completes, without
// waiting for any inbound frame.
func (b *Bridge) connectSync(ctx context.Context, tc *tonkcore.TonkCore, wsURL string) error {
	if b.newTransport == nil {
		return nil
	}
	return tc.ConnectWebsocket(ctx, wsURL)
}

func (b *Bridge) fail(err error) {
	b.mu.Lock()
	b.status = StatusFailed
	b.failure = err
	b.mu.Unlock()
}

func coerceBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("bundleBytes must be a byte slice or string")
	}
}

func (b *Bridge) readFile(ctx context.Context, req Request) (any, error) {
	tc, err := b.currentTonk()
	if err != nil {
		return nil, err
	}
	path, err := stringField(req.Payload, "path")
	if err != nil {
		return nil, err
	}
	view, err := tc.Vfs().ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":       view.Type,
		"name":       view.Name,
		"timestamps": view.Timestamps,
		"content":    view.Content,
		"bytes":      view.Bytes,
	}, nil
}

func (b *Bridge) writeFile(ctx context.Context, req Request) error {
	tc, err := b.currentTonk()
	if err != nil {
		return err
	}
	path, err := stringField(req.Payload, "path")
	if err != nil {
		return err
	}
	contentField, _ := req.Payload["content"].(map[string]any)
	content, _ := contentField["content"].(string)
	var blob []byte
	hasBlob := false
	if rawBytes, ok := contentField["bytes"]; ok {
		blob, err = coerceBytes(rawBytes)
		if err != nil {
			return err
		}
		hasBlob = true
	}
	create, _ := req.Payload["create"].(bool)

	vfs := tc.Vfs()
	if create {
		if hasBlob {
			return vfs.CreateFileWithBytes(ctx, path, content, blob)
		}
		return vfs.CreateFile(ctx, path, content)
	}
	if hasBlob {
		return vfs.UpdateFileWithBytes(ctx, path, content, blob)
	}
	return vfs.UpdateFile(ctx, path, content)
}

func (b *Bridge) deleteFile(ctx context.Context, req Request) error {
	tc, err := b.currentTonk()
	if err != nil {
		return err
	}
	path, err := stringField(req.Payload, "path")
	if err != nil {
		return err
	}
	return tc.Vfs().DeleteFile(ctx, path)
}

func (b *Bridge) rename(ctx context.Context, req Request) error {
	tc, err := b.currentTonk()
	if err != nil {
		return err
	}
	oldPath, err := stringField(req.Payload, "oldPath")
	if err != nil {
		return err
	}
	newPath, err := stringField(req.Payload, "newPath")
	if err != nil {
		return err
	}
	return tc.Rename(ctx, oldPath, newPath)
}

func (b *Bridge) listDirectory(ctx context.Context, req Request) (any, error) {
	tc, err := b.currentTonk()
	if err != nil {
		return nil, err
	}
	path, err := stringField(req.Payload, "path")
	if err != nil {
		return nil, err
	}
	return tc.Vfs().ListDirectory(ctx, path)
}

func (b *Bridge) exists(ctx context.Context, req Request) (any, error) {
	tc, err := b.currentTonk()
	if err != nil {
		return nil, err
	}
	path, err := stringField(req.Payload, "path")
	if err != nil {
		return nil, err
	}
	return tc.Vfs().Exists(ctx, path)
}

func (b *Bridge) watchFile(ctx context.Context, req Request) error {
	tc, err := b.currentTonk()
	if err != nil {
		return err
	}
	path, err := stringField(req.Payload, "path")
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.nextWatchID++
	watchID := fmt.Sprintf("w%d", b.nextWatchID)
	b.mu.Unlock()

	handle, err := tc.Vfs().WatchFile(ctx, path, func(view entities.FileView) {
		b.emit(Event{Type: "fileChanged", Data: map[string]any{"watchId": watchID, "documentData": view}})
	})
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.fileWatchers[watchID] = handle
	b.mu.Unlock()
	return nil
}

func (b *Bridge) watchDirectory(ctx context.Context, req Request) error {
	tc, err := b.currentTonk()
	if err != nil {
		return err
	}
	path, err := stringField(req.Payload, "path")
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.nextWatchID++
	watchID := fmt.Sprintf("w%d", b.nextWatchID)
	b.mu.Unlock()

	handle, err := tc.Vfs().WatchDirectory(ctx, path, func(change entities.DirChange) {
		b.emit(Event{Type: "directoryChanged", Data: map[string]any{"watchId": watchID, "path": path, "changeData": change}})
	})
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.dirWatchers[watchID] = handle
	b.mu.Unlock()
	return nil
}

func (b *Bridge) unwatchFile(req Request) error {
	watchID, err := stringField(req.Payload, "watchId")
	if err != nil {
		return err
	}
	b.mu.Lock()
	handle, ok := b.fileWatchers[watchID]
	delete(b.fileWatchers, watchID)
	b.mu.Unlock()
	if ok {
		handle.Cancel()
	}
	return nil
}

func (b *Bridge) unwatchDirectory(req Request) error {
	watchID, err := stringField(req.Payload, "watchId")
	if err != nil {
		return err
	}
	b.mu.Lock()
	handle, ok := b.dirWatchers[watchID]
	delete(b.dirWatchers, watchID)
	b.mu.Unlock()
	if ok {
		handle.Cancel()
	}
	return nil
}

func (b *Bridge) toBytes(ctx context.Context) (any, error) {
	tc, err := b.currentTonk()
	if err != nil {
		return nil, err
	}
	data, rootID, err := tc.ToBytes(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": data, "rootId": rootID}, nil
}

func (b *Bridge) forkToBytes(ctx context.Context) (any, error) {
	tc, err := b.currentTonk()
	if err != nil {
		return nil, err
	}
	data, rootID, err := tc.ForkToBytes(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": data, "rootId": rootID}, nil
}

// ServerURL is injected by the host per deployment (§6.3).
var ServerURL string

func (b *Bridge) getServerURL() string { return ServerURL }

// ResolveFetchPath translates an incoming request path to a VFS path
// per §4.6/§6.3: the first segment is compared to the active slug and
// stripped if equal; an empty or trailing-slash remainder gets
// index.html appended; the result is rooted at "/app/<slug>/".
func (b *Bridge) ResolveFetchPath(requestPath string) string {
	b.mu.Lock()
	slug := b.slug
	b.mu.Unlock()
	return ResolveFetchPath(slug, requestPath)
}

// ResolveFetchPath is the pure function behind Bridge.ResolveFetchPath,
// exported for direct use by internal/api's dev server.
func ResolveFetchPath(slug, requestPath string) string {
	trimmed := strings.TrimPrefix(requestPath, "/")
	segments := strings.SplitN(trimmed, "/", 2)
	rest := ""
	if segments[0] == slug && len(segments) > 1 {
		rest = segments[1]
	} else if segments[0] != slug {
		rest = trimmed
	}
	if rest == "" || strings.HasSuffix(rest, "/") {
		rest += "index.html"
	}
	return "/app/" + slug + "/" + rest
}

// Fetch serves a same-origin request against the current VFS (§4.6
// step 5): it resolves requestPath, reads the file, and returns its
// bytes (falling back to Content-Type-appropriate text content) with
// a MIME type. A request before initialization returns ErrNotInitialized
// so the caller can pass the request through to the network untouched.
func (b *Bridge) Fetch(ctx context.Context, requestPath string) ([]byte, string, error) {
	tc, err := b.currentTonk()
	if err != nil {
		return nil, "", err
	}
	vfsPath := b.ResolveFetchPath(requestPath)

	view, err := tc.Vfs().ReadFile(ctx, vfsPath)
	if err != nil {
		// Fall back to index.html when the resolved path doesn't exist.
		b.mu.Lock()
		slug := b.slug
		b.mu.Unlock()
		fallback := "/app/" + slug + "/index.html"
		view, err = tc.Vfs().ReadFile(ctx, fallback)
		if err != nil {
			return nil, "", err
		}
	}

	contentType := entities.MimeForPath(vfsPath)
	if view.HasBytes {
		return view.Bytes, contentType, nil
	}
	return []byte(view.Content), contentType, nil
}
