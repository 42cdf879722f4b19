package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonk-labs/tonk/internal/adapters/bundle"
	"github.com/tonk-labs/tonk/internal/adapters/hostbridge"
	"github.com/tonk-labs/tonk/internal/core/entities"
)

func loadedBridge(t *testing.T) *hostbridge.Bridge {
	t.Helper()
	bun := bundle.CreateEmpty(bundle.CreateOptions{Name: "demo"})
	require.NoError(t, bun.AddFile(entities.FileDescriptor{Path: "/app/demo/index.html", ContentType: "text/html"}, []byte("<h1>hi</h1>"), bundle.AddFileOptions{}))
	data, err := bun.ToBytes(bundle.ToBytesOptions{})
	require.NoError(t, err)

	b := hostbridge.New(nil, nil)
	resp := b.Handle(context.Background(), hostbridge.Request{
		Type:    "setAppSlug",
		Payload: map[string]any{"slug": "demo"},
	})
	require.True(t, resp.Success)

	resp = b.Handle(context.Background(), hostbridge.Request{
		Type:    "loadBundle",
		Payload: map[string]any{"bundleBytes": data},
	})
	require.True(t, resp.Success, resp.Error)
	return b
}

func TestHealthReportsBridgeStatus(t *testing.T) {
	h := NewHandlers(loadedBridge(t))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
}

func TestManifestBeforeLoadReturnsServiceUnavailable(t *testing.T) {
	h := NewHandlers(hostbridge.New(nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/manifest", nil)
	rec := httptest.NewRecorder()

	h.Manifest(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFetchServesLoadedFile(t *testing.T) {
	h := NewHandlers(loadedBridge(t))
	req := httptest.NewRequest(http.MethodGet, "/demo/index.html", nil)
	rec := httptest.NewRecorder()

	h.Fetch(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>hi</h1>")
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
}

func TestFetchFallsBackToIndexWhenPathMissing(t *testing.T) {
	h := NewHandlers(loadedBridge(t))
	req := httptest.NewRequest(http.MethodGet, "/demo/missing.bin", nil)
	rec := httptest.NewRecorder()

	h.Fetch(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>hi</h1>")
}
