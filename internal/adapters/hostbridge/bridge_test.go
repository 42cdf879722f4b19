package hostbridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonk-labs/tonk/internal/adapters/bundle"
)

func manifestPayload(t *testing.T, m map[string]any) map[string]any {
	t.Helper()
	return m
}

func TestResolveFetchPathStripsSlugAndAppendsIndex(t *testing.T) {
	assert.Equal(t, "/app/myapp/index.html", ResolveFetchPath("myapp", "/myapp"))
	assert.Equal(t, "/app/myapp/index.html", ResolveFetchPath("myapp", "/myapp/"))
	assert.Equal(t, "/app/myapp/assets/app.js", ResolveFetchPath("myapp", "/myapp/assets/app.js"))
}

func TestHandleSetAppSlug(t *testing.T) {
	b := New(nil, nil)
	ctx := context.Background()

	resp := b.Handle(ctx, Request{Type: "setAppSlug", ID: "1", Payload: map[string]any{"slug": "myapp"}})
	require.True(t, resp.Success)

	assert.Equal(t, "/app/myapp/index.html", b.ResolveFetchPath("/myapp"))
}

func TestHandleUnrecognizedTypeFails(t *testing.T) {
	b := New(nil, nil)
	resp := b.Handle(context.Background(), Request{Type: "bogus"})
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestReadFileBeforeInitFails(t *testing.T) {
	b := New(nil, nil)
	resp := b.Handle(context.Background(), Request{Type: "readFile", Payload: map[string]any{"path": "/x.txt"}})
	assert.False(t, resp.Success)
}

func TestLoadBundleThenReadWriteFile(t *testing.T) {
	b := New(nil, nil)
	ctx := context.Background()

	bun, err := bundle.FromFiles(map[string][]byte{
		"/index.html": []byte("<html>hi</html>"),
	}, bundle.CreateOptions{})
	require.NoError(t, err)
	data, err := bun.ToBytes(bundle.ToBytesOptions{})
	require.NoError(t, err)

	resp := b.Handle(ctx, Request{Type: "loadBundle", Payload: map[string]any{"bundleBytes": data}})
	require.True(t, resp.Success, resp.Error)

	readResp := b.Handle(ctx, Request{Type: "readFile", Payload: map[string]any{"path": "/index.html"}})
	require.True(t, readResp.Success, readResp.Error)
	asMap := readResp.Data.(map[string]any)
	assert.Equal(t, "<html>hi</html>", asMap["content"])

	writeResp := b.Handle(ctx, Request{Type: "writeFile", Payload: map[string]any{
		"path":    "/new.txt",
		"content": map[string]any{"content": "fresh"},
		"create":  true,
	}})
	require.True(t, writeResp.Success, writeResp.Error)

	existsResp := b.Handle(ctx, Request{Type: "exists", Payload: map[string]any{"path": "/new.txt"}})
	require.True(t, existsResp.Success)
	assert.Equal(t, true, existsResp.Data)
}

func TestInitIsIdempotentWhenAlreadyReady(t *testing.T) {
	b := New(nil, nil)
	ctx := context.Background()

	bun := bundle.CreateEmpty(bundle.CreateOptions{})
	data, err := bun.ToBytes(bundle.ToBytesOptions{})
	require.NoError(t, err)
	require.True(t, b.Handle(ctx, Request{Type: "loadBundle", Payload: map[string]any{"bundleBytes": data}}).Success)

	manifestJSON, _ := json.Marshal(map[string]any{"version": 1})
	var manifestAny any
	require.NoError(t, json.Unmarshal(manifestJSON, &manifestAny))

	resp := b.Handle(ctx, Request{Type: "init", Payload: manifestPayload(t, map[string]any{"manifest": manifestAny})})
	assert.True(t, resp.Success)
}

func TestWatchFileEmitsChangeEvent(t *testing.T) {
	b := New(nil, nil)
	ctx := context.Background()

	bun, err := bundle.FromFiles(map[string][]byte{"/a.txt": []byte("v1")}, bundle.CreateOptions{})
	require.NoError(t, err)
	data, err := bun.ToBytes(bundle.ToBytesOptions{})
	require.NoError(t, err)
	require.True(t, b.Handle(ctx, Request{Type: "loadBundle", Payload: map[string]any{"bundleBytes": data}}).Success)

	resp := b.Handle(ctx, Request{Type: "watchFile", Payload: map[string]any{"path": "/a.txt"}})
	require.True(t, resp.Success, resp.Error)

	writeResp := b.Handle(ctx, Request{Type: "writeFile", Payload: map[string]any{
		"path":    "/a.txt",
		"content": map[string]any{"content": "v2"},
		"create":  false,
	}})
	require.True(t, writeResp.Success, writeResp.Error)

	select {
	case ev := <-b.Events():
		assert.Equal(t, "fileChanged", ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fileChanged event")
	}
}

func TestFetchServesBundleFileBySlug(t *testing.T) {
	b := New(nil, nil)
	ctx := context.Background()

	bun, err := bundle.FromFiles(map[string][]byte{
		"/app/myapp/index.html": []byte("<html>root</html>"),
	}, bundle.CreateOptions{})
	require.NoError(t, err)
	data, err := bun.ToBytes(bundle.ToBytesOptions{})
	require.NoError(t, err)
	require.True(t, b.Handle(ctx, Request{Type: "loadBundle", Payload: map[string]any{"bundleBytes": data}}).Success)
	require.True(t, b.Handle(ctx, Request{Type: "setAppSlug", Payload: map[string]any{"slug": "myapp"}}).Success)

	body, contentType, err := b.Fetch(ctx, "/myapp/")
	require.NoError(t, err)
	assert.Equal(t, "<html>root</html>", string(body))
	assert.Equal(t, "text/html", contentType)
}

func TestToBytesAndForkToBytesReturnData(t *testing.T) {
	b := New(nil, nil)
	ctx := context.Background()

	bun := bundle.CreateEmpty(bundle.CreateOptions{})
	data, err := bun.ToBytes(bundle.ToBytesOptions{})
	require.NoError(t, err)
	require.True(t, b.Handle(ctx, Request{Type: "loadBundle", Payload: map[string]any{"bundleBytes": data}}).Success)

	resp := b.Handle(ctx, Request{Type: "toBytes"})
	require.True(t, resp.Success, resp.Error)
	asMap := resp.Data.(map[string]any)
	assert.NotEmpty(t, asMap["data"])

	forkResp := b.Handle(ctx, Request{Type: "forkToBytes"})
	require.True(t, forkResp.Success, forkResp.Error)
}
