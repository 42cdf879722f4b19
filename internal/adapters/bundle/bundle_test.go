package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonk-labs/tonk/internal/core/entities"
)

func desc(path string) entities.FileDescriptor {
	return entities.FileDescriptor{Path: path}
}

func TestCreateEmpty(t *testing.T) {
	b := CreateEmpty(CreateOptions{Name: "demo"})
	assert.Equal(t, 1, b.Manifest().Version)
	assert.Equal(t, "demo", b.Manifest().Name)
	assert.Equal(t, 0, b.GetFileCount())
	assert.NotNil(t, b.Manifest().CreatedAt)
}

func TestFromFilesAutoDetectsMime(t *testing.T) {
	b, err := FromFiles(map[string][]byte{
		"/index.html": []byte("<html></html>"),
		"/app.js":     []byte("console.log(1)"),
	}, CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "text/html", b.GetFile("/index.html").ContentType)
	assert.Equal(t, "application/javascript", b.GetFile("/app.js").ContentType)
}

func TestAddFileDuplicateRejected(t *testing.T) {
	b := CreateEmpty(CreateOptions{})
	require.NoError(t, b.AddFile(desc("/a.txt"), []byte("x"), AddFileOptions{}))
	err := b.AddFile(desc("/a.txt"), []byte("y"), AddFileOptions{})
	assert.Error(t, err)
}

func TestAddFileReplace(t *testing.T) {
	b := CreateEmpty(CreateOptions{})
	require.NoError(t, b.AddFile(desc("/a.txt"), []byte("x"), AddFileOptions{}))
	require.NoError(t, b.AddFile(desc("/a.txt"), []byte("y"), AddFileOptions{Replace: true}))
	data, _ := b.GetFileData("/a.txt")
	assert.Equal(t, "y", string(data))
	assert.Equal(t, 1, b.GetFileCount())
}

func TestRemoveFileDropsEntrypoints(t *testing.T) {
	b := CreateEmpty(CreateOptions{})
	require.NoError(t, b.AddFile(desc("/index.html"), []byte("x"), AddFileOptions{}))
	require.NoError(t, b.SetEntrypoint("main", "/index.html"))
	require.NoError(t, b.RemoveFile("/index.html"))
	assert.False(t, b.HasFile("/index.html"))
	_, ok := b.Manifest().Entrypoints["main"]
	assert.False(t, ok)
}

func TestSetEntrypointMissingTarget(t *testing.T) {
	b := CreateEmpty(CreateOptions{})
	err := b.SetEntrypoint("main", "/missing.html")
	assert.Error(t, err)
}

func TestToBytesAndParseRoundTrip(t *testing.T) {
	b, err := FromFiles(map[string][]byte{
		"/index.html": []byte("<html>hi</html>"),
		"/app.js":     []byte("console.log(1)"),
	}, CreateOptions{Name: "demo"})
	require.NoError(t, err)
	require.NoError(t, b.SetEntrypoint("main", "/index.html"))

	data, err := b.ToBytes(ToBytesOptions{})
	require.NoError(t, err)

	parsed, err := Parse(data, 0)
	require.NoError(t, err)
	assert.Equal(t, b.Manifest().Name, parsed.Manifest().Name)
	assert.ElementsMatch(t, b.ListFiles(), parsed.ListFiles())
	pData, _ := parsed.GetFileData("/index.html")
	assert.Equal(t, "<html>hi</html>", string(pData))
	assert.Equal(t, "/index.html", parsed.Manifest().Entrypoints["main"])
}

func TestParseMissingManifest(t *testing.T) {
	_, err := Parse([]byte("not a zip"), 0)
	require.Error(t, err)
}

func TestValidateDetectsEntrypointCycleFreeAndMissingTarget(t *testing.T) {
	b := CreateEmpty(CreateOptions{})
	b.Manifest().Entrypoints["main"] = "/missing.html"
	result := b.Validate(ValidateOptions{})
	assert.False(t, result.Valid)
	found := false
	for _, e := range result.Errors {
		if e.Code == "VALID_ENTRYPOINTS" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateFileCountLimit(t *testing.T) {
	b := CreateEmpty(CreateOptions{})
	require.NoError(t, b.AddFile(desc("/a.txt"), []byte("x"), AddFileOptions{}))
	require.NoError(t, b.AddFile(desc("/b.txt"), []byte("y"), AddFileOptions{}))
	result := b.Validate(ValidateOptions{MaxFileCount: 1})
	assert.False(t, result.Valid)
}

func TestValidateCustomRulePanicIsContained(t *testing.T) {
	b := CreateEmpty(CreateOptions{})
	result := b.Validate(ValidateOptions{CustomRules: []CustomRule{
		func(b *Bundle, add func(entities.ValidationMessage)) {
			panic("boom")
		},
	}})
	assert.False(t, result.Valid)
	assert.Equal(t, "CUSTOM_RULE_ERROR", result.Errors[0].Code)
}

func TestMergeConflictError(t *testing.T) {
	a := CreateEmpty(CreateOptions{})
	require.NoError(t, a.AddFile(desc("/a.txt"), []byte("1"), AddFileOptions{}))
	b := CreateEmpty(CreateOptions{})
	require.NoError(t, b.AddFile(desc("/a.txt"), []byte("2"), AddFileOptions{}))

	_, err := a.Merge(b, MergeOptions{ConflictResolution: ConflictError})
	assert.Error(t, err)

	merged, err := a.Merge(b, MergeOptions{ConflictResolution: ConflictReplace})
	require.NoError(t, err)
	data, _ := merged.GetFileData("/a.txt")
	assert.Equal(t, "2", string(data))
}

func TestCloneIsIndependent(t *testing.T) {
	b := CreateEmpty(CreateOptions{})
	require.NoError(t, b.AddFile(desc("/a.txt"), []byte("1"), AddFileOptions{}))
	clone := b.Clone()
	require.NoError(t, clone.UpdateFile("/a.txt", []byte("2"), ""))
	orig, _ := b.GetFileData("/a.txt")
	cloned, _ := clone.GetFileData("/a.txt")
	assert.Equal(t, "1", string(orig))
	assert.Equal(t, "2", string(cloned))
}

