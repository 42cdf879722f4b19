// Package bundle implements the portable ZIP container format (§3.2,
// §3.3, §4.1, §6.1, §6.2): a manifest.json entry plus payload entries,
// with a validation pipeline that checks manifest schema, archive
// consistency, size limits, and user-supplied rules.
package bundle

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/tonk-labs/tonk/internal/core/entities"
)

// Bundle is an in-memory, mutable representation of a parsed or
// constructed bundle: a manifest plus the raw payload bytes for every
// file it describes.
type Bundle struct {
	manifest *entities.Manifest
	payload  map[string][]byte
	// store records per-file "stored, not deflated" overrides applied
	// via addFile/updateFile; absent entries default to deflate.
	store map[string]bool
}

// CreateOptions configures createEmpty/fromFiles.
type CreateOptions struct {
	Name        string
	Description string
	Metadata    map[string]any
	// MimeOverrides maps a virtual path to an explicit content type,
	// bypassing extension-based auto-detection (§6.4).
	MimeOverrides map[string]string
}

// Now is overridable for deterministic tests.
var Now = time.Now

// CreateEmpty returns a bundle with version 1, no entrypoints, no
// files, and a freshly stamped createdAt (§4.1).
func CreateEmpty(opts CreateOptions) *Bundle {
	m := entities.NewManifest(Now().UTC())
	m.Name = opts.Name
	m.Description = opts.Description
	m.Metadata = opts.Metadata
	return &Bundle{manifest: m, payload: make(map[string][]byte), store: make(map[string]bool)}
}

// FromFiles builds a bundle from a path->bytes map, auto-detecting
// MIME types from extensions (§6.4) unless overridden in opts.
func FromFiles(files map[string][]byte, opts CreateOptions) (*Bundle, error) {
	b := CreateEmpty(opts)
	now := Now().UTC()
	for path, data := range files {
		ct := opts.MimeOverrides[path]
		if ct == "" {
			ct = entities.MimeForPath(path)
		}
		desc := entities.FileDescriptor{
			Path:             path,
			Length:           int64(len(data)),
			ContentType:      ct,
			Compressed:       true,
			HasCompressed:    true,
			UncompressedSize: int64(len(data)),
			HasUncompressed:  true,
			LastModified:     &now,
		}
		if err := b.AddFile(desc, data, AddFileOptions{}); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Manifest returns the bundle's current manifest. Callers must not
// mutate the returned value directly; use the Bundle methods instead.
func (b *Bundle) Manifest() *entities.Manifest { return b.manifest }

// GetFile returns the descriptor for path, or nil.
func (b *Bundle) GetFile(path string) *entities.FileDescriptor {
	return b.manifest.FindFile(path)
}

// HasFile reports whether path is present.
func (b *Bundle) HasFile(path string) bool {
	return b.manifest.FindFile(path) != nil
}

// ListFiles returns every payload path, sorted.
func (b *Bundle) ListFiles() []string {
	paths := make([]string, 0, len(b.manifest.Files))
	for _, f := range b.manifest.Files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	return paths
}

// GetFileCount returns the number of payload files.
func (b *Bundle) GetFileCount() int { return len(b.manifest.Files) }

// GetFileData returns the raw payload bytes for path, or nil, false
// if path is not present.
func (b *Bundle) GetFileData(path string) ([]byte, bool) {
	data, ok := b.payload[path]
	return data, ok
}

// AddFileOptions controls AddFile's conflict and encoding behavior.
type AddFileOptions struct {
	Replace      bool
	Compress     *bool
	ContentType  string
	LastModified *time.Time
}

// AddFile adds a new payload entry. It fails on a duplicate path
// unless opts.Replace is true (§4.1).
func (b *Bundle) AddFile(desc entities.FileDescriptor, data []byte, opts AddFileOptions) error {
	if b.HasFile(desc.Path) && !opts.Replace {
		return &entities.ValidationError{
			Entity: "Bundle", Field: "path", Value: desc.Path,
			Message: fmt.Sprintf("file %s already exists", desc.Path),
		}
	}
	if opts.ContentType != "" {
		desc.ContentType = opts.ContentType
	}
	if desc.ContentType == "" {
		desc.ContentType = entities.MimeForPath(desc.Path)
	}
	if opts.LastModified != nil {
		desc.LastModified = opts.LastModified
	}
	desc.Length = int64(len(data))
	desc.UncompressedSize = int64(len(data))
	desc.HasUncompressed = true

	compress := true
	if opts.Compress != nil {
		compress = *opts.Compress
	}
	desc.Compressed = compress
	desc.HasCompressed = true

	b.removeFileEntry(desc.Path)
	b.manifest.Files = append(b.manifest.Files, desc)
	b.payload[desc.Path] = data
	b.store[desc.Path] = !compress
	return nil
}

// UpdateFile replaces an existing file's payload. It fails if path is
// absent.
func (b *Bundle) UpdateFile(path string, data []byte, contentType string) error {
	desc := b.manifest.FindFile(path)
	if desc == nil {
		return &entities.FileNotFoundError{Path: path}
	}
	if contentType != "" {
		desc.ContentType = contentType
	}
	desc.Length = int64(len(data))
	desc.UncompressedSize = int64(len(data))
	now := Now().UTC()
	desc.LastModified = &now
	b.payload[path] = data
	return nil
}

// RemoveFile removes the payload entry, its descriptor, and every
// entrypoint pointing to it (§4.1).
func (b *Bundle) RemoveFile(path string) error {
	if !b.HasFile(path) {
		return &entities.FileNotFoundError{Path: path}
	}
	b.removeFileEntry(path)
	delete(b.payload, path)
	delete(b.store, path)
	for name, target := range b.manifest.Entrypoints {
		if target == path {
			delete(b.manifest.Entrypoints, name)
		}
	}
	return nil
}

func (b *Bundle) removeFileEntry(path string) {
	out := b.manifest.Files[:0]
	for _, f := range b.manifest.Files {
		if f.Path != path {
			out = append(out, f)
		}
	}
	b.manifest.Files = out
}

// SetEntrypoint registers name -> path. It fails if path is absent.
func (b *Bundle) SetEntrypoint(name, path string) error {
	if !b.HasFile(path) {
		return &entities.EntrypointNotFoundError{Name: name}
	}
	if b.manifest.Entrypoints == nil {
		b.manifest.Entrypoints = make(map[string]string)
	}
	b.manifest.Entrypoints[name] = path
	return nil
}

// RemoveEntrypoint unregisters name, if present.
func (b *Bundle) RemoveEntrypoint(name string) {
	delete(b.manifest.Entrypoints, name)
}

// Clone returns a deep copy of the bundle.
func (b *Bundle) Clone() *Bundle {
	out := &Bundle{
		manifest: &entities.Manifest{
			Version:     b.manifest.Version,
			Name:        b.manifest.Name,
			Description: b.manifest.Description,
			Entrypoints: make(map[string]string, len(b.manifest.Entrypoints)),
			Files:       make([]entities.FileDescriptor, len(b.manifest.Files)),
			Metadata:    make(map[string]any, len(b.manifest.Metadata)),
		},
		payload: make(map[string][]byte, len(b.payload)),
		store:   make(map[string]bool, len(b.store)),
	}
	if b.manifest.CreatedAt != nil {
		t := *b.manifest.CreatedAt
		out.manifest.CreatedAt = &t
	}
	for k, v := range b.manifest.Entrypoints {
		out.manifest.Entrypoints[k] = v
	}
	copy(out.manifest.Files, b.manifest.Files)
	for k, v := range b.manifest.Metadata {
		out.manifest.Metadata[k] = v
	}
	for k, v := range b.payload {
		cp := make([]byte, len(v))
		copy(cp, v)
		out.payload[k] = cp
	}
	for k, v := range b.store {
		out.store[k] = v
	}
	return out
}

// ConflictResolution controls Merge's per-item conflict behavior.
type ConflictResolution string

const (
	ConflictError   ConflictResolution = "error"
	ConflictSkip    ConflictResolution = "skip"
	ConflictReplace ConflictResolution = "replace"
)

// MergeOptions configures Merge.
type MergeOptions struct {
	ConflictResolution           ConflictResolution
	EntrypointConflictResolution ConflictResolution
}

// Merge returns a new bundle combining b and other according to opts
// (§4.1). b is never mutated.
func (b *Bundle) Merge(other *Bundle, opts MergeOptions) (*Bundle, error) {
	if opts.ConflictResolution == "" {
		opts.ConflictResolution = ConflictError
	}
	if opts.EntrypointConflictResolution == "" {
		opts.EntrypointConflictResolution = ConflictError
	}

	out := b.Clone()
	for _, f := range other.manifest.Files {
		data := other.payload[f.Path]
		if out.HasFile(f.Path) {
			switch opts.ConflictResolution {
			case ConflictSkip:
				continue
			case ConflictReplace:
				if err := out.AddFile(f, data, AddFileOptions{Replace: true}); err != nil {
					return nil, err
				}
			default:
				return nil, &entities.ValidationError{Entity: "Bundle", Field: "path", Value: f.Path, Message: "merge conflict: file already exists"}
			}
			continue
		}
		if err := out.AddFile(f, data, AddFileOptions{}); err != nil {
			return nil, err
		}
	}
	for name, target := range other.manifest.Entrypoints {
		if existing, ok := out.manifest.Entrypoints[name]; ok && existing != target {
			switch opts.EntrypointConflictResolution {
			case ConflictSkip:
				continue
			case ConflictReplace:
				if err := out.SetEntrypoint(name, target); err != nil {
					return nil, err
				}
			default:
				return nil, &entities.ValidationError{Entity: "Bundle", Field: "entrypoint", Value: name, Message: "merge conflict: entrypoint already exists"}
			}
			continue
		}
		if err := out.SetEntrypoint(name, target); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ToBytesOptions configures archive re-packaging.
type ToBytesOptions struct {
	// CompressionLevel 1-9; the zero value selects 6, so level 0 (no
	// compression) cannot be selected.
	CompressionLevel int
	Zip64            bool
	Comment          string
}

// ToBytes re-packages the manifest and every payload file into a ZIP
// archive (§4.1, §6.1).
func (b *Bundle) ToBytes(opts ToBytesOptions) ([]byte, error) {
	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = 6
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, opts.CompressionLevel)
	})
	if opts.Comment != "" {
		if err := zw.SetComment(opts.Comment); err != nil {
			return nil, &entities.ZipOperationError{Op: "SetComment", Err: err}
		}
	}

	manifestBytes, err := json.Marshal(b.manifestSchema())
	if err != nil {
		return nil, &entities.ZipOperationError{Op: "marshal manifest", Err: err}
	}
	mw, err := zw.Create("manifest.json")
	if err != nil {
		return nil, &entities.ZipOperationError{Op: "create manifest.json", Err: err}
	}
	if _, err := mw.Write(manifestBytes); err != nil {
		return nil, &entities.ZipOperationError{Op: "write manifest.json", Err: err}
	}

	for _, f := range b.manifest.Files {
		method := zip.Deflate
		if b.store[f.Path] {
			method = zip.Store
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:   strings.TrimPrefix(f.Path, "/"),
			Method: method,
		})
		if err != nil {
			return nil, &entities.ZipOperationError{Op: "create entry", Err: err}
		}
		if _, err := fw.Write(b.payload[f.Path]); err != nil {
			return nil, &entities.ZipOperationError{Op: "write entry", Err: err}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, &entities.ZipOperationError{Op: "close archive", Err: err}
	}
	return buf.Bytes(), nil
}

// manifestSchema mirrors the JSON shape of §6.2.
type manifestSchema struct {
	Version     int                    `json:"version"`
	Name        string                 `json:"name,omitempty"`
	Description string                 `json:"description,omitempty"`
	CreatedAt   *time.Time             `json:"createdAt,omitempty"`
	Entrypoints map[string]string      `json:"entrypoints"`
	Files       []fileDescriptorSchema `json:"files"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
}

type fileDescriptorSchema struct {
	Path             string     `json:"path"`
	Length           int64      `json:"length"`
	ContentType      string     `json:"contentType,omitempty"`
	Compressed       *bool      `json:"compressed,omitempty"`
	UncompressedSize int64      `json:"uncompressedSize,omitempty"`
	LastModified     *time.Time `json:"lastModified,omitempty"`
}

func (b *Bundle) manifestSchema() manifestSchema {
	out := manifestSchema{
		Version:     b.manifest.Version,
		Name:        b.manifest.Name,
		Description: b.manifest.Description,
		CreatedAt:   b.manifest.CreatedAt,
		Entrypoints: b.manifest.Entrypoints,
		Metadata:    b.manifest.Metadata,
	}
	for _, f := range b.manifest.Files {
		fs := fileDescriptorSchema{
			Path:             f.Path,
			Length:           f.Length,
			ContentType:      f.ContentType,
			UncompressedSize: f.UncompressedSize,
			LastModified:     f.LastModified,
		}
		if f.HasCompressed {
			c := f.Compressed
			fs.Compressed = &c
		}
		out.Files = append(out.Files, fs)
	}
	return out
}
