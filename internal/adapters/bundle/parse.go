package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tonk-labs/tonk/internal/core/entities"
)

// Parse reads data as a ZIP archive and reconstructs its Bundle.
// Failures are reported as a *entities.BundleParseError with one of
// the codes: invalid-zip, missing-manifest, invalid-manifest-json,
// size-exceeded (§4.1). Parse does not check the manifest against the
// schema; a schema violation surfaces only through Validate.
func Parse(data []byte, maxBundleSize int64) (*Bundle, error) {
	if maxBundleSize > 0 && int64(len(data)) > maxBundleSize {
		return nil, &entities.BundleParseError{Code: "size-exceeded", Message: fmt.Sprintf("archive is %d bytes, exceeds limit %d", len(data), maxBundleSize)}
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &entities.BundleParseError{Code: "invalid-zip", Message: err.Error(), Err: err}
	}

	var manifestFile *zip.File
	entryNames := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue // directory entries are ignored (§4.1 archive contract)
		}
		if f.Name == "manifest.json" {
			manifestFile = f
			continue
		}
		entryNames["/"+f.Name] = true
	}
	if manifestFile == nil {
		return nil, &entities.BundleParseError{Code: "missing-manifest", Message: "archive has no manifest.json entry"}
	}

	rc, err := manifestFile.Open()
	if err != nil {
		return nil, &entities.BundleParseError{Code: "invalid-zip", Message: err.Error(), Err: err}
	}
	var schema manifestSchema
	dec := json.NewDecoder(rc)
	decErr := dec.Decode(&schema)
	rc.Close()
	if decErr != nil {
		return nil, &entities.BundleParseError{Code: "invalid-manifest-json", Message: decErr.Error(), Err: decErr}
	}

	b := &Bundle{
		manifest: &entities.Manifest{
			Version:     schema.Version,
			Name:        schema.Name,
			Description: schema.Description,
			CreatedAt:   schema.CreatedAt,
			Entrypoints: schema.Entrypoints,
			Metadata:    schema.Metadata,
		},
		payload: make(map[string][]byte),
		store:   make(map[string]bool),
	}
	if b.manifest.Entrypoints == nil {
		b.manifest.Entrypoints = make(map[string]string)
	}

	for _, fs := range schema.Files {
		desc := entities.FileDescriptor{
			Path:         fs.Path,
			Length:       fs.Length,
			ContentType:  fs.ContentType,
			LastModified: fs.LastModified,
		}
		if fs.Compressed != nil {
			desc.Compressed = *fs.Compressed
			desc.HasCompressed = true
		}
		if fs.UncompressedSize != 0 {
			desc.UncompressedSize = fs.UncompressedSize
			desc.HasUncompressed = true
		}
		b.manifest.Files = append(b.manifest.Files, desc)

		entryName := strings.TrimPrefix(fs.Path, "/")
		zf, ok := findEntry(zr, entryName)
		if !ok {
			continue // flagged by validate's archive-consistency check
		}
		frc, err := zf.Open()
		if err != nil {
			return nil, &entities.BundleParseError{Code: "invalid-zip", Message: err.Error(), Err: err}
		}
		payload, err := io.ReadAll(frc)
		frc.Close()
		if err != nil {
			return nil, &entities.BundleParseError{Code: "invalid-zip", Message: err.Error(), Err: err}
		}
		b.payload[fs.Path] = payload
		b.store[fs.Path] = desc.HasCompressed && !desc.Compressed
	}

	return b, nil
}

func findEntry(zr *zip.Reader, name string) (*zip.File, bool) {
	for _, f := range zr.File {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

