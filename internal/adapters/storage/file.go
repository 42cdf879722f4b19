package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tonk-labs/tonk/internal/core/entities"
	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// File is a write-through snapshot log: one JSON file per document id
// under root, named after the document id with unsafe path characters
// escaped. This is the "file" storage backend (§C), standing in for
// the browser host's indexeddb persistence option.
type File struct {
	mu   sync.Mutex
	root string
}

var _ usecases.Storage = (*File)(nil)

// NewFile returns a File backend rooted at dir, creating it if absent.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage root cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &File{root: dir}, nil
}

func (f *File) snapshotPath(id entities.DocumentId) string {
	safe := strings.ReplaceAll(string(id), "/", "_")
	return filepath.Join(f.root, safe+".json")
}

// SaveSnapshot writes snap to its own file, overwriting any prior
// snapshot for the same document id.
func (f *File) SaveSnapshot(ctx context.Context, snap entities.DocumentSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(f.snapshotPath(snap.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadAll reads every snapshot file under root.
func (f *File) LoadAll(ctx context.Context) ([]entities.DocumentSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	var out []entities.DocumentSnapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.root, entry.Name()))
		if err != nil {
			continue
		}
		var snap entities.DocumentSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Close is a no-op; File holds no open handles between calls.
func (f *File) Close() error { return nil }
