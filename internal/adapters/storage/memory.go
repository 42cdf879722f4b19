// Package storage implements the Storage port (§A AMBIENT STACK,
// §C SUPPLEMENTED FEATURES): a memory backend for ephemeral TonkCore
// instances and a file-backed write-through snapshot log for "none"
// vs "file" persistence, mirroring the teacher's filesystem repository
// adapter's directory-per-entity layout and error-wrapping style.
package storage

import (
	"context"
	"sync"

	"github.com/tonk-labs/tonk/internal/core/entities"
	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// Memory is an in-process Storage backend. Snapshots are held only
// for the lifetime of the process; Close is a no-op.
type Memory struct {
	mu    sync.Mutex
	snaps map[entities.DocumentId]entities.DocumentSnapshot
}

var _ usecases.Storage = (*Memory)(nil)

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{snaps: make(map[entities.DocumentId]entities.DocumentSnapshot)}
}

func (m *Memory) SaveSnapshot(ctx context.Context, snap entities.DocumentSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.ID] = snap
	return nil
}

func (m *Memory) LoadAll(ctx context.Context) ([]entities.DocumentSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.DocumentSnapshot, 0, len(m.snaps))
	for _, s := range m.snaps {
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
