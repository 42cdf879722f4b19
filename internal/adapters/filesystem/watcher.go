// Package filesystem provides a debounced recursive change watcher
// (usecases.FileWatcher, backing `tonk pack --watch`).
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// FileWatcher implements usecases.FileWatcher: it recursively watches
// a directory tree and emits debounced change events, used by
// `tonk pack --watch` to trigger repacks.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	events   chan usecases.FileChangeEvent
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopped  bool
}

var _ usecases.FileWatcher = (*FileWatcher)(nil)

// NewFileWatcher creates a watcher that debounces bursts of filesystem
// events for the given duration before emitting them. A zero duration
// defaults to 300ms.
func NewFileWatcher(debounce time.Duration) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	return &FileWatcher{
		watcher:  w,
		debounce: debounce,
		events:   make(chan usecases.FileChangeEvent, 10),
		done:     make(chan struct{}),
	}, nil
}

// Watch starts monitoring root and its subdirectories, skipping any
// directory whose relative path component matches an entry in ignore.
// The returned channel is closed when Stop is called.
func (fw *FileWatcher) Watch(ctx context.Context, root string, ignore []string) (<-chan usecases.FileChangeEvent, error) {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil, fmt.Errorf("watcher already stopped")
	}
	fw.mu.Unlock()

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory")
	}

	ignoreSet := make(map[string]bool, len(ignore))
	for _, dir := range ignore {
		ignoreSet[dir] = true
	}

	if err := fw.addRecursive(root, ignoreSet); err != nil {
		return nil, fmt.Errorf("failed to add watch paths: %w", err)
	}

	fw.wg.Add(1)
	go func() {
		defer fw.wg.Done()
		fw.processEvents(ctx, root, ignoreSet)
	}()

	return fw.events, nil
}

// Stop halts file watching and closes the event channel.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	fw.mu.Unlock()

	close(fw.done)
	err := fw.watcher.Close()
	fw.wg.Wait()
	close(fw.events)

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (fw *FileWatcher) addRecursive(root string, ignore map[string]bool) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if fw.shouldIgnoreDir(path, root, ignore) {
			return filepath.SkipDir
		}
		_ = fw.watcher.Add(path)
		return nil
	})
}

func (fw *FileWatcher) shouldIgnoreDir(path, root string, ignore map[string]bool) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)

	for _, part := range strings.Split(rel, "/") {
		if ignore[part] {
			return true
		}
	}
	return false
}

func (fw *FileWatcher) processEvents(ctx context.Context, root string, ignore map[string]bool) {
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C

	pendingEvents := make(map[string]usecases.FileChangeEvent)
	var mu sync.Mutex

	for {
		select {
		case <-fw.done:
			return
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !fw.shouldIgnoreDir(event.Name, root, ignore) {
						_ = fw.watcher.Add(event.Name)
					}
				}
			}

			relPath, err := filepath.Rel(root, event.Name)
			if err != nil {
				continue
			}
			relPath = filepath.ToSlash(relPath)

			mu.Lock()
			pendingEvents[relPath] = usecases.FileChangeEvent{
				Path: relPath,
				Op:   mapOperation(event.Op),
			}
			mu.Unlock()

			debounceTimer.Reset(fw.debounce)

		case <-debounceTimer.C:
			mu.Lock()
			for _, evt := range pendingEvents {
				select {
				case fw.events <- evt:
				case <-fw.done:
					mu.Unlock()
					return
				case <-ctx.Done():
					mu.Unlock()
					return
				}
			}
			pendingEvents = make(map[string]usecases.FileChangeEvent)
			mu.Unlock()

		case _, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func mapOperation(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return "create"
	case op&fsnotify.Write == fsnotify.Write:
		return "write"
	case op&fsnotify.Remove == fsnotify.Remove:
		return "remove"
	case op&fsnotify.Rename == fsnotify.Rename:
		return "rename"
	case op&fsnotify.Chmod == fsnotify.Chmod:
		return "chmod"
	default:
		return "write"
	}
}
