package vfs

import (
	"context"
	"encoding/json"

	"github.com/tonk-labs/tonk/internal/core/entities"
	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// WatchFile subscribes to a file's document, delivering a FileView on
// subscribe and on every subsequent change. A delete of the watched
// file delivers one final callback with Deleted set, after which the
// subscription is inert (§4.3 watch semantics).
func (v *Vfs) WatchFile(ctx context.Context, path string, cb func(entities.FileView)) (usecases.WatcherHandle, error) {
	p, err := entities.ParsePath(path)
	if err != nil {
		return nil, entities.NewFileSystemError("invalid-path", path, err.Error())
	}
	id, nodeType, err := v.resolveNode(ctx, p)
	if err != nil {
		return nil, err
	}
	if nodeType != entities.NodeTypeFile {
		return nil, entities.NewFileSystemError("type-mismatch", path, "node is a directory")
	}

	return v.repo.Subscribe(ctx, id, func(content []byte) {
		if content == nil {
			cb(entities.FileView{Deleted: true})
			return
		}
		var f entities.FileNode
		if err := json.Unmarshal(content, &f); err != nil {
			return
		}
		cb(entities.FileView{
			Type: f.Type, Name: f.Name, Timestamps: f.Timestamps,
			Content: f.Content, Bytes: f.Bytes, HasBytes: f.HasBytes,
		})
	})
}

// WatchDirectory subscribes to a directory's document, delivering an
// opaque DirChange summary for each child that is added, removed, or
// replaced by a different document (DirChangeUpdated) (§4.3 watch
// semantics). A rename inside the directory arrives as a removal of the
// old name plus an addition of the new one; DirChangeRenamed is never
// delivered. The first callback after subscribing carries
// DirChangeUpdated to reflect the snapshot at subscription time.
func (v *Vfs) WatchDirectory(ctx context.Context, path string, cb func(entities.DirChange)) (usecases.WatcherHandle, error) {
	p, err := entities.ParsePath(path)
	if err != nil {
		return nil, entities.NewFileSystemError("invalid-path", path, err.Error())
	}
	id, nodeType, err := v.resolveNode(ctx, p)
	if err != nil {
		return nil, err
	}
	if nodeType != entities.NodeTypeDirectory {
		return nil, entities.NewFileSystemError("type-mismatch", path, "node is a file")
	}

	var previous map[string]entities.RefNode
	return v.repo.Subscribe(ctx, id, func(content []byte) {
		var dir entities.DirectoryNode
		if err := json.Unmarshal(content, &dir); err != nil {
			return
		}
		if previous == nil {
			previous = dir.Children
			cb(entities.DirChange{Kind: entities.DirChangeUpdated})
			return
		}
		for name, change := range diffChildren(previous, dir.Children) {
			cb(entities.DirChange{Kind: change, Name: name})
		}
		previous = dir.Children
	})
}

func diffChildren(before, after map[string]entities.RefNode) map[string]entities.DirChangeKind {
	changes := make(map[string]entities.DirChangeKind)
	for name, ref := range before {
		if newRef, ok := after[name]; !ok {
			changes[name] = entities.DirChangeRemoved
		} else if newRef.Pointer != ref.Pointer {
			changes[name] = entities.DirChangeUpdated
		}
	}
	for name := range after {
		if _, ok := before[name]; !ok {
			changes[name] = entities.DirChangeAdded
		}
	}
	return changes
}
