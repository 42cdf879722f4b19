package vfs

import (
	"context"
	"time"

	"github.com/tonk-labs/tonk/internal/core/entities"
)

// Rename performs an atomic, identity-preserving rekey (§4.3 rename
// semantics): oldPath must exist, newPath must not, and newPath's
// parent must exist. The moved node's DocumentId is unchanged, so any
// watcher attached to it keeps firing under the new path (§8 property
// 6).
func (v *Vfs) Rename(ctx context.Context, oldPath, newPath string) error {
	oldP, err := entities.ParsePath(oldPath)
	if err != nil {
		return entities.NewFileSystemError("invalid-path", oldPath, err.Error())
	}
	newP, err := entities.ParsePath(newPath)
	if err != nil {
		return entities.NewFileSystemError("invalid-path", newPath, err.Error())
	}

	oldRes, err := v.resolveParent(ctx, oldP)
	if err != nil {
		return err
	}
	if oldRes.ref == nil {
		return &entities.FileNotFoundError{Path: oldPath}
	}

	newRes, err := v.resolveParent(ctx, newP)
	if err != nil {
		return err
	}
	if newRes.ref != nil {
		return entities.NewFileSystemError("already-exists", newPath, "target path already exists")
	}

	movedID := oldRes.ref.Pointer
	movedType := oldRes.ref.Type

	if movedType == entities.NodeTypeDirectory {
		if loop, err := v.wouldCreateLoop(ctx, newRes.parentID, movedID); err != nil {
			return err
		} else if loop {
			return entities.NewFileSystemError("cyclic-rename", newPath, "rename would move a node into its own subtree")
		}
	}

	now := Now().UTC()

	if oldRes.parentID == newRes.parentID {
		dir := oldRes.parentDir
		delete(dir.Children, oldRes.childName)
		dir.Children[newRes.childName] = entities.RefNode{Pointer: movedID, Type: movedType}
		dir.Timestamps.ModifiedAt = now
		if err := v.writeDirectory(ctx, oldRes.parentID, dir); err != nil {
			return err
		}
	} else {
		delete(oldRes.parentDir.Children, oldRes.childName)
		oldRes.parentDir.Timestamps.ModifiedAt = now
		if err := v.writeDirectory(ctx, oldRes.parentID, oldRes.parentDir); err != nil {
			return err
		}
		newRes.parentDir.Children[newRes.childName] = entities.RefNode{Pointer: movedID, Type: movedType}
		newRes.parentDir.Timestamps.ModifiedAt = now
		if err := v.writeDirectory(ctx, newRes.parentID, newRes.parentDir); err != nil {
			return err
		}
	}

	return v.renameNode(ctx, movedID, movedType, newRes.childName, now)
}

func (v *Vfs) renameNode(ctx context.Context, id entities.DocumentId, nodeType entities.NodeType, name string, now time.Time) error {
	if nodeType == entities.NodeTypeDirectory {
		dir, err := v.readDirectory(ctx, id)
		if err != nil {
			return err
		}
		dir.Name = name
		dir.Timestamps.ModifiedAt = now
		return v.writeDirectory(ctx, id, dir)
	}
	f, err := v.readFileNode(ctx, id)
	if err != nil {
		return err
	}
	f.Name = name
	f.Timestamps.ModifiedAt = now
	return v.writeFileNode(ctx, id, f)
}

// wouldCreateLoop walks candidateParentID's ancestry up to the root,
// reporting whether movedID appears along the way (§4.3 loop
// detection: renaming a directory into its own subtree is rejected).
func (v *Vfs) wouldCreateLoop(ctx context.Context, candidateParentID, movedID entities.DocumentId) (bool, error) {
	if candidateParentID == movedID {
		return true, nil
	}
	current := candidateParentID
	for current != v.rootID {
		parentID, found, err := v.findParentOf(ctx, current)
		if err != nil {
			return false, err
		}
		if !found {
			break
		}
		if parentID == movedID {
			return true, nil
		}
		current = parentID
	}
	return false, nil
}

// findParentOf performs a full-tree search for the directory whose
// children map contains a pointer to target. Acceptable for the
// in-memory reference adapter; a production-scale backend would
// maintain a reverse index instead.
func (v *Vfs) findParentOf(ctx context.Context, target entities.DocumentId) (entities.DocumentId, bool, error) {
	return v.searchForParent(ctx, v.rootID, target)
}

func (v *Vfs) searchForParent(ctx context.Context, dirID, target entities.DocumentId) (entities.DocumentId, bool, error) {
	dir, err := v.readDirectory(ctx, dirID)
	if err != nil {
		return "", false, err
	}
	for _, ref := range dir.Children {
		if ref.Pointer == target {
			return dirID, true, nil
		}
	}
	for _, ref := range dir.Children {
		if ref.Type == entities.NodeTypeDirectory {
			if parentID, found, err := v.searchForParent(ctx, ref.Pointer, target); err != nil {
				return "", false, err
			} else if found {
				return parentID, true, nil
			}
		}
	}
	return "", false, nil
}
