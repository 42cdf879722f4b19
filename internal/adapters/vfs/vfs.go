// Package vfs implements the virtual filesystem (component D, §4.3):
// a traditional file-tree API layered over the opaque CRDT documents
// served by a usecases.DocumentRepository. Every directory and file is
// itself a document whose content is the JSON encoding of
// entities.DirectoryNode or entities.FileNode; the VFS never caches a
// path->id mapping beyond what the live document graph encodes, so
// every call re-walks the tree (§4.3 path resolution algorithm).
package vfs

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/tonk-labs/tonk/internal/core/entities"
	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// Now is overridable for deterministic tests.
var Now = time.Now

// Vfs is the virtual filesystem façade over a Repo.
type Vfs struct {
	repo   usecases.DocumentRepository
	rootID entities.DocumentId
}

// New creates a fresh Vfs with a single empty root directory
// document.
func New(ctx context.Context, repo usecases.DocumentRepository) (*Vfs, error) {
	root := entities.NewDirectoryNode("/", Now().UTC())
	data, err := json.Marshal(root)
	if err != nil {
		return nil, err
	}
	id, err := repo.CreateDocument(ctx, data)
	if err != nil {
		return nil, err
	}
	return &Vfs{repo: repo, rootID: id}, nil
}

// FromRoot attaches a Vfs to an already-existing root directory
// document.
func FromRoot(repo usecases.DocumentRepository, rootID entities.DocumentId) *Vfs {
	return &Vfs{repo: repo, rootID: rootID}
}

// RootID returns the underlying root directory document id.
func (v *Vfs) RootID() entities.DocumentId { return v.rootID }

func (v *Vfs) readDirectory(ctx context.Context, id entities.DocumentId) (*entities.DirectoryNode, error) {
	data, err := v.repo.FindDocument(ctx, id)
	if err != nil {
		return nil, entities.NewFileSystemError("not-found", "", "directory document missing")
	}
	var dir entities.DirectoryNode
	if err := json.Unmarshal(data, &dir); err != nil {
		return nil, entities.NewFileSystemError("invalid-path", "", "corrupt directory document")
	}
	return &dir, nil
}

func (v *Vfs) writeDirectory(ctx context.Context, id entities.DocumentId, dir *entities.DirectoryNode) error {
	data, err := json.Marshal(dir)
	if err != nil {
		return err
	}
	return v.repo.Apply(ctx, id, data)
}

func (v *Vfs) readFileNode(ctx context.Context, id entities.DocumentId) (*entities.FileNode, error) {
	data, err := v.repo.FindDocument(ctx, id)
	if err != nil {
		return nil, entities.NewFileSystemError("not-found", "", "file document missing")
	}
	var f entities.FileNode
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, entities.NewFileSystemError("invalid-path", "", "corrupt file document")
	}
	return &f, nil
}

func (v *Vfs) writeFileNode(ctx context.Context, id entities.DocumentId, f *entities.FileNode) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return v.repo.Apply(ctx, id, data)
}

// resolved is the outcome of walking a path to its parent directory.
type resolved struct {
	parentID  entities.DocumentId
	parentDir *entities.DirectoryNode
	childName string
	ref       *entities.RefNode // nil if childName is absent from parentDir
}

// resolveParent walks every segment but the last, returning the
// parent directory document and the final segment name (§4.3 path
// resolution algorithm).
func (v *Vfs) resolveParent(ctx context.Context, p entities.VirtualPath) (*resolved, error) {
	if p.IsRoot() {
		return nil, entities.NewFileSystemError("invalid-path", p.String(), "root has no parent")
	}
	segments := p.Segments()
	currentID := v.rootID
	for i := 0; i < len(segments)-1; i++ {
		dir, err := v.readDirectory(ctx, currentID)
		if err != nil {
			return nil, err
		}
		ref, ok := dir.Children[segments[i]]
		if !ok {
			return nil, entities.NewFileSystemError("parent-missing", p.String(), "intermediate directory missing")
		}
		if ref.Type != entities.NodeTypeDirectory {
			return nil, entities.NewFileSystemError("type-mismatch", p.String(), "intermediate path segment is not a directory")
		}
		currentID = ref.Pointer
	}
	parentDir, err := v.readDirectory(ctx, currentID)
	if err != nil {
		return nil, err
	}
	childName := segments[len(segments)-1]
	r := &resolved{parentID: currentID, parentDir: parentDir, childName: childName}
	if ref, ok := parentDir.Children[childName]; ok {
		r.ref = &ref
	}
	return r, nil
}

// resolveNode walks the full path to the node's own document id and
// type, failing with FileNotFound on a missing segment.
func (v *Vfs) resolveNode(ctx context.Context, p entities.VirtualPath) (entities.DocumentId, entities.NodeType, error) {
	if p.IsRoot() {
		return v.rootID, entities.NodeTypeDirectory, nil
	}
	res, err := v.resolveParent(ctx, p)
	if err != nil {
		return "", "", err
	}
	if res.ref == nil {
		return "", "", &entities.FileNotFoundError{Path: p.String()}
	}
	return res.ref.Pointer, res.ref.Type, nil
}

// Exists reports whether path resolves to a node.
func (v *Vfs) Exists(ctx context.Context, path string) (bool, error) {
	p, err := entities.ParsePath(path)
	if err != nil {
		return false, entities.NewFileSystemError("invalid-path", path, err.Error())
	}
	_, _, err = v.resolveNode(ctx, p)
	if err != nil {
		if _, ok := err.(*entities.FileNotFoundError); ok {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateFile creates a new file document at path with textual
// content. The parent directory must already exist (§4.3).
func (v *Vfs) CreateFile(ctx context.Context, path, content string) error {
	return v.createFile(ctx, path, content, nil, false)
}

// CreateFileWithBytes creates a new file with an attached binary blob.
func (v *Vfs) CreateFileWithBytes(ctx context.Context, path, content string, bytes []byte) error {
	return v.createFile(ctx, path, content, bytes, true)
}

func (v *Vfs) createFile(ctx context.Context, path, content string, blob []byte, hasBlob bool) error {
	p, err := entities.ParsePath(path)
	if err != nil {
		return entities.NewFileSystemError("invalid-path", path, err.Error())
	}
	res, err := v.resolveParent(ctx, p)
	if err != nil {
		return err
	}
	if res.ref != nil {
		return entities.NewFileSystemError("already-exists", path, "file already exists")
	}

	now := Now().UTC()
	node := entities.NewFileNode(res.childName, content, now)
	if hasBlob {
		node = node.WithBytes(blob)
	}
	id, err := v.repo.CreateDocument(ctx, mustMarshal(node))
	if err != nil {
		return err
	}

	res.parentDir.Children[res.childName] = entities.RefNode{Pointer: id, Type: entities.NodeTypeFile}
	res.parentDir.Timestamps.ModifiedAt = now
	return v.writeDirectory(ctx, res.parentID, res.parentDir)
}

// CreateDirectory creates a new, empty directory at path. It fails if
// already exists or the parent is missing.
func (v *Vfs) CreateDirectory(ctx context.Context, path string) error {
	p, err := entities.ParsePath(path)
	if err != nil {
		return entities.NewFileSystemError("invalid-path", path, err.Error())
	}
	res, err := v.resolveParent(ctx, p)
	if err != nil {
		return err
	}
	if res.ref != nil {
		return entities.NewFileSystemError("already-exists", path, "directory already exists")
	}

	now := Now().UTC()
	node := entities.NewDirectoryNode(res.childName, now)
	id, err := v.repo.CreateDocument(ctx, mustMarshal(node))
	if err != nil {
		return err
	}

	res.parentDir.Children[res.childName] = entities.RefNode{Pointer: id, Type: entities.NodeTypeDirectory}
	res.parentDir.Timestamps.ModifiedAt = now
	return v.writeDirectory(ctx, res.parentID, res.parentDir)
}

// ReadFile returns a file's current content and metadata.
func (v *Vfs) ReadFile(ctx context.Context, path string) (entities.FileView, error) {
	p, err := entities.ParsePath(path)
	if err != nil {
		return entities.FileView{}, entities.NewFileSystemError("invalid-path", path, err.Error())
	}
	id, nodeType, err := v.resolveNode(ctx, p)
	if err != nil {
		return entities.FileView{}, err
	}
	if nodeType != entities.NodeTypeFile {
		return entities.FileView{}, entities.NewFileSystemError("type-mismatch", path, "node is a directory")
	}
	f, err := v.readFileNode(ctx, id)
	if err != nil {
		return entities.FileView{}, err
	}
	return entities.FileView{
		Type: f.Type, Name: f.Name, Timestamps: f.Timestamps,
		Content: f.Content, Bytes: f.Bytes, HasBytes: f.HasBytes,
	}, nil
}

// UpdateFile replaces a file's textual content.
func (v *Vfs) UpdateFile(ctx context.Context, path, content string) error {
	return v.updateFile(ctx, path, content, nil, false)
}

// UpdateFileWithBytes replaces a file's content and attached blob.
func (v *Vfs) UpdateFileWithBytes(ctx context.Context, path, content string, blob []byte) error {
	return v.updateFile(ctx, path, content, blob, true)
}

func (v *Vfs) updateFile(ctx context.Context, path, content string, blob []byte, hasBlob bool) error {
	p, err := entities.ParsePath(path)
	if err != nil {
		return entities.NewFileSystemError("invalid-path", path, err.Error())
	}
	id, nodeType, err := v.resolveNode(ctx, p)
	if err != nil {
		return err
	}
	if nodeType != entities.NodeTypeFile {
		return entities.NewFileSystemError("type-mismatch", path, "node is a directory")
	}
	f, err := v.readFileNode(ctx, id)
	if err != nil {
		return err
	}
	f.Content = content
	if hasBlob {
		f.Bytes = blob
		f.HasBytes = true
	}
	f.Timestamps.ModifiedAt = Now().UTC()
	return v.writeFileNode(ctx, id, f)
}

// DeleteFile removes a file's document and unlinks it from its parent
// directory (§3.6).
func (v *Vfs) DeleteFile(ctx context.Context, path string) error {
	p, err := entities.ParsePath(path)
	if err != nil {
		return entities.NewFileSystemError("invalid-path", path, err.Error())
	}
	res, err := v.resolveParent(ctx, p)
	if err != nil {
		return err
	}
	if res.ref == nil {
		return &entities.FileNotFoundError{Path: path}
	}
	id := res.ref.Pointer
	delete(res.parentDir.Children, res.childName)
	res.parentDir.Timestamps.ModifiedAt = Now().UTC()
	if err := v.writeDirectory(ctx, res.parentID, res.parentDir); err != nil {
		return err
	}
	return v.repo.DeleteDocument(ctx, id)
}

// GetMetadata returns a node's type, name, and timestamps.
func (v *Vfs) GetMetadata(ctx context.Context, path string) (entities.Metadata, error) {
	p, err := entities.ParsePath(path)
	if err != nil {
		return entities.Metadata{}, entities.NewFileSystemError("invalid-path", path, err.Error())
	}
	id, nodeType, err := v.resolveNode(ctx, p)
	if err != nil {
		return entities.Metadata{}, err
	}
	if nodeType == entities.NodeTypeDirectory {
		dir, err := v.readDirectory(ctx, id)
		if err != nil {
			return entities.Metadata{}, err
		}
		return entities.Metadata{Type: dir.Type, Name: dir.Name, Timestamps: dir.Timestamps, Pointer: id}, nil
	}
	f, err := v.readFileNode(ctx, id)
	if err != nil {
		return entities.Metadata{}, err
	}
	return entities.Metadata{Type: f.Type, Name: f.Name, Timestamps: f.Timestamps, Pointer: id}, nil
}

// ListDirectory returns path's children, sorted by name ascending
// (§4.3).
func (v *Vfs) ListDirectory(ctx context.Context, path string) ([]entities.DirEntry, error) {
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
	dir, err := v.readDirectory(ctx, id)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dir.Children))
	for name := range dir.Children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]entities.DirEntry, 0, len(names))
	for _, name := range names {
		ref := dir.Children[name]
		ts, err := v.nodeTimestamps(ctx, ref)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entities.DirEntry{Name: name, Type: ref.Type, Timestamps: ts, Pointer: ref.Pointer})
	}
	return entries, nil
}

func (v *Vfs) nodeTimestamps(ctx context.Context, ref entities.RefNode) (entities.Timestamps, error) {
	if ref.Type == entities.NodeTypeDirectory {
		dir, err := v.readDirectory(ctx, ref.Pointer)
		if err != nil {
			return entities.Timestamps{}, err
		}
		return dir.Timestamps, nil
	}
	f, err := v.readFileNode(ctx, ref.Pointer)
	if err != nil {
		return entities.Timestamps{}, err
	}
	return f.Timestamps, nil
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
