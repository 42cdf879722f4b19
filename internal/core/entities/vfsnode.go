package entities

import "time"

// NodeType discriminates the two fixed VFS document shapes (§3.5).
type NodeType string

const (
	NodeTypeFile      NodeType = "file"
	NodeTypeDirectory NodeType = "directory"
)

// Timestamps is carried by every VFS document.
type Timestamps struct {
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// RefNode is a directory's pointer to a child document (§3.5).
type RefNode struct {
	Pointer DocumentId `json:"pointer"`
	Type    NodeType   `json:"type"`
}

// DirectoryNode is the fixed shape of a directory document (§3.5).
// It is stored as a Repo document's content (JSON-encoded) and mutated
// through Repo.Apply/Subscribe like any other document.
type DirectoryNode struct {
	Type       NodeType           `json:"type"`
	Name       string             `json:"name"`
	Timestamps Timestamps         `json:"timestamps"`
	Children   map[string]RefNode `json:"children"`
}

// NewDirectoryNode creates an empty directory document shape.
func NewDirectoryNode(name string, now time.Time) *DirectoryNode {
	return &DirectoryNode{
		Type:       NodeTypeDirectory,
		Name:       name,
		Timestamps: Timestamps{CreatedAt: now, ModifiedAt: now},
		Children:   make(map[string]RefNode),
	}
}

// FileNode is the fixed shape of a file document (§3.5). Bytes carries
// an optional opaque binary blob alongside the JSON Content payload;
// HasBytes distinguishes "no blob" from "empty blob".
type FileNode struct {
	Type       NodeType   `json:"type"`
	Name       string     `json:"name"`
	Timestamps Timestamps `json:"timestamps"`
	Content    string     `json:"content"`
	Bytes      []byte     `json:"bytes,omitempty"`
	HasBytes   bool       `json:"hasBytes"`
}

// NewFileNode creates a file document shape with textual content and
// no attached binary blob.
func NewFileNode(name, content string, now time.Time) *FileNode {
	return &FileNode{
		Type:       NodeTypeFile,
		Name:       name,
		Timestamps: Timestamps{CreatedAt: now, ModifiedAt: now},
		Content:    content,
	}
}

// WithBytes attaches a binary blob to a file document shape.
func (f *FileNode) WithBytes(b []byte) *FileNode {
	f.Bytes = b
	f.HasBytes = true
	return f
}

// Metadata is the shape returned by getMetadata/listDirectory entries
// (§4.3): a node's type, name, and timestamps without its content.
type Metadata struct {
	Type       NodeType
	Name       string
	Timestamps Timestamps
	Pointer    DocumentId
}

// FileView is the shape returned by readFile/watchFile (§4.3): full
// file content plus metadata.
type FileView struct {
	Type       NodeType
	Name       string
	Timestamps Timestamps
	Content    string
	Bytes      []byte
	HasBytes   bool
	// Deleted is set on the final watchFile callback delivered after
	// the watched file is removed (§4.3 Watch semantics).
	Deleted bool
}

// DirEntry is one row of a listDirectory result (§4.3).
type DirEntry struct {
	Name       string
	Type       NodeType
	Timestamps Timestamps
	Pointer    DocumentId
}

// DirChangeKind enumerates the reasons a directory-watch callback
// fires (§4.3 Watch semantics).
type DirChangeKind string

const (
	DirChangeAdded   DirChangeKind = "added"
	DirChangeRemoved DirChangeKind = "removed"
	DirChangeRenamed DirChangeKind = "renamed"
	DirChangeUpdated DirChangeKind = "updated"
)

// DirChange is the opaque change summary delivered to directory
// watchers.
type DirChange struct {
	Kind DirChangeKind
	Name string
}
