package entities

// DocumentId is the Repo's opaque, stable identifier for a document. It
// never changes for the lifetime of the document — in particular, a
// VFS rename never changes the DocumentId of the renamed node (§3.4,
// §4.3).
type DocumentId string

// String returns the id's wire representation.
func (id DocumentId) String() string { return string(id) }

// IsZero reports whether this is the zero-value (unassigned) id.
func (id DocumentId) IsZero() bool { return id == "" }

// DocumentSnapshot is an opaque, persistable representation of a
// document's current content, as produced by Repo.Snapshot (§4.2). The
// CRDT engine is treated as a black box: Content is whatever bytes it
// produces, never interpreted by callers outside the Repo.
type DocumentSnapshot struct {
	ID      DocumentId
	Content []byte
	// RootID is a merkle-hash-like checkpoint of this document's
	// current content, stamped onto serialized bundles for change
	// detection between snapshots (§3.4, GLOSSARY "Root id").
	RootID string
}
