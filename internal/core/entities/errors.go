// Package entities contains the domain entities for Tonk: virtual paths,
// bundle manifests, CRDT document/VFS node shapes, the typed error
// taxonomy, and validation results. These are pure Go structs with
// validation logic and zero external dependencies.
package entities

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel domain errors, comparable with errors.Is. The richer typed
// errors below wrap these where extra context is useful.
var (
	ErrNotInitialized = errors.New("not initialized")
	ErrAlreadyExists  = errors.New("already exists")
	ErrNotFound       = errors.New("not found")
	ErrParentMissing  = errors.New("parent directory missing")
	ErrCyclicRename   = errors.New("rename would move a node into its own subtree")
	ErrTypeMismatch   = errors.New("node type mismatch")
)

// ValidationError represents a single field-level validation failure.
type ValidationError struct {
	Entity  string // Entity type (e.g., "Manifest", "VirtualPath")
	Field   string // Field that failed validation
	Value   string // The invalid value (may be truncated)
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Entity, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error, truncating an
// overlong value for display.
func NewValidationError(entity, field, value, message string, err error) *ValidationError {
	if len(value) > 50 {
		value = value[:47] + "..."
	}
	return &ValidationError{
		Entity:  entity,
		Field:   field,
		Value:   value,
		Message: message,
		Err:     err,
	}
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d validation errors:\n", len(ve)))
	for i, err := range ve {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return b.String()
}

// HasErrors returns true if there are validation errors.
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add appends a validation error to the collection.
func (ve *ValidationErrors) Add(entity, field, value, message string, err error) {
	*ve = append(*ve, NewValidationError(entity, field, value, message, err))
}

// BundleParseError reports a failure to parse bundle bytes into a
// Bundle: invalid zip, missing manifest, invalid manifest JSON.
type BundleParseError struct {
	Code    string
	Message string
	Err     error
}

func (e *BundleParseError) Error() string {
	return fmt.Sprintf("bundle parse error [%s]: %s", e.Code, e.Message)
}
func (e *BundleParseError) Unwrap() error { return e.Err }

// BundleValidationError wraps a failed ValidationResult for callers
// that requested strict (throwing) validation.
type BundleValidationError struct {
	Result *ValidationResult
}

func (e *BundleValidationError) Error() string {
	return fmt.Sprintf("bundle validation failed with %d error(s)", len(e.Result.Errors))
}

// FileNotFoundError reports a missing file, by virtual path, in a
// Bundle or Vfs.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string { return fmt.Sprintf("file not found: %s", e.Path) }
func (e *FileNotFoundError) Unwrap() error { return ErrNotFound }

// EntrypointNotFoundError reports a manifest entrypoint whose target
// path is unknown.
type EntrypointNotFoundError struct {
	Name string
}

func (e *EntrypointNotFoundError) Error() string {
	return fmt.Sprintf("entrypoint not found: %s", e.Name)
}
func (e *EntrypointNotFoundError) Unwrap() error { return ErrNotFound }

// ZipOperationError wraps an underlying archive/zip failure with the
// operation that triggered it.
type ZipOperationError struct {
	Op  string
	Err error
}

func (e *ZipOperationError) Error() string { return fmt.Sprintf("zip %s: %v", e.Op, e.Err) }
func (e *ZipOperationError) Unwrap() error { return e.Err }

// BundleSizeError reports that a bundle (or one of its limits) exceeded
// a configured maximum.
type BundleSizeError struct {
	Limit   int64
	Actual  int64
	Message string
}

func (e *BundleSizeError) Error() string {
	return fmt.Sprintf("bundle size exceeded: %s (limit %d, actual %d)", e.Message, e.Limit, e.Actual)
}

// UnsupportedVersionError reports a manifest version this
// implementation does not understand.
type UnsupportedVersionError struct {
	Version int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported manifest version: %d", e.Version)
}

// SchemaValidationError reports a manifest that fails the JSON schema
// checks of §3.2/§6.2.
type SchemaValidationError struct {
	Code    string
	Path    string
	Message string
}

func (e *SchemaValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("schema violation [%s] at %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("schema violation [%s]: %s", e.Code, e.Message)
}

// CircularReferenceError reports a cycle detected in the entrypoint
// graph (§4.1 validation step 4).
type CircularReferenceError struct {
	Chain []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular entrypoint reference: %v", e.Chain)
}

// FileSystemError is the VFS's (§4.3) generic error surface; Kind holds
// one of the documented semantic subtypes.
type FileSystemError struct {
	Kind    string // not-found | already-exists | invalid-path | not-initialized | parent-missing | cyclic-rename | type-mismatch
	Path    string
	Message string
	Err     error
}

func (e *FileSystemError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("filesystem error [%s] at %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("filesystem error [%s]: %s", e.Kind, e.Message)
}
func (e *FileSystemError) Unwrap() error { return e.Err }

// NewFileSystemError constructs a FileSystemError, mapping Kind to the
// matching sentinel for errors.Is compatibility.
func NewFileSystemError(kind, path, message string) *FileSystemError {
	var sentinel error
	switch kind {
	case "not-found":
		sentinel = ErrNotFound
	case "already-exists":
		sentinel = ErrAlreadyExists
	case "parent-missing":
		sentinel = ErrParentMissing
	case "cyclic-rename":
		sentinel = ErrCyclicRename
	case "type-mismatch":
		sentinel = ErrTypeMismatch
	case "not-initialized":
		sentinel = ErrNotInitialized
	}
	return &FileSystemError{Kind: kind, Path: path, Message: message, Err: sentinel}
}

// ConnectionError reports a sync-session transport failure (§4.5, §7).
// The session does not auto-reconnect; this error always terminates
// the session that produced it.
type ConnectionError struct {
	URL     string
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error to %s: %s", e.URL, e.Message)
}
func (e *ConnectionError) Unwrap() error { return e.Err }
