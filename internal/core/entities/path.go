// Package entities contains the domain entities for Tonk: virtual paths,
// bundle manifests, CRDT document/VFS node shapes, the typed error
// taxonomy, and validation results. These are pure Go types with
// validation logic and zero external dependencies.
package entities

import (
	"fmt"
	"regexp"
	"strings"
)

// segmentPattern matches a single path segment: letters, digits, dot,
// underscore, hyphen. No empty segments, no "." or ".." segments.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// RootPath is the VFS root: "/".
const RootPath = "/"

// VirtualPath is a validated, absolute POSIX-style path inside a Tonk
// virtual filesystem or bundle. The zero value is not valid; construct
// one with ParsePath.
type VirtualPath struct {
	raw string
}

// ParsePath validates and wraps an absolute virtual path.
//
// A valid path is non-empty, starts with "/", has segments separated by
// single "/" characters, and each segment matches [A-Za-z0-9._-]+. "."
// and ".." segments are rejected, as are doubled separators and a
// trailing slash (except for the root path itself). Normalization only
// prepends a leading "/" when missing; it never collapses redundant
// separators — that is a validation error, not a silent fix.
func ParsePath(p string) (VirtualPath, error) {
	orig := p
	if p == "" {
		return VirtualPath{}, &ValidationError{Entity: "VirtualPath", Value: orig, Message: "path cannot be empty"}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if p == RootPath {
		return VirtualPath{raw: RootPath}, nil
	}
	if strings.HasSuffix(p, "/") {
		return VirtualPath{}, &ValidationError{Entity: "VirtualPath", Value: orig, Message: "trailing slash is only valid for the root path"}
	}
	segments := strings.Split(p[1:], "/")
	for _, seg := range segments {
		if seg == "" {
			return VirtualPath{}, &ValidationError{Entity: "VirtualPath", Value: orig, Message: "empty path segment (repeated '/')"}
		}
		if seg == "." || seg == ".." {
			return VirtualPath{}, &ValidationError{Entity: "VirtualPath", Value: orig, Message: fmt.Sprintf("'%s' segment is not allowed", seg)}
		}
		if !segmentPattern.MatchString(seg) {
			return VirtualPath{}, &ValidationError{Entity: "VirtualPath", Value: orig, Message: fmt.Sprintf("segment %q contains characters outside [A-Za-z0-9._-]", seg)}
		}
	}
	return VirtualPath{raw: p}, nil
}

// MustParsePath is ParsePath for call sites that already know the path
// is well-formed (literal constants, previously validated values).
func MustParsePath(p string) VirtualPath {
	vp, err := ParsePath(p)
	if err != nil {
		panic(err)
	}
	return vp
}

// String returns the normalized path.
func (p VirtualPath) String() string { return p.raw }

// IsRoot reports whether this is the root path "/".
func (p VirtualPath) IsRoot() bool { return p.raw == RootPath }

// IsZero reports whether this VirtualPath was never assigned (invalid to use).
func (p VirtualPath) IsZero() bool { return p.raw == "" }

// Segments returns the path's segments, in order, with the root path
// returning an empty slice.
func (p VirtualPath) Segments() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(p.raw[1:], "/")
}

// Base returns the final segment's name; for the root it returns "".
func (p VirtualPath) Base() string {
	segs := p.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Parent returns the parent directory's VirtualPath. The root's parent
// is itself.
func (p VirtualPath) Parent() VirtualPath {
	segs := p.Segments()
	if len(segs) <= 1 {
		return VirtualPath{raw: RootPath}
	}
	return VirtualPath{raw: "/" + strings.Join(segs[:len(segs)-1], "/")}
}

// Join appends a child segment name to this path. The caller is
// responsible for ensuring name is a single valid segment.
func (p VirtualPath) Join(name string) (VirtualPath, error) {
	if !segmentPattern.MatchString(name) {
		return VirtualPath{}, &ValidationError{Entity: "VirtualPath", Field: "name", Value: name, Message: "invalid segment"}
	}
	if p.IsRoot() {
		return VirtualPath{raw: "/" + name}, nil
	}
	return VirtualPath{raw: p.raw + "/" + name}, nil
}

// Equal reports byte-exact equality after normalization.
func (p VirtualPath) Equal(other VirtualPath) bool { return p.raw == other.raw }

// HasPrefix reports whether p is other or a descendant of other. Used
// for rename loop detection (§4.3): a node cannot be moved into its own
// subtree.
func (p VirtualPath) HasPrefix(other VirtualPath) bool {
	if other.IsRoot() {
		return true
	}
	if p.raw == other.raw {
		return true
	}
	return strings.HasPrefix(p.raw, other.raw+"/")
}
