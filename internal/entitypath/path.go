// Package entitypath implements hierarchical entity paths.
//
// A Path identifies the object a logged observation is attached to
// (e.g. "/world/camera/left"). Paths are immutable values: hashable,
// orderable, and safe to share across goroutines. A Path holds a
// slice, so it is not comparable with == and cannot itself be a map
// key; its String form or Hash serves as the key instead. Paths
// form a tree, but a Path by itself does not know its children —
// descent is done externally by walking the store's known set of
// entity paths (see Children).
package entitypath

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Path is an immutable, slash-separated entity path such as
// "/world/camera/left". The root path is "/".
type Path struct {
	parts []string
}

// Root is the path "/".
var Root = Path{}

// New parses a slash-separated path string into a Path. Leading and
// trailing slashes are normalized away; empty segments (from "//") are
// dropped.
func New(s string) Path {
	raw := strings.Split(s, "/")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return Path{parts: parts}
}

// String renders the path back to its canonical slash-separated form.
func (p Path) String() string {
	if len(p.parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(p.parts, "/")
}

// Depth returns the number of segments (Root has depth 0).
func (p Path) Depth() int {
	return len(p.parts)
}

// Parent returns the path one level up, and false if p is Root.
func (p Path) Parent() (Path, bool) {
	if len(p.parts) == 0 {
		return Path{}, false
	}
	return Path{parts: p.parts[:len(p.parts)-1]}, true
}

// Child returns the path formed by appending name as a new segment.
func (p Path) Child(name string) Path {
	parts := make([]string, len(p.parts)+1)
	copy(parts, p.parts)
	parts[len(p.parts)] = name
	return Path{parts: parts}
}

// IsDescendantOf reports whether p is strictly nested under ancestor.
func (p Path) IsDescendantOf(ancestor Path) bool {
	if len(p.parts) <= len(ancestor.parts) {
		return false
	}
	for i, seg := range ancestor.parts {
		if p.parts[i] != seg {
			return false
		}
	}
	return true
}

// Equal reports whether two paths denote the same entity.
func (p Path) Equal(other Path) bool {
	return p.String() == other.String()
}

// Less defines a total, lexicographic order over paths, suitable for
// sorting a known entity set for tree-walking (spec: "descent is done
// externally by walking the known set of entity paths").
func (p Path) Less(other Path) bool {
	return p.String() < other.String()
}

// Hash is a 64-bit FNV-1a hash of the canonical path string, used for
// fast keyed lookup. It is not cryptographic and carries no collision
// guarantee.
func (p Path) Hash() uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for _, b := range []byte(p.String()) {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}

// Match reports whether the path matches a doublestar glob pattern, e.g.
// Match("/world/camera/*", p) or Match("/world/**", p). Patterns are
// matched against the canonical "/"-joined string with the leading
// slash stripped, so "world/camera/*" and "/world/camera/*" are
// equivalent.
func Match(pattern string, p Path) bool {
	pattern = strings.TrimPrefix(pattern, "/")
	target := strings.TrimPrefix(p.String(), "/")
	ok, err := doublestar.Match(pattern, target)
	if err != nil {
		return false
	}
	return ok
}

// Children returns the subset of known paths that are direct children
// of parent, given the full known set of entity paths in the store.
// Entity paths carry no parent/child pointers of their own, so descent
// is driven externally from the known set rather than walked in place.
func Children(parent Path, known []Path) []Path {
	var out []Path
	for _, candidate := range known {
		if candidate.IsDescendantOf(parent) && candidate.Depth() == parent.Depth()+1 {
			out = append(out, candidate)
		}
	}
	return out
}
