// Package linkedpath implements an immutable, parent-sharing path
// representation so that many file paths discovered under the same
// directory tree can share the storage for their common prefix,
// instead of each being its own flat string. Paths are persistent
// cons-lists rather than reusable buffers because they can outlive
// the worker that discovered them: file sets hold them for the
// lifetime of the run.
package linkedpath

import (
	"strings"

	"github.com/zeebo/xxh3"
)

// Path is one segment of a directory path plus a pointer to its
// parent. The root of a tree has a nil parent. Two Paths are safe to
// share structure (e.g. a directory's Path is the parent of every
// child discovered under it).
type Path struct {
	parent *Path
	seg    string
}

// Root creates a new root path segment (no parent).
func Root(seg string) *Path {
	return &Path{seg: seg}
}

// Child creates a new path by appending seg under p.
func (p *Path) Child(seg string) *Path {
	return &Path{parent: p, seg: seg}
}

// String materialises the full path by walking parent pointers.
func (p *Path) String() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	p.WriteTo(&b)
	return b.String()
}

// WriteTo materialises the full path into buf in O(depth), walking
// parent pointers outermost-first. Shared by String and by callers
// that already own a reusable strings.Builder and want to avoid the
// per-call allocation String incurs.
func (p *Path) WriteTo(buf *strings.Builder) {
	if p == nil {
		return
	}
	if p.parent != nil {
		p.parent.WriteTo(buf)
		if !strings.HasSuffix(p.parent.seg, "/") {
			buf.WriteByte('/')
		}
	}
	buf.WriteString(p.seg)
}

// Append materialises the full path by appending it to buf in
// O(depth), returning the grown slice. Like WriteTo, but for callers
// (Hash, in particular) that build paths as []byte rather than
// strings.Builder.
func (p *Path) Append(buf []byte) []byte {
	if p == nil {
		return buf
	}
	if p.parent != nil {
		buf = p.parent.Append(buf)
		if !strings.HasSuffix(p.parent.seg, "/") {
			buf = append(buf, '/')
		}
	}
	return append(buf, p.seg...)
}

// Depth returns the number of segments from root to p, inclusive.
func (p *Path) Depth() int {
	n := 0
	for cur := p; cur != nil; cur = cur.parent {
		n++
	}
	return n
}

// Equal compares two paths by their materialised string form. Paths
// sharing no structure can still be equal if they resolve to the
// same string (e.g. one root segment "/a/b" vs. two segments "/a",
// "b").
func (p *Path) Equal(o *Path) bool {
	return p.String() == o.String()
}

// Hash returns a 64-bit digest of the materialised path, consistent
// with Equal (two equal Paths always hash equal) and built on the
// same xxh3 fast-hash library the engine's content digest uses, so a
// caller can bucket Paths before falling back to the authoritative
// Equal comparison on a collision.
func (p *Path) Hash() uint64 {
	return xxh3.Hash(p.Append(nil))
}
