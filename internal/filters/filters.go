// Package filters implements the name-only and metadata file filters
// applied before a candidate path reaches the hash-and-group engine:
// name filters run first (cheap, no syscall), metadata filters only
// run if the name filters already passed.
package filters

import (
	"os"
	"path/filepath"
	"strings"
)

// NameFilter decides whether to keep path based on its name alone.
type NameFilter interface {
	KeepName(path string) bool
}

// MetaFilter decides whether to keep path based on its stat info.
// Only invoked after every NameFilter has passed.
type MetaFilter interface {
	KeepMeta(fi os.FileInfo) bool
}

// ExtensionFilter allows or denies files by extension (without the
// leading dot); the empty string in the allow/deny set matches
// files with no extension (the CLI's "~" sentinel).
type ExtensionFilter struct {
	Allow map[string]bool // nil means "no allow-list configured"
	Deny  map[string]bool
}

func ext(path string) string {
	e := filepath.Ext(path)
	if e == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(e, "."))
}

func (f ExtensionFilter) KeepName(path string) bool {
	e := ext(path)
	if f.Deny != nil && f.Deny[e] {
		return false
	}
	if f.Allow != nil && !f.Allow[e] {
		return false
	}
	return true
}

// PathPrefixFilter rejects any path that starts with one of a set of
// blacklisted prefixes (either exact literal prefixes, or prefixes
// read from a file, per --pathbl/--pathblloc).
type PathPrefixFilter struct {
	Blacklist []string
}

func (f PathPrefixFilter) KeepName(path string) bool {
	for _, bl := range f.Blacklist {
		if !strings.HasPrefix(path, bl) {
			continue
		}
		// component-aware: /a/b blacklists /a/b and /a/b/c, not /a/bc
		if len(path) == len(bl) || strings.HasSuffix(bl, "/") || path[len(bl)] == '/' {
			return false
		}
	}
	return true
}

// HiddenFilter rejects paths whose base name starts with '.'.
type HiddenFilter struct{ Enabled bool }

func (f HiddenFilter) KeepName(path string) bool {
	if !f.Enabled {
		return true
	}
	return !strings.HasPrefix(filepath.Base(path), ".")
}

// MinSizeFilter keeps only files of at least Min bytes; the
// comparison is size >= Min.
type MinSizeFilter struct{ Min uint64 }

func (f MinSizeFilter) KeepMeta(fi os.FileInfo) bool {
	return uint64(fi.Size()) >= f.Min
}

// MaxSizeFilter keeps only files of at most Max bytes.
type MaxSizeFilter struct{ Max uint64 }

func (f MaxSizeFilter) KeepMeta(fi os.FileInfo) bool {
	return uint64(fi.Size()) <= f.Max
}

// NonZeroFilter rejects empty files.
type NonZeroFilter struct{ Enabled bool }

func (f NonZeroFilter) KeepMeta(fi os.FileInfo) bool {
	if !f.Enabled {
		return true
	}
	return fi.Size() > 0
}

// Chain runs every name filter, then (only if all passed and at
// least one meta filter is configured) stats the path and runs
// every meta filter.
type Chain struct {
	Names []NameFilter
	Metas []MetaFilter
}

// Keep reports whether path should proceed to hashing. statFn is
// injected so callers that already have an os.FileInfo (e.g. the
// directory walker) can avoid a duplicate stat.
func (c Chain) Keep(path string, statFn func() (os.FileInfo, error)) (bool, error) {
	for _, nf := range c.Names {
		if !nf.KeepName(path) {
			return false, nil
		}
	}
	if len(c.Metas) == 0 {
		return true, nil
	}
	fi, err := statFn()
	if err != nil {
		return false, err
	}
	for _, mf := range c.Metas {
		if !mf.KeepMeta(fi) {
			return false, nil
		}
	}
	return true, nil
}
