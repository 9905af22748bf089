// Package order implements the pluggable set-orderings that choose a
// duplicate set's canonical "original": each Order is a stable total
// order over a set's members. A configured stack of Orders is applied
// last-to-first, so the most significant ordering runs last and its
// result survives the composition, as promised by the CLI's
// "decreasing importance" contract.
package order

import (
	"os"
	"sort"

	"github.com/MattiKrause/duplis/internal/engine"
)

// Order reorders files, returning either a fresh slice or the input
// unchanged. ModTime and CreateTime also drop entries that no longer
// exist; the other orders keep every entry. The first element after every Order
// in the configured stack has run is treated as the set's original.
type Order interface {
	Name() string
	Apply(files []engine.HashedFile) ([]engine.HashedFile, error)
}

// Stack composes Orders, applying them last-to-first.
type Stack []Order

// Apply runs every Order in the stack, in reverse configuration
// order, and returns the final ordering.
func (s Stack) Apply(files []engine.HashedFile) ([]engine.HashedFile, error) {
	cur := files
	for i := len(s) - 1; i >= 0; i-- {
		var err error
		cur, err = s[i].Apply(cur)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// Noop leaves the set unchanged.
type Noop struct{}

func (Noop) Name() string { return "noop" }
func (Noop) Apply(files []engine.HashedFile) ([]engine.HashedFile, error) { return files, nil }

// Alphabetic orders by path, stable.
type Alphabetic struct{ Desc bool }

func (Alphabetic) Name() string { return "alphabetic" }

func (o Alphabetic) Apply(files []engine.HashedFile) ([]engine.HashedFile, error) {
	out := append([]engine.HashedFile(nil), files...)
	sort.SliceStable(out, func(i, j int) bool {
		if o.Desc {
			return out[i].Path > out[j].Path
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// ModTime orders by modification time, re-stating each file (a file
// removed since it was hashed silently drops out of the set).
type ModTime struct{ Desc bool }

func (ModTime) Name() string { return "modtime" }

func (o ModTime) Apply(files []engine.HashedFile) ([]engine.HashedFile, error) {
	type entry struct {
		f engine.HashedFile
		t int64
	}
	entries := make([]entry, 0, len(files))
	for _, f := range files {
		fi, err := os.Lstat(f.Path)
		if err != nil {
			continue
		}
		entries = append(entries, entry{f: f, t: fi.ModTime().UnixNano()})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if o.Desc {
			return entries[i].t > entries[j].t
		}
		return entries[i].t < entries[j].t
	})
	out := make([]engine.HashedFile, len(entries))
	for i, e := range entries {
		out[i] = e.f
	}
	return out, nil
}

// SymlinkLast places non-symlinks before symlinks, stable otherwise.
type SymlinkLast struct{}

func (SymlinkLast) Name() string { return "symlinklast" }

func (SymlinkLast) Apply(files []engine.HashedFile) ([]engine.HashedFile, error) {
	out := append([]engine.HashedFile(nil), files...)
	sort.SliceStable(out, func(i, j int) bool {
		isi := isSymlink(out[i].Path)
		isj := isSymlink(out[j].Path)
		return !isi && isj
	})
	return out, nil
}

func isSymlink(path string) bool {
	fi, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeSymlink != 0
}

// ByName looks up a built-in ordering by the CLI's flag vocabulary:
// "modtime"/"rmodtime", "createtime"/"rcreatetime",
// "alphabetic"/"ralphabetic", "noop", "symlinklast". An "r" prefix
// reverses (descending) ordering.
func ByName(name string) (Order, error) {
	desc := false
	n := name
	if len(n) > 1 && n[0] == 'r' {
		if _, ok := knownBase[n[1:]]; ok {
			desc = true
			n = n[1:]
		}
	}
	switch n {
	case "modtime":
		return ModTime{Desc: desc}, nil
	case "createtime":
		return CreateTime{Desc: desc}, nil
	case "alphabetic":
		return Alphabetic{Desc: desc}, nil
	case "symlinklast":
		return SymlinkLast{}, nil
	case "noop":
		return Noop{}, nil
	}
	return nil, &UnknownOrderError{Name: name}
}

var knownBase = map[string]struct{}{
	"modtime": {}, "createtime": {}, "alphabetic": {},
}

// UnknownOrderError is returned by ByName for an unrecognised name.
type UnknownOrderError struct{ Name string }

func (e *UnknownOrderError) Error() string {
	return "order: unknown ordering " + e.Name
}

// ParseStack parses a comma-separated --orderby value into a Stack.
func ParseStack(csv string) (Stack, error) {
	if csv == "" {
		return Stack{ModTime{}}, nil
	}
	var out Stack
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			name := csv[start:i]
			start = i + 1
			if name == "" {
				continue
			}
			o, err := ByName(name)
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
	}
	return out, nil
}
