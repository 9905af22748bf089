//go:build darwin || freebsd

package order

import (
	"sort"
	"syscall"

	"github.com/MattiKrause/duplis/internal/engine"
)

// CreateTime orders by st_birthtimespec, available directly on the
// BSD-derived Stat_t on darwin and freebsd.
type CreateTime struct{ Desc bool }

func (CreateTime) Name() string { return "createtime" }

func (o CreateTime) Apply(files []engine.HashedFile) ([]engine.HashedFile, error) {
	type entry struct {
		f engine.HashedFile
		t int64
	}
	entries := make([]entry, 0, len(files))
	for _, f := range files {
		fi, err := statBirthtime(f.Path)
		if err != nil {
			continue
		}
		entries = append(entries, entry{f: f, t: fi})
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

func statBirthtime(path string) (int64, error) {
	var st syscall.Stat_t
	if err := syscall.Lstat(path, &st); err != nil {
		return 0, err
	}
	return st.Birthtimespec.Sec*1e9 + st.Birthtimespec.Nsec, nil
}
