//go:build linux

package order

import (
	"sort"

	"golang.org/x/sys/unix"

	"github.com/MattiKrause/duplis/internal/engine"
)

// CreateTime orders by filesystem birth time, via statx(STATX_BTIME)
// on Linux. A filesystem that doesn't record birth time aborts the
// run rather than silently degrading to another order.
type CreateTime struct{ Desc bool }

func (CreateTime) Name() string { return "createtime" }

func (o CreateTime) Apply(files []engine.HashedFile) ([]engine.HashedFile, error) {
	type entry struct {
		f engine.HashedFile
		t int64
	}
	entries := make([]entry, 0, len(files))
	for _, f := range files {
		var stx unix.Statx_t
		if err := unix.Statx(unix.AT_FDCWD, f.Path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stx); err != nil {
			continue
		}
		if stx.Mask&unix.STATX_BTIME == 0 {
			return nil, &engine.ErrFatal{Err: errUnsupportedCreateTime}
		}
		entries = append(entries, entry{f: f, t: int64(stx.Btime.Sec)*1e9 + int64(stx.Btime.Nsec)})
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
