package source

import (
	"sync"

	"github.com/MattiKrause/duplis/internal/linkedpath"
)

// DedupSink drops paths already seen in this run before forwarding
// them downstream. Each incoming path is wrapped as a single-segment
// linkedpath.Path (it arrives already materialised by the walker or
// line source) and bucketed by its structural Hash, with Equal used
// to resolve collisions within a bucket - the same hash-bucket shape
// the hashing engine uses for file content, just one level simpler
// since there's no byte-wise verification step. It is a single
// coarse-grained gate, not a hot path, so a plain mutex guards it
// rather than the sharded concurrent map the hashing stage uses.
type DedupSink struct {
	mu      sync.Mutex
	seen    map[uint64][]*linkedpath.Path
	enabled bool
}

// NewDedupSink builds a sink. When enabled is false, Put always
// forwards (the sink becomes a no-op pass-through).
func NewDedupSink(enabled bool) *DedupSink {
	return &DedupSink{seen: make(map[uint64][]*linkedpath.Path), enabled: enabled}
}

// Put reports whether path has not been seen before (and records it
// as seen if so). When deduplication is disabled every path is
// reported as new.
func (s *DedupSink) Put(path string) bool {
	if !s.enabled {
		return true
	}
	p := linkedpath.Root(path)
	h := p.Hash()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.seen[h] {
		if p.Equal(o) {
			return false
		}
	}
	s.seen[h] = append(s.seen[h], p)
	return true
}
