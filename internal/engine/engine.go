// Package engine implements the hash-and-group stage: it consumes a
// stream of candidate file paths, hashes and verifies their content,
// and groups byte-identical files into sets inside a sharded
// concurrent map: a worker pool drains a path channel into an
// xsync.MapOf keyed by a 128-bit content-only digest, refined within
// each bucket by a composite digest that folds in refiner-contributed
// state (e.g. permission bits).
package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/zeebo/xxh3"

	"github.com/MattiKrause/duplis/internal/refiner"
	"github.com/MattiKrause/duplis/internal/targetlog"
	"github.com/MattiKrause/duplis/internal/workpool"
)

// ErrAlreadyReported is the sentinel error returned up the call stack
// once a failure has been logged at its detection site; callers
// should propagate it without logging again.
var ErrAlreadyReported = errors.New("engine: already reported")

// HashedFile is one member of a duplicate set: the file path plus
// the modification time observed when it was admitted. The built-in
// set orderings re-stat each file and do not read ModTime.
type HashedFile struct {
	Path    string
	ModTime int64 // unix nanos, as observed at hash time
}

const hashBufSize = 512

// bucketEntry is one (composite_digest, FileSet) pair inside a coarse
// content-digest bucket: composite additionally folds in every
// refiner's HashComponent (e.g. permission bits), so two entries in
// the same bucket with differing composites are known to differ on a
// cheap refiner check and are skipped before ever attempting the
// expensive byte-wise CheckEqual pass.
type bucketEntry struct {
	composite xxh3.Uint128
	files     []HashedFile
}

// bucket holds every entry sharing one content-only digest: distinct
// files that happen to contain identical bytes but differ on some
// refiner criterion land in the same bucket but different entries.
type bucket struct {
	mu      sync.Mutex
	entries []*bucketEntry
}

// Engine runs the hash-and-group stage over a channel of paths and
// produces completed duplicate sets (size >= 2). shared is keyed by
// the content-only digest (the coarse bucket); refiner-contributed
// hash components are folded into each bucketEntry's composite
// instead, so files whose bytes match but whose refiner state
// doesn't share a bucket without needing a second top-level map.
type Engine struct {
	log     *targetlog.Logger
	chain   *refiner.Chain
	workers int
	shared  *xsync.MapOf[xxh3.Uint128, *bucket]
}

// New builds an Engine with nworkers hashing goroutines (see
// workpool.New for the nworkers<=1 single-worker case) and the given
// refiner chain applied to every file.
func New(log *targetlog.Logger, chain *refiner.Chain, nworkers int) *Engine {
	return &Engine{
		log:     log,
		chain:   chain,
		workers: nworkers,
		shared:  xsync.NewMapOf[xxh3.Uint128, *bucket](),
	}
}

// Run drains paths, hashing and grouping each one, and returns once
// every path has been processed (or the input channel closes).
// Per-file errors are logged and the file is skipped; they do not
// abort the run and are not part of Run's return value, which only
// carries failures harvested by the worker pool (such as a worker
// panic), joined via errors.Join.
func (e *Engine) Run(paths <-chan string) error {
	n := e.workers
	if n < 1 {
		n = 1
	}

	// per-worker state: each worker owns its refiner chain and read
	// buffer, never sharing either with a sibling.
	chains := make([]*refiner.Chain, n)
	bufs := make([][]byte, n)
	for i := range chains {
		chains[i] = e.chain.Clone()
		bufs[i] = make([]byte, hashBufSize)
	}

	pool := workpool.New(n, func(i int, path string) error {
		return e.process(path, chains[i], bufs[i])
	})
	for p := range paths {
		pool.Submit(p)
	}
	pool.Close()
	return pool.Wait()
}

func (e *Engine) process(path string, chain *refiner.Chain, buf []byte) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			e.log.Trace(targetlog.TargetFileDiscovery, "not found, skipping: %s", path)
			return nil
		}
		if os.IsPermission(err) {
			e.log.Info(targetlog.TargetFileError, "permission denied, skipping: %s", path)
			return nil
		}
		e.log.Warn(targetlog.TargetFileError, "open failed, skipping %s: %v", path, err)
		return nil
	}
	defer f.Close()

	fiBefore, err := f.Stat()
	if err != nil {
		e.log.Warn(targetlog.TargetFileError, "stat failed, skipping %s: %v", path, err)
		return nil
	}

	h := xxh3.New()
	// explicit read loop rather than io.Copy: the read buffer must stay
	// fixed-size, and io.Copy would delegate to os.File's WriterTo and
	// choose its own.
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			e.log.Warn(targetlog.TargetFileError, "read failed, skipping %s: %v", path, rerr)
			return nil
		}
	}

	// contentDigest covers only the bytes just streamed through h; it
	// is snapshotted before any refiner folds its own state in, so it
	// can serve as the coarse bucket key shared by every file with
	// identical content regardless of refiner criteria.
	contentDigest := h.Sum128()

	fiAfter, err := f.Stat()
	if err != nil {
		e.log.Warn(targetlog.TargetFileError, "re-stat failed, skipping %s: %v", path, err)
		return nil
	}
	if !fiAfter.ModTime().Equal(fiBefore.ModTime()) || fiAfter.Size() != fiBefore.Size() {
		e.log.Warn(targetlog.TargetFileError, "file modified during hashing, skipping %s", path)
		return nil
	}

	if err := chain.HashComponents(f, h); err != nil {
		e.log.Warn(targetlog.TargetFileError, "refiner hash failed, skipping %s: %v", path, err)
		return nil
	}

	composite := h.Sum128()

	return e.admit(path, fiAfter.ModTime().UnixNano(), contentDigest, composite, chain)
}

// admit inserts path into the bucket for contentDigest, verifying
// byte-wise equality against the bucket's existing entries before
// joining one. A fault reading the already-admitted representative
// drops that representative and retries against the next; a fault
// reading the new candidate abandons the candidate. Entries whose
// composite (content plus
// refiner state) doesn't match the candidate's are skipped before
// CheckEqual is ever attempted against them, since a refiner already
// disagrees.
func (e *Engine) admit(path string, modTime int64, contentDigest, composite xxh3.Uint128, chain *refiner.Chain) error {
	b, _ := e.shared.LoadOrCompute(contentDigest, func() *bucket {
		return &bucket{}
	})

	hf := HashedFile{Path: path, ModTime: modTime}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ent := range b.entries {
		if ent.composite != composite {
			continue
		}
		for len(ent.files) > 0 {
			rep := ent.files[0]
			eq, err := chain.CheckEqual(rep.Path, path)
			if err == nil {
				if eq {
					ent.files = append(ent.files, hf)
					return nil
				}
				break
			}
			var verr *refiner.VerifyError
			if errors.As(err, &verr) {
				if verr.First {
					e.log.Warn(targetlog.TargetFileError, "representative vanished mid-compare, dropping %s: %v", rep.Path, err)
					ent.files = ent.files[1:]
					continue
				}
				e.log.Warn(targetlog.TargetFileError, "candidate vanished mid-compare, skipping %s: %v", path, err)
				return nil
			}
			e.log.Warn(targetlog.TargetFileError, "compare failed, skipping %s: %v", path, err)
			return nil
		}
	}

	b.entries = append(b.entries, &bucketEntry{composite: composite, files: []HashedFile{hf}})
	return nil
}

// Sets returns every completed duplicate set (size >= 2) discovered
// during Run.
func (e *Engine) Sets() [][]HashedFile {
	var out [][]HashedFile
	e.shared.Range(func(_ xxh3.Uint128, b *bucket) bool {
		b.mu.Lock()
		for _, ent := range b.entries {
			if len(ent.files) >= 2 {
				cp := append([]HashedFile(nil), ent.files...)
				out = append(out, cp)
			}
		}
		b.mu.Unlock()
		return true
	})
	return out
}

// ErrFatal wraps an error that must abort the whole run, as opposed
// to being skipped and logged.
type ErrFatal struct{ Err error }

func (e *ErrFatal) Error() string { return fmt.Sprintf("fatal: %v", e.Err) }
func (e *ErrFatal) Unwrap() error { return e.Err }
