// Package source implements the two input sources that feed
// candidate file paths into the filter and hashing stages: a
// concurrent directory walker and a line-oriented reader over stdin.
package source

import (
	"os"
	"runtime"
	"sync"

	"github.com/MattiKrause/duplis/internal/filters"
	"github.com/MattiKrause/duplis/internal/linkedpath"
	"github.com/MattiKrause/duplis/internal/targetlog"
)

// DirWalkOptions configures a concurrent directory walk.
type DirWalkOptions struct {
	Recurse        bool
	FollowSymlinks bool
	Concurrency    int
	Filter         filters.Chain
}

// DirWalker walks one or more root directories and emits regular
// file paths on out. Errors encountered while accessing individual
// entries are logged and do not abort the walk; they are not returned
// to the caller.
//
// Directories queued for traversal are carried as *linkedpath.Path
// nodes rather than flat strings: every entry discovered under a
// directory shares that directory's node as its parent instead of
// each holding its own copy of the full prefix, and a path is only
// materialised into a string (for Lstat/ReadDir/emission) at the
// point it is actually needed.
type DirWalker struct {
	opt DirWalkOptions
	log *targetlog.Logger

	ch    chan *linkedpath.Path
	out   chan<- string
	dirWg sync.WaitGroup
	wg    sync.WaitGroup
}

// NewDirWalker builds a walker that writes discovered paths to out.
// The caller must drain out until Walk returns; Walk closes it.
func NewDirWalker(opt DirWalkOptions, log *targetlog.Logger, out chan<- string) *DirWalker {
	if opt.Concurrency <= 0 {
		opt.Concurrency = runtime.NumCPU()
	}
	return &DirWalker{
		opt: opt,
		log: log,
		ch:  make(chan *linkedpath.Path, opt.Concurrency),
		out: out,
	}
}

// Walk starts the traversal of roots and blocks until every
// directory discovered underneath them has been processed, then
// closes out.
func (d *DirWalker) Walk(roots []string) {
	d.wg.Add(d.opt.Concurrency)
	for i := 0; i < d.opt.Concurrency; i++ {
		go d.worker()
	}

	dirs := make([]*linkedpath.Path, 0, len(roots))
	for _, r := range roots {
		d.visitRoot(r, &dirs)
	}
	d.enqueue(dirs)

	d.dirWg.Wait()
	close(d.ch)
	d.wg.Wait()
	close(d.out)
}

// visitRoot classifies one configured walk root. Unlike entries found
// during traversal, a root directory is always listed, even when
// recursion is off: non-recursive mode limits descent below the root,
// not the root itself.
func (d *DirWalker) visitRoot(nm string, dirs *[]*linkedpath.Path) {
	fi, err := os.Lstat(nm)
	if err != nil {
		d.reportAccessErr(nm, err)
		return
	}
	p := linkedpath.Root(nm)
	switch {
	case fi.Mode().IsDir():
		*dirs = append(*dirs, p)
	case fi.Mode()&os.ModeSymlink != 0:
		d.followSymlink(p, dirs)
	default:
		d.maybeEmit(nm, fi)
	}
}

func (d *DirWalker) worker() {
	defer d.wg.Done()
	for p := range d.ch {
		nm := p.String()
		fi, err := os.Lstat(nm)
		if err != nil {
			d.reportAccessErr(nm, err)
			d.dirWg.Done()
			continue
		}
		d.walkDir(p, fi)
		d.dirWg.Done()
	}
}

func (d *DirWalker) walkDir(p *linkedpath.Path, fi os.FileInfo) {
	nm := p.String()
	entries, err := os.ReadDir(nm)
	if err != nil {
		d.reportAccessErr(nm, err)
		return
	}

	dirs := make([]*linkedpath.Path, 0, len(entries)/2)
	for _, e := range entries {
		child := p.Child(e.Name())
		fp := child.String()
		childFi, err := os.Lstat(fp)
		if err != nil {
			d.reportAccessErr(fp, err)
			continue
		}
		d.dispatch(child, childFi, &dirs)
	}
	d.enqueue(dirs)
}

// dispatch classifies one directory entry: queue it if it's a
// directory we should descend into, resolve it if it's a symlink we
// should follow, or emit it if it's a plain file that passes the
// filter chain.
func (d *DirWalker) dispatch(p *linkedpath.Path, fi os.FileInfo, dirs *[]*linkedpath.Path) {
	switch {
	case fi.Mode().IsDir():
		if d.opt.Recurse {
			*dirs = append(*dirs, p)
		}
	case fi.Mode()&os.ModeSymlink != 0:
		d.followSymlink(p, dirs)
	default:
		d.maybeEmit(p.String(), fi)
	}
}

func (d *DirWalker) followSymlink(p *linkedpath.Path, dirs *[]*linkedpath.Path) {
	nm := p.String()
	if !d.opt.FollowSymlinks {
		// only regular-file content is hashed; a symlink that is not
		// followed is simply not emitted.
		return
	}
	resolved, err := Canonicalize(nm)
	if err != nil {
		d.reportAccessErr(nm, err)
		return
	}
	fi, err := os.Stat(resolved)
	if err != nil {
		d.reportAccessErr(nm, err)
		return
	}
	if fi.Mode().IsDir() {
		// a followed symlink to a directory becomes a new walk root
		// and is listed like one, independent of the recurse setting.
		*dirs = append(*dirs, linkedpath.Root(resolved))
		return
	}
	d.maybeEmit(resolved, fi)
}

func (d *DirWalker) maybeEmit(nm string, fi os.FileInfo) {
	keep, err := d.opt.Filter.Keep(nm, func() (os.FileInfo, error) { return fi, nil })
	if err != nil {
		d.reportAccessErr(nm, err)
		return
	}
	if keep {
		d.out <- nm
	}
}

func (d *DirWalker) enqueue(dirs []*linkedpath.Path) {
	if len(dirs) == 0 {
		return
	}
	d.dirWg.Add(len(dirs))
	go func(dirs []*linkedpath.Path) {
		for _, p := range dirs {
			d.ch <- p
		}
	}(dirs)
}

func (d *DirWalker) reportAccessErr(path string, err error) {
	switch {
	case os.IsNotExist(err):
		d.log.Trace(targetlog.TargetFileDiscovery, "not found: %s", path)
	case os.IsPermission(err):
		d.log.Info(targetlog.TargetFileDiscovery, "permission denied: %s", path)
	default:
		d.log.Warn(targetlog.TargetFileDiscovery, "access error %s: %v", path, err)
	}
}
