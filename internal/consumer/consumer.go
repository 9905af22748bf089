// Package consumer implements the set consumers that decide what
// happens, if anything, once a duplicate set has been ordered: print
// it (dry-run), act on it unconditionally, prompt the user per
// duplicate (interactive), or emit it in one of two machine-readable
// formats.
package consumer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/MattiKrause/duplis/internal/action"
	"github.com/MattiKrause/duplis/internal/engine"
	"github.com/MattiKrause/duplis/internal/targetlog"
)

// Consumer processes one ordered duplicate set. files[0] is the
// chosen original; files[1:] are duplicates.
type Consumer interface {
	Consume(files []engine.HashedFile) error
}

// DryRun prints what would happen without touching the filesystem.
type DryRun struct {
	Out     io.Writer
	Verbose bool
}

func (d DryRun) Consume(files []engine.HashedFile) error {
	if len(files) < 2 {
		return nil
	}
	orig := files[0]
	dups := files[1:]
	names := make([]string, len(dups))
	for i, f := range dups {
		names[i] = f.Path
	}
	if d.Verbose {
		if fi, err := os.Stat(orig.Path); err == nil {
			fmt.Fprintf(d.Out, "keeping %s (%s), dry-deleting %s\n", orig.Path, humanize.Bytes(uint64(fi.Size())), strings.Join(names, ", "))
			return nil
		}
	}
	fmt.Fprintf(d.Out, "keeping %s, dry-deleting %s\n", orig.Path, strings.Join(names, ", "))
	return nil
}

// advanceToExistingOriginal scans an ordered set for the first entry
// that still exists, treating it as the chosen original: a vanished
// candidate is skipped in favor of the next one rather than
// abandoning the whole set. Entries after
// the chosen original that have themselves vanished are likewise
// dropped from the returned duplicate list. ok is false only when
// every candidate in the set is missing.
func advanceToExistingOriginal(files []engine.HashedFile) (orig engine.HashedFile, dups []engine.HashedFile, ok bool) {
	idx := -1
	for i, f := range files {
		if _, err := os.Lstat(f.Path); err == nil {
			idx = i
			break
		}
	}
	if idx == -1 {
		return engine.HashedFile{}, nil, false
	}
	orig = files[idx]
	for _, f := range files[idx+1:] {
		if _, err := os.Lstat(f.Path); err == nil {
			dups = append(dups, f)
		}
	}
	return orig, dups, true
}

// Unconditional applies act to every duplicate in the set, advancing
// past any candidate original that has gone missing.
type Unconditional struct {
	Act action.Action
	Log *targetlog.Logger
}

func (u Unconditional) Consume(files []engine.HashedFile) error {
	if len(files) < 2 {
		return nil
	}
	orig, dups, ok := advanceToExistingOriginal(files)
	if !ok {
		u.Log.Warn(targetlog.TargetFileSet, "every candidate original missing, skipping set")
		return nil
	}
	for _, dup := range dups {
		if err := u.Act.Apply(dup.Path, orig.Path); err != nil {
			if isFatal(err) {
				u.Log.Error(targetlog.TargetFatalAction, "fatal action failure on %s: %v", dup.Path, err)
				return engine.ErrAlreadyReported
			}
			logActionErr(u.Log, dup.Path, err)
			continue
		}
		u.Log.Info(targetlog.TargetActionSuccess, "%s: %s -> %s", u.Act.Name(), dup.Path, orig.Path)
	}
	return nil
}

// logActionErr logs a recoverable action failure: a duplicate that
// vanished before the action ran is benign and only traced, anything
// else is warned.
func logActionErr(log *targetlog.Logger, path string, err error) {
	if errors.Is(err, os.ErrNotExist) {
		log.Trace(targetlog.TargetFileError, "already gone, skipping: %s", path)
		return
	}
	log.Warn(targetlog.TargetFileSet, "action failed on %s: %v", path, err)
}

// Interactive prompts per duplicate on in, advancing past any
// candidate original that has gone missing, and aborting the whole
// run on EOF (a closed input stream means there is no one left to
// answer).
type Interactive struct {
	Act action.Action
	In  *bufio.Scanner
	Out io.Writer
	Log *targetlog.Logger
}

func (c Interactive) Consume(files []engine.HashedFile) error {
	if len(files) < 2 {
		return nil
	}
	orig, dups, ok := advanceToExistingOriginal(files)
	if !ok {
		c.Log.Warn(targetlog.TargetFileSet, "every candidate original missing, skipping set")
		return nil
	}
	for _, dup := range dups {
		yes, err := c.prompt(dup.Path, orig.Path)
		if err != nil {
			c.Log.Error(targetlog.TargetUserInteraction, "input stream failed: %v", err)
			return engine.ErrAlreadyReported
		}
		if !yes {
			continue
		}
		if err := c.Act.Apply(dup.Path, orig.Path); err != nil {
			if isFatal(err) {
				c.Log.Error(targetlog.TargetFatalAction, "fatal action failure on %s: %v", dup.Path, err)
				return engine.ErrAlreadyReported
			}
			logActionErr(c.Log, dup.Path, err)
			continue
		}
		c.Log.Info(targetlog.TargetActionSuccess, "%s: %s -> %s", c.Act.Name(), dup.Path, orig.Path)
	}
	return nil
}

func (c Interactive) prompt(dup, orig string) (bool, error) {
	for {
		fmt.Fprintf(c.Out, "%s (%s) -> keep %s, remove duplicate? [y/n] ", dup, c.Act.Name(), orig)
		if !c.In.Scan() {
			if err := c.In.Err(); err != nil {
				return false, err
			}
			return false, io.EOF
		}
		switch strings.ToLower(strings.TrimSpace(c.In.Text())) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(c.Out, "please answer y or n")
		}
	}
}

func isFatal(err error) bool {
	var f *action.Fatal
	return errors.As(err, &f)
}

// MachineReadablePairwise emits one "<orig>,<dup>" line per
// duplicate; paths containing a comma are skipped with a warning
// since the format has no escaping mechanism. Consume is called once
// per set over the course of a run with no visibility into which
// record is globally last, so the newline separator is written
// before each record except the first rather than appended after
// every one — the stream never ends in a trailing newline.
type MachineReadablePairwise struct {
	Out io.Writer
	Log *targetlog.Logger

	wrote bool
}

func (m *MachineReadablePairwise) Consume(files []engine.HashedFile) error {
	if len(files) < 2 {
		return nil
	}
	orig := files[0]
	if strings.Contains(orig.Path, ",") {
		m.Log.Warn(targetlog.TargetFileFormat, "original path contains comma, skipping set: %s", orig.Path)
		return nil
	}
	for _, dup := range files[1:] {
		if strings.Contains(dup.Path, ",") {
			m.Log.Warn(targetlog.TargetFileFormat, "duplicate path contains comma, skipping: %s", dup.Path)
			continue
		}
		if m.wrote {
			fmt.Fprint(m.Out, "\n")
		}
		fmt.Fprintf(m.Out, "%s,%s", orig.Path, dup.Path)
		m.wrote = true
	}
	return nil
}

// MachineReadableSet emits one CSV-style line per set: the original
// followed by every duplicate, comma-separated. Each record is
// newline-delimited and independently parseable; there is no
// continuation-row encoding.
type MachineReadableSet struct {
	Out io.Writer
	Log *targetlog.Logger
}

func (m MachineReadableSet) Consume(files []engine.HashedFile) error {
	if len(files) < 2 {
		return nil
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		if strings.Contains(f.Path, ",") {
			m.Log.Warn(targetlog.TargetFileFormat, "path contains comma, skipping from set: %s", f.Path)
			continue
		}
		names = append(names, f.Path)
	}
	if len(names) < 2 {
		return nil
	}
	fmt.Fprintln(m.Out, strings.Join(names, ","))
	return nil
}
