package source

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/MattiKrause/duplis/internal/filters"
	"github.com/MattiKrause/duplis/internal/targetlog"
)

// LineSource reads newline-terminated candidate paths from r (stdin
// in normal use), skipping blank lines, and forwards surviving
// entries through the same filter chain as the directory walker.
type LineSource struct {
	Filter filters.Chain
	log    *targetlog.Logger
}

// NewLineSource builds a LineSource that logs access errors under
// the file-discovery target.
func NewLineSource(filter filters.Chain, log *targetlog.Logger) *LineSource {
	return &LineSource{Filter: filter, log: log}
}

// Read drains r and writes surviving, filtered, absolute paths to
// out, then closes out.
func (s *LineSource) Read(r io.Reader, out chan<- string) {
	defer close(out)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		abs, err := Canonicalize(line)
		if err != nil {
			s.log.Warn(targetlog.TargetFileDiscovery, "bad path %q: %v", line, err)
			continue
		}
		keep, err := s.Filter.Keep(abs, func() (os.FileInfo, error) { return os.Lstat(abs) })
		if err != nil {
			s.log.Trace(targetlog.TargetFileDiscovery, "stat failed for %s: %v", abs, err)
			continue
		}
		if keep {
			out <- abs
		}
	}
	if err := sc.Err(); err != nil {
		s.log.Warn(targetlog.TargetFileFormat, "reading input stream: %v", err)
	}
}
