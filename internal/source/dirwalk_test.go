package source_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/MattiKrause/duplis/internal/filters"
	"github.com/MattiKrause/duplis/internal/source"
	"github.com/MattiKrause/duplis/internal/targetlog"
	"github.com/MattiKrause/duplis/internal/testutil"

	logger "github.com/opencoff/go-logger"
)

func newTestLogger(t *testing.T) *targetlog.Logger {
	l, err := targetlog.New(discard{}, logger.LOG_CRIT, "sourcetest", nil)
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestDirWalkerRecursesAndFilters(t *testing.T) {
	assert := testutil.NewAsserter(t)

	root := testutil.NewRootdir(t)
	assert(root.WriteFile("a.txt", "x") == nil, "write a")
	assert(root.WriteFile("sub/b.txt", "x") == nil, "write b")
	assert(root.WriteFile("sub/c.tmp", "x") == nil, "write c")

	filter := filters.Chain{Names: []filters.NameFilter{filters.ExtensionFilter{Deny: map[string]bool{"tmp": true}}}}

	out := make(chan string, 8)
	dw := source.NewDirWalker(source.DirWalkOptions{Recurse: true, Concurrency: 2, Filter: filter}, newTestLogger(t), out)

	var got []string
	done := make(chan struct{})
	go func() {
		for p := range out {
			got = append(got, p)
		}
		close(done)
	}()

	dw.Walk([]string{string(root)})
	<-done

	sort.Strings(got)
	assert(len(got) == 2, "expected 2 surviving files, got %d: %v", len(got), got)
	joined := strings.Join(got, "|")
	assert(strings.Contains(joined, "a.txt"), "expected a.txt in %v", got)
	assert(strings.Contains(joined, "b.txt"), "expected b.txt in %v", got)
	assert(!strings.Contains(joined, "c.tmp"), "c.tmp should have been filtered out, got %v", got)
}

func TestDirWalkerNonRecursiveSkipsSubdirs(t *testing.T) {
	assert := testutil.NewAsserter(t)

	root := testutil.NewRootdir(t)
	assert(root.WriteFile("top.txt", "x") == nil, "write top")
	assert(root.WriteFile("sub/nested.txt", "x") == nil, "write nested")

	out := make(chan string, 8)
	dw := source.NewDirWalker(source.DirWalkOptions{Recurse: false, Concurrency: 1}, newTestLogger(t), out)

	var got []string
	done := make(chan struct{})
	go func() {
		for p := range out {
			got = append(got, p)
		}
		close(done)
	}()

	dw.Walk([]string{string(root)})
	<-done

	assert(len(got) == 1, "expected only the top-level file, got %v", got)
}
