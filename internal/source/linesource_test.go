package source_test

import (
	"strings"
	"testing"

	"github.com/MattiKrause/duplis/internal/filters"
	"github.com/MattiKrause/duplis/internal/source"
	"github.com/MattiKrause/duplis/internal/testutil"
)

func TestLineSourceSkipsBlanksAndCanonicalises(t *testing.T) {
	assert := testutil.NewAsserter(t)

	root := testutil.NewRootdir(t)
	assert(root.WriteFile("a.txt", "x") == nil, "write a")
	assert(root.WriteFile("b.txt", "x") == nil, "write b")

	input := strings.Join([]string{
		root.Path("a.txt"),
		"",
		"   ",
		root.Path("b.txt"),
	}, "\n")

	ls := source.NewLineSource(filters.Chain{}, newTestLogger(t))
	out := make(chan string, 8)
	go ls.Read(strings.NewReader(input), out)

	var got []string
	for p := range out {
		got = append(got, p)
	}
	assert(len(got) == 2, "blank lines must be skipped, got %v", got)
}

func TestLineSourceAppliesFilters(t *testing.T) {
	assert := testutil.NewAsserter(t)

	root := testutil.NewRootdir(t)
	assert(root.WriteFile("keep.txt", "x") == nil, "write keep")
	assert(root.WriteFile("drop.tmp", "x") == nil, "write drop")

	filter := filters.Chain{Names: []filters.NameFilter{filters.ExtensionFilter{Deny: map[string]bool{"tmp": true}}}}
	ls := source.NewLineSource(filter, newTestLogger(t))

	input := root.Path("keep.txt") + "\n" + root.Path("drop.tmp") + "\n"
	out := make(chan string, 8)
	go ls.Read(strings.NewReader(input), out)

	var got []string
	for p := range out {
		got = append(got, p)
	}
	assert(len(got) == 1, "expected one surviving path, got %v", got)
	assert(strings.HasSuffix(got[0], "keep.txt"), "got %q", got[0])
}
