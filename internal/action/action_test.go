package action_test

import (
	"os"
	"testing"

	"github.com/MattiKrause/duplis/internal/action"
	"github.com/MattiKrause/duplis/internal/testutil"
)

func TestDeleteRemovesFile(t *testing.T) {
	assert := testutil.NewAsserter(t)

	root := testutil.NewRootdir(t)
	assert(root.WriteFile("dup.txt", "x") == nil, "write dup")

	err := action.Delete{}.Apply(root.Path("dup.txt"), root.Path("orig.txt"))
	assert(err == nil, "unexpected error: %v", err)

	_, statErr := os.Stat(root.Path("dup.txt"))
	assert(os.IsNotExist(statErr), "expected file to be removed")
}

func TestReplaceWithHardlink(t *testing.T) {
	assert := testutil.NewAsserter(t)

	root := testutil.NewRootdir(t)
	assert(root.WriteFile("orig.txt", "content") == nil, "write orig")
	assert(root.WriteFile("dup.txt", "content") == nil, "write dup")

	err := action.ReplaceWithHardlink{}.Apply(root.Path("dup.txt"), root.Path("orig.txt"))
	assert(err == nil, "unexpected error: %v", err)

	origInfo, _ := os.Stat(root.Path("orig.txt"))
	dupInfo, _ := os.Stat(root.Path("dup.txt"))
	assert(os.SameFile(origInfo, dupInfo), "expected dup.txt to be hardlinked to orig.txt")
}

func TestReplaceWithHardlinkMissingOriginalIsFatal(t *testing.T) {
	assert := testutil.NewAsserter(t)

	root := testutil.NewRootdir(t)
	assert(root.WriteFile("dup.txt", "content") == nil, "write dup")

	err := action.ReplaceWithHardlink{}.Apply(root.Path("dup.txt"), root.Path("nonexistent.txt"))
	assert(err != nil, "expected error when original is missing")

	var fatal *action.Fatal
	ok := false
	for e := err; e != nil; {
		if f, is := e.(*action.Fatal); is {
			fatal = f
			ok = true
			break
		}
		u, isU := e.(interface{ Unwrap() error })
		if !isU {
			break
		}
		e = u.Unwrap()
	}
	assert(ok, "expected a *action.Fatal in the error chain")
	assert(fatal != nil, "fatal should be non-nil")
}
