package consumer_test

import (
	"bufio"
	"os"
	"strings"
	"testing"

	"github.com/MattiKrause/duplis/internal/action"
	"github.com/MattiKrause/duplis/internal/consumer"
	"github.com/MattiKrause/duplis/internal/engine"
	"github.com/MattiKrause/duplis/internal/targetlog"
	"github.com/MattiKrause/duplis/internal/testutil"

	logger "github.com/opencoff/go-logger"
)

func newTestLogger(t *testing.T) *targetlog.Logger {
	l, err := targetlog.New(discard{}, logger.LOG_CRIT, "consumertest", nil)
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestMachineReadablePairwiseSkipsCommaPaths(t *testing.T) {
	assert := testutil.NewAsserter(t)

	var buf strings.Builder
	c := &consumer.MachineReadablePairwise{Out: &buf, Log: newTestLogger(t)}

	err := c.Consume([]engine.HashedFile{
		{Path: "/a/orig.txt"},
		{Path: "/a/dup1.txt"},
		{Path: "/a/d,up2.txt"},
	})
	assert(err == nil, "unexpected error: %v", err)
	out := buf.String()
	assert(strings.Contains(out, "/a/orig.txt,/a/dup1.txt"), "expected pairwise record, got %q", out)
	assert(!strings.Contains(out, "d,up2.txt"), "comma-containing path should be skipped, got %q", out)
}

func TestMachineReadablePairwiseNoTrailingNewline(t *testing.T) {
	assert := testutil.NewAsserter(t)

	var buf strings.Builder
	c := &consumer.MachineReadablePairwise{Out: &buf, Log: newTestLogger(t)}

	assert(c.Consume([]engine.HashedFile{{Path: "/a/orig1.txt"}, {Path: "/a/dup1.txt"}}) == nil, "consume set 1")
	assert(c.Consume([]engine.HashedFile{{Path: "/a/orig2.txt"}, {Path: "/a/dup2.txt"}}) == nil, "consume set 2")

	out := buf.String()
	assert(out == "/a/orig1.txt,/a/dup1.txt\n/a/orig2.txt,/a/dup2.txt", "expected newline-joined records with no trailing newline, got %q", out)
}

func TestMachineReadableSetEmitsOneLine(t *testing.T) {
	assert := testutil.NewAsserter(t)

	var buf strings.Builder
	c := consumer.MachineReadableSet{Out: &buf, Log: newTestLogger(t)}

	err := c.Consume([]engine.HashedFile{
		{Path: "/a/orig.txt"},
		{Path: "/a/dup1.txt"},
		{Path: "/a/dup2.txt"},
	})
	assert(err == nil, "unexpected error: %v", err)
	assert(strings.TrimRight(buf.String(), "\n") == "/a/orig.txt,/a/dup1.txt,/a/dup2.txt", "got %q", buf.String())
}

func TestDryRunPrintsWithoutMutating(t *testing.T) {
	assert := testutil.NewAsserter(t)

	root := testutil.NewRootdir(t)
	assert(root.WriteFile("orig.txt", "hi") == nil, "write orig")
	assert(root.WriteFile("dup.txt", "hi") == nil, "write dup")

	var buf strings.Builder
	c := consumer.DryRun{Out: &buf}
	err := c.Consume([]engine.HashedFile{{Path: root.Path("orig.txt")}, {Path: root.Path("dup.txt")}})
	assert(err == nil, "unexpected error: %v", err)
	assert(strings.Contains(buf.String(), "keeping"), "expected dry-run summary, got %q", buf.String())
}

func TestUnconditionalAdvancesPastMissingOriginal(t *testing.T) {
	assert := testutil.NewAsserter(t)

	root := testutil.NewRootdir(t)
	assert(root.WriteFile("survivor.txt", "x") == nil, "write survivor")
	assert(root.WriteFile("dup.txt", "x") == nil, "write dup")

	gone := root.Path("gone.txt") // never created: stands in for a vanished original

	u := consumer.Unconditional{Act: action.Delete{}, Log: newTestLogger(t)}
	err := u.Consume([]engine.HashedFile{
		{Path: gone},
		{Path: root.Path("survivor.txt")},
		{Path: root.Path("dup.txt")},
	})
	assert(err == nil, "unexpected error: %v", err)

	_, statErr := os.Stat(root.Path("dup.txt"))
	assert(os.IsNotExist(statErr), "expected dup.txt to be deleted once survivor.txt was chosen as the original")
	_, statErr = os.Stat(root.Path("survivor.txt"))
	assert(statErr == nil, "survivor.txt (the newly chosen original) must not be touched")
}

func TestSingleMemberSetIsNoop(t *testing.T) {
	assert := testutil.NewAsserter(t)

	var buf strings.Builder
	c := consumer.MachineReadableSet{Out: &buf, Log: newTestLogger(t)}
	err := c.Consume([]engine.HashedFile{{Path: "/a/orig.txt"}})
	assert(err == nil, "unexpected error: %v", err)
	assert(buf.Len() == 0, "a lone file is not a duplicate set and should emit nothing")
}

// recordingAction captures every Apply invocation without touching
// the filesystem.
type recordingAction struct {
	calls []string
}

func (*recordingAction) Name() string { return "record" }

func (r *recordingAction) Apply(duplicate, original string) error {
	r.calls = append(r.calls, duplicate+"<-"+original)
	return nil
}

func TestInteractiveAppliesOnlyConfirmedDuplicates(t *testing.T) {
	assert := testutil.NewAsserter(t)

	root := testutil.NewRootdir(t)
	assert(root.WriteFile("f1.txt", "x") == nil, "write f1")
	assert(root.WriteFile("f2.txt", "x") == nil, "write f2")
	assert(root.WriteFile("f3.txt", "x") == nil, "write f3")

	rec := &recordingAction{}
	c := consumer.Interactive{
		Act: rec,
		In:  bufio.NewScanner(strings.NewReader("y\nn")),
		Out: &strings.Builder{},
		Log: newTestLogger(t),
	}

	err := c.Consume([]engine.HashedFile{
		{Path: root.Path("f1.txt")},
		{Path: root.Path("f2.txt")},
		{Path: root.Path("f3.txt")},
	})
	assert(err == nil, "unexpected error: %v", err)
	assert(len(rec.calls) == 1, "only the confirmed duplicate should be acted on, got %v", rec.calls)
	assert(rec.calls[0] == root.Path("f2.txt")+"<-"+root.Path("f1.txt"), "got %q", rec.calls[0])
}

func TestInteractiveRepromptsOnGarbage(t *testing.T) {
	assert := testutil.NewAsserter(t)

	root := testutil.NewRootdir(t)
	assert(root.WriteFile("f1.txt", "x") == nil, "write f1")
	assert(root.WriteFile("f2.txt", "x") == nil, "write f2")

	rec := &recordingAction{}
	c := consumer.Interactive{
		Act: rec,
		In:  bufio.NewScanner(strings.NewReader("maybe\nYES")),
		Out: &strings.Builder{},
		Log: newTestLogger(t),
	}

	err := c.Consume([]engine.HashedFile{
		{Path: root.Path("f1.txt")},
		{Path: root.Path("f2.txt")},
	})
	assert(err == nil, "unexpected error: %v", err)
	assert(len(rec.calls) == 1, "garbage input must re-prompt, then case-insensitive yes applies, got %v", rec.calls)
}

func TestInteractiveEOFAbortsRun(t *testing.T) {
	assert := testutil.NewAsserter(t)

	root := testutil.NewRootdir(t)
	assert(root.WriteFile("f1.txt", "x") == nil, "write f1")
	assert(root.WriteFile("f2.txt", "x") == nil, "write f2")

	c := consumer.Interactive{
		Act: &recordingAction{},
		In:  bufio.NewScanner(strings.NewReader("")),
		Out: &strings.Builder{},
		Log: newTestLogger(t),
	}

	err := c.Consume([]engine.HashedFile{
		{Path: root.Path("f1.txt")},
		{Path: root.Path("f2.txt")},
	})
	assert(err == engine.ErrAlreadyReported, "a closed input stream must abort the run, got %v", err)
}
