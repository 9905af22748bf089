//go:build !unix

package action

import "fmt"

// ReplaceWithSymlink is unavailable on non-POSIX platforms: Apply
// always returns a Fatal error without touching the duplicate, so the
// run aborts at the first duplicate it is applied to.
type ReplaceWithSymlink struct{}

func (ReplaceWithSymlink) Name() string { return "symlink" }

func (ReplaceWithSymlink) Apply(string, string) error {
	return &Fatal{Err: fmt.Errorf("action: symlink replacement not supported on this platform")}
}
