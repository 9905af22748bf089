//go:build !linux && !darwin && !freebsd

package order

import "github.com/MattiKrause/duplis/internal/engine"

// CreateTime is unavailable on this platform; selecting it in an
// --orderby stack makes Apply fail with a run-aborting error.
// Createtime ordering hard-fails rather than silently degrading to
// another order.
type CreateTime struct{ Desc bool }

func (CreateTime) Name() string { return "createtime" }

func (CreateTime) Apply([]engine.HashedFile) ([]engine.HashedFile, error) {
	return nil, &engine.ErrFatal{Err: errUnsupportedCreateTime}
}
