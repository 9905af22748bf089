package order

import "errors"

// errUnsupportedCreateTime is returned (wrapped in engine.ErrFatal)
// when the --orderby stack names createtime on a platform or
// filesystem that cannot report file creation time. The pipeline logs
// it once and aborts the whole run rather than silently falling back
// to another ordering.
var errUnsupportedCreateTime = errors.New("order: creation time not supported on this platform/filesystem")
