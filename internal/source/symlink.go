package source

import "path/filepath"

// Canonicalize resolves nm to an absolute path with symlinks
// expanded. Paths from the line source, followed symlinks in the
// directory walker, and the CLI's positional DIRS roots all pass
// through here before being emitted or walked.
func Canonicalize(nm string) (string, error) {
	abs, err := filepath.Abs(nm)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
