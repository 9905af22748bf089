// Package refiner implements composable equality checks that extend
// the engine's content-hash bucketing with additional criteria (such
// as POSIX permission bits). Refiners are ordered cheapest-first by
// Severity so that a short-circuiting AND chain rarely pays for an
// expensive check.
package refiner

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/zeebo/xxh3"
)

// Severity orders refiners from cheapest to most expensive so a
// Chain evaluates short-circuiting checks first.
type Severity int

const (
	Simple Severity = iota
	FileMetadata
	FileContent
)

// Refiner contributes an optional hash component (folded into the
// engine's content hasher so unequal refiner state lands in
// different buckets without an extra pass) and an authoritative
// equality check between two candidate paths.
type Refiner interface {
	Severity() Severity
	HashComponent(f *os.File, h *xxh3.Hasher) error
	CheckEqual(a, b string) (bool, error)
}

// Chain evaluates an ordered list of Refiners, ANDing their
// CheckEqual results and short-circuiting on the first mismatch.
type Chain struct {
	refiners []Refiner
}

// NewChain sorts refiners ascending by Severity and returns a Chain.
func NewChain(refiners ...Refiner) *Chain {
	sorted := append([]Refiner(nil), refiners...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity() < sorted[j].Severity()
	})
	return &Chain{refiners: sorted}
}

// Clone returns an independent Chain sharing the same refiner list
// (refiners here are stateless), for use by a single hash-and-group
// worker.
func (c *Chain) Clone() *Chain {
	return &Chain{refiners: c.refiners}
}

// HashComponents folds every refiner's contribution into h, in
// severity order.
func (c *Chain) HashComponents(f *os.File, h *xxh3.Hasher) error {
	for _, r := range c.refiners {
		if err := r.HashComponent(f, h); err != nil {
			return err
		}
	}
	return nil
}

// CheckEqual runs every refiner's equality check against a and b,
// stopping at the first false result or error.
func (c *Chain) CheckEqual(a, b string) (bool, error) {
	for _, r := range c.refiners {
		ok, err := r.CheckEqual(a, b)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// VerifyError reports which side of a byte-wise comparison failed to
// read, distinguishing a fault on the already-admitted file (First)
// from one on the newly examined candidate (Second). The engine uses
// this distinction to decide whether to retry against a different
// set representative or drop the candidate outright.
type VerifyError struct {
	First  bool
	Second bool
	Err    error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify: first=%v second=%v: %v", e.First, e.Second, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// ContentEqual performs the byte-wise verification pass required
// before two files sharing a composite digest are admitted to the
// same set. Its HashComponent is a no-op: content is already hashed
// by the engine's main streaming pass.
type ContentEqual struct{}

func (ContentEqual) Severity() Severity { return FileContent }

func (ContentEqual) HashComponent(*os.File, *xxh3.Hasher) error { return nil }

const verifyBufSize = 64 * 1024

// CheckEqual opens both a and b before deciding which side is at
// fault: opening a first and bailing out on its error would blame a
// (the already-admitted representative) for a simultaneous failure
// that is really on b (the newly examined candidate) too. When both
// sides fail, the fault collapses to Second, so the engine drops the
// candidate rather than evicting the set's representative.
func (ContentEqual) CheckEqual(a, b string) (bool, error) {
	fa, erra := os.Open(a)
	if fa != nil {
		defer fa.Close()
	}
	fb, errb := os.Open(b)
	if fb != nil {
		defer fb.Close()
	}
	if erra != nil || errb != nil {
		if errb != nil {
			return false, &VerifyError{Second: true, Err: errb}
		}
		return false, &VerifyError{First: true, Err: erra}
	}

	sa, erra := fa.Stat()
	sb, errb := fb.Stat()
	if erra != nil || errb != nil {
		if errb != nil {
			return false, &VerifyError{Second: true, Err: errb}
		}
		return false, &VerifyError{First: true, Err: erra}
	}
	if sa.Size() != sb.Size() {
		return false, nil
	}

	bufA := make([]byte, verifyBufSize)
	bufB := make([]byte, verifyBufSize)
	for {
		na, erra := io.ReadFull(fa, bufA)
		nb, errb := io.ReadFull(fb, bufB)
		// a mid-stream read fault also presents as a short count, so
		// attribute real I/O errors before the length shortcut can
		// mask them as mere inequality.
		okA := erra == nil || erra == io.EOF || erra == io.ErrUnexpectedEOF
		okB := errb == nil || errb == io.EOF || errb == io.ErrUnexpectedEOF
		if !okB {
			return false, &VerifyError{Second: true, Err: errb}
		}
		if !okA {
			return false, &VerifyError{First: true, Err: erra}
		}
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if erra != nil {
			// both sides hit EOF on the same short read
			return true, nil
		}
	}
}

// PermissionEqual compares the low 9 POSIX permission bits, folding
// them into the composite hash so files differing only in
// permissions land in different buckets before any byte-wise
// comparison is attempted.
type PermissionEqual struct{}

func (PermissionEqual) Severity() Severity { return FileMetadata }

func (PermissionEqual) HashComponent(f *os.File, h *xxh3.Hasher) error {
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	mode := uint32(fi.Mode().Perm())
	var b [4]byte
	b[0] = byte(mode)
	b[1] = byte(mode >> 8)
	b[2] = byte(mode >> 16)
	b[3] = byte(mode >> 24)
	_, err = h.Write(b[:])
	return err
}

func (PermissionEqual) CheckEqual(a, b string) (bool, error) {
	fa, err := os.Lstat(a)
	if err != nil {
		return false, err
	}
	fb, err := os.Lstat(b)
	if err != nil {
		return false, err
	}
	return fa.Mode().Perm() == fb.Mode().Perm(), nil
}
