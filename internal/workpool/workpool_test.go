package workpool_test

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/MattiKrause/duplis/internal/testutil"
	"github.com/MattiKrause/duplis/internal/workpool"
)

func TestPoolProcessesAllWork(t *testing.T) {
	assert := testutil.NewAsserter(t)

	var count int64
	pool := workpool.New[int](4, func(i int, w int) error {
		atomic.AddInt64(&count, int64(w))
		return nil
	})

	for i := 1; i <= 100; i++ {
		pool.Submit(i)
	}
	pool.Close()

	err := pool.Wait()
	assert(err == nil, "unexpected error: %v", err)
	assert(atomic.LoadInt64(&count) == 5050, "got sum %d, want 5050", count)
}

func TestPoolHarvestsErrors(t *testing.T) {
	assert := testutil.NewAsserter(t)

	pool := workpool.New[int](2, func(i int, w int) error {
		if w%2 == 0 {
			return fmt.Errorf("even: %d", w)
		}
		return nil
	})
	for i := 1; i <= 4; i++ {
		pool.Submit(i)
	}
	pool.Close()

	err := pool.Wait()
	assert(err != nil, "expected joined error from even submissions")
}

func TestSingleWorkerUnboundedQueue(t *testing.T) {
	assert := testutil.NewAsserter(t)

	var count int64
	pool := workpool.New[int](1, func(i int, w int) error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	for i := 0; i < 1000; i++ {
		pool.Submit(i)
	}
	pool.Close()
	assert(pool.Wait() == nil, "unexpected error")
	assert(atomic.LoadInt64(&count) == 1000, "got %d, want 1000", count)
}
