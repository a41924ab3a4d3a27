package rangeio

import (
	"fmt"
	"sync"

	rangeerrors "github.com/rangeio/rangeio/errors"
)

// ExecutorBarrier wraps an Executor and counts in-flight tasks so a caller
// can block until everything it submitted has finished. Task failures are
// not lost: the first failure, whether a panic out of a task or a submission
// refused by a closing executor, is captured and surfaced by Await exactly
// once. Later failures in the same batch are dropped.
//
// Thread Safety:
//   - Execute and Await are safe for concurrent use
//   - The barrier is reusable: after Await returns, a new batch may be
//     submitted
type ExecutorBarrier struct {
	executor Executor

	mu      sync.Mutex
	cond    *sync.Cond
	pending int
	err     error
}

// NewExecutorBarrier returns a barrier over executor.
func NewExecutorBarrier(executor Executor) *ExecutorBarrier {
	b := &ExecutorBarrier{executor: executor}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Execute submits task through the underlying executor, tracking it until
// completion. If the executor refuses the submission, the task counts as
// finished with an error wrapping ErrExecutorClosed.
func (b *ExecutorBarrier) Execute(task func()) {
	b.mu.Lock()
	b.pending++
	b.mu.Unlock()

	submitted := false
	defer func() {
		if submitted {
			return
		}
		rec := recover()
		b.finish(fmt.Errorf("rangeio: barrier submission refused (%v): %w", rec, rangeerrors.ErrExecutorClosed))
	}()

	b.executor.Execute(func() {
		var err error
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("rangeio: barrier task panic: %v", rec)
			}
			b.finish(err)
		}()
		task()
	})
	submitted = true
}

// finish retires one in-flight task, recording its error if it is the first.
func (b *ExecutorBarrier) finish(err error) {
	b.mu.Lock()
	if err != nil && b.err == nil {
		b.err = err
	}
	b.pending--
	if b.pending == 0 {
		b.cond.Broadcast()
	}
	b.mu.Unlock()
}

// Pending returns the number of tasks submitted but not yet finished.
func (b *ExecutorBarrier) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Await blocks until every task submitted so far has finished, then returns
// the first captured error and clears it, leaving the barrier ready for the
// next batch.
func (b *ExecutorBarrier) Await() error {
	b.mu.Lock()
	for b.pending > 0 {
		b.cond.Wait()
	}
	err := b.err
	b.err = nil
	b.mu.Unlock()
	return err
}
