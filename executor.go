package rangeio

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	rangeerrors "github.com/rangeio/rangeio/errors"
)

// taskChanBufferMultiplier is the multiplier for the task channel buffer size.
const taskChanBufferMultiplier = 2

// Executor runs submitted tasks. ParallelFor and ExecutorBarrier accept any
// Executor; PoolExecutor is the production implementation.
type Executor interface {
	// Execute schedules task to run. Implementations decide whether the task
	// runs inline or on another goroutine. Execute panics if the executor can
	// no longer accept work.
	Execute(task func())
}

// InlineExecutor runs every task synchronously on the calling goroutine.
type InlineExecutor struct{}

func (InlineExecutor) Execute(task func()) { task() }

// PoolExecutor is a fixed-size worker pool fed by a buffered channel. The
// pool does not recover panics: a task that panics terminates the program,
// so submitters that cannot tolerate that must wrap their tasks
// (ParallelFor and ExecutorBarrier do).
//
// Thread Safety:
//   - Execute is safe for concurrent use
//   - Close is NOT safe to call concurrently with Execute
//   - After Close returns, Execute panics with ErrExecutorClosed
type PoolExecutor struct {
	tasks  chan func()
	group  errgroup.Group
	closed atomic.Bool
}

// NewPoolExecutor starts a pool of workers goroutines. A non-positive count
// defaults to GOMAXPROCS.
func NewPoolExecutor(workers int) *PoolExecutor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &PoolExecutor{
		tasks: make(chan func(), workers*taskChanBufferMultiplier),
	}
	for i := 0; i < workers; i++ {
		p.group.Go(func() error {
			for task := range p.tasks {
				task()
			}
			return nil
		})
	}
	return p
}

// Execute enqueues task for a worker. It blocks when the task channel is
// full and panics with ErrExecutorClosed after Close.
func (p *PoolExecutor) Execute(task func()) {
	if p.closed.Load() {
		panic(rangeerrors.ErrExecutorClosed)
	}
	p.tasks <- task
}

// Close stops accepting tasks, drains the queued ones, and waits for all
// workers to exit. Safe to call multiple times.
func (p *PoolExecutor) Close() error {
	if p.closed.Swap(true) {
		return nil // Already closed
	}
	close(p.tasks)
	return p.group.Wait()
}
