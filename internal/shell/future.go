package shell

import (
	"context"
	"sync"
	"sync/atomic"
)

const (
	futurePending int32 = iota
	futureStarted
	futureCancelled
)

// Future is a handle on the result of an enqueued job.
type Future struct {
	state atomic.Int32
	done  chan struct{}
	once  sync.Once
	res   Result
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// start marks the job as running. It fails for a cancelled job.
func (f *Future) start() bool {
	return f.state.CompareAndSwap(futurePending, futureStarted)
}

func (f *Future) complete(r Result) {
	f.once.Do(func() {
		f.res = r
		close(f.done)
	})
}

// Cancel prevents a job which has not started yet from running. Once bytes
// were written to the shell the job proceeds to completion and Cancel
// returns false.
func (f *Future) Cancel() bool {
	if !f.state.CompareAndSwap(futurePending, futureCancelled) {
		return false
	}
	f.complete(notExecuted())
	return true
}

func (f *Future) IsCancelled() bool {
	return f.state.Load() == futureCancelled
}

// Done is closed once the result is available or the job was cancelled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get waits for the result. It returns ErrJobCancelled for a cancelled job
// and ctx.Err() when ctx ends first.
func (f *Future) Get(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		if f.IsCancelled() {
			return f.res, ErrJobCancelled
		}
		return f.res, nil
	case <-ctx.Done():
		return notExecuted(), ctx.Err()
	}
}
