package shell

import (
	"context"
	"sync"
)

// queued is either an asynchronous task or a barrier of a blocked caller.
type queued struct {
	task    Task
	barrier *barrier
}

type barrier struct {
	ready bool
}

// scheduler serializes tasks of one shell. Blocking and asynchronous
// submissions share a single FIFO queue; whoever owns the running flag is the
// only one touching the pipes.
type scheduler struct {
	mx      sync.Mutex
	cond    *sync.Cond
	running bool
	queue   []queued
	run     func(Task)
}

func newScheduler(run func(Task)) *scheduler {
	s := &scheduler{run: run}
	s.cond = sync.NewCond(&s.mx)
	return s
}

// exec runs t on the calling goroutine once every earlier submission is done.
func (s *scheduler) exec(t Task) {
	s.mx.Lock()
	if s.running {
		b := &barrier{}
		s.queue = append(s.queue, queued{barrier: b})
		for !b.ready {
			s.cond.Wait()
		}
	} else {
		s.running = true
	}
	s.mx.Unlock()

	s.run(t)
	if next := s.next(); next != nil {
		go s.work(next)
	}
}

// submit queues t and returns immediately. A worker goroutine is started on
// the idle to busy transition only.
func (s *scheduler) submit(t Task) {
	s.mx.Lock()
	if s.running {
		s.queue = append(s.queue, queued{task: t})
		s.mx.Unlock()
		return
	}
	s.running = true
	s.mx.Unlock()
	go s.work(t)
}

func (s *scheduler) work(t Task) {
	for t != nil {
		s.run(t)
		t = s.next()
	}
}

// next pops the queue head. The running flag is handed over to a blocked
// caller or kept for the returned task; it is cleared on an empty queue.
func (s *scheduler) next() Task {
	s.mx.Lock()
	defer s.mx.Unlock()
	if len(s.queue) == 0 {
		s.running = false
		s.cond.Broadcast()
		return nil
	}
	head := s.queue[0]
	s.queue[0] = queued{}
	s.queue = s.queue[1:]
	if head.barrier != nil {
		head.barrier.ready = true
		s.cond.Broadcast()
		return nil
	}
	return head.task
}

func (s *scheduler) idle() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return !s.running && len(s.queue) == 0
}

// waitIdle blocks until nothing runs or is queued. It returns false when ctx
// ends first.
func (s *scheduler) waitIdle(ctx context.Context) bool {
	stop := context.AfterFunc(ctx, func() {
		s.mx.Lock()
		s.cond.Broadcast()
		s.mx.Unlock()
	})
	defer stop()

	s.mx.Lock()
	defer s.mx.Unlock()
	for s.running || len(s.queue) > 0 {
		if ctx.Err() != nil {
			return false
		}
		s.cond.Wait()
	}
	return true
}
