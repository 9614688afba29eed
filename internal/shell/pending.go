package shell

import (
	"context"
	"log/slog"
)

type pendingState int

const (
	pendingNotStarted pendingState = iota
	pendingRunning
	pendingRetryPending
	pendingDone
)

func (s pendingState) String() string {
	switch s {
	case pendingNotStarted:
		return "not-started"
	case pendingRunning:
		return "running"
	case pendingRetryPending:
		return "retry-pending"
	default:
		return "done"
	}
}

const maxPendingRetries = 1

// pendingTask runs a job against the registry shell. When the shell turns
// out dead before the job started, a fresh one is acquired and the job is
// rescheduled once.
//
// Fields are touched by one goroutine at a time, the schedulers hand the
// task over.
type pendingTask struct {
	ctx     context.Context
	reg     *Registry
	inner   *jobTask
	async   bool
	state   pendingState
	retries int
}

func newPendingTask(ctx context.Context, reg *Registry, inner *jobTask, async bool) *pendingTask {
	return &pendingTask{
		ctx:   ctx,
		reg:   reg,
		inner: inner,
		async: async,
		state: pendingNotStarted,
	}
}

func (t *pendingTask) Run(s Streams) error {
	t.state = pendingRunning
	err := t.inner.Run(s)
	t.state = pendingDone
	return err
}

func (t *pendingTask) ShellDied() {
	if t.retries >= maxPendingRetries {
		t.state = pendingDone
		t.inner.ShellDied()
		return
	}
	t.retries++
	t.state = pendingRetryPending
	slog.DebugContext(t.ctx, "shell died before job started: retrying", "retry", t.retries, "state", t.state.String())

	p, err := t.reg.Get(t.ctx)
	if err != nil {
		slog.WarnContext(t.ctx, "retry failed: no shell", "error", err)
		t.state = pendingDone
		t.inner.ShellDied()
		return
	}
	if t.async {
		p.SubmitTask(t)
	} else {
		p.ExecTask(t)
	}
}
