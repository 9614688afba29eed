package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of a job.
type Result struct {
	Out  []string
	Err  []string
	Code int
}

func (r Result) IsSuccess() bool {
	return r.Code == 0
}

// OutString returns stdout lines joined with newlines.
func (r Result) OutString() string {
	return strings.Join(r.Out, "\n")
}

func notExecuted() Result {
	return Result{Code: JobNotExecuted}
}

// Executor runs result callbacks.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Execute(fn func()) {
	f(fn)
}

// GoExecutor runs every callback in a new goroutine.
var GoExecutor Executor = ExecutorFunc(func(fn func()) { go fn() })

type source interface {
	serve(w *bufio.Writer) error
}

type commandSource []string

func (c commandSource) serve(w *bufio.Writer) error {
	for _, cmd := range c {
		if _, err := w.WriteString(cmd); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

// readerSource is piped verbatim. A stream issuing exit terminates the shell.
type readerSource struct {
	r io.Reader
}

func (s readerSource) serve(w *bufio.Writer) error {
	if c, ok := s.r.(io.Closer); ok {
		defer func() {
			_ = c.Close()
		}()
	}
	if _, err := io.Copy(w, s.r); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// Job describes one unit of shell work: command sources and output sinks.
// A Job is consumed by the first Exec, Submit or Enqueue.
type Job struct {
	proc     *Process
	reg      *Registry
	sources  []source
	out      Sink
	err      Sink
	sinksSet bool
	consumed atomic.Bool
}

// Add appends commands written line by line to the shell.
func (j *Job) Add(cmds ...string) *Job {
	if len(cmds) > 0 {
		j.sources = append(j.sources, commandSource(append([]string(nil), cmds...)))
	}
	return j
}

// AddReader appends a stream piped verbatim to the shell followed by a
// newline. It is closed after use when it implements io.Closer.
func (j *Job) AddReader(r io.Reader) *Job {
	if r != nil {
		j.sources = append(j.sources, readerSource{r: r})
	}
	return j
}

// To sets the output sinks. A nil sink discards its stream, unless the shell
// redirects stderr, then a nil err sink means out. Result.Out and Result.Err
// are filled only for sinks of type *Lines.
func (j *Job) To(out, err Sink) *Job {
	j.out, j.err = out, err
	j.sinksSet = true
	return j
}

// Exec runs the job and waits for its result.
func (j *Job) Exec(ctx context.Context) Result {
	var res Result
	t, ok := j.task(ctx, true, func(r Result) { res = r })
	if !ok {
		return notExecuted()
	}
	p, err := j.resolve(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "job not executed: no shell", "error", err)
		t.ShellDied()
		return res
	}
	t.bind(p)
	if j.reg != nil {
		p.ExecTask(newPendingTask(ctx, j.reg, t, false))
	} else {
		p.ExecTask(t)
	}
	return res
}

// Submit runs the job in background. cb, when not nil, is called with the
// result on the shell worker goroutine, which still owns the shell: cb must
// not Exec on the same shell or it deadlocks. Use SubmitOn with an Executor
// for callbacks that issue more jobs.
func (j *Job) Submit(ctx context.Context, cb func(Result)) {
	j.SubmitOn(ctx, nil, cb)
}

// SubmitOn runs the job in background, cb is dispatched through ex.
func (j *Job) SubmitOn(ctx context.Context, ex Executor, cb func(Result)) {
	var deliver func(Result)
	if cb != nil {
		deliver = func(r Result) {
			if ex == nil {
				cb(r)
				return
			}
			ex.Execute(func() { cb(r) })
		}
	}
	t, ok := j.task(ctx, cb != nil, deliver)
	if !ok {
		if deliver != nil {
			deliver(notExecuted())
		}
		return
	}
	j.submit(ctx, t)
}

// Enqueue runs the job in background and returns a handle on its result.
func (j *Job) Enqueue(ctx context.Context) *Future {
	f := newFuture()
	t, ok := j.task(ctx, true, f.complete)
	if !ok {
		f.complete(notExecuted())
		return f
	}
	t.start = f.start
	j.submit(ctx, t)
	return f
}

func (j *Job) submit(ctx context.Context, t *jobTask) {
	p, err := j.resolve(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "job not executed: no shell", "error", err)
		t.ShellDied()
		return
	}
	t.bind(p)
	if j.reg != nil {
		p.SubmitTask(newPendingTask(ctx, j.reg, t, true))
	} else {
		p.SubmitTask(t)
	}
}

// resolve returns the shell of a bound job, or asks the registry for its
// shell at the last moment.
func (j *Job) resolve(ctx context.Context) (*Process, error) {
	switch {
	case j.proc != nil:
		return j.proc, nil
	case j.reg != nil:
		return j.reg.Get(ctx)
	default:
		return nil, ErrShellDead
	}
}

// task turns the job into a Task. collect allocates output buffers when no
// sinks were set.
func (j *Job) task(ctx context.Context, collect bool, deliver func(Result)) (*jobTask, bool) {
	if !j.consumed.CompareAndSwap(false, true) {
		slog.WarnContext(ctx, "job not executed", "error", ErrJobConsumed)
		return nil, false
	}
	return &jobTask{
		ctx:      ctx,
		sources:  j.sources,
		out:      j.out,
		err:      j.err,
		sinksSet: j.sinksSet,
		collect:  collect,
		deliver:  deliver,
	}, true
}

// jobTask is a Job compiled down to a Task.
type jobTask struct {
	ctx      context.Context
	sources  []source
	out      Sink
	err      Sink
	sinksSet bool
	collect  bool
	outBuf   *Lines
	errBuf   *Lines
	deliver  func(Result)
	// start reports false when the job must be skipped.
	start func() bool
}

// bind resolves default sinks against the shell executing the task.
func (t *jobTask) bind(p *Process) {
	if !t.sinksSet && t.collect {
		t.outBuf = NewLines()
		t.out = t.outBuf
		if p.redirect {
			t.err = t.outBuf
		} else {
			t.errBuf = NewLines()
			t.err = t.errBuf
		}
		return
	}
	if t.err == nil && p.redirect {
		t.err = t.out
	}
	if l, ok := t.out.(*Lines); ok {
		t.outBuf = l
	}
	if l, ok := t.err.(*Lines); ok && l != t.outBuf {
		t.errBuf = l
	}
}

func (t *jobTask) Run(s Streams) error {
	if t.start != nil && !t.start() {
		t.closeSources()
		return nil
	}

	var mx sync.Mutex
	code := JobNotExecuted
	var g errgroup.Group
	g.Go(func() error {
		c, err := gobbler{r: s.Stdout, sink: t.out, mx: &mx, stdout: true}.drain()
		if err != nil {
			s.Abort()
			return fmt.Errorf("reading stdout: %w", err)
		}
		code = c
		return nil
	})
	g.Go(func() error {
		_, err := gobbler{r: s.Stderr, sink: t.err, mx: &mx}.drain()
		if err != nil {
			s.Abort()
			return fmt.Errorf("reading stderr: %w", err)
		}
		return nil
	})

	werr := t.write(s.Stdin)
	if werr != nil {
		s.Abort()
	}
	gerr := g.Wait()

	if werr != nil {
		t.finish(JobNotExecuted)
		return fmt.Errorf("writing stdin: %w", werr)
	}
	if gerr != nil {
		t.finish(JobNotExecuted)
		return gerr
	}
	t.finish(code)
	return nil
}

func (t *jobTask) write(stdin io.Writer) error {
	w := bufio.NewWriter(stdin)
	for _, src := range t.sources {
		if err := src.serve(w); err != nil {
			t.closeSources()
			return err
		}
	}
	if _, err := w.WriteString(trailer()); err != nil {
		return err
	}
	return w.Flush()
}

func (t *jobTask) ShellDied() {
	t.closeSources()
	if t.start != nil && !t.start() {
		return
	}
	t.finish(JobNotExecuted)
}

// closeSources closes streams of a job which never ran.
func (t *jobTask) closeSources() {
	for _, src := range t.sources {
		if rs, ok := src.(readerSource); ok {
			if c, ok := rs.r.(io.Closer); ok {
				_ = c.Close()
			}
		}
	}
}

func (t *jobTask) finish(code int) {
	if t.deliver == nil {
		return
	}
	res := Result{Code: code}
	if t.outBuf != nil {
		res.Out = t.outBuf.Lines()
	}
	if t.errBuf != nil {
		res.Err = t.errBuf.Lines()
	}
	t.deliver(res)
}
