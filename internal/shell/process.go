package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CZERTAINLY/rootshell/internal/log"
)

// Status is the classification of a shell made once during construction.
type Status int

const (
	StatusUnknown Status = iota
	StatusNonRoot
	StatusRoot
)

func (s Status) String() string {
	switch s {
	case StatusNonRoot:
		return "non-root"
	case StatusRoot:
		return "root"
	default:
		return "unknown"
	}
}

// Process owns one long-lived shell subprocess and its pipes.
//
// Status is decided once by the construction handshake. IsAlive is a live
// probe instead: a shell found dead is released as a side effect, and every
// task scheduled after that is notified through Task.ShellDied.
type Process struct {
	argv     []string
	cmd      *exec.Cmd
	stdin    *os.File
	stdout   *os.File
	stderr   *os.File
	outR     *bufio.Reader
	errR     *bufio.Reader
	status   Status
	redirect bool
	logCtx   context.Context

	exited      chan struct{}
	released    atomic.Bool
	releaseOnce sync.Once
	releaseErr  error

	sched *scheduler
}

// discardWindow bounds the wait for stray output before each task.
const discardWindow = 5 * time.Millisecond

// startProcess spawns argv and classifies it within timeout.
func startProcess(ctx context.Context, argv []string, timeout time.Duration) (*Process, error) {
	if len(argv) == 0 {
		return nil, constructionError(argv, errors.New("empty command"))
	}

	p, err := spawn(argv)
	if err != nil {
		return nil, constructionError(argv, err)
	}
	p.logCtx = log.ContextAttrs(context.WithoutCancel(ctx), slog.Group("shell",
		slog.Int("pid", p.Pid()),
		slog.String("argv", strings.Join(argv, " ")),
	))
	slog.DebugContext(p.logCtx, "shell spawned")

	type outcome struct {
		status Status
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		status, err := p.handshake()
		ch <- outcome{status: status, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var o outcome
	pending := false
	select {
	case o = <-ch:
	case <-timer.C:
		o, pending = outcome{err: ErrHandshakeTimeout}, true
	case <-ctx.Done():
		o, pending = outcome{err: ctx.Err()}, true
	}
	if o.err != nil {
		slog.DebugContext(p.logCtx, "shell handshake failed", "error", o.err)
		_ = p.Close()
		if pending {
			// closed pipes unblock the handshake
			<-ch
		}
		return nil, constructionError(argv, o.err)
	}

	p.status = o.status
	if p.status == StatusRoot {
		rootConfirmed.Store(true)
	}
	p.sched = newScheduler(p.runTask)
	slog.InfoContext(p.logCtx, "shell ready", "status", p.status.String())
	return p, nil
}

func spawn(argv []string) (*Process, error) {
	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		closeAll(inR, inW)
		return nil, err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		closeAll(inR, inW, outR, outW)
		return nil, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = inR
	cmd.Stdout = outW
	cmd.Stderr = errW
	if err := cmd.Start(); err != nil {
		closeAll(inR, inW, outR, outW, errR, errW)
		return nil, err
	}
	// child ends belong to the subprocess now
	closeAll(inR, outW, errW)

	p := &Process{
		argv:   append([]string(nil), argv...),
		cmd:    cmd,
		stdin:  inW,
		stdout: outR,
		stderr: errR,
		outR:   bufio.NewReader(outR),
		errR:   bufio.NewReader(errR),
		exited: make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

// handshake confirms the process is a shell and classifies it.
func (p *Process) handshake() (Status, error) {
	select {
	case <-p.exited:
		return StatusUnknown, errors.New("process terminated immediately")
	default:
	}

	p.discardPending()

	if _, err := io.WriteString(p.stdin, "echo "+sentinel+"\n"); err != nil {
		return StatusUnknown, fmt.Errorf("writing echo: %w", err)
	}
	for {
		line, err := readLine(p.outR)
		if err != nil {
			return StatusUnknown, fmt.Errorf("%w: %w", ErrNotAShell, err)
		}
		if strings.TrimSpace(line) == sentinel {
			break
		}
	}

	if _, err := io.WriteString(p.stdin, "id\n"); err != nil {
		return StatusUnknown, fmt.Errorf("writing id: %w", err)
	}
	id, err := readLine(p.outR)
	if err != nil {
		return StatusUnknown, fmt.Errorf("reading id: %w", err)
	}
	if !strings.Contains(id, "uid=0") {
		return StatusNonRoot, nil
	}

	// root shells commonly start in /
	if cwd, err := os.Getwd(); err == nil {
		escaped, err := Escape(cwd)
		if err != nil {
			slog.WarnContext(p.logCtx, "can't escape working directory", "dir", cwd, "error", err)
			return StatusRoot, nil
		}
		if _, err := io.WriteString(p.stdin, "cd "+escaped+" 2>/dev/null\n"); err != nil {
			return StatusUnknown, fmt.Errorf("writing cd: %w", err)
		}
	}
	return StatusRoot, nil
}

// discardPending drops stray bytes buffered in stdout and stderr. A pipe is
// read for at most discardWindow, until it reports nothing more.
func (p *Process) discardPending() {
	buf := make([]byte, 4096)
	for _, pr := range []struct {
		f *os.File
		r *bufio.Reader
	}{{p.stdout, p.outR}, {p.stderr, p.errR}} {
		if n := pr.r.Buffered(); n > 0 {
			_, _ = pr.r.Discard(n)
		}
		if err := pr.f.SetReadDeadline(time.Now().Add(discardWindow)); err != nil {
			continue
		}
		for {
			n, err := pr.f.Read(buf)
			if err != nil || n == 0 {
				break
			}
		}
		_ = pr.f.SetReadDeadline(time.Time{})
	}
}

// runTask is called by the scheduler with exclusive access to the pipes.
func (p *Process) runTask(t Task) {
	if !p.IsAlive() {
		slog.WarnContext(p.logCtx, "shell is dead: task not executed")
		t.ShellDied()
		return
	}

	p.discardPending()
	if _, err := p.stdin.Write([]byte{'\n'}); err != nil {
		slog.WarnContext(p.logCtx, "waking up shell failed: releasing", "error", err)
		_ = p.release()
		t.ShellDied()
		return
	}

	err := t.Run(Streams{
		Stdin:  p.stdin,
		Stdout: p.outR,
		Stderr: p.errR,
		Abort:  func() { _ = p.release() },
	})
	if err != nil {
		slog.ErrorContext(p.logCtx, "task failed: releasing shell", "error", err)
		_ = p.release()
	}
}

// Status returns the classification made at construction.
func (p *Process) Status() Status {
	return p.status
}

func (p *Process) IsRoot() bool {
	return p.status == StatusRoot
}

func (p *Process) Pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *Process) Argv() []string {
	return append([]string(nil), p.argv...)
}

// IsAlive probes the subprocess without blocking. A dead process is released.
func (p *Process) IsAlive() bool {
	if p.released.Load() {
		return false
	}
	select {
	case <-p.exited:
		slog.WarnContext(p.logCtx, "shell exited")
		_ = p.release()
		return false
	default:
		return true
	}
}

// IsIdle reports there is no running nor queued task.
func (p *Process) IsIdle() bool {
	return p.sched.idle()
}

// ExecTask runs t on the calling goroutine after all earlier tasks.
func (p *Process) ExecTask(t Task) {
	p.sched.exec(t)
}

// SubmitTask queues t for a background worker and returns immediately.
func (p *Process) SubmitTask(t Task) {
	p.sched.submit(t)
}

// NewJob returns a job executed by this shell.
func (p *Process) NewJob() *Job {
	return &Job{proc: p}
}

// WaitAndClose waits until the task queue drains and closes the shell. It
// returns false, without closing, when ctx ends first.
func (p *Process) WaitAndClose(ctx context.Context) (bool, error) {
	if !p.sched.waitIdle(ctx) {
		return false, nil
	}
	return true, p.Close()
}

// Close releases the pipes and destroys the subprocess. It is idempotent.
func (p *Process) Close() error {
	err := p.release()
	select {
	case <-p.exited:
	case <-time.After(5 * time.Second):
		slog.WarnContext(p.logCtx, "shell did not exit after close")
	}
	return err
}

func (p *Process) release() error {
	p.releaseOnce.Do(func() {
		p.released.Store(true)
		var errs []error
		if err := p.stdin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing stdin: %w", err))
		}
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			slog.DebugContext(p.logCtx, "killing shell", "error", err)
		}
		if err := p.stdout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing stdout: %w", err))
		}
		if err := p.stderr.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing stderr: %w", err))
		}
		p.releaseErr = errors.Join(errs...)
		slog.DebugContext(p.logCtx, "shell released")
	})
	return p.releaseErr
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
