package shell

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
)

// rootConfirmed is set once a root shell was observed and never reset.
var rootConfirmed atomic.Bool

// RootConfirmed reports a root shell was constructed during the process
// lifetime.
func RootConfirmed() bool {
	return rootConfirmed.Load()
}

// RootState answers whether the application can get root.
type RootState int

const (
	RootUnknown RootState = iota
	RootGranted
	RootUnavailable
)

func (s RootState) String() string {
	switch s {
	case RootGranted:
		return "granted"
	case RootUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

type acquisitionKeyT struct{}

var acquisitionKey acquisitionKeyT

// Registry holds the main shell: built lazily on first use, cached while
// alive and rebuilt by the default Builder once it dies.
type Registry struct {
	buildMx sync.Mutex // serializes construction

	mx          sync.Mutex
	builder     *Builder
	cached      *Process
	constructed bool
}

// NewRegistry returns a registry building shells with b, nil means
// NewBuilder().
func NewRegistry(b *Builder) *Registry {
	if b == nil {
		b = NewBuilder()
	}
	return &Registry{builder: b}
}

// SetDefaultBuilder replaces the builder. It fails with ErrBuilderLocked once
// a shell was constructed.
func (r *Registry) SetDefaultBuilder(b *Builder) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.constructed {
		return ErrBuilderLocked
	}
	if b == nil {
		b = NewBuilder()
	}
	r.builder = b
	return nil
}

// Get returns the cached shell when alive, otherwise it builds a new one.
// A Get issued from an Initializer of the shell being built fails fast.
func (r *Registry) Get(ctx context.Context) (*Process, error) {
	if owner, _ := ctx.Value(acquisitionKey).(*Registry); owner == r {
		return nil, constructionError(nil, ErrAcquisitionInProgress)
	}
	if p := r.alive(); p != nil {
		return p, nil
	}

	r.buildMx.Lock()
	defer r.buildMx.Unlock()
	if p := r.alive(); p != nil {
		return p, nil
	}

	r.mx.Lock()
	b := r.builder
	r.mx.Unlock()

	p, err := b.Build(context.WithValue(ctx, acquisitionKey, r))
	if err != nil {
		slog.ErrorContext(ctx, "main shell construction failed", "error", err)
		return nil, err
	}

	r.mx.Lock()
	r.cached = p
	r.constructed = true
	r.mx.Unlock()
	return p, nil
}

func (r *Registry) alive() *Process {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cached != nil && r.cached.IsAlive() {
		return r.cached
	}
	r.cached = nil
	return nil
}

// GetCached returns the cached shell without building one, nil when there
// is no alive shell.
func (r *Registry) GetCached() *Process {
	return r.alive()
}

// Cmd returns a job executed by the main shell, which is resolved when the
// job runs.
func (r *Registry) Cmd(cmds ...string) *Job {
	return (&Job{reg: r}).Add(cmds...)
}

// CmdReader returns a job piping rd to the main shell.
func (r *Registry) CmdReader(rd io.Reader) *Job {
	return (&Job{reg: r}).AddReader(rd)
}

// IsAppGrantedRoot tells whether root is available without building a shell.
func (r *Registry) IsAppGrantedRoot() RootState {
	if RootConfirmed() {
		return RootGranted
	}
	if os.Geteuid() == 0 {
		rootConfirmed.Store(true)
		return RootGranted
	}
	if p := r.GetCached(); p != nil && p.IsRoot() {
		return RootGranted
	}
	if _, err := exec.LookPath(rootCommand[0]); err != nil {
		return RootUnavailable
	}
	return RootUnknown
}

// Close releases the cached shell.
func (r *Registry) Close() error {
	r.mx.Lock()
	p := r.cached
	r.cached = nil
	r.mx.Unlock()
	if p == nil {
		return nil
	}
	return p.Close()
}
