package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Flag tunes the shells produced by a Builder.
type Flag uint

const (
	// FlagNonRootShell skips every root variant of the fallback chain.
	FlagNonRootShell Flag = 1 << iota
	// FlagMountMaster tries a root shell in the global mount namespace first.
	FlagMountMaster
	// FlagRedirectStderr merges stderr into the stdout sink of jobs which
	// don't set a stderr sink.
	FlagRedirectStderr
)

// DefaultTimeout bounds the construction handshake.
const DefaultTimeout = 20 * time.Second

var (
	mountMasterCommand = []string{"su", "--mount-master"}
	rootCommand        = []string{"su"}
	userCommand        = []string{"sh"}
)

// Initializer runs against a freshly built shell. An error fails the
// construction.
type Initializer func(ctx context.Context, p *Process) error

// CommandInitializer returns an Initializer executing cmds as a job. The job
// must succeed.
func CommandInitializer(cmds ...string) Initializer {
	return func(ctx context.Context, p *Process) error {
		res := p.NewJob().Add(cmds...).To(nil, nil).Exec(ctx)
		if !res.IsSuccess() {
			return fmt.Errorf("initializer exited with code %d", res.Code)
		}
		return nil
	}
}

// Builder constructs shells. With no explicit commands it walks the fallback
// chain: su --mount-master (with FlagMountMaster), su, sh.
type Builder struct {
	flags        Flag
	timeout      time.Duration
	commands     []string
	initializers []Initializer

	mountMaster []string
	root        []string
	user        []string
}

func NewBuilder() *Builder {
	return &Builder{
		timeout:     DefaultTimeout,
		mountMaster: mountMasterCommand,
		root:        rootCommand,
		user:        userCommand,
	}
}

func (b *Builder) SetFlags(flags Flag) *Builder {
	b.flags = flags
	return b
}

func (b *Builder) Flags() Flag {
	return b.flags
}

func (b *Builder) SetTimeout(timeout time.Duration) *Builder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	b.timeout = timeout
	return b
}

// SetCommands sets the command vector spawned by Build, disabling the
// fallback chain.
func (b *Builder) SetCommands(argv ...string) *Builder {
	b.commands = append([]string(nil), argv...)
	return b
}

func (b *Builder) SetInitializers(inits ...Initializer) *Builder {
	b.initializers = append([]Initializer(nil), inits...)
	return b
}

func (b *Builder) has(f Flag) bool {
	return b.flags&f != 0
}

// Build returns a ready shell or a *ConstructionError.
func (b *Builder) Build(ctx context.Context) (*Process, error) {
	if len(b.commands) > 0 {
		return b.BuildCommand(ctx, b.commands...)
	}

	var errs []error
	if !b.has(FlagNonRootShell) {
		if b.has(FlagMountMaster) {
			p, err := b.buildRoot(ctx, b.mountMaster)
			if err == nil {
				return p, nil
			}
			errs = append(errs, err)
		}
		p, err := b.buildRoot(ctx, b.root)
		if err == nil {
			return p, nil
		}
		errs = append(errs, err)
	}

	p, err := b.BuildCommand(ctx, b.user...)
	if err != nil {
		errs = append(errs, err)
		return nil, constructionError(nil, errors.Join(errs...))
	}
	return p, nil
}

// buildRoot accepts only a shell classified as root.
func (b *Builder) buildRoot(ctx context.Context, argv []string) (*Process, error) {
	p, err := b.BuildCommand(ctx, argv...)
	if err != nil {
		slog.DebugContext(ctx, "root shell not available", "argv", argv, "error", err)
		return nil, err
	}
	if p.Status() != StatusRoot {
		_ = p.Close()
		return nil, constructionError(argv, errors.New("shell is not root"))
	}
	return p, nil
}

// BuildCommand spawns argv, classifies it and runs the initializers.
func (b *Builder) BuildCommand(ctx context.Context, argv ...string) (*Process, error) {
	p, err := startProcess(ctx, argv, b.timeout)
	if err != nil {
		return nil, err
	}
	p.redirect = b.has(FlagRedirectStderr)

	for idx, initFn := range b.initializers {
		if initFn == nil {
			continue
		}
		if err := initFn(ctx, p); err != nil {
			_ = p.Close()
			return nil, constructionError(argv, fmt.Errorf("initializer %d: %w", idx, err))
		}
	}
	return p, nil
}
