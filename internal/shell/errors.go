package shell

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrShellConstruction     = errors.New("shell construction failed")
	ErrShellDead             = errors.New("shell is dead")
	ErrNotAShell             = errors.New("created process is not a shell")
	ErrHandshakeTimeout      = errors.New("shell handshake timed out")
	ErrBuilderLocked         = errors.New("default builder can't be changed after a shell was constructed")
	ErrAcquisitionInProgress = errors.New("shell acquisition already in progress")
	ErrJobConsumed           = errors.New("job already executed")
	ErrJobCancelled          = errors.New("job cancelled")
	ErrNulByte               = errors.New("NUL byte can't be passed to a shell")
)

// ConstructionError is returned when no shell could be built from a command
// vector. It matches ErrShellConstruction with errors.Is.
type ConstructionError struct {
	Argv []string
	Err  error
}

func (e *ConstructionError) Error() string {
	if len(e.Argv) == 0 {
		return fmt.Sprintf("%s: %v", ErrShellConstruction, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrShellConstruction, strings.Join(e.Argv, " "), e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

func (e *ConstructionError) Is(target error) bool {
	return target == ErrShellConstruction
}

func constructionError(argv []string, err error) error {
	return &ConstructionError{
		Argv: append([]string(nil), argv...),
		Err:  err,
	}
}
