package shell

import (
	"bufio"
	"io"
)

// Streams are the pipes of a shell handed to a running Task.
type Streams struct {
	Stdin  io.Writer
	Stdout *bufio.Reader
	Stderr *bufio.Reader
	// Abort releases the shell, blocked reads on Stdout and Stderr return.
	Abort func()
}

// Task is the low level unit executed by a shell. Run owns the pipes for its
// whole duration and must leave the shell idle, with no pending output, when
// it returns. A non-nil error means the shell can't be trusted anymore and it
// gets released.
//
// ShellDied is called instead of Run when the shell is dead at the moment the
// task is scheduled.
type Task interface {
	Run(s Streams) error
	ShellDied()
}
