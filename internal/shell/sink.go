package shell

import (
	"slices"
	"sync"
)

// Sink receives output lines of a job, without the trailing newline.
type Sink interface {
	OnLine(line string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(line string)

func (f SinkFunc) OnLine(line string) {
	f(line)
}

// Lines is a Sink collecting lines in memory. It is safe for concurrent use,
// so one Lines may receive both stdout and stderr of a job.
type Lines struct {
	mx    sync.Mutex
	lines []string
}

func NewLines() *Lines {
	return &Lines{}
}

func (l *Lines) OnLine(line string) {
	l.mx.Lock()
	l.lines = append(l.lines, line)
	l.mx.Unlock()
}

// Lines returns a copy of the collected lines.
func (l *Lines) Lines() []string {
	l.mx.Lock()
	defer l.mx.Unlock()
	return slices.Clone(l.lines)
}

func (l *Lines) Len() int {
	l.mx.Lock()
	defer l.mx.Unlock()
	return len(l.lines)
}
