package shell

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
)

// gobbler drains one pipe of a running job until the sentinel shows up.
// Both gobblers of a job share mx, so a sink given for stdout and stderr
// never sees concurrent appends.
type gobbler struct {
	r      *bufio.Reader
	sink   Sink
	mx     *sync.Mutex
	stdout bool
}

// drain returns the job exit code for the stdout gobbler, JobNotExecuted for
// stderr. An error means the pipe broke before the sentinel was read.
func (g gobbler) drain() (int, error) {
	for {
		line, err := readLine(g.r)
		if err != nil {
			return JobNotExecuted, err
		}

		payload, done := cutSentinel(line)
		if !done {
			g.emit(line)
			continue
		}
		if payload != "" {
			g.emit(payload)
		}
		if !g.stdout {
			return JobNotExecuted, nil
		}

		status, err := readLine(g.r)
		if err != nil {
			return JobNotExecuted, nil
		}
		return parseExitCode(status), nil
	}
}

func (g gobbler) emit(line string) {
	if g.sink == nil {
		return
	}
	g.mx.Lock()
	g.sink.OnLine(line)
	g.mx.Unlock()
}

// readLine returns a line without its terminator. A last unterminated line
// is returned before io.EOF.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}
