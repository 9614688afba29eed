package shell

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// JobNotExecuted is the Result code of a job that never ran to completion.
const JobNotExecuted = -1

// sentinel marks the end of a job's output on both streams. It is generated
// once per process and never changes.
var sentinel = strings.ReplaceAll(uuid.NewString(), "-", "")

// Sentinel returns the process-wide completion token.
func Sentinel() string {
	return sentinel
}

// trailer is written after all job sources. It keeps the status of the last
// command, emits the sentinel on stdout and stderr and then the status on
// stdout.
func trailer() string {
	return "__RET=$?;echo " + sentinel + ";echo " + sentinel + " >&2;echo $__RET;unset __RET\n"
}

// cutSentinel reports whether line finishes a stream. A line may carry real
// output before the token when the job did not end with a newline.
func cutSentinel(line string) (payload string, done bool) {
	return strings.CutSuffix(line, sentinel)
}

// parseExitCode falls back to JobNotExecuted, the status line is missing when
// the shell dies right after the marker.
func parseExitCode(line string) int {
	code, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return JobNotExecuted
	}
	return code
}
