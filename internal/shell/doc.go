// Package shell runs jobs against a long-lived shell subprocess.
//
// Overview
// A Process owns one spawned shell (su --mount-master, su or sh) and its
// three pipes. It is classified once by a handshake: the process must echo a
// marker back and its id output decides between root and non-root.
//
// Jobs are compiled to Tasks. A scheduler per Process guarantees exactly one
// Task touches the pipes at a time, in FIFO order, for blocking (Exec) and
// background (Submit, Enqueue) submissions alike.
//
// Wire protocol: after the job's own lines the trailer
//
//	__RET=$?;echo <sentinel>;echo <sentinel> >&2;echo $__RET;unset __RET
//
// is written to stdin. Two gobblers drain stdout and stderr concurrently until
// each sees the sentinel; the stdout gobbler then reads the exit code.
//
// Data flow:
//
//   Job             scheduler            Process             gobblers
//    |                  |                   |                   |
//   Exec/Submit ------->| exec/submit       |                   |
//    |                  | runTask --------->| wake + Task.Run   |
//    |                  |                   | stdin: cmds+trailer
//    |                  |                   |------------------>| stdout, stderr
//    |                  |                   |<---- exit code ---|
//    |<----- Result ----| next task         |                   |
//
// The Registry caches the main shell, rebuilds it when it dies and backs the
// Cmd jobs, which acquire the shell only when they run and retry once on a
// shell found dead.
//
// Invariants:
//   - Result.Code is JobNotExecuted iff the job never ran to completion.
//   - A Task observing a broken pipe releases its Process.
//   - Queued tasks of a dead Process get ShellDied, never I/O.
//   - A shell is never interrupted mid-job, Future.Cancel only skips jobs
//     which have not started.
package shell
