package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/CZERTAINLY/rootshell/internal/log"
	"github.com/CZERTAINLY/rootshell/internal/shell"

	"github.com/spf13/cobra"
)

// exitCodeError makes rootsh exit with the code of the executed job.
type exitCodeError int

func (e exitCodeError) Error() string {
	return "job exited with code " + strconv.Itoa(int(e))
}

var execCmd = &cobra.Command{
	Use:   "exec [command...]",
	Short: "exec runs the commands in the main shell, - reads a script from stdin",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doExec,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "probe builds the main shell and reports its classification",
	Args:  cobra.NoArgs,
	RunE:  doProbe,
}

func doExec(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("rootsh",
		slog.String("cmd", "exec"),
		slog.Int("pid", os.Getpid()),
	))

	registry := shell.NewRegistry(config.Builder())
	defer func() {
		_ = registry.Close()
	}()

	var job *shell.Job
	if len(args) == 1 && args[0] == "-" {
		job = registry.CmdReader(os.Stdin)
	} else {
		job = registry.Cmd(args...)
	}

	stdout := shell.SinkFunc(func(line string) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
	})
	stderr := shell.SinkFunc(func(line string) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), line)
	})
	if config.Shell.RedirectStderr {
		stderr = stdout
	}

	res := job.To(stdout, stderr).Exec(ctx)
	slog.DebugContext(ctx, "job finished", "code", res.Code)
	if res.Code == shell.JobNotExecuted {
		return fmt.Errorf("job not executed")
	}
	if !res.IsSuccess() {
		return exitCodeError(res.Code)
	}
	return nil
}

func doProbe(cmd *cobra.Command, _ []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("rootsh",
		slog.String("cmd", "probe"),
		slog.Int("pid", os.Getpid()),
	))

	registry := shell.NewRegistry(config.Builder())
	defer func() {
		_ = registry.Close()
	}()

	p, err := registry.Get(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "argv:   %v\n", p.Argv())
	_, _ = fmt.Fprintf(out, "pid:    %d\n", p.Pid())
	_, _ = fmt.Fprintf(out, "status: %s\n", p.Status())
	_, _ = fmt.Fprintf(out, "root:   %s\n", registry.IsAppGrantedRoot())
	return nil
}
