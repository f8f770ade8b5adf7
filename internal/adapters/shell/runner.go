// Package shell runs command steps as processes inside an environment.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	// DefaultTailSize is how many bytes of combined output a result keeps.
	DefaultTailSize = 64 << 10
	// DefaultWaitDelay bounds how long Run waits for output pipes after the
	// shell exits or the process group has been killed.
	DefaultWaitDelay = 5 * time.Second
)

var _ ports.StepRunner = (*Runner)(nil)

// Runner implements ports.StepRunner.
type Runner struct {
	logger    ports.Logger
	tailSize  int
	waitDelay time.Duration
}

// NewRunner creates a Runner.
func NewRunner(logger ports.Logger) *Runner {
	return &Runner{
		logger:    logger,
		tailSize:  DefaultTailSize,
		waitDelay: DefaultWaitDelay,
	}
}

// Run executes step inside env.
// The process sees the environment defaults, then vars, then the step's own
// variables, in increasing precedence. Output is streamed to out and the last
// DefaultTailSize bytes are kept on the result.
func (r *Runner) Run(
	ctx context.Context, env ports.Environment, step domain.CommandStep, vars []string, out io.Writer,
) domain.StepResult {
	start := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	if step.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, step.Timeout)
	}
	defer cancel()

	cmd, err := env.Command(runCtx, ports.CommandRequest{
		Script: step.Command,
		Dir:    step.WorkingDir,
		Env:    domain.MergeEnv(vars, domain.EnvList(step.Environment)),
	})
	if err != nil {
		return domain.StepResult{
			ExitCode: -1,
			Duration: time.Since(start),
			Err:      errors.Join(domain.ErrCommandStartFailed, err),
		}
	}

	if out == nil {
		out = io.Discard
	}
	tail := newTailBuffer(r.tailSize)
	w := io.MultiWriter(tail, out)
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.WaitDelay = r.waitDelay
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return domain.StepResult{
			ExitCode: -1,
			Duration: time.Since(start),
			Err:      errors.Join(domain.ErrCommandStartFailed, zerr.With(err, "command", step.DisplayName())),
		}
	}

	waitErr := cmd.Wait()
	res := domain.StepResult{
		ExitCode: exitCode(cmd, waitErr),
		Output:   tail.Bytes(),
		Duration: time.Since(start),
	}

	switch {
	case ctx.Err() != nil:
		res.Canceled = true
		res.Err = zerr.Wrap(domain.ErrJobCanceled, "command interrupted")
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.Err = zerr.With(zerr.Wrap(domain.ErrCommandTimedOut, "command timed out"), "timeout", step.Timeout.String())
		r.logger.Warn(fmt.Sprintf("%s timed out after %s", step.DisplayName(), step.Timeout))
	case res.ExitCode != 0:
		res.Err = zerr.With(zerr.Wrap(domain.ErrCommandFailed, "command failed"), "exit_code", res.ExitCode)
	case errors.Is(waitErr, exec.ErrWaitDelay):
		// The shell exited 0 but a background child still holds its output.
		r.logger.Warn(fmt.Sprintf("%s exited but left a process holding its output; later output is dropped",
			step.DisplayName()))
	case waitErr != nil:
		res.ExitCode = -1
		res.Err = errors.Join(domain.ErrCommandFailed, waitErr)
	}
	return res
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
