package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// Spawns processes on the host.
type Runtime struct {
	stdout io.Writer // Console stream for [Command.Stream] stdout.
	stderr io.Writer // Console stream for [Command.Stream] stderr.
}

// Creates a new [Runtime] mirroring streamed output to the process stdio.
func New() *Runtime {
	return &Runtime{stdout: os.Stdout, stderr: os.Stderr}
}

// Executes a command on the host and waits for it to exit.
func (r *Runtime) Exec(ctx context.Context, cmd Command) (*ExecResult, error) {
	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdin = cmd.Stdin
	if len(cmd.Env) > 0 {
		c.Env = mergeEnv(os.Environ(), cmd.Environ())
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if cmd.Stream {
		c.Stdout = io.MultiWriter(&stdout, r.stdout)
		c.Stderr = io.MultiWriter(&stderr, r.stderr)
	}

	slog.Debug("exec", "command", cmd.String(), "dir", cmd.Dir, "env", cmd.Environ())

	err := c.Run()
	result := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, cmd.Program, err)
	default:
		return nil, fmt.Errorf("%w: %s: %w", ErrRuntime, cmd, err)
	}
}
