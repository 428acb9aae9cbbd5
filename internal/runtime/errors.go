package runtime

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRuntime       = errors.New("runtime error")
	ErrCommandFailed = errors.New("command failed")
	ErrNotFound      = errors.New("executable not found")
)

// Describes an external command that exited with a non-zero status.
type CommandError struct {
	Command  Command // Command as it was spawned.
	ExitCode int     // Exit status reported by the process.
	Stderr   string  // Captured standard error, trimmed.
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}

// Returns a [CommandError] for a finished command, or nil on success.
func checkExit(cmd Command, result *ExecResult) error {
	if result.ExitCode == 0 {
		return nil
	}
	return &CommandError{
		Command:  cmd,
		ExitCode: result.ExitCode,
		Stderr:   strings.TrimSpace(result.Stderr),
	}
}
