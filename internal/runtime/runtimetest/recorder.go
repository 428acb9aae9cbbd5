// Package runtimetest provides a scripted [runtime.Runner] for tests.
package runtimetest

import (
	"context"
	"path/filepath"
	"slices"
	"sync"

	"github.com/cruciblehq/cruxpack/internal/runtime"
)

// Decides the outcome of one recorded command. Returning a nil result and a
// nil error is treated as a successful exit with no output.
type Handler func(cmd runtime.Command) (*runtime.ExecResult, error)

// Records every command it is asked to run.
//
// Handlers are matched by program base name; commands without a handler
// succeed with empty output. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	calls    []runtime.Command
	handlers map[string]Handler
}

// Creates an empty [Recorder].
func New() *Recorder {
	return &Recorder{handlers: make(map[string]Handler)}
}

// Registers the handler for a program, matched by base name.
func (r *Recorder) Handle(program string, h Handler) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[filepath.Base(program)] = h
	return r
}

// Registers a handler that prints stdout and exits zero.
func (r *Recorder) Stdout(program, stdout string) *Recorder {
	return r.Handle(program, func(runtime.Command) (*runtime.ExecResult, error) {
		return &runtime.ExecResult{Stdout: stdout}, nil
	})
}

// Implements [runtime.Runner].
func (r *Recorder) Exec(ctx context.Context, cmd runtime.Command) (*runtime.ExecResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	h := r.handlers[filepath.Base(cmd.Program)]
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h == nil {
		return &runtime.ExecResult{}, nil
	}
	result, err := h(cmd)
	if result == nil && err == nil {
		result = &runtime.ExecResult{}
	}
	return result, err
}

// Returns a copy of all recorded commands in call order.
func (r *Recorder) Calls() []runtime.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Returns the recorded commands whose program base name matches.
func (r *Recorder) CallsTo(program string) []runtime.Command {
	var out []runtime.Command
	for _, c := range r.Calls() {
		if filepath.Base(c.Program) == filepath.Base(program) {
			out = append(out, c)
		}
	}
	return out
}
