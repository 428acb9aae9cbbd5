package backend

import (
	"context"
	"fmt"

	"github.com/cruciblehq/cruxpack/internal/runtime"
)

// [LinuxConverter] backed by fpm.
type Fpm struct {
	runner  runtime.Runner
	program string
	debug   bool
}

// Creates a new [Fpm].
func NewFpm(runner runtime.Runner, debug bool) *Fpm {
	return &Fpm{runner: runner, program: "fpm", debug: debug}
}

func (f *Fpm) Convert(ctx context.Context, opts ConvertOptions) error {
	if _, err := runtime.Run(ctx, f.runner, f.Command(opts)); err != nil {
		return fmt.Errorf("%w: fpm: %w", ErrBackend, err)
	}
	return nil
}

// Returns the conversion invocation.
func (f *Fpm) Command(opts ConvertOptions) runtime.Command {
	args := append([]string{"-s", "dir", "-t", opts.Target}, opts.Args...)
	return runtime.Command{
		Program: f.program,
		Args:    args,
		Stream:  f.debug,
	}
}
