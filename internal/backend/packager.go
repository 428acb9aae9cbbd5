package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cruciblehq/cruxpack/internal/paths"
	"github.com/cruciblehq/cruxpack/internal/runtime"
)

// [Packager] backed by the electron-packager command line tool.
type ElectronPackager struct {
	runner  runtime.Runner
	program string
	debug   bool
}

// Creates a new [ElectronPackager].
func NewElectronPackager(runner runtime.Runner, debug bool) *ElectronPackager {
	return &ElectronPackager{runner: runner, program: "electron-packager", debug: debug}
}

// Packages the application and moves the result to opts.OutDir.
//
// The tool names its output "<name>-<platform>-<arch>" under the parent of
// OutDir; any previous bundle at OutDir is replaced.
func (p *ElectronPackager) Pack(ctx context.Context, opts BundleOptions) (string, error) {
	if err := ensureParent(opts.OutDir); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackend, err)
	}

	cmd := p.Command(opts)
	if _, err := runtime.Run(ctx, p.runner, cmd); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackend, err)
	}

	generated := filepath.Join(filepath.Dir(opts.OutDir), fmt.Sprintf("%v-%v-%v",
		opts.Options["name"], opts.Options["platform"], opts.Options["arch"]))
	if generated == opts.OutDir {
		return opts.OutDir, nil
	}

	if _, err := os.Stat(generated); errors.Is(err, os.ErrNotExist) {
		// The tool honored a custom output name already.
		return opts.OutDir, nil
	}
	if err := os.RemoveAll(opts.OutDir); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackend, err)
	}
	if err := os.Rename(generated, opts.OutDir); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return opts.OutDir, nil
}

// Returns the packaging invocation.
func (p *ElectronPackager) Command(opts BundleOptions) runtime.Command {
	args := []string{opts.AppDir, fmt.Sprint(opts.Options["name"]), "--out=" + filepath.Dir(opts.OutDir), "--overwrite"}
	args = append(args, Flags(opts.Options, "name", "dir", "out", "overwrite")...)
	return runtime.Command{
		Program: p.program,
		Args:    args,
		Dir:     opts.AppDir,
		Stream:  p.debug,
	}
}

// Makes sure the parent of a bundle directory exists.
func ensureParent(dir string) error {
	return os.MkdirAll(filepath.Dir(dir), paths.DefaultDirMode)
}
