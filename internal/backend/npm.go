package backend

import (
	"context"
	"fmt"

	"github.com/cruciblehq/cruxpack/internal/paths"
	"github.com/cruciblehq/cruxpack/internal/runtime"
)

// Headers used to build native modules against Electron.
const ElectronDistURL = "https://atom.io/download/atom-shell"

// [DependencyInstaller] rebuilding native modules with npm.
type Npm struct {
	runner  runtime.Runner
	program string
}

// Creates a new [Npm].
func NewNpm(runner runtime.Runner) *Npm {
	return &Npm{runner: runner, program: "npm"}
}

// Rebuilds the dependencies of opts.AppDir for the Electron runtime.
func (n *Npm) Install(ctx context.Context, opts InstallOptions) error {
	if _, err := runtime.Run(ctx, n.runner, n.Command(opts)); err != nil {
		return fmt.Errorf("%w: npm: %w", ErrBackend, err)
	}
	return nil
}

// Returns the rebuild invocation. Headers are cached under
// [paths.ElectronGyp] instead of the user's node-gyp directory.
func (n *Npm) Command(opts InstallOptions) runtime.Command {
	return runtime.Command{
		Program: n.program,
		Args:    []string{"rebuild"},
		Dir:     opts.AppDir,
		Env: map[string]string{
			"npm_config_disturl": ElectronDistURL,
			"npm_config_target":  opts.ElectronVersion,
			"npm_config_runtime": "electron",
			"npm_config_arch":    opts.Arch.String(),
			"HOME":               paths.ElectronGyp(),
		},
		Stream: true,
	}
}
