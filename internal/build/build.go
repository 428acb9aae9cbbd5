package build

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cruciblehq/cruxpack/internal/artifact"
	"github.com/cruciblehq/cruxpack/internal/backend"
	"github.com/cruciblehq/cruxpack/internal/pipeline"
	"github.com/cruciblehq/cruxpack/internal/platform"
	"github.com/cruciblehq/cruxpack/internal/repoinfo"
	"github.com/cruciblehq/cruxpack/internal/runtime"
)

// Controls a build.
type Options struct {
	ProjectDir string         // Project root holding the development descriptor. Defaults to the working directory.
	AppDir     string         // Explicit application directory, relative to the project.
	Override   map[string]any // Deep-merged over the development descriptor.
	Output     string         // Explicit output directory.

	Platforms []string // Raw platform tokens; empty selects the host, "all" every buildable platform.
	Arch      string   // Raw architecture token; empty selects the host, "all" ia32 and x64.
	Targets   []string // Raw target tokens; empty selects the platform defaults.
	Dist      bool     // Produce distributables, not only packaged directories.

	NpmRebuild bool // Rebuild native dependencies of two-package projects.

	Sign                    string // Explicit macOS signing identity.
	CscLink                 string // Embedded signing certificate (p12) link.
	CscKeyPassword          string // Password of CscLink.
	CscInstallerLink        string // Embedded macOS installer certificate link.
	CscInstallerKeyPassword string // Password of CscInstallerLink.

	Host       platform.Host       // Build machine. Defaults to the current host.
	Runner     runtime.Runner      // Process runner. Defaults to [runtime.New].
	Tools      backend.Tools       // External collaborators; empty fields use [backend.Default].
	Factory    pipeline.Factory    // Pipeline factory. Defaults to [pipeline.New].
	Repository repoinfo.Provider   // Repository metadata. Defaults to a [repoinfo.GitProvider].
	Listeners  []artifact.Listener // Receive every artifact event.
	Getenv     func(string) string // Environment lookup. Defaults to os.Getenv.
	Now        func() time.Time    // Clock. Defaults to time.Now.
	ScratchDir string              // Parent of generated files. Defaults to [paths.Scratch].
	Debug      bool                // Stream external tool output.
}

// Returned after a successful build.
type Result struct {
	Output    string           // Output directory.
	Artifacts []artifact.Event // Every artifact produced, in emission order.
}

// Packages the project for every requested platform and architecture.
//
// The request and the descriptors are checked before anything is written.
// Platforms are packaged one after the other; distributables are produced
// concurrently once every platform has been packaged. Cleanup tasks
// registered during the build run on every path, after all work has
// settled.
func Run(ctx context.Context, opts Options) (*Result, error) {
	opts, err := withDefaults(opts)
	if err != nil {
		return nil, err
	}

	slog.Info("building",
		"project", opts.ProjectDir,
		"platforms", opts.Platforms,
		"arch", opts.Arch,
		"targets", opts.Targets,
		"dist", opts.Dist,
	)

	return newDriver(opts).run(ctx)
}

// Fills in the defaults of unset options.
func withDefaults(opts Options) (Options, error) {
	if opts.ProjectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return opts, err
		}
		opts.ProjectDir = wd
	}
	if opts.Host == (platform.Host{}) {
		opts.Host = platform.CurrentHost()
	}
	if opts.Runner == nil {
		opts.Runner = runtime.New()
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Tools = opts.Tools.WithDefaults(backend.Default(opts.Runner, opts.Host, opts.Debug))
	return opts, nil
}
