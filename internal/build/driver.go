package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cruciblehq/cruxpack/internal"
	"github.com/cruciblehq/cruxpack/internal/artifact"
	"github.com/cruciblehq/cruxpack/internal/backend"
	"github.com/cruciblehq/cruxpack/internal/cleanup"
	"github.com/cruciblehq/cruxpack/internal/codesign"
	"github.com/cruciblehq/cruxpack/internal/metadata"
	"github.com/cruciblehq/cruxpack/internal/paths"
	"github.com/cruciblehq/cruxpack/internal/pipeline"
	"github.com/cruciblehq/cruxpack/internal/platform"
	"github.com/cruciblehq/cruxpack/internal/repoinfo"
)

// Phase of a build, reported in debug logs.
type phase string

const (
	phaseLoading      phase = "loading"
	phaseValidating   phase = "validating"
	phaseInstalling   phase = "installing"
	phasePackaging    phase = "packaging"
	phaseDistributing phase = "distributing"
	phaseCleaningUp   phase = "cleaning up"
)

// Platform selected for a build with its normalized architectures.
type target struct {
	platform platform.Platform
	archs    []platform.Arch
}

// Holds the state of one build.
type driver struct {
	opts      Options
	cleanup   *cleanup.Registry   // Teardown actions registered during the build, drained once.
	queue     *pipeline.Queue     // Deferred distributable tasks.
	collector *artifact.Collector // Every artifact emitted.
	wine      *pendingCheck       // Background wine check, started at most once.

	project         *metadata.Project
	electronVersion string
	targets         []target
	targetTokens    []string
	output          string
}

// Creates a new [driver] from the given options.
func newDriver(opts Options) *driver {
	return &driver{
		opts:      opts,
		cleanup:   cleanup.New(),
		queue:     pipeline.NewQueue(),
		collector: &artifact.Collector{},
	}
}

func (d *driver) enter(p phase, attrs ...any) {
	slog.Debug("build phase", append([]any{"phase", string(p)}, attrs...)...)
}

// Runs the build end-to-end and drains the cleanup registry.
//
// The primary failure wins over cleanup failures, which are attached to it.
// After a successful build, cleanup failures are the reported error.
func (d *driver) run(ctx context.Context) (*Result, error) {
	result, err := d.build(ctx)

	d.enter(phaseCleaningUp, "tasks", d.cleanup.Len())
	cleanupErr := d.cleanup.Drain(context.WithoutCancel(ctx))
	if cleanupErr == nil {
		return result, err
	}

	var agg *cleanup.AggregateError
	if !errors.As(cleanupErr, &agg) {
		agg = &cleanup.AggregateError{Errs: []error{cleanupErr}}
	}
	if err != nil {
		return nil, &RunError{Err: err, Cleanup: agg}
	}
	return nil, agg
}

func (d *driver) build(ctx context.Context) (*Result, error) {
	d.enter(phaseLoading, "project", d.opts.ProjectDir)
	if err := d.load(); err != nil {
		return nil, err
	}

	d.enter(phaseValidating)
	if err := d.validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(d.output, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	bc := d.context()
	for _, t := range d.targets {
		if err := d.buildPlatform(ctx, bc, t); err != nil {
			return nil, err
		}
	}

	d.enter(phaseDistributing, "tasks", d.queue.Len())
	if err := d.queue.Run(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	return &Result{Output: d.output, Artifacts: d.collector.Events()}, nil
}

// Loads the descriptors with the override merged in.
func (d *driver) load() error {
	project, err := metadata.NewOSLoader(d.opts.ProjectDir).Load(metadata.LoadOptions{
		AppDir:   d.opts.AppDir,
		Override: d.opts.Override,
	})
	if err != nil {
		return err
	}
	d.project = project
	d.output = project.OutputDir(d.opts.Output)
	return nil
}

// Normalizes the request and validates the descriptors. Nothing is written
// before this succeeds.
func (d *driver) validate() error {
	host := d.opts.Host

	platforms, err := platform.NormalizePlatforms(d.opts.Platforms, host)
	if err != nil {
		return err
	}
	d.targetTokens = platform.NormalizeTargets(d.opts.Targets)

	for _, p := range platforms {
		archs, err := platform.NormalizeArchs(p, d.opts.Arch, host)
		if err != nil {
			return err
		}
		d.targets = append(d.targets, target{platform: p, archs: archs})
	}

	if err := metadata.Validate(d.project, metadata.ValidateOptions{
		Platforms: platforms,
		Dist:      d.opts.Dist,
	}); err != nil {
		return err
	}

	if d.electronVersion, err = d.project.ElectronVersion(); err != nil {
		return err
	}

	if d.opts.Factory == nil {
		for _, p := range platforms {
			if err := pipeline.CheckTargets(d.project, p, d.targetTokens); err != nil {
				return err
			}
		}
	}
	return nil
}

// Returns the context shared by every pipeline of this build.
func (d *driver) context() *pipeline.Context {
	repo := d.opts.Repository
	if repo == nil {
		var declared []string
		for _, r := range []*metadata.Repository{d.project.Metadata.Repository, d.project.DevMetadata.Repository} {
			if r != nil {
				declared = append(declared, r.URL)
			}
		}
		repo = repoinfo.NewGitProvider(d.project.Dir, declared...)
	}

	return &pipeline.Context{
		Project:         d.project,
		ElectronVersion: d.electronVersion,
		Options: pipeline.Options{
			Targets:                 d.targetTokens,
			Dist:                    d.opts.Dist,
			Sign:                    d.opts.Sign,
			CscLink:                 d.opts.CscLink,
			CscKeyPassword:          d.opts.CscKeyPassword,
			CscInstallerLink:        d.opts.CscInstallerLink,
			CscInstallerKeyPassword: d.opts.CscInstallerKeyPassword,
		},
		Host:       d.opts.Host,
		Tools:      d.opts.Tools,
		Runner:     d.opts.Runner,
		Fetcher:    &codesign.Fetcher{UserAgent: internal.UserAgent(), Cleanup: d.cleanup},
		Cleanup:    d.cleanup,
		Events:     artifact.NewEmitter(append([]artifact.Listener{d.collector.Listen}, d.opts.Listeners...)...),
		Repository: repo,
		Getenv:     d.opts.Getenv,
		Now:        d.opts.Now,
		ScratchDir: d.opts.ScratchDir,
	}
}

// Creates the pipeline for one platform and packages every architecture.
func (d *driver) buildPlatform(ctx context.Context, bc *pipeline.Context, t target) error {
	p := t.platform
	slog.Info("building platform", "platform", p.ConfigKey, "archs", t.archs)

	factory := d.opts.Factory
	if factory == nil {
		factory = pipeline.New
		if p == platform.Windows && !d.opts.Host.Is(platform.Windows) && d.wine == nil {
			d.wine = startCheck(ctx, func(ctx context.Context) error {
				return checkWine(ctx, d.opts.Runner)
			})
		}
	}

	pl, err := factory(ctx, bc, p)
	if err != nil {
		return fmt.Errorf("%w: platform %s: %w", ErrBuild, p, err)
	}

	for _, arch := range t.archs {
		if err := d.buildArch(ctx, pl, arch); err != nil {
			return fmt.Errorf("%w: platform %s, arch %s: %w", ErrBuild, p, arch, err)
		}
	}
	return nil
}

// Installs dependencies and packages one architecture.
func (d *driver) buildArch(ctx context.Context, pl pipeline.Pipeline, arch platform.Arch) error {
	p := pl.Platform()

	d.enter(phaseInstalling, "platform", p.ConfigKey, "arch", arch)
	if err := d.installDependencies(ctx, p, arch); err != nil {
		return err
	}

	if p == platform.Windows {
		if err := d.wine.wait(); err != nil {
			return err
		}
	}

	d.enter(phasePackaging, "platform", p.ConfigKey, "arch", arch)
	return pl.Pack(ctx, d.output, arch, d.queue)
}

// Rebuilds native dependencies for the target architecture.
//
// Skipped for single-package projects, whose dependency tree includes the
// build tooling, and when the target OS differs from the host OS, since the
// rebuilt modules would be for the wrong system.
func (d *driver) installDependencies(ctx context.Context, p platform.Platform, arch platform.Arch) error {
	switch {
	case !d.opts.NpmRebuild:
		slog.Debug("skipping dependency install, disabled", "platform", p.ConfigKey, "arch", arch)
		return nil
	case !d.project.TwoPackageLayout():
		slog.Info("skipping dependency install, single package layout", "platform", p.ConfigKey, "arch", arch)
		return nil
	case !d.opts.Host.Is(p):
		slog.Info("skipping dependency install, cross-platform build", "platform", p.ConfigKey, "arch", arch, "host", d.opts.Host.OS)
		return nil
	}

	slog.Info("installing app dependencies", "platform", p.ConfigKey, "arch", arch, "dir", d.project.AppDir)
	return d.opts.Tools.Deps.Install(ctx, backend.InstallOptions{
		AppDir:          d.project.AppDir,
		ElectronVersion: d.electronVersion,
		Arch:            arch,
	})
}
