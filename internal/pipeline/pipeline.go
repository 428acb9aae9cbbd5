package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/cruciblehq/cruxpack/internal/artifact"
	"github.com/cruciblehq/cruxpack/internal/backend"
	"github.com/cruciblehq/cruxpack/internal/cleanup"
	"github.com/cruciblehq/cruxpack/internal/codesign"
	"github.com/cruciblehq/cruxpack/internal/metadata"
	"github.com/cruciblehq/cruxpack/internal/paths"
	"github.com/cruciblehq/cruxpack/internal/platform"
	"github.com/cruciblehq/cruxpack/internal/repoinfo"
	"github.com/cruciblehq/cruxpack/internal/runtime"
)

// Packages an application for one operating system.
//
// Pack packages one architecture into outDir, signs the result where the
// platform requires it and pushes the distributable step onto queue instead
// of running it.
type Pipeline interface {
	Platform() platform.Platform
	Targets() []string
	Pack(ctx context.Context, outDir string, arch platform.Arch, queue *Queue) error
}

// Creates the pipeline for a platform.
type Factory func(ctx context.Context, bc *Context, p platform.Platform) (Pipeline, error)

// Request options the pipelines read.
type Options struct {
	Targets                 []string // Normalized command line targets, nil for the default.
	Dist                    bool     // Produce distributables, not only packaged directories.
	Sign                    string   // Explicit macOS signing identity.
	CscLink                 string   // Embedded signing certificate (p12) link.
	CscKeyPassword          string   // Password of CscLink.
	CscInstallerLink        string   // Embedded macOS installer certificate link.
	CscInstallerKeyPassword string   // Password of CscInstallerLink.
}

// Returns true if an embedded certificate and its password were supplied.
func (o Options) HasCertificate() bool {
	return o.CscLink != "" && o.CscKeyPassword != ""
}

// Shared build context handed to every pipeline.
type Context struct {
	Project         *metadata.Project   // Loaded and validated descriptors.
	ElectronVersion string              // Runtime version to package.
	Options         Options             // Request options.
	Host            platform.Host       // Build machine.
	Tools           backend.Tools       // External collaborators.
	Runner          runtime.Runner      // Process runner for keychain management.
	Fetcher         *codesign.Fetcher   // Signing certificate source.
	Cleanup         *cleanup.Registry   // Teardown actions for resources pipelines create.
	Events          *artifact.Emitter   // Artifact event sink.
	Repository      repoinfo.Provider   // Optional repository metadata.
	Getenv          func(string) string // Environment lookup. Defaults to os.Getenv.
	Now             func() time.Time    // Clock for copyright years. Defaults to time.Now.
	ScratchDir      string              // Parent of generated files. Defaults to [paths.Scratch].
}

func (c *Context) getenv(key string) string {
	if c.Getenv == nil {
		return os.Getenv(key)
	}
	return c.Getenv(key)
}

// Creates a new scratch directory.
func (c *Context) mkScratch(prefix string) (string, error) {
	if c.ScratchDir == "" {
		return paths.MkScratch(prefix)
	}
	return os.MkdirTemp(c.ScratchDir, prefix)
}

func (c *Context) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Creates the built-in pipeline for p.
func New(ctx context.Context, bc *Context, p platform.Platform) (Pipeline, error) {
	switch p {
	case platform.MacOS:
		return NewMac(ctx, bc)
	case platform.Windows:
		return NewWindows(ctx, bc)
	case platform.Linux:
		return NewLinux(ctx, bc)
	default:
		return nil, &platform.UnknownPlatformError{Token: p.ConfigKey}
	}
}

// Returns the targets p supports in addition to [CommonTargets].
func SupportedTargets(p platform.Platform) []string {
	switch p {
	case platform.MacOS:
		return MacTargets
	case platform.Linux:
		return LinuxTargets
	default:
		return nil
	}
}

// Checks the targets a built-in pipeline for p would resolve, without
// creating the pipeline.
func CheckTargets(project *metadata.Project, p platform.Platform, requested []string) error {
	options := project.Build().Map(p.ConfigKey)
	_, err := resolveTargets(p, options, requested, SupportedTargets(p))
	return err
}
