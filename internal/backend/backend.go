package backend

import (
	"context"
	"errors"

	"github.com/cruciblehq/cruxpack/internal/archive"
	"github.com/cruciblehq/cruxpack/internal/codesign"
	"github.com/cruciblehq/cruxpack/internal/platform"
	"github.com/cruciblehq/cruxpack/internal/runtime"
)

var ErrBackend = errors.New("packaging tool failed")

// Input of [Packager.Pack].
type BundleOptions struct {
	AppDir  string         // Application source directory.
	OutDir  string         // Directory the bundle must end up in.
	Options map[string]any // Packaging options projected from the descriptors.
}

// Materializes an executable bundle from application sources.
type Packager interface {
	Pack(ctx context.Context, opts BundleOptions) (string, error)
}

// Step reported while a disk image is built.
type Progress struct {
	Current int    // 1-based index of the step.
	Total   int    // Number of steps, 0 if unknown.
	Title   string // Human-readable step title.
}

// Input of [DMGBuilder.Build].
type DMGOptions struct {
	Target        string         // Output .dmg file.
	BasePath      string         // Directory relative paths in the specification resolve against.
	Specification map[string]any // Window layout, icon, background and format.
}

// Builds macOS disk images.
//
// Build blocks until the image is written or the tool fails. progress, if
// not nil, receives the steps reported by the tool in order.
type DMGBuilder interface {
	Build(ctx context.Context, opts DMGOptions, progress func(Progress)) error
}

// Builds Squirrel.Windows installers from a fully merged specification.
type InstallerBuilder interface {
	Build(ctx context.Context, spec map[string]any) error
}

// Input of [LinuxConverter.Convert].
type ConvertOptions struct {
	Target string   // Output package format, e.g. "deb".
	Args   []string // Converter arguments, without the format selection.
}

// Converts a packaged directory into a Linux package format.
type LinuxConverter interface {
	Convert(ctx context.Context, opts ConvertOptions) error
}

// Input of [DependencyInstaller.Install].
type InstallOptions struct {
	AppDir          string        // Application directory with its own descriptor.
	ElectronVersion string        // Runtime to build native modules against.
	Arch            platform.Arch // Target architecture.
}

// Installs or rebuilds native application dependencies.
type DependencyInstaller interface {
	Install(ctx context.Context, opts InstallOptions) error
}

// Produces archives from packaged output.
type Archiver interface {
	Archive(ctx context.Context, format string, compression archive.Compression, src, outFile string) error
}

// External collaborators used by the platform pipelines.
type Tools struct {
	Packager  Packager
	DMG       DMGBuilder
	Installer InstallerBuilder
	Converter LinuxConverter
	Deps      DependencyInstaller
	Archiver  Archiver
	MacSigner codesign.MacSigner
	WinSigner codesign.WinSigner
}

// Returns the collaborators backed by command line tools on the host.
func Default(runner runtime.Runner, host platform.Host, debug bool) Tools {
	return Tools{
		Packager:  NewElectronPackager(runner, debug),
		DMG:       NewAppDMG(runner),
		Installer: NewSquirrel(runner, debug),
		Converter: NewFpm(runner, debug),
		Deps:      NewNpm(runner),
		Archiver:  archive.New(runner, archive.Config{HostOS: host.OS, Debug: debug}),
		MacSigner: codesign.NewOSXSign(runner),
		WinSigner: codesign.NewAuthenticode(runner, host.OS),
	}
}

// Returns t with empty fields taken from defaults.
func (t Tools) WithDefaults(defaults Tools) Tools {
	if t.Packager == nil {
		t.Packager = defaults.Packager
	}
	if t.DMG == nil {
		t.DMG = defaults.DMG
	}
	if t.Installer == nil {
		t.Installer = defaults.Installer
	}
	if t.Converter == nil {
		t.Converter = defaults.Converter
	}
	if t.Deps == nil {
		t.Deps = defaults.Deps
	}
	if t.Archiver == nil {
		t.Archiver = defaults.Archiver
	}
	if t.MacSigner == nil {
		t.MacSigner = defaults.MacSigner
	}
	if t.WinSigner == nil {
		t.WinSigner = defaults.WinSigner
	}
	return t
}
