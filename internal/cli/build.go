package cli

import (
	"context"
	"log/slog"
	"slices"

	"github.com/cruciblehq/cruxpack/internal"
	"github.com/cruciblehq/cruxpack/internal/build"
	"github.com/cruciblehq/cruxpack/internal/metadata"
	"github.com/cruciblehq/cruxpack/internal/platform"
)

// Represents the 'cruxpack build' command.
type BuildCmd struct {
	Platform []string `short:"p" sep:"," help:"Target platforms: osx, win, linux or all. Defaults to the current platform." placeholder:"PLATFORM"`
	Osx      bool     `name:"osx" help:"Build for macOS."`
	Win      bool     `name:"win" help:"Build for Windows."`
	Linux    bool     `name:"linux" help:"Build for Linux."`

	Arch string `short:"a" help:"Target architecture: ia32, x64 or all. Defaults to the current architecture." placeholder:"ARCH"`
	X64  bool   `name:"x64" help:"Build for x64."`
	IA32 bool   `name:"ia32" help:"Build for ia32."`

	Target []string `short:"t" sep:"," help:"Target formats, e.g. dmg, zip, deb. Defaults to the platform default." placeholder:"TARGET"`

	Dist       bool `default:"true" negatable:"" help:"Create distributables, not only packaged directories."`
	NpmRebuild bool `name:"npm-rebuild" default:"true" negatable:"" help:"Rebuild native dependencies of two-package projects."`

	Project string `type:"existingdir" default:"." help:"Project directory." placeholder:"DIR"`
	AppDir  string `name:"app-dir" help:"Application directory, relative to the project." placeholder:"DIR"`
	Out     string `short:"o" help:"Output directory." placeholder:"DIR"`
	Config  string `short:"c" type:"existingfile" help:"YAML or JSON document merged over the development package.json." placeholder:"FILE"`

	Sign                    string `help:"macOS signing identity." placeholder:"NAME"`
	CscLink                 string `name:"csc-link" env:"CSC_LINK" help:"Signing certificate: https link, file link or path." placeholder:"LINK"`
	CscKeyPassword          string `name:"csc-key-password" env:"CSC_KEY_PASSWORD" help:"Password of the signing certificate." placeholder:"PASSWORD"`
	CscInstallerLink        string `name:"csc-installer-link" env:"CSC_INSTALLER_LINK" help:"macOS installer signing certificate." placeholder:"LINK"`
	CscInstallerKeyPassword string `name:"csc-installer-key-password" env:"CSC_INSTALLER_KEY_PASSWORD" help:"Password of the installer certificate." placeholder:"PASSWORD"`
}

// Executes the build command.
func (c *BuildCmd) Run(ctx context.Context) error {
	var override map[string]any
	if c.Config != "" {
		var err error
		if override, err = metadata.ReadOverride(c.Config); err != nil {
			return err
		}
	}

	result, err := build.Run(ctx, build.Options{
		ProjectDir:              c.Project,
		AppDir:                  c.AppDir,
		Override:                override,
		Output:                  c.Out,
		Platforms:               c.platforms(),
		Arch:                    c.arch(),
		Targets:                 c.Target,
		Dist:                    c.Dist,
		NpmRebuild:              c.NpmRebuild,
		Sign:                    c.Sign,
		CscLink:                 c.CscLink,
		CscKeyPassword:          c.CscKeyPassword,
		CscInstallerLink:        c.CscInstallerLink,
		CscInstallerKeyPassword: c.CscInstallerKeyPassword,
		Debug:                   internal.IsDebug(),
	})
	if err != nil {
		return err
	}

	slog.Info("build finished", "output", result.Output, "artifacts", len(result.Artifacts))
	return nil
}

// Returns the platform tokens with the shorthand flags appended.
func (c *BuildCmd) platforms() []string {
	tokens := slices.Clone(c.Platform)
	for _, f := range []struct {
		set bool
		p   platform.Platform
	}{
		{c.Osx, platform.MacOS},
		{c.Win, platform.Windows},
		{c.Linux, platform.Linux},
	} {
		if f.set && !slices.Contains(tokens, f.p.ConfigKey) {
			tokens = append(tokens, f.p.ConfigKey)
		}
	}
	return tokens
}

// Returns the architecture token; the shorthand flags win over --arch.
func (c *BuildCmd) arch() string {
	switch {
	case c.X64 && c.IA32:
		return "all"
	case c.X64:
		return platform.X64.String()
	case c.IA32:
		return platform.IA32.String()
	default:
		return c.Arch
	}
}
