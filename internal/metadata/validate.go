package metadata

import (
	"log/slog"
	"slices"

	"github.com/cruciblehq/cruxpack/internal/platform"
)

// Build configuration keys the packaging backend sets itself.
var ReservedOptions = []string{"all", "out", "tmpdir", "version", "platform", "dir", "arch", "name"}

// Build request facts that affect validation.
type ValidateOptions struct {
	Platforms []platform.Platform // Platforms being built.
	Dist      bool                // Distributable artifacts are requested.
}

// Checks the project descriptors, failing on the first broken rule.
//
// Rules are applied in a fixed order: required application fields, build
// configuration placement, build configuration presence, author, build
// configuration conflicts, reserved options. Deprecated fields on the
// development descriptor of a two-package project are reported as warnings.
func Validate(p *Project, opts ValidateOptions) error {
	app := &p.Metadata

	switch {
	case app.Name == "":
		return &MissingFieldError{Path: p.App.Path, Field: "name"}
	case app.Description == "":
		return &MissingFieldError{Path: p.App.Path, Field: "description"}
	case app.Version == "":
		return &MissingFieldError{Path: p.App.Path, Field: "version"}
	}

	if p.TwoPackageLayout() {
		if p.App.Has("build") {
			return &MisplacedBuildConfigError{AppPath: p.App.Path, DevPath: p.Dev.Path}
		}
		for _, field := range []string{"homepage", "license"} {
			if p.Dev.Has(field) {
				slog.Warn(field+" in the development package.json is deprecated, please move it to the application package.json", "file", p.Dev.Path)
			}
		}
	}

	build := p.Build()
	if build == nil {
		return &MissingBuildConfigError{Path: p.Dev.Path}
	}

	if app.Author == nil || app.Author.Name == "" {
		return &MissingFieldError{Path: p.App.Path, Field: "author"}
	}
	if opts.Dist && app.Author.Email == "" && slices.Contains(opts.Platforms, platform.Linux) {
		return &MissingFieldError{Path: p.App.Path, Field: "author.email"}
	}

	if build.Has("name") {
		return &ConflictingFieldError{Path: p.Dev.Path, Field: "name"}
	}

	return CheckReservedOptions(build)
}

// Returns a [ReservedOptionError] for the first reserved key in build.
func CheckReservedOptions(build Options) error {
	for _, key := range ReservedOptions {
		if build.Has(key) {
			return &ReservedOptionError{Option: key}
		}
	}
	return nil
}
