package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/cruciblehq/cruxpack/internal/archive"
	"github.com/cruciblehq/cruxpack/internal/artifact"
	"github.com/cruciblehq/cruxpack/internal/asar"
	"github.com/cruciblehq/cruxpack/internal/backend"
	"github.com/cruciblehq/cruxpack/internal/metadata"
	"github.com/cruciblehq/cruxpack/internal/platform"
	"github.com/cruciblehq/cruxpack/internal/repoinfo"
)

const (
	DefaultTarget = "default" // Pseudo-target selecting the platform's default distributables.
	DirTarget     = "dir"     // Packaged directory only, no distributable.
)

// Targets every platform accepts in addition to its own.
var CommonTargets = slices.Concat([]string{DirTarget}, archive.CommonFormats)

// Environment variables CI services expose the build number in, in lookup
// order.
var buildNumberEnv = []string{"TRAVIS_BUILD_NUMBER", "APPVEYOR_BUILD_NUMBER", "CIRCLE_BUILD_NUM", "BUILD_NUMBER"}

// State and stages shared by the platform pipelines.
type base struct {
	bc             *Context
	platform       platform.Platform
	project        *metadata.Project
	build          metadata.Options // Build configuration block.
	options        metadata.Options // Platform block of the build configuration.
	appName        string           // Display name, also the bundle name.
	buildResources string           // Absolute build resources directory.
	targets        []string         // Resolved targets, never empty.
	resources      []string         // File names in buildResources.
}

// Resolves the state every pipeline computes at construction.
//
// Targets declared in the platform block win over the command line ones.
// An unknown target fails construction before any work starts.
func newBase(bc *Context, p platform.Platform, supported []string) (*base, error) {
	build := bc.Project.Build()
	options := build.Map(p.ConfigKey)
	if options == nil {
		options = metadata.Options{}
	}

	targets, err := resolveTargets(p, options, bc.Options.Targets, supported)
	if err != nil {
		return nil, err
	}

	b := &base{
		bc:             bc,
		platform:       p,
		project:        bc.Project,
		build:          build,
		options:        options,
		appName:        bc.Project.ProductName(),
		buildResources: bc.Project.BuildResourcesDir(),
		targets:        targets,
	}

	resources, err := listDir(b.buildResources)
	if err != nil {
		return nil, err
	}
	b.resources = resources
	return b, nil
}

// Returns the targets declared in the platform block, else the requested
// ones, else the default target.
func resolveTargets(p platform.Platform, options metadata.Options, requested, supported []string) ([]string, error) {
	targets := platform.NormalizeTargets(options.Strings("target"))
	if targets == nil {
		targets = requested
	}
	allowed := slices.Concat(supported, CommonTargets)
	for _, t := range targets {
		if t != DefaultTarget && !slices.Contains(allowed, t) {
			return nil, &UnknownTargetError{Platform: p, Target: t, Supported: allowed}
		}
	}
	if len(targets) == 0 {
		targets = []string{DefaultTarget}
	}
	return targets, nil
}

func (b *base) Platform() platform.Platform {
	return b.platform
}

func (b *base) Targets() []string {
	return slices.Clone(b.targets)
}

func (b *base) hasTarget(t string) bool {
	return slices.Contains(b.targets, t)
}

func (b *base) hasOnlyDirTarget() bool {
	return len(b.targets) == 1 && b.targets[0] == DirTarget
}

// Returns true if the build resources directory contains name.
func (b *base) hasResource(name string) bool {
	return slices.Contains(b.resources, name)
}

// Returns the packaged directory for arch: "<out>/<key>" for x64,
// "<out>/<key>-<arch>" otherwise.
func (b *base) appOutDir(outDir string, arch platform.Arch) string {
	return filepath.Join(outDir, b.platform.ConfigKey+arch.Suffix())
}

// Returns the directory extra resources are copied to.
func (b *base) resourcesDir(appOutDir string) string {
	if b.platform == platform.MacOS {
		return filepath.Join(appOutDir, b.appName+".app", "Contents", "Resources")
	}
	return filepath.Join(appOutDir, "resources")
}

// Returns the directory extra files are copied to.
func (b *base) contentDir(appOutDir string) string {
	if b.platform == platform.MacOS {
		return filepath.Join(appOutDir, b.appName+".app", "Contents")
	}
	return appOutDir
}

func (b *base) authorName() string {
	if a := b.project.Metadata.Author; a != nil {
		return a.Name
	}
	return ""
}

// Returns the build number: build-version from the build configuration,
// else the first CI build number found in the environment.
func (b *base) buildNumber() string {
	if n := b.build.String("build-version"); n != "" {
		return n
	}
	for _, key := range buildNumberEnv {
		if n := b.bc.getenv(key); n != "" {
			return n
		}
	}
	return ""
}

// Projects the descriptors onto packaging backend options.
//
// Build configuration keys are merged over the computed values, except the
// platform blocks and keys only meaningful to other stages.
func (b *base) packOptions(outDir string, arch platform.Arch) map[string]any {
	meta := b.project.Metadata
	buildVersion := meta.Version
	if n := b.buildNumber(); n != "" {
		buildVersion += "." + n
	}
	owner := b.authorName()
	if owner == "" {
		owner = b.appName
	}

	opts := map[string]any{
		"dir":           b.project.AppDir,
		"out":           outDir,
		"name":          b.appName,
		"productName":   b.appName,
		"platform":      b.platform.NodeName,
		"arch":          arch.String(),
		"version":       b.bc.ElectronVersion,
		"icon":          filepath.Join(b.buildResources, "icon"),
		"asar":          true,
		"overwrite":     true,
		"app-version":   meta.Version,
		"app-copyright": fmt.Sprintf("Copyright © %d %s", b.bc.now().Year(), owner),
		"build-version": buildVersion,
		"version-string": map[string]any{
			"CompanyName":     b.authorName(),
			"FileDescription": Smarten(meta.Description),
			"ProductName":     b.appName,
			"InternalName":    b.appName,
		},
	}

	skip := slices.Concat(metadata.PlatformKeys, []string{"iconUrl", "osx-sign", "extraResources", "extraFiles", "compression"})
	return metadata.Merge(opts, b.build.Without(skip...))
}

// Runs the packaging backend and checks the produced bundle.
func (b *base) packApp(ctx context.Context, opts map[string]any, appOutDir string) error {
	slog.Info("packaging", "platform", b.platform.ConfigKey, "arch", opts["arch"], "file", appOutDir)

	_, err := b.bc.Tools.Packager.Pack(ctx, backend.BundleOptions{
		AppDir:  b.project.AppDir,
		OutDir:  appOutDir,
		Options: opts,
	})
	if err != nil {
		return err
	}
	return b.sanityCheck(appOutDir, asarEnabled(opts["asar"]))
}

// Packages and copies extra files into the bundle.
func (b *base) doPack(ctx context.Context, opts map[string]any, appOutDir string, arch platform.Arch, custom metadata.Options) error {
	if err := b.packApp(ctx, opts, appOutDir); err != nil {
		return err
	}
	return b.copyExtraFiles(appOutDir, arch, custom)
}

// Verifies the bundle is a directory that contains the application entry
// file, inside app.asar when asar packing is enabled.
func (b *base) sanityCheck(appOutDir string, isAsar bool) error {
	info, err := os.Stat(appOutDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &PackageSanityError{Path: appOutDir, Reason: "does not exist"}
	case err != nil:
		return fmt.Errorf("%w: %w", ErrPipeline, err)
	case !info.IsDir():
		return &PackageSanityError{Path: appOutDir, Reason: "is not a directory"}
	}

	main := b.project.Metadata.MainFile()
	rel, err := filepath.Rel(b.project.AppDir, filepath.Join(b.project.AppDir, main))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	resourcesDir := b.resourcesDir(appOutDir)

	if isAsar {
		file := filepath.Join(resourcesDir, "app.asar")
		a, err := asar.Open(file)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return &PackageSanityError{Path: file, Reason: "does not exist"}
		case err != nil:
			return &PackageSanityError{Path: file, Reason: fmt.Sprintf("is corrupted: %v", err)}
		}
		if e, ok := a.Stat(rel); ok && !e.IsDir() {
			return nil
		}
	} else {
		info, err := os.Stat(filepath.Join(resourcesDir, "app", rel))
		if err == nil && info.Mode().IsRegular() {
			return nil
		}
	}
	return &PackageSanityError{Path: main, Reason: "application entry file could not be found in package"}
}

func asarEnabled(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	default:
		return true
	}
}

// Returns the extra resources (or files) matched for arch, relative to the
// project directory.
//
// Patterns from the build block come first, then those of the platform
// block. "${arch}" and "${os}" are expanded before matching.
func (b *base) extraFiles(resources bool, arch platform.Arch, custom metadata.Options) ([]string, error) {
	key := "extraFiles"
	if resources {
		key = "extraResources"
	}
	patterns := slices.Concat(b.build.Strings(key), custom.Strings(key))
	if len(patterns) == 0 {
		return nil, nil
	}

	expand := strings.NewReplacer("${arch}", arch.String(), "${os}", b.platform.ConfigKey)
	projectFS := osfs.New(b.project.Dir)

	var matches []string
	for _, pattern := range patterns {
		found, err := util.Glob(projectFS, filepath.FromSlash(expand.Replace(pattern)))
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q: %w", ErrPipeline, key, pattern, err)
		}
		for _, m := range found {
			if !slices.Contains(matches, m) {
				matches = append(matches, m)
			}
		}
	}
	return matches, nil
}

// Copies extra resources into the resources directory and extra files into
// the content directory of the bundle.
func (b *base) copyExtraFiles(appOutDir string, arch platform.Arch, custom metadata.Options) error {
	for _, resources := range []bool{true, false} {
		dest := b.contentDir(appOutDir)
		if resources {
			dest = b.resourcesDir(appOutDir)
		}

		files, err := b.extraFiles(resources, arch, custom)
		if err != nil {
			return err
		}
		for _, rel := range files {
			slog.Debug("copying extra file", "file", rel, "dest", dest)
			if err := copyTree(filepath.Join(b.project.Dir, rel), filepath.Join(dest, rel)); err != nil {
				return fmt.Errorf("%w: %w", ErrPipeline, err)
			}
		}
	}
	return nil
}

// Archives the packaged application into outFile using the configured
// compression. On macOS the .app bundle is archived, elsewhere the whole
// directory.
func (b *base) archiveApp(ctx context.Context, format, appOutDir, outFile string) error {
	compression, err := archive.ParseCompression(b.build.String("compression"))
	if err != nil {
		return err
	}
	src := appOutDir
	if b.platform == platform.MacOS {
		src = filepath.Join(appOutDir, b.appName+".app")
	}
	return b.bc.Tools.Archiver.Archive(ctx, format, compression, src, outFile)
}

func (b *base) emit(file, name string) {
	if b.bc.Events == nil {
		return
	}
	b.bc.Events.Emit(artifact.Event{File: file, ArtifactName: name, Platform: b.platform})
}

// Returns the project web page: the application homepage, else the
// development homepage, else the repository URL. Empty if none is known.
func (b *base) packageURL(ctx context.Context) string {
	if u := b.project.Metadata.Homepage; u != "" {
		return u
	}
	if u := b.project.DevMetadata.Homepage; u != "" {
		return u
	}
	if info := b.repositoryInfo(ctx); info != nil {
		return info.URL()
	}
	return ""
}

func (b *base) repositoryInfo(ctx context.Context) *repoinfo.Info {
	if b.bc.Repository == nil {
		return nil
	}
	info, err := b.bc.Repository.RepositoryInfo(ctx)
	if err != nil {
		slog.Debug("repository info unavailable", "error", err)
		return nil
	}
	return info
}

var (
	openingSingle = regexp.MustCompile(`(^|[-\x{2014}\s(\["])'`)
	openingDouble = regexp.MustCompile(`(^|[-\x{2014}/\[(\x{2018}\s])"`)
)

// Replaces straight quotes with typographic ones.
func Smarten(s string) string {
	s = openingSingle.ReplaceAllString(s, "$1‘")
	s = strings.ReplaceAll(s, "'", "’")
	s = openingDouble.ReplaceAllString(s, "$1“")
	s = strings.ReplaceAll(s, `"`, "”")
	return s
}

// Returns the names in dir, or nil if it does not exist.
func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}
