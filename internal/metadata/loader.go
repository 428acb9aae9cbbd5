package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/cruciblehq/cruxpack/internal/paths"
)

// Conventional application directory of two-package projects.
const defaultAppDir = "app"

// Resolved project descriptors.
//
// In a single-package project App and Dev point to the same [Document].
type Project struct {
	Dir         string      // Absolute project directory.
	AppDir      string      // Absolute application directory.
	Dev         *Document   // Development descriptor, owns the build configuration.
	App         *Document   // Application descriptor.
	Metadata    AppMetadata // Decoded application descriptor.
	DevMetadata DevMetadata // Decoded development descriptor.

	fs billy.Filesystem
}

// Returns true if the application has its own descriptor.
func (p *Project) TwoPackageLayout() bool {
	return p.Dev != p.App
}

// Returns the build configuration of the development descriptor.
func (p *Project) Build() Options {
	return p.Dev.Build()
}

// Returns the application display name: build.productName, else the
// application productName, else the application name.
func (p *Project) ProductName() string {
	if name := p.Build().String("productName"); name != "" {
		return name
	}
	if p.Metadata.ProductName != "" {
		return p.Metadata.ProductName
	}
	return p.Metadata.Name
}

// Returns the absolute build resources directory.
func (p *Project) BuildResourcesDir() string {
	return p.resolve(p.DevMetadata.Directories.BuildResources, paths.DefaultBuildResourcesDir)
}

// Returns the absolute output directory. An explicit dir wins over the
// descriptor.
func (p *Project) OutputDir(explicit string) string {
	if explicit != "" {
		return p.resolve(explicit, "")
	}
	return p.resolve(p.DevMetadata.Directories.Output, paths.DefaultOutputDir)
}

func (p *Project) resolve(dir, fallback string) string {
	if dir == "" {
		dir = fallback
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(p.Dir, dir)
}

// Options for [Loader.Load].
type LoadOptions struct {
	AppDir   string         // Explicit application directory, absolute or relative to the project.
	Override map[string]any // Deep-merged over the development descriptor.
}

// Reads project descriptors from a filesystem rooted at the project
// directory.
type Loader struct {
	fs  billy.Filesystem // Project filesystem.
	dir string           // Absolute project directory, for paths in messages and results.
}

// Creates a new [Loader] over fs, which must be rooted at dir.
func NewLoader(fs billy.Filesystem, dir string) *Loader {
	return &Loader{fs: fs, dir: filepath.Clean(dir)}
}

// Creates a new [Loader] over the host filesystem.
func NewOSLoader(dir string) *Loader {
	return NewLoader(osfs.New(dir), dir)
}

// Loads the development descriptor, applies the override and resolves the
// application descriptor.
//
// The application directory is the explicit option, else
// directories.app, else "app" if it holds a descriptor, else the project
// root. When it is the project root, the application descriptor is the
// development descriptor itself.
func (l *Loader) Load(opts LoadOptions) (*Project, error) {
	dev, err := l.read(DescriptorName)
	if err != nil {
		return nil, err
	}
	if len(opts.Override) > 0 {
		dev.Raw = Merge(dev.Raw, opts.Override)
	}

	p := &Project{Dir: l.dir, Dev: dev, fs: l.fs}
	if err := dev.Decode(&p.DevMetadata); err != nil {
		return nil, err
	}

	rel, err := l.appDir(opts.AppDir, p.DevMetadata.Directories.App)
	if err != nil {
		return nil, err
	}
	p.AppDir = filepath.Join(l.dir, filepath.FromSlash(rel))

	if rel == "." {
		p.App = dev
	} else if p.App, err = l.read(path.Join(rel, DescriptorName)); err != nil {
		return nil, err
	}

	if err := p.App.Decode(&p.Metadata); err != nil {
		return nil, err
	}

	slog.Debug("project metadata loaded", "dir", p.Dir, "app", p.AppDir, "twoPackageLayout", p.TwoPackageLayout())
	return p, nil
}

// Returns the application directory relative to the project root, in slash
// form.
func (l *Loader) appDir(explicit, declared string) (string, error) {
	userDir := explicit
	if userDir == "" {
		userDir = declared
	}

	if userDir == "" {
		if l.exists(path.Join(defaultAppDir, DescriptorName)) {
			return defaultAppDir, nil
		}
		return ".", nil
	}

	abs := userDir
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(l.dir, abs)
	}
	rel, err := filepath.Rel(l.dir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: application directory %q must be inside the project directory %q", ErrValidation, userDir, l.dir)
	}
	rel = filepath.ToSlash(rel)

	if rel == "." {
		slog.Warn("specified application directory equals the project directory, superfluous or wrong configuration", "dir", userDir)
		return rel, nil
	}

	info, err := l.fs.Stat(rel)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("%w: application directory %q does not exist", ErrValidation, userDir)
	case err != nil:
		return "", fmt.Errorf("%w: %w", ErrDescriptor, err)
	case !info.IsDir():
		return "", fmt.Errorf("%w: application directory %q is not a directory", ErrValidation, userDir)
	}
	return rel, nil
}

func (l *Loader) exists(name string) bool {
	_, err := l.fs.Stat(name)
	return err == nil
}

func (l *Loader) read(name string) (*Document, error) {
	abs := filepath.Join(l.dir, filepath.FromSlash(name))

	data, err := util.ReadFile(l.fs, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDescriptor, abs, err)
	}

	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDescriptor, abs, err)
	}
	return &Document{Path: abs, Raw: raw}, nil
}
