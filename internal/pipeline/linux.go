package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cruciblehq/cruxpack/internal/backend"
	"github.com/cruciblehq/cruxpack/internal/paths"
	"github.com/cruciblehq/cruxpack/internal/platform"
)

// Installer formats produced through the package converter.
var LinuxTargets = []string{"deb", "rpm", "sh", "freebsd", "pacman", "apk", "p5p"}

// Converter format used for the "default" target.
const defaultLinuxTarget = "deb"

// Linux pipeline. Installers are produced by converting the packaged
// directory, other targets are archived.
type Linux struct {
	*base

	mu      sync.Mutex
	scripts *linuxScripts // Generated once, shared by all architectures.
}

// Files installed alongside the application by the converter.
type linuxScripts struct {
	desktop      string // Desktop entry.
	afterInstall string // Script run after installation.
	afterRemove  string // Script run after removal.
}

// Creates the Linux pipeline.
func NewLinux(ctx context.Context, bc *Context) (*Linux, error) {
	b, err := newBase(bc, platform.Linux, LinuxTargets)
	if err != nil {
		return nil, err
	}
	return &Linux{base: b}, nil
}

func (l *Linux) Pack(ctx context.Context, outDir string, arch platform.Arch, queue *Queue) error {
	appOutDir := l.appOutDir(outDir, arch)
	if err := l.doPack(ctx, l.packOptions(outDir, arch), appOutDir, arch, l.options); err != nil {
		return err
	}

	if l.bc.Options.Dist && !l.hasOnlyDirTarget() {
		queue.Push(fmt.Sprintf("Linux packages (%s)", arch), func(ctx context.Context) error {
			return l.distribute(ctx, outDir, appOutDir, arch)
		})
	}
	return nil
}

// Produces one distributable per target concurrently.
//
// Install scripts are written before any work starts so a failure leaves
// nothing running.
func (l *Linux) distribute(ctx context.Context, outDir, appOutDir string, arch platform.Arch) error {
	meta := l.project.Metadata
	formats := l.formats()

	var scripts *linuxScripts
	if slices.ContainsFunc(formats, isLinuxPackage) {
		var err error
		if scripts, err = l.installScripts(); err != nil {
			return err
		}
	}

	var g errgroup.Group
	for _, format := range formats {
		name := fmt.Sprintf("%s-%s%s.%s", meta.Name, meta.Version, arch.Suffix(), format)
		outFile := filepath.Join(outDir, name)

		if !isLinuxPackage(format) {
			g.Go(func() error {
				slog.Info("creating archive", "platform", l.platform.ConfigKey, "arch", arch, "target", format, "file", outFile)
				if err := l.archiveApp(ctx, format, appOutDir, outFile); err != nil {
					return err
				}
				l.emit(outFile, name)
				return nil
			})
			continue
		}

		g.Go(func() error {
			slog.Info("creating package", "platform", l.platform.ConfigKey, "arch", arch, "target", format, "file", outFile)
			err := l.bc.Tools.Converter.Convert(ctx, backend.ConvertOptions{
				Target: format,
				Args:   l.converterArgs(ctx, format, arch, appOutDir, outFile, scripts),
			})
			if err != nil {
				return err
			}
			l.emit(outFile, name)
			return nil
		})
	}

	return g.Wait()
}

// Returns the distributable formats in target order, with "default" resolved
// and duplicates removed. The "dir" target produces no distributable.
func (l *Linux) formats() []string {
	var out []string
	for _, target := range l.targets {
		if target == DirTarget {
			continue
		}
		if target == DefaultTarget {
			target = defaultLinuxTarget
		}
		if !slices.Contains(out, target) {
			out = append(out, target)
		}
	}
	return out
}

// Returns true if the format is produced by the package converter.
func isLinuxPackage(format string) bool {
	return slices.Contains(LinuxTargets, format)
}

// Returns the converter arguments for one package.
func (l *Linux) converterArgs(ctx context.Context, format string, arch platform.Arch, appOutDir, outFile string, scripts *linuxScripts) []string {
	meta := l.project.Metadata
	description := l.options.String("description")
	if description == "" {
		description = meta.Description
	}

	args := []string{
		"--architecture", linuxArch(format, arch),
		"--name", meta.Name,
		"--force",
		"--after-install", scripts.afterInstall,
		"--after-remove", scripts.afterRemove,
		"--description", Smarten(description),
		"--maintainer", l.maintainer(),
		"--vendor", l.vendor(),
		"--version", meta.Version,
		"--package", outFile,
	}
	if u := l.packageURL(ctx); u != "" {
		args = append(args, "--url", u)
	}
	if license := meta.License; license != "" {
		args = append(args, "--license", license)
	}
	for _, dep := range l.options.Strings("depends") {
		args = append(args, "--depends", dep)
	}
	if c := l.options.String("compression"); c != "" && format == "deb" {
		args = append(args, "--deb-compression", c)
	}
	args = append(args, l.options.Strings("fpm")...)

	args = append(args,
		appOutDir+"/=/opt/"+l.appName,
		scripts.desktop+"=/usr/share/applications/"+meta.Name+".desktop",
	)
	return append(args, l.iconMappings()...)
}

func (l *Linux) maintainer() string {
	if m := l.options.String("maintainer"); m != "" {
		return m
	}
	author := l.project.Metadata.Author
	if author == nil {
		return ""
	}
	if author.Email == "" {
		return author.Name
	}
	return fmt.Sprintf("%s <%s>", author.Name, author.Email)
}

func (l *Linux) vendor() string {
	if v := l.options.String("vendor"); v != "" {
		return v
	}
	return l.authorName()
}

// Maps "<size>.png" files from the icons build resource directory into the
// hicolor icon theme.
func (l *Linux) iconMappings() []string {
	dir := filepath.Join(l.buildResources, "icons")
	names, err := listDir(dir)
	if err != nil {
		slog.Warn("cannot list icons", "file", dir, "error", err)
		return nil
	}

	var out []string
	for _, name := range names {
		size, ok := strings.CutSuffix(name, ".png")
		if !ok {
			continue
		}
		if !strings.Contains(size, "x") {
			size += "x" + size
		}
		out = append(out, fmt.Sprintf("%s=/usr/share/icons/hicolor/%s/apps/%s.png", filepath.Join(dir, name), size, l.project.Metadata.Name))
	}
	return out
}

// Returns the desktop entry and maintainer scripts, writing them to a
// scratch directory on first use. The directory is removed on cleanup.
func (l *Linux) installScripts() (*linuxScripts, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.scripts != nil {
		return l.scripts, nil
	}

	dir, err := l.bc.mkScratch("linux-")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	if l.bc.Cleanup != nil {
		l.bc.Cleanup.Add("remove "+dir, func(context.Context) error {
			return os.RemoveAll(dir)
		})
	}

	meta := l.project.Metadata
	exec := "/opt/" + l.appName + "/" + l.appName
	link := "/usr/local/bin/" + meta.Name

	s := &linuxScripts{
		desktop:      filepath.Join(dir, meta.Name+".desktop"),
		afterInstall: l.projectFile("afterInstall"),
		afterRemove:  l.projectFile("afterRemove"),
	}

	desktop := l.options.String("desktop")
	if desktop == "" {
		desktop = fmt.Sprintf("[Desktop Entry]\nName=%s\nComment=%s\nExec=%q\nTerminal=false\nType=Application\nIcon=%s\n",
			l.appName, Smarten(meta.Description), exec, meta.Name)
	}
	files := map[string]string{s.desktop: desktop}

	if s.afterInstall == "" {
		s.afterInstall = filepath.Join(dir, "after-install.sh")
		files[s.afterInstall] = fmt.Sprintf("#!/bin/bash\n\n# Link to the binary\nln -sf '%s' '%s'\n", exec, link)
	}
	if s.afterRemove == "" {
		s.afterRemove = filepath.Join(dir, "after-remove.sh")
		files[s.afterRemove] = fmt.Sprintf("#!/bin/bash\n\n# Delete the link to the binary\nrm -f '%s'\n", link)
	}

	for file, content := range files {
		if err := os.WriteFile(file, []byte(content), paths.DefaultFileMode); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
		}
	}

	l.scripts = s
	return s, nil
}

// Returns the platform option key as a path resolved against the project
// directory, or "".
func (l *Linux) projectFile(key string) string {
	file := l.options.String(key)
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(l.project.Dir, file)
}

// Returns the architecture name the package format expects.
func linuxArch(format string, arch platform.Arch) string {
	switch format {
	case "deb":
		return arch.Debian()
	case "rpm", "pacman":
		switch arch {
		case platform.IA32:
			return "i386"
		case platform.X64:
			return "x86_64"
		case platform.ARM64:
			return "aarch64"
		}
	}
	return arch.String()
}
