package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/cruciblehq/cruxpack/internal/backend"
	"github.com/cruciblehq/cruxpack/internal/codesign"
	"github.com/cruciblehq/cruxpack/internal/icon"
	"github.com/cruciblehq/cruxpack/internal/metadata"
	"github.com/cruciblehq/cruxpack/internal/platform"
)

// Installer options computed from the project that must not be overridden.
var ReservedInstallerOptions = []string{
	"outputDirectory",
	"appDirectory",
	"exe",
	"fixUpPaths",
	"usePackageJson",
	"extraFileSpecs",
	"extraMetadataSpecs",
	"skipUpdateIcon",
	"setupExe",
}

// Keys of the platform block that are not installer settings.
var nonInstallerKeys = []string{"noMsi", "target", "extraResources", "extraFiles"}

// Windows pipeline. Distributables are Squirrel.Windows installers.
type Windows struct {
	*base
	iconPath   string // Validated before every packaging run.
	certFile   string // Local certificate file, if a certificate was supplied.
	loadingGif string // Conventional installer animation, if present.
}

// Creates the Windows pipeline.
//
// A supplied certificate is fetched right away. When distributables are
// requested the installer options are checked before any work starts.
func NewWindows(ctx context.Context, bc *Context) (*Windows, error) {
	b, err := newBase(bc, platform.Windows, nil)
	if err != nil {
		return nil, err
	}
	w := &Windows{base: b, iconPath: filepath.Join(b.buildResources, "icon.ico")}

	if bc.Options.HasCertificate() {
		if w.certFile, err = bc.Fetcher.Fetch(ctx, bc.Options.CscLink); err != nil {
			return nil, err
		}
	}

	if bc.Options.Dist {
		if _, err := checkInstallerOptions(w.options); err != nil {
			return nil, err
		}
		if !w.options.Has("loadingGif") {
			if gif := filepath.Join(b.buildResources, "install-spinner.gif"); isFile(gif) {
				w.loadingGif = gif
			}
		}
	}
	return w, nil
}

// Returns the installer output directory for arch.
func (w *Windows) installerOutDir(outDir string, arch platform.Arch) string {
	return filepath.Join(outDir, "win"+arch.Suffix())
}

// Validates the icon, packages and signs the executable.
//
// Without distributables the bundle stays in the regular output directory.
// Otherwise it is moved to "<out>/win[-arch]-unpacked/lib/net45", the layout
// the installer tool expects, and the installer is queued.
func (w *Windows) Pack(ctx context.Context, outDir string, arch platform.Arch, queue *Queue) error {
	if arch == platform.IA32 {
		slog.Warn("consider distributing only 64-bit Windows builds", "platform", w.platform.ConfigKey, "arch", arch)
	}

	// The packaging backend embeds the icon and fails obscurely on a bad one.
	if err := icon.Validate(w.iconPath); err != nil {
		return err
	}

	appOutDir := w.appOutDir(outDir, arch)
	packOpts := w.packOptions(outDir, arch)

	if !w.bc.Options.Dist {
		if err := w.packApp(ctx, packOpts, appOutDir); err != nil {
			return err
		}
		return w.copyExtraFiles(appOutDir, arch, w.options)
	}

	unpackedDir := filepath.Join(outDir, "win"+arch.Suffix()+"-unpacked")
	finalAppOut := filepath.Join(unpackedDir, "lib", "net45")
	installerOut := w.installerOutDir(outDir, arch)

	var g errgroup.Group
	g.Go(func() error { return w.packApp(ctx, packOpts, appOutDir) })
	g.Go(func() error { return emptyDir(unpackedDir) })
	if err := g.Wait(); err != nil {
		return err
	}

	if err := moveDir(appOutDir, finalAppOut); err != nil {
		return fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	// The installer directory is the regular output directory for x64, so it
	// is emptied only once the bundle has been moved out.
	if err := emptyDir(installerOut); err != nil {
		return fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	if err := w.copyExtraFiles(finalAppOut, arch, w.options); err != nil {
		return err
	}

	queue.Push(fmt.Sprintf("Windows installer (%s)", arch), func(ctx context.Context) error {
		return w.distribute(ctx, installerOut, finalAppOut, arch, packOpts)
	})
	return nil
}

// Packages the application and signs the executable when a certificate was
// supplied. Signing is skipped on Linux hosts.
func (w *Windows) packApp(ctx context.Context, opts map[string]any, appOutDir string) error {
	if err := w.base.packApp(ctx, opts, appOutDir); err != nil {
		return err
	}
	if w.certFile == "" || w.bc.Host.OS == platform.Linux.OS {
		return nil
	}

	exe := filepath.Join(appOutDir, w.appName+".exe")
	slog.Info("signing", "platform", w.platform.ConfigKey, "file", exe)
	return w.bc.Tools.WinSigner.Sign(ctx, codesign.WinSignOptions{
		Path:     exe,
		Cert:     w.certFile,
		Password: w.bc.Options.CscKeyPassword,
		Name:     w.appName,
		Site:     w.packageURL(ctx),
	})
}

// Builds the installer and emits its artifacts: the setup executable, the
// full update package, the delta package when remote releases are
// configured, and the release manifest.
func (w *Windows) distribute(ctx context.Context, installerOut, appDir string, arch platform.Arch, packOpts map[string]any) error {
	meta := w.project.Metadata
	setupExe := fmt.Sprintf("%s Setup %s%s.exe", w.appName, meta.Version, arch.Suffix())

	spec, err := w.installerSpecification(ctx, appDir, installerOut, setupExe, packOpts)
	if err != nil {
		return err
	}

	slog.Info("creating installer", "platform", w.platform.ConfigKey, "arch", arch, "file", filepath.Join(installerOut, setupExe))
	if err := w.bc.Tools.Installer.Build(ctx, spec); err != nil {
		return err
	}

	w.emit(filepath.Join(installerOut, setupExe), fmt.Sprintf("%s-Setup-%s%s.exe", meta.Name, meta.Version, arch.Suffix()))

	prefix := fmt.Sprintf("%s-%s-", meta.Name, backend.ConvertVersion(meta.Version))
	w.emit(filepath.Join(installerOut, prefix+"full.nupkg"), "")
	if metadata.Options(spec).String("remoteReleases") != "" {
		w.emit(filepath.Join(installerOut, prefix+"delta.nupkg"), "")
	}
	w.emit(filepath.Join(installerOut, "RELEASES"), "")
	return nil
}

// Returns the installer tool options: computed values with the platform
// block merged over them.
func (w *Windows) installerSpecification(ctx context.Context, appDir, installerOut, setupExe string, packOpts map[string]any) (map[string]any, error) {
	iconURL, err := w.iconURL(ctx)
	if err != nil {
		return nil, err
	}
	custom, err := checkInstallerOptions(w.options)
	if err != nil {
		return nil, err
	}

	meta := w.project.Metadata
	copyright := packOpts["app-copyright"]

	versionString := map[string]any{}
	if vs, ok := packOpts["version-string"].(map[string]any); ok {
		versionString = maps.Clone(vs)
	}
	versionString["LegalCopyright"] = copyright

	projectURL := w.packageURL(ctx)
	sign := map[string]any{"name": w.appName, "overwrite": true}

	spec := map[string]any{
		"name":            meta.Name,
		"productName":     w.appName,
		"exe":             w.appName + ".exe",
		"setupExe":        setupExe,
		"title":           w.appName,
		"appDirectory":    appDir,
		"outputDirectory": installerOut,
		"version":         meta.Version,
		"description":     Smarten(meta.Description),
		"authors":         w.authorName(),
		"iconUrl":         iconURL,
		"setupIcon":       w.iconPath,
		"fixUpPaths":      false,
		"skipUpdateIcon":  true,
		"usePackageJson":  false,
		"msi":             false,
		"copyright":       copyright,
		"sign":            sign,
		"rcedit": map[string]any{
			"version-string":  versionString,
			"file-version":    packOpts["build-version"],
			"product-version": packOpts["app-version"],
		},
	}
	if projectURL != "" {
		spec["extraMetadataSpecs"] = "\n    <projectUrl>" + projectURL + "</projectUrl>"
		sign["site"] = projectURL
	}
	if w.certFile != "" {
		spec["certificateFile"] = w.certFile
		spec["certificatePassword"] = w.bc.Options.CscKeyPassword
	}
	if w.loadingGif != "" {
		spec["loadingGif"] = w.loadingGif
	}

	return metadata.Merge(spec, custom), nil
}

// Returns the URL the installer downloads its icon from: configured in the
// platform block or the build block, else derived from the repository.
func (w *Windows) iconURL(ctx context.Context) (string, error) {
	if u := w.options.String("iconUrl"); u != "" {
		return u, nil
	}
	if u := w.build.String("iconUrl"); u != "" {
		return u, nil
	}

	if info := w.repositoryInfo(ctx); info != nil {
		rel, err := filepath.Rel(w.project.Dir, w.buildResources)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrPipeline, err)
		}
		return fmt.Sprintf("%s/blob/master/%s/icon.ico?raw=true", info.URL(), filepath.ToSlash(rel)), nil
	}
	return "", &MissingIconURLError{}
}

// Rejects reserved installer options and returns the platform block as
// installer options. The deprecated noMsi is converted to msi.
func checkInstallerOptions(options metadata.Options) (metadata.Options, error) {
	for _, name := range ReservedInstallerOptions {
		if options.Has(name) {
			return nil, &InstallerOptionError{Option: name, Reason: "is computed and must not be specified"}
		}
	}

	custom := options.Without(nonInstallerKeys...)
	if options.Has("noMsi") {
		slog.Warn(`noMsi is deprecated, specify "msi": true to create an MSI installer`)
		noMsi, _ := options.Bool("noMsi")
		custom["msi"] = !noMsi
	}

	if v, ok := custom["msi"]; ok && v != nil {
		if _, isBool := v.(bool); !isBool {
			return nil, &InstallerOptionError{Option: "msi", Reason: fmt.Sprintf("must be a boolean, got %v", v)}
		}
	}
	return custom, nil
}
