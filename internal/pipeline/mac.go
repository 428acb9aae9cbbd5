package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/cruciblehq/cruxpack/internal/archive"
	"github.com/cruciblehq/cruxpack/internal/backend"
	"github.com/cruciblehq/cruxpack/internal/codesign"
	"github.com/cruciblehq/cruxpack/internal/metadata"
	"github.com/cruciblehq/cruxpack/internal/platform"
)

const (
	DMGTarget = "dmg"
	MASTarget = "mas"
)

// Targets only macOS can produce.
var MacTargets = []string{DMGTarget, MASTarget}

// Keys of the platform block that are not disk image settings.
var nonDMGKeys = []string{"target", "identity", "entitlements", "entitlementsInherit", "extraResources", "extraFiles"}

// macOS pipeline. Builds the regular bundle, the Mac App Store bundle, or
// both concurrently.
type Mac struct {
	*base
	keychain *codesign.Keychain // Keychain created from embedded certificates, if any.
}

// Creates the macOS pipeline.
//
// With an embedded certificate and password an ephemeral keychain is created
// right away; its deletion is registered on the cleanup registry first.
func NewMac(ctx context.Context, bc *Context) (*Mac, error) {
	b, err := newBase(bc, platform.MacOS, MacTargets)
	if err != nil {
		return nil, err
	}
	m := &Mac{base: b}

	if o := bc.Options; o.HasCertificate() {
		kc, err := codesign.CreateKeychain(ctx, bc.Runner, bc.Fetcher, bc.Cleanup, codesign.KeychainOptions{
			Link:              o.CscLink,
			Password:          o.CscKeyPassword,
			InstallerLink:     o.CscInstallerLink,
			InstallerPassword: o.CscInstallerKeyPassword,
		})
		if err != nil {
			return nil, err
		}
		m.keychain = kc
	}
	return m, nil
}

// Packages the regular bundle unless only "mas" was requested, and the Mac
// App Store bundle if "mas" was requested. Both run concurrently and Pack
// returns once both have settled.
func (m *Mac) Pack(ctx context.Context, outDir string, arch platform.Arch, queue *Queue) error {
	packOpts := m.packOptions(outDir, arch)

	var g errgroup.Group
	if len(m.targets) > 1 || m.targets[0] != MASTarget {
		appOutDir := m.appOutDir(outDir, arch)
		g.Go(func() error {
			if err := m.doPack(ctx, packOpts, appOutDir, arch, m.options); err != nil {
				return err
			}
			if err := m.sign(ctx, appOutDir, nil); err != nil {
				return err
			}
			m.emit(filepath.Join(appOutDir, m.appName+".app"), "")

			if m.bc.Options.Dist && !m.hasOnlyDirTarget() {
				queue.Push("macOS distributables", func(ctx context.Context) error {
					return m.distribute(ctx, appOutDir)
				})
			}
			return nil
		})
	}

	if m.hasTarget(MASTarget) {
		appOutDir := filepath.Join(outDir, fmt.Sprintf("%s-mas-%s", m.appName, arch))
		masOptions := m.options.Merge(m.build.Map("mas"))
		masPackOpts := metadata.Merge(packOpts, map[string]any{"platform": MASTarget})
		g.Go(func() error {
			if err := m.doPack(ctx, masPackOpts, appOutDir, arch, masOptions); err != nil {
				return err
			}
			return m.sign(ctx, appOutDir, masOptions)
		})
	}

	return g.Wait()
}

// Signs the bundle in appOutDir.
//
// masOptions is nil for the regular bundle, which stays unsigned with a
// warning when no identity resolves. A Mac App Store bundle must be signed
// and is additionally flattened into an installer package.
func (m *Mac) sign(ctx context.Context, appOutDir string, masOptions metadata.Options) error {
	isMAS := masOptions != nil
	custom, kind, signPlatform := m.options, "osx", platform.MacOS.NodeName
	if isMAS {
		custom, kind, signPlatform = masOptions, MASTarget, MASTarget
	}

	sc := codesign.ResolveMac(codesign.IdentitySources{
		Keychain:            m.keychain,
		Explicit:            m.bc.Options.Sign,
		Getenv:              m.bc.getenv,
		Configured:          m.options.String("identity"),
		InstallerConfigured: masOptions.String("identity"),
	})
	if !sc.Signed() {
		if isMAS {
			return &SigningRequiredError{Missing: "signing identity"}
		}
		slog.Warn("app is not signed, CSC_LINK or CSC_NAME are not specified", "platform", m.platform.ConfigKey)
		return nil
	}

	app := filepath.Join(appOutDir, m.appName+".app")
	slog.Info("signing app", "platform", m.platform.ConfigKey, "identity", sc.Identity, "file", app)

	err := m.bc.Tools.MacSigner.Sign(ctx, codesign.MacSignOptions{
		App:                 app,
		Platform:            signPlatform,
		Identity:            sc.Identity,
		Keychain:            sc.Keychain,
		Entitlements:        m.entitlements(custom, "entitlements", kind+".entitlements"),
		EntitlementsInherit: m.entitlements(custom, "entitlementsInherit", kind+".inherit.entitlements"),
		Extra:               m.build.Map("osx-sign"),
	})
	if err != nil || !isMAS {
		return err
	}

	if sc.InstallerIdentity == "" {
		return &SigningRequiredError{Missing: "installer identity"}
	}

	meta := m.project.Metadata
	pkg := filepath.Join(appOutDir, fmt.Sprintf("%s-%s.pkg", m.appName, meta.Version))
	err = m.bc.Tools.MacSigner.Flat(ctx, codesign.FlatOptions{
		App:      app,
		Pkg:      pkg,
		Platform: signPlatform,
		Identity: sc.InstallerIdentity,
		Keychain: sc.Keychain,
	})
	if err != nil {
		return err
	}
	m.emit(pkg, fmt.Sprintf("%s-%s.pkg", meta.Name, meta.Version))
	return nil
}

// Returns the configured entitlements file, else the conventional file in
// the build resources directory, else "".
func (m *Mac) entitlements(custom metadata.Options, key, conventional string) string {
	if file := custom.String(key); file != "" {
		if filepath.IsAbs(file) {
			return file
		}
		return filepath.Join(m.project.Dir, file)
	}
	if m.hasResource(conventional) {
		return filepath.Join(m.buildResources, conventional)
	}
	return ""
}

// Produces the requested distributables from the regular bundle: a disk
// image for "dmg" and "default", an archive for every other target.
func (m *Mac) distribute(ctx context.Context, appOutDir string) error {
	meta := m.project.Metadata
	var g errgroup.Group

	if m.hasTarget(DMGTarget) || m.hasTarget(DefaultTarget) {
		target := filepath.Join(appOutDir, fmt.Sprintf("%s-%s.dmg", m.appName, meta.Version))
		g.Go(func() error {
			spec := m.dmgSpecification(appOutDir)
			slog.Info("creating DMG", "platform", m.platform.ConfigKey, "file", target)

			err := m.bc.Tools.DMG.Build(ctx, backend.DMGOptions{
				Target:        target,
				BasePath:      m.project.Dir,
				Specification: spec,
			}, func(p backend.Progress) {
				slog.Debug("appdmg", "step", p.Current, "total", p.Total, "title", p.Title)
			})
			if err != nil {
				return err
			}
			m.emit(target, fmt.Sprintf("%s-%s.dmg", meta.Name, meta.Version))
			return nil
		})
	}

	for _, target := range m.targets {
		if slices.Contains([]string{MASTarget, DMGTarget, DirTarget}, target) {
			continue
		}

		// "mac" keeps default archives compatible with Squirrel.Mac.
		format, classifier := target, "osx"
		if target == DefaultTarget {
			format, classifier = "zip", "mac"
		}
		outFile := filepath.Join(appOutDir, fmt.Sprintf("%s-%s-%s.%s", m.appName, meta.Version, classifier, format))
		name := fmt.Sprintf("%s-%s-%s.%s", meta.Name, meta.Version, classifier, format)

		g.Go(func() error {
			slog.Info("creating archive", "platform", m.platform.ConfigKey, "target", format, "file", outFile)
			if err := m.archiveApp(ctx, format, appOutDir, outFile); err != nil {
				return err
			}
			m.emit(outFile, name)
			return nil
		})
	}

	return g.Wait()
}

// Returns the disk image layout: the platform block merged over defaults,
// with the application placed at the second drop point.
func (m *Mac) dmgSpecification(appOutDir string) map[string]any {
	format := "UDBZ"
	if c, _ := archive.ParseCompression(m.build.String("compression")); c == archive.Store {
		format = "UDRO"
	}

	spec := metadata.Merge(map[string]any{
		"title":     m.appName,
		"icon":      filepath.Join(m.buildResources, "icon.icns"),
		"icon-size": 80,
		"contents": []any{
			map[string]any{"x": 410, "y": 220, "type": "link", "path": "/Applications"},
			map[string]any{"x": 130, "y": 220, "type": "file"},
		},
		"format": format,
	}, m.options.Without(nonDMGKeys...))

	if !m.options.Has("background") {
		if background := filepath.Join(m.buildResources, "background.png"); isFile(background) {
			spec["background"] = background
		}
	}

	if contents, ok := spec["contents"].([]any); ok && len(contents) > 1 {
		contents = slices.Clone(contents)
		if entry, ok := contents[1].(map[string]any); ok {
			contents[1] = metadata.Merge(entry, map[string]any{"path": filepath.Join(appOutDir, m.appName+".app")})
		}
		spec["contents"] = contents
	}
	return spec
}
