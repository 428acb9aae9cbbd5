package build

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/cruxpack/internal/archive"
	"github.com/cruciblehq/cruxpack/internal/artifact"
	"github.com/cruciblehq/cruxpack/internal/backend"
	"github.com/cruciblehq/cruxpack/internal/cleanup"
	"github.com/cruciblehq/cruxpack/internal/codesign"
	"github.com/cruciblehq/cruxpack/internal/metadata"
	"github.com/cruciblehq/cruxpack/internal/pipeline"
	"github.com/cruciblehq/cruxpack/internal/platform"
	"github.com/cruciblehq/cruxpack/internal/repoinfo"
	"github.com/cruciblehq/cruxpack/internal/runtime"
	"github.com/cruciblehq/cruxpack/internal/runtime/runtimetest"
)

const testDescriptor = `{
	"name": "test-app",
	"productName": "Test App",
	"description": "Test app",
	"version": "1.1.0",
	"author": {"name": "Foo Bar", "email": "foo@example.com"},
	"devDependencies": {"electron": "1.2.0"},
	"build": {"app-bundle-id": "org.example.test", "iconUrl": "https://example.com/icon.ico"}
}`

var (
	macHost   = platform.Host{OS: "darwin", Arch: platform.X64}
	linuxHost = platform.Host{OS: "linux", Arch: platform.X64}
)

func writeFile(t *testing.T, file string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, data, 0o644))
}

// Writes a project with descriptor and a valid Windows icon.
func newProject(t *testing.T, descriptor string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, metadata.DescriptorName), []byte(descriptor))

	ico := make([]byte, 22)
	binary.LittleEndian.PutUint16(ico[2:], 1)
	binary.LittleEndian.PutUint16(ico[4:], 1)
	writeFile(t, filepath.Join(dir, "build", "icon.ico"), ico)
	return dir
}

// Encodes an asar archive holding index.js.
func asarWithIndex() []byte {
	header := []byte(`{"files":{"index.js":{"size":1,"offset":"0"}}}`)
	padded := (len(header) + 3) &^ 3

	var pickle bytes.Buffer
	binary.Write(&pickle, binary.LittleEndian, uint32(4+padded))
	binary.Write(&pickle, binary.LittleEndian, uint32(len(header)))
	pickle.Write(header)
	pickle.Write(make([]byte, padded-len(header)))

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, uint32(4))
	binary.Write(&out, binary.LittleEndian, uint32(pickle.Len()))
	out.Write(pickle.Bytes())
	return out.Bytes()
}

type fakePackager struct {
	mu    sync.Mutex
	calls []backend.BundleOptions
}

func (p *fakePackager) Pack(ctx context.Context, opts backend.BundleOptions) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, opts)
	p.mu.Unlock()

	name := opts.Options["name"].(string)
	resources := filepath.Join(opts.OutDir, "resources")
	switch opts.Options["platform"] {
	case "darwin", "mas":
		resources = filepath.Join(opts.OutDir, name+".app", "Contents", "Resources")
	case "win32":
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(opts.OutDir, name+".exe"), []byte("MZ"), 0o755); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(resources, 0o755); err != nil {
		return "", err
	}
	return opts.OutDir, os.WriteFile(filepath.Join(resources, "app.asar"), asarWithIndex(), 0o644)
}

func (p *fakePackager) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type nopDMG struct{}

func (nopDMG) Build(context.Context, backend.DMGOptions, func(backend.Progress)) error { return nil }

type nopInstaller struct{}

func (nopInstaller) Build(context.Context, map[string]any) error { return nil }

type nopArchiver struct{}

func (nopArchiver) Archive(context.Context, string, archive.Compression, string, string) error {
	return nil
}

type nopMacSigner struct{}

func (nopMacSigner) Sign(context.Context, codesign.MacSignOptions) error { return nil }
func (nopMacSigner) Flat(context.Context, codesign.FlatOptions) error    { return nil }

type nopWinSigner struct{}

func (nopWinSigner) Sign(context.Context, codesign.WinSignOptions) error { return nil }

type fakeDeps struct {
	mu    sync.Mutex
	calls []backend.InstallOptions
}

func (d *fakeDeps) Install(ctx context.Context, opts backend.InstallOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, opts)
	return nil
}

type noRepo struct{}

func (noRepo) RepositoryInfo(context.Context) (*repoinfo.Info, error) {
	return nil, repoinfo.ErrRepoInfo
}

// Returns options building dir on host with fake tools.
func testOptions(t *testing.T, dir string, host platform.Host, packager *fakePackager, runner runtime.Runner) Options {
	t.Helper()
	return Options{
		ProjectDir: dir,
		Dist:       true,
		Host:       host,
		Runner:     runner,
		Tools: backend.Tools{
			Packager:  packager,
			DMG:       nopDMG{},
			Installer: nopInstaller{},
			Converter: backend.NewFpm(runner, false),
			Deps:      &fakeDeps{},
			Archiver:  nopArchiver{},
			MacSigner: nopMacSigner{},
			WinSigner: nopWinSigner{},
		},
		Repository: noRepo{},
		Getenv:     func(string) string { return "" },
		Now:        func() time.Time { return time.Date(2016, 5, 1, 0, 0, 0, 0, time.UTC) },
		ScratchDir: t.TempDir(),
	}
}

func TestRunMacAndWindowsOnMacHost(t *testing.T) {
	dir := newProject(t, testDescriptor)
	runner := runtimetest.New().Stdout("wine", "wine-1.9.8\n")
	packager := &fakePackager{}

	opts := testOptions(t, dir, macHost, packager, runner)
	opts.Platforms = []string{"osx", "win"}

	var listened atomic.Int32
	opts.Listeners = []artifact.Listener{func(artifact.Event) { listened.Add(1) }}

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dist"), result.Output)

	var app, setup []artifact.Event
	for _, ev := range result.Artifacts {
		switch {
		case ev.Platform == platform.MacOS && strings.HasSuffix(ev.File, ".app"):
			app = append(app, ev)
		case ev.Platform == platform.Windows && strings.HasSuffix(ev.File, ".exe"):
			setup = append(setup, ev)
		}
	}
	require.Len(t, app, 1)
	assert.Equal(t, filepath.Join(dir, "dist", "osx", "Test App.app"), app[0].File)
	require.Len(t, setup, 1)
	assert.Equal(t, "test-app-Setup-1.1.0.exe", setup[0].ArtifactName)

	assert.Equal(t, int32(len(result.Artifacts)), listened.Load())
	assert.Len(t, runner.CallsTo("wine"), 1)
	assert.Equal(t, 2, packager.Calls())
}

func TestRunDrainsCleanupOnceOnFailure(t *testing.T) {
	dir := newProject(t, testDescriptor)
	packErr := errors.New("pack exploded")

	var cleaned atomic.Int32
	var distributed atomic.Bool
	factory := func(ctx context.Context, bc *pipeline.Context, p platform.Platform) (pipeline.Pipeline, error) {
		bc.Cleanup.Add("remove "+p.ConfigKey, func(context.Context) error {
			cleaned.Add(1)
			return nil
		})
		fp := &fakePipeline{platform: p, distributed: &distributed}
		if p == platform.Windows {
			fp.err = packErr
		}
		return fp, nil
	}

	runner := runtimetest.New()
	opts := testOptions(t, dir, linuxHost, &fakePackager{}, runner)
	opts.Platforms = []string{"linux", "win"}
	opts.Factory = factory

	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBuild)
	assert.ErrorIs(t, err, packErr)
	assert.ErrorContains(t, err, "platform win, arch x64")

	assert.Equal(t, int32(2), cleaned.Load())
	assert.False(t, distributed.Load())
	assert.Empty(t, runner.CallsTo("wine"))
}

func TestRunCleanupErrors(t *testing.T) {
	cleanupErr := errors.New("keychain busy")
	packErr := errors.New("pack exploded")

	tests := []struct {
		name    string
		packErr error
	}{
		{"after success", nil},
		{"after failure", packErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newProject(t, testDescriptor)
			opts := testOptions(t, dir, linuxHost, &fakePackager{}, runtimetest.New())
			opts.Dist = false
			opts.Factory = func(ctx context.Context, bc *pipeline.Context, p platform.Platform) (pipeline.Pipeline, error) {
				bc.Cleanup.Add("delete keychain", func(context.Context) error { return cleanupErr })
				return &fakePipeline{platform: p, err: tt.packErr}, nil
			}

			result, err := Run(context.Background(), opts)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, cleanupErr)

			var agg *cleanup.AggregateError
			require.ErrorAs(t, err, &agg)
			assert.Len(t, agg.Errs, 1)

			if tt.packErr == nil {
				assert.Equal(t, agg, err)
				return
			}
			var runErr *RunError
			require.ErrorAs(t, err, &runErr)
			assert.ErrorIs(t, runErr.Err, packErr)
			assert.ErrorIs(t, err, ErrBuild)
		})
	}
}

func TestRunWineMissing(t *testing.T) {
	dir := newProject(t, testDescriptor)
	runner := runtimetest.New().Handle("wine", func(cmd runtime.Command) (*runtime.ExecResult, error) {
		return nil, fmt.Errorf("%w: wine", runtime.ErrNotFound)
	})
	packager := &fakePackager{}

	opts := testOptions(t, dir, macHost, packager, runner)
	opts.Platforms = []string{"win"}

	_, err := Run(context.Background(), opts)
	var missing *ToolchainMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "wine", missing.Tool)
	assert.ErrorIs(t, err, ErrToolchain)
	assert.Zero(t, packager.Calls())
}

func TestRunWineTooOld(t *testing.T) {
	dir := newProject(t, testDescriptor)
	runner := runtimetest.New().Stdout("wine", "wine-1.6.2")
	packager := &fakePackager{}

	opts := testOptions(t, dir, linuxHost, packager, runner)
	opts.Platforms = []string{"win"}

	_, err := Run(context.Background(), opts)
	var version *ToolchainVersionError
	require.ErrorAs(t, err, &version)
	assert.Equal(t, "1.6.2", version.Version)
	assert.Zero(t, packager.Calls())
}

func TestRunValidatesBeforeWriting(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
		targets    []string
		wantErr    error
	}{
		{
			name:       "missing build",
			descriptor: `{"name":"a","description":"d","version":"1.0.0","author":"A <a@b.c>","devDependencies":{"electron":"1.2.0"}}`,
			wantErr:    metadata.ErrValidation,
		},
		{
			name:       "reserved option",
			descriptor: `{"name":"a","description":"d","version":"1.0.0","author":"A <a@b.c>","devDependencies":{"electron":"1.2.0"},"build":{"arch":"x64"}}`,
			wantErr:    metadata.ErrValidation,
		},
		{
			name:       "unknown target",
			descriptor: testDescriptor,
			targets:    []string{"dmg"},
			wantErr:    pipeline.ErrUnknownTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newProject(t, tt.descriptor)
			packager := &fakePackager{}
			opts := testOptions(t, dir, linuxHost, packager, runtimetest.New())
			opts.Platforms = []string{"linux"}
			opts.Targets = tt.targets

			_, err := Run(context.Background(), opts)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoDirExists(t, filepath.Join(dir, "dist"))
			assert.Zero(t, packager.Calls())
		})
	}
}

func TestRunUnknownPlatform(t *testing.T) {
	dir := newProject(t, testDescriptor)
	opts := testOptions(t, dir, linuxHost, &fakePackager{}, runtimetest.New())
	opts.Platforms = []string{"beos"}

	_, err := Run(context.Background(), opts)
	assert.ErrorIs(t, err, platform.ErrUnknownPlatform)
}

func TestRunInstallsDependencies(t *testing.T) {
	tests := []struct {
		name       string
		host       platform.Host
		npmRebuild bool
		want       []platform.Arch
	}{
		{"matching host", linuxHost, true, []platform.Arch{platform.IA32, platform.X64}},
		{"disabled", linuxHost, false, nil},
		{"cross-platform", macHost, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, metadata.DescriptorName), []byte(`{
				"devDependencies": {"electron": "1.2.0"},
				"build": {"app-bundle-id": "org.example.test"}
			}`))
			writeFile(t, filepath.Join(dir, "app", metadata.DescriptorName), []byte(`{
				"name": "test-app", "description": "d", "version": "1.0.0", "author": "Foo <foo@example.com>"
			}`))

			deps := &fakeDeps{}
			opts := testOptions(t, dir, tt.host, &fakePackager{}, runtimetest.New())
			opts.Tools.Deps = deps
			opts.Platforms = []string{"linux"}
			opts.Arch = "all"
			opts.NpmRebuild = tt.npmRebuild
			opts.Factory = func(ctx context.Context, bc *pipeline.Context, p platform.Platform) (pipeline.Pipeline, error) {
				return &fakePipeline{platform: p}, nil
			}

			_, err := Run(context.Background(), opts)
			require.NoError(t, err)

			var archs []platform.Arch
			for _, c := range deps.calls {
				assert.Equal(t, filepath.Join(dir, "app"), c.AppDir)
				assert.Equal(t, "1.2.0", c.ElectronVersion)
				archs = append(archs, c.Arch)
			}
			assert.Equal(t, tt.want, archs)
		})
	}
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		output  string
		wantErr bool
	}{
		{"wine-1.8", false},
		{"wine-1.9.8", false},
		{"wine-5.0 (Staging)", false},
		{"wine-1.7.55", true},
		{"1.8.1", false},
		{"garbage", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			err := checkVersion("wine", tt.output, winePrefix, wineMinVersion)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrToolchain)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// Pipeline that records nothing and queues one distributable task.
type fakePipeline struct {
	platform    platform.Platform
	err         error
	distributed *atomic.Bool
}

func (p *fakePipeline) Platform() platform.Platform { return p.platform }

func (p *fakePipeline) Targets() []string { return []string{pipeline.DefaultTarget} }

func (p *fakePipeline) Pack(ctx context.Context, outDir string, arch platform.Arch, queue *pipeline.Queue) error {
	if p.err != nil {
		return p.err
	}
	queue.Push("distribute "+p.platform.ConfigKey, func(context.Context) error {
		if p.distributed != nil {
			p.distributed.Store(true)
		}
		return nil
	})
	return nil
}
