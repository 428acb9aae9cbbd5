package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/cruxpack/internal/archive"
	"github.com/cruciblehq/cruxpack/internal/artifact"
	"github.com/cruciblehq/cruxpack/internal/backend"
	"github.com/cruciblehq/cruxpack/internal/cleanup"
	"github.com/cruciblehq/cruxpack/internal/codesign"
	"github.com/cruciblehq/cruxpack/internal/metadata"
	"github.com/cruciblehq/cruxpack/internal/platform"
	"github.com/cruciblehq/cruxpack/internal/repoinfo"
	"github.com/cruciblehq/cruxpack/internal/runtime/runtimetest"
)

const testDescriptor = `{
	"name": "test-app",
	"productName": "Test App",
	"description": "Test 'quoted' app",
	"version": "1.1.0",
	"author": {"name": "Foo Bar", "email": "foo@example.com"},
	"devDependencies": {"electron": "1.2.0"},
	"build": {"app-bundle-id": "org.example.test"}
}`

// Encodes an asar archive directory listing.
func encodeAsar(header string) []byte {
	str := []byte(header)
	padded := (len(str) + 3) &^ 3

	var pickle bytes.Buffer
	binary.Write(&pickle, binary.LittleEndian, uint32(4+padded))
	binary.Write(&pickle, binary.LittleEndian, uint32(len(str)))
	pickle.Write(str)
	pickle.Write(make([]byte, padded-len(str)))

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, uint32(4))
	binary.Write(&out, binary.LittleEndian, uint32(pickle.Len()))
	out.Write(pickle.Bytes())
	return out.Bytes()
}

// Returns an icon header with one 256x256 image.
func validIcon() []byte {
	buf := make([]byte, 22)
	binary.LittleEndian.PutUint16(buf[2:], 1)
	binary.LittleEndian.PutUint16(buf[4:], 1)
	return buf
}

func writeFile(t *testing.T, file string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, data, 0o644))
}

// Creates a bundle layout with an app.asar containing index.js.
type fakePackager struct {
	mu    sync.Mutex
	calls []backend.BundleOptions
	err   error
}

func (p *fakePackager) Pack(ctx context.Context, opts backend.BundleOptions) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, opts)
	p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}

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
	asar := encodeAsar(`{"files":{"index.js":{"size":1,"offset":"0"}}}`)
	return opts.OutDir, os.WriteFile(filepath.Join(resources, "app.asar"), asar, 0o644)
}

func (p *fakePackager) Calls() []backend.BundleOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]backend.BundleOptions(nil), p.calls...)
}

type fakeDMG struct {
	mu    sync.Mutex
	calls []backend.DMGOptions
}

func (d *fakeDMG) Build(ctx context.Context, opts backend.DMGOptions, progress func(backend.Progress)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, opts)
	if progress != nil {
		progress(backend.Progress{Current: 1, Total: 1, Title: "Done"})
	}
	return nil
}

type fakeInstaller struct {
	mu    sync.Mutex
	specs []map[string]any
}

func (i *fakeInstaller) Build(ctx context.Context, spec map[string]any) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.specs = append(i.specs, spec)
	return nil
}

type fakeConverter struct {
	mu    sync.Mutex
	calls []backend.ConvertOptions
}

func (c *fakeConverter) Convert(ctx context.Context, opts backend.ConvertOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, opts)
	return nil
}

type archiveCall struct {
	Format      string
	Compression archive.Compression
	Src         string
	OutFile     string
}

type fakeArchiver struct {
	mu    sync.Mutex
	calls []archiveCall
}

func (a *fakeArchiver) Archive(ctx context.Context, format string, compression archive.Compression, src, outFile string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, archiveCall{format, compression, src, outFile})
	return nil
}

type fakeMacSigner struct {
	mu    sync.Mutex
	signs []codesign.MacSignOptions
	flats []codesign.FlatOptions
}

func (s *fakeMacSigner) Sign(ctx context.Context, opts codesign.MacSignOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signs = append(s.signs, opts)
	return nil
}

func (s *fakeMacSigner) Flat(ctx context.Context, opts codesign.FlatOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flats = append(s.flats, opts)
	return nil
}

type fakeWinSigner struct {
	mu    sync.Mutex
	calls []codesign.WinSignOptions
}

func (s *fakeWinSigner) Sign(ctx context.Context, opts codesign.WinSignOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, opts)
	return nil
}

var testRepo = &repoinfo.Info{Host: "github.com", User: "foo", Project: "bar"}

type staticRepo struct {
	info *repoinfo.Info
}

func (r staticRepo) RepositoryInfo(context.Context) (*repoinfo.Info, error) {
	return r.info, nil
}

// Fake collaborators of one test context.
type fakes struct {
	packager  *fakePackager
	dmg       *fakeDMG
	installer *fakeInstaller
	converter *fakeConverter
	archiver  *fakeArchiver
	macSigner *fakeMacSigner
	winSigner *fakeWinSigner
	events    *artifact.Collector
	cleanup   *cleanup.Registry
}

// Writes descriptor into a new project directory and returns a build
// context over fakes.
func newTestContext(t *testing.T, descriptor string, opts Options) (*Context, *fakes) {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, metadata.DescriptorName), []byte(descriptor))

	project, err := metadata.NewOSLoader(dir).Load(metadata.LoadOptions{})
	require.NoError(t, err)

	f := &fakes{
		packager:  &fakePackager{},
		dmg:       &fakeDMG{},
		installer: &fakeInstaller{},
		converter: &fakeConverter{},
		archiver:  &fakeArchiver{},
		macSigner: &fakeMacSigner{},
		winSigner: &fakeWinSigner{},
		events:    &artifact.Collector{},
		cleanup:   cleanup.New(),
	}

	bc := &Context{
		Project:         project,
		ElectronVersion: "1.2.0",
		Options:         opts,
		Host:            platform.Host{OS: "darwin", Arch: platform.X64},
		Tools: backend.Tools{
			Packager:  f.packager,
			DMG:       f.dmg,
			Installer: f.installer,
			Converter: f.converter,
			Archiver:  f.archiver,
			MacSigner: f.macSigner,
			WinSigner: f.winSigner,
		},
		Runner:     runtimetest.New(),
		Fetcher:    &codesign.Fetcher{Dir: t.TempDir(), Cleanup: f.cleanup},
		Cleanup:    f.cleanup,
		Events:     artifact.NewEmitter(f.events.Listen),
		Getenv:     func(string) string { return "" },
		Now:        func() time.Time { return time.Date(2016, 5, 1, 0, 0, 0, 0, time.UTC) },
		ScratchDir: t.TempDir(),
	}
	return bc, f
}

// Returns the event for file, failing the test if there is none.
func eventFor(t *testing.T, events []artifact.Event, file string) artifact.Event {
	t.Helper()
	for _, ev := range events {
		if ev.File == file {
			return ev
		}
	}
	t.Fatalf("no artifact event for %s in %v", file, events)
	return artifact.Event{}
}
