package metadata

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/cruxpack/internal/platform"
)

const projectDir = "/work/project"

const appDescriptor = `{
	"name": "test-app",
	"productName": "Test App",
	"description": "Test Application",
	"version": "1.1.0",
	"author": "Foo Bar <foo@example.com>"
}`

const devDescriptor = `{
	"private": true,
	"devDependencies": {"electron": "^1.2.3"},
	"build": {"app-bundle-id": "org.example.app", "app-category-type": "public.app-category.business"}
}`

func newFS(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

func load(t *testing.T, files map[string]string, opts LoadOptions) (*Project, error) {
	t.Helper()
	return NewLoader(newFS(t, files), projectDir).Load(opts)
}

func TestLoadTwoPackageLayout(t *testing.T) {
	p, err := load(t, map[string]string{
		"package.json":     devDescriptor,
		"app/package.json": appDescriptor,
	}, LoadOptions{})
	require.NoError(t, err)

	assert.True(t, p.TwoPackageLayout())
	assert.Equal(t, filepath.Join(projectDir, "app"), p.AppDir)
	assert.Equal(t, "test-app", p.Metadata.Name)
	assert.Equal(t, &Author{Name: "Foo Bar", Email: "foo@example.com"}, p.Metadata.Author)
	assert.Equal(t, "Test App", p.ProductName())
	assert.Equal(t, filepath.Join(projectDir, "dist"), p.OutputDir(""))
	assert.Equal(t, filepath.Join(projectDir, "build"), p.BuildResourcesDir())
	require.NoError(t, Validate(p, ValidateOptions{}))
}

func TestLoadSinglePackageLayoutSharesDocument(t *testing.T) {
	p, err := load(t, map[string]string{
		"package.json": `{"name": "x", "description": "d", "version": "1.0.0", "author": {"name": "A"}, "build": {}}`,
	}, LoadOptions{})
	require.NoError(t, err)

	assert.False(t, p.TwoPackageLayout())
	assert.Same(t, p.Dev, p.App)
	assert.Equal(t, projectDir, p.AppDir)
}

func TestLoadAppDirPrecedence(t *testing.T) {
	files := map[string]string{
		"package.json":          `{"directories": {"app": "declared"}, "build": {}}`,
		"declared/package.json": appDescriptor,
		"explicit/package.json": appDescriptor,
		"app/package.json":      appDescriptor,
	}

	p, err := load(t, files, LoadOptions{AppDir: "explicit"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(projectDir, "explicit"), p.AppDir)

	p, err = load(t, files, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(projectDir, "declared"), p.AppDir)

	p, err = load(t, files, LoadOptions{AppDir: filepath.Join(projectDir, "explicit")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(projectDir, "explicit"), p.AppDir)
}

func TestLoadAppDirErrors(t *testing.T) {
	files := map[string]string{
		"package.json": devDescriptor,
		"file":         "not a directory",
	}

	_, err := load(t, files, LoadOptions{AppDir: "missing"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = load(t, files, LoadOptions{AppDir: "file"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = load(t, files, LoadOptions{AppDir: "../outside"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoadMissingDescriptor(t *testing.T) {
	_, err := load(t, map[string]string{}, LoadOptions{})
	assert.ErrorIs(t, err, ErrDescriptor)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = load(t, map[string]string{"package.json": "{"}, LoadOptions{})
	assert.ErrorIs(t, err, ErrDescriptor)
}

func TestLoadOverrideWinsKeyByKey(t *testing.T) {
	p, err := load(t, map[string]string{
		"package.json":     devDescriptor,
		"app/package.json": appDescriptor,
	}, LoadOptions{Override: map[string]any{
		"build": map[string]any{"productName": "Overridden", "osx": map[string]any{"target": []any{"zip"}}},
	}})
	require.NoError(t, err)

	build := p.Build()
	assert.Equal(t, "org.example.app", build.String("app-bundle-id"))
	assert.Equal(t, "Overridden", p.ProductName())
	assert.Equal(t, []string{"zip"}, build.Map("osx").Strings("target"))
}

func TestValidateOrder(t *testing.T) {
	tests := []struct {
		name  string
		dev   string
		app   string
		opts  ValidateOptions
		check func(t *testing.T, err error)
	}{
		{
			name: "missing name",
			dev:  devDescriptor,
			app:  `{"description": "d", "version": "1.0.0"}`,
			check: func(t *testing.T, err error) {
				var e *MissingFieldError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "name", e.Field)
			},
		},
		{
			name: "missing version reported after description",
			dev:  devDescriptor,
			app:  `{"name": "x", "description": "d"}`,
			check: func(t *testing.T, err error) {
				var e *MissingFieldError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "version", e.Field)
			},
		},
		{
			name: "build in application descriptor",
			dev:  `{"build": {}}`,
			app:  `{"name": "x", "description": "d", "version": "1.0.0", "author": "A", "build": {}}`,
			check: func(t *testing.T, err error) {
				var e *MisplacedBuildConfigError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "build missing",
			dev:  `{"name": "dev"}`,
			app:  appDescriptor,
			check: func(t *testing.T, err error) {
				var e *MissingBuildConfigError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, filepath.Join(projectDir, "package.json"), e.Path)
			},
		},
		{
			name: "author missing",
			dev:  devDescriptor,
			app:  `{"name": "x", "description": "d", "version": "1.0.0"}`,
			check: func(t *testing.T, err error) {
				var e *MissingFieldError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "author", e.Field)
			},
		},
		{
			name: "author email required for linux distributables",
			dev:  devDescriptor,
			app:  `{"name": "x", "description": "d", "version": "1.0.0", "author": "A"}`,
			opts: ValidateOptions{Platforms: []platform.Platform{platform.Linux}, Dist: true},
			check: func(t *testing.T, err error) {
				var e *MissingFieldError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "author.email", e.Field)
			},
		},
		{
			name: "author email optional without dist",
			dev:  devDescriptor,
			app:  `{"name": "x", "description": "d", "version": "1.0.0", "author": "A"}`,
			opts: ValidateOptions{Platforms: []platform.Platform{platform.Linux}},
			check: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name: "name in build",
			dev:  `{"build": {"name": "x"}}`,
			app:  appDescriptor,
			check: func(t *testing.T, err error) {
				var e *ConflictingFieldError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "reserved option",
			dev:  `{"build": {"app-bundle-id": "a", "arch": "x64", "asar": false}}`,
			app:  appDescriptor,
			check: func(t *testing.T, err error) {
				var e *ReservedOptionError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "arch", e.Option)
				assert.ErrorIs(t, err, ErrValidation)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := load(t, map[string]string{
				"package.json":     tt.dev,
				"app/package.json": tt.app,
			}, LoadOptions{})
			require.NoError(t, err)
			tt.check(t, Validate(p, tt.opts))
		})
	}
}

// Routes the default logger into a buffer for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestValidateDeprecatedDevFields(t *testing.T) {
	logs := captureLogs(t)
	p, err := load(t, map[string]string{
		"package.json":     `{"homepage": "https://example.com", "license": "MIT", "devDependencies": {"electron": "1.2.3"}, "build": {"app-bundle-id": "a"}}`,
		"app/package.json": appDescriptor,
	}, LoadOptions{})
	require.NoError(t, err)
	require.True(t, p.TwoPackageLayout())

	require.NoError(t, Validate(p, ValidateOptions{}))
	out := logs.String()
	assert.Contains(t, out, "homepage in the development package.json is deprecated")
	assert.Contains(t, out, "license in the development package.json is deprecated")
	assert.Contains(t, out, "level=WARN")
}

func TestValidateSinglePackageFieldsNotDeprecated(t *testing.T) {
	logs := captureLogs(t)
	p, err := load(t, map[string]string{
		"package.json": `{"name": "x", "description": "d", "version": "1.0.0", "author": "A", "homepage": "https://example.com", "license": "MIT", "build": {"app-bundle-id": "a"}}`,
	}, LoadOptions{})
	require.NoError(t, err)
	require.False(t, p.TwoPackageLayout())

	require.NoError(t, Validate(p, ValidateOptions{}))
	assert.NotContains(t, logs.String(), "deprecated")
}

func TestElectronVersion(t *testing.T) {
	p, err := load(t, map[string]string{"package.json": devDescriptor, "app/package.json": appDescriptor}, LoadOptions{})
	require.NoError(t, err)
	v, err := p.ElectronVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v)

	p, err = load(t, map[string]string{
		"package.json":                                `{"build": {}}`,
		"app/package.json":                            appDescriptor,
		"node_modules/electron-prebuilt/package.json": `{"version": "0.37.8"}`,
	}, LoadOptions{})
	require.NoError(t, err)
	v, err = p.ElectronVersion()
	require.NoError(t, err)
	assert.Equal(t, "0.37.8", v)

	p, err = load(t, map[string]string{"package.json": `{"build": {}}`, "app/package.json": appDescriptor}, LoadOptions{})
	require.NoError(t, err)
	_, err = p.ElectronVersion()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseAuthor(t *testing.T) {
	tests := []struct {
		in   string
		want Author
	}{
		{"Foo Bar", Author{Name: "Foo Bar"}},
		{"Foo Bar <foo@bar.com>", Author{Name: "Foo Bar", Email: "foo@bar.com"}},
		{"Foo <foo@bar.com> (https://bar.com)", Author{Name: "Foo", Email: "foo@bar.com", URL: "https://bar.com"}},
		{"Foo (https://bar.com)", Author{Name: "Foo", URL: "https://bar.com"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseAuthor(tt.in), tt.in)
	}
}

func TestRepositoryForms(t *testing.T) {
	d := &Document{Raw: map[string]any{"repository": "github:foo/bar"}}
	var m DevMetadata
	require.NoError(t, d.Decode(&m))
	assert.Equal(t, "github:foo/bar", m.Repository.URL)

	d = &Document{Raw: map[string]any{"repository": map[string]any{"type": "git", "url": "https://github.com/foo/bar.git"}}}
	require.NoError(t, d.Decode(&m))
	assert.Equal(t, "https://github.com/foo/bar.git", m.Repository.URL)
}

func TestOptionsMerge(t *testing.T) {
	base := Options{"a": 1, "nested": map[string]any{"x": 1, "y": 2}, "list": []any{"a"}}
	over := Options{"nested": map[string]any{"y": 3}, "list": []any{"b"}}

	got := base.Merge(over)
	assert.Equal(t, Options{"a": 1, "nested": map[string]any{"x": 1, "y": 3}, "list": []any{"b"}}, got)
	assert.Equal(t, 2, base.Map("nested")["y"], "inputs are not modified")
}

func TestMergeReplacesNonMaps(t *testing.T) {
	dst := map[string]any{
		"scalar": map[string]any{"x": 1},
		"null":   "set",
		"flag":   true,
		"nested": Options{"keep": "a", "list": []any{"x", "y"}},
	}
	src := map[string]any{
		"scalar": "flat",
		"null":   nil,
		"flag":   false,
		"nested": map[string]any{"list": []any{}, "added": map[string]any{"z": 1}},
	}

	got := Merge(dst, src)
	assert.Equal(t, map[string]any{
		"scalar": "flat",
		"null":   nil,
		"flag":   false,
		"nested": map[string]any{"keep": "a", "list": []any{}, "added": map[string]any{"z": 1}},
	}, got)

	got["nested"].(map[string]any)["added"].(map[string]any)["z"] = 2
	assert.Equal(t, 1, src["nested"].(map[string]any)["added"].(map[string]any)["z"], "result shares no maps with src")
	assert.Equal(t, []any{"x", "y"}, dst["nested"].(Options)["list"], "dst is not modified")
}

func TestParseOverride(t *testing.T) {
	doc, err := ParseOverride([]byte("build:\n  compression: store\n  osx:\n    target: [zip]\n"), "override.yml")
	require.NoError(t, err)
	build := Options(doc).Map("build")
	assert.Equal(t, "store", build.String("compression"))
	assert.Equal(t, []string{"zip"}, build.Map("osx").Strings("target"))

	doc, err = ParseOverride([]byte(`{"build": {"asar": false}}`), "override.json")
	require.NoError(t, err)
	asar, ok := Options(doc).Map("build").Bool("asar")
	assert.True(t, ok)
	assert.False(t, asar)

	_, err = ParseOverride([]byte("- a\n- b\n"), "bad.yml")
	assert.ErrorIs(t, err, ErrDescriptor)
}
