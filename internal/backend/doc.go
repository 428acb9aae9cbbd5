// Package backend wraps the external tools that do the heavy lifting of a
// build: the application bundler, the disk image builder, the Squirrel
// installer builder, the Linux package converter, the native dependency
// installer and the archivers.
//
// Each tool is reached through a small interface so pipelines can be tested
// with fakes; [Default] returns implementations that shell out through a
// [runtime.Runner]. Tool failures wrap [ErrBackend].
//
// Example usage:
//
//	tools := backend.Default(runtime.New(), platform.CurrentHost(), false)
//	dir, err := tools.Packager.Pack(ctx, backend.BundleOptions{
//	    AppDir:  "app",
//	    OutDir:  "dist/MyApp-linux",
//	    Options: map[string]any{"name": "MyApp", "platform": "linux", "arch": "x64"},
//	})
package backend
