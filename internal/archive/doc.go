// Package archive maps archive formats and a compression policy to archiving
// tool invocations.
//
// tar-family formats (tar.xz, tar.lz, tar.gz, tar.bz2) use the system tar
// with the compressor level passed through the compressor's environment
// variable; zip, 7z and anything else use 7-Zip with format-specific flags.
// Tool invocations carry their environment explicitly, see [runtime.Command].
//
// Example usage:
//
//	a := archive.New(runner, archive.Config{HostOS: runtime.GOOS})
//	err := a.Archive(ctx, "tar.gz", archive.Maximum, appOutDir, "dist/app-1.0.tar.gz")
package archive
