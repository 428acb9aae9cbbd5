package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cruciblehq/cruxpack/internal/runtime"
)

var ErrArchive = errors.New("archive failed")

// GNU tar location from Homebrew. The BSD tar shipped with macOS does not
// support the compressor flags.
const macGNUTar = "/usr/local/opt/gnu-tar/libexec/gnubin/tar"

// Archive formats every platform can produce from its packaged output.
var CommonFormats = []string{"zip", "7z", "tar.xz", "tar.lz", "tar.gz", "tar.bz2"}

// Creates archives by shelling out to tar or 7-Zip.
type Archiver struct {
	runner   runtime.Runner // Process runner.
	tar      string         // tar executable.
	sevenZip string         // 7-Zip executable.
	debug    bool           // Stream tool output and ask 7-Zip for verbose logs.
}

// Configures an [Archiver].
type Config struct {
	HostOS   string // Go OS name of the build host, selects the tar binary.
	Tar      string // Overrides the tar executable.
	SevenZip string // Overrides the 7-Zip executable. Defaults to "7za".
	Debug    bool
}

// Creates a new [Archiver].
func New(runner runtime.Runner, cfg Config) *Archiver {
	tar := cfg.Tar
	if tar == "" {
		tar = "tar"
		if cfg.HostOS == "darwin" {
			tar = macGNUTar
		}
	}
	sevenZip := cfg.SevenZip
	if sevenZip == "" {
		sevenZip = "7za"
	}
	return &Archiver{runner: runner, tar: tar, sevenZip: sevenZip, debug: cfg.Debug}
}

// Archives src (a file or directory) into outFile.
//
// tar-family formats go through tar with the format's compressor flag and a
// level set through the environment. Everything else goes through 7-Zip,
// after removing any existing outFile: 7-Zip updates archives in place
// instead of overwriting them.
func (a *Archiver) Archive(ctx context.Context, format string, compression Compression, src, outFile string) error {
	var cmd runtime.Command
	if IsTar(format) {
		var err error
		if cmd, err = a.TarCommand(format, compression, src, outFile); err != nil {
			return err
		}
	} else {
		if err := os.Remove(outFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrArchive, err)
		}
		cmd = a.SevenZipCommand(format, compression, src, outFile)
	}

	slog.Debug("archiving", "format", format, "compression", compression, "file", outFile)

	if _, err := runtime.Run(ctx, a.runner, cmd); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrArchive, format, err)
	}
	return nil
}

// Returns the tar invocation for a tar-family format.
func (a *Archiver) TarCommand(format string, compression Compression, src, outFile string) (runtime.Command, error) {
	d, ok := Descriptor(format)
	if !ok {
		return runtime.Command{}, fmt.Errorf("%w: %q is not a tar format", ErrArchive, format)
	}
	baseDir := filepath.Dir(src)
	return runtime.Command{
		Program: a.tar,
		Args:    []string{d.Flag, "-cf", outFile, "-C", baseDir, filepath.Base(src)},
		Dir:     baseDir,
		Env:     d.Environment(compression),
		Stream:  a.debug,
	}, nil
}

// Returns the 7-Zip invocation for zip, 7z and other formats.
func (a *Archiver) SevenZipCommand(format string, compression Compression, src, outFile string) runtime.Command {
	args := []string{"a", "-bd"}
	if a.debug {
		args = append(args, "-bb3")
	}

	switch compression {
	case Maximum:
		switch {
		case format == "7z" || strings.HasSuffix(format, ".7z"):
			args = append(args, "-mx=9", "-mfb=64", "-md=32m", "-ms=on")
		case format == "zip":
			args = append(args, "-mfb=258", "-mpass=15")
		default:
			args = append(args, "-mx=9")
		}
	case Store:
		if format != "zip" {
			args = append(args, "-mx=1")
		}
	}

	if format == "zip" || compression == Store {
		method := "Deflate"
		if compression == Store {
			method = "Copy"
		}
		args = append(args, "-mm="+method)
	}

	args = append(args, outFile, src)
	return runtime.Command{
		Program: a.sevenZip,
		Args:    args,
		Dir:     filepath.Dir(src),
		Stream:  a.debug,
	}
}
