package codesign

import (
	"context"
	"fmt"
	"os"

	"github.com/cruciblehq/cruxpack/internal/runtime"
)

// Timestamp server countersigning Authenticode signatures.
const TimestampURL = "http://timestamp.digicert.com"

// Signs Windows executables with Authenticode.
type WinSigner interface {
	Sign(ctx context.Context, opts WinSignOptions) error
}

// Input of [WinSigner.Sign].
type WinSignOptions struct {
	Path     string // Executable to sign in place.
	Cert     string // PKCS#12 certificate file.
	Password string // Certificate password.
	Name     string // Program name shown by Windows.
	Site     string // Optional product URL.
}

// [WinSigner] using signtool on Windows hosts and osslsigncode elsewhere.
type Authenticode struct {
	runner runtime.Runner
	hostOS string
}

// Creates a new [Authenticode] signer for the given host.
func NewAuthenticode(runner runtime.Runner, hostOS string) *Authenticode {
	return &Authenticode{runner: runner, hostOS: hostOS}
}

func (a *Authenticode) Sign(ctx context.Context, opts WinSignOptions) error {
	cmd, signed := a.Command(opts)
	if _, err := runtime.Run(ctx, a.runner, cmd); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSign, opts.Path, err)
	}
	if signed != opts.Path {
		if err := os.Rename(signed, opts.Path); err != nil {
			return fmt.Errorf("%w: %w", ErrSign, err)
		}
	}
	return nil
}

// Returns the signing invocation and the file it writes. osslsigncode
// cannot sign in place and writes next to the input.
func (a *Authenticode) Command(opts WinSignOptions) (runtime.Command, string) {
	if a.hostOS == "windows" {
		args := []string{"sign", "/f", opts.Cert, "/p", opts.Password, "/fd", "sha256", "/tr", TimestampURL, "/td", "sha256", "/d", opts.Name}
		if opts.Site != "" {
			args = append(args, "/du", opts.Site)
		}
		args = append(args, opts.Path)
		return runtime.Command{Program: "signtool", Args: args, Secrets: []string{opts.Password}}, opts.Path
	}

	out := opts.Path + ".signed"
	args := []string{"sign", "-pkcs12", opts.Cert, "-pass", opts.Password, "-h", "sha256", "-t", TimestampURL, "-n", opts.Name}
	if opts.Site != "" {
		args = append(args, "-i", opts.Site)
	}
	args = append(args, "-in", opts.Path, "-out", out)
	return runtime.Command{Program: "osslsigncode", Args: args, Secrets: []string{opts.Password}}, out
}
