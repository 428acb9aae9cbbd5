package codesign

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/cruciblehq/cruxpack/internal/runtime"
)

// Signs macOS application bundles and builds signed installer packages.
type MacSigner interface {
	Sign(ctx context.Context, opts MacSignOptions) error
	Flat(ctx context.Context, opts FlatOptions) error
}

// Input of [MacSigner.Sign].
type MacSignOptions struct {
	App                 string         // Path of the .app bundle.
	Platform            string         // "darwin" or "mas".
	Identity            string         // Signing identity.
	Keychain            string         // Optional keychain holding the identity.
	Entitlements        string         // Optional entitlements file.
	EntitlementsInherit string         // Optional entitlements file for helper executables.
	Extra               map[string]any // Additional tool options.
}

// Input of [MacSigner.Flat].
type FlatOptions struct {
	App      string // Path of the signed .app bundle.
	Pkg      string // Output installer package.
	Platform string // "darwin" or "mas".
	Identity string // Installer signing identity.
	Keychain string // Optional keychain holding the identity.
}

// [MacSigner] backed by the electron-osx-sign command line tools.
type OSXSign struct {
	runner runtime.Runner
	sign   string // electron-osx-sign executable.
	flat   string // electron-osx-flat executable.
}

// Creates a new [OSXSign] running the tools from PATH.
func NewOSXSign(runner runtime.Runner) *OSXSign {
	return &OSXSign{runner: runner, sign: "electron-osx-sign", flat: "electron-osx-flat"}
}

func (s *OSXSign) Sign(ctx context.Context, opts MacSignOptions) error {
	if _, err := runtime.Run(ctx, s.runner, s.SignCommand(opts)); err != nil {
		return fmt.Errorf("%w: %w", ErrSign, err)
	}
	return nil
}

func (s *OSXSign) Flat(ctx context.Context, opts FlatOptions) error {
	if _, err := runtime.Run(ctx, s.runner, s.FlatCommand(opts)); err != nil {
		return fmt.Errorf("%w: %w", ErrSign, err)
	}
	return nil
}

// Returns the signing invocation. Extra options are passed as sorted
// "--key=value" flags; boolean options become bare flags when true and are
// dropped when false.
func (s *OSXSign) SignCommand(opts MacSignOptions) runtime.Command {
	args := []string{opts.App, "--platform=" + opts.Platform, "--identity=" + opts.Identity}
	args = appendFlag(args, "keychain", opts.Keychain)
	args = appendFlag(args, "entitlements", opts.Entitlements)
	args = appendFlag(args, "entitlements-inherit", opts.EntitlementsInherit)

	for _, k := range slices.Sorted(maps.Keys(opts.Extra)) {
		switch v := opts.Extra[k].(type) {
		case bool:
			if v {
				args = append(args, "--"+k)
			}
		case nil:
		default:
			args = append(args, fmt.Sprintf("--%s=%v", k, v))
		}
	}
	return runtime.Command{Program: s.sign, Args: args}
}

// Returns the installer package invocation.
func (s *OSXSign) FlatCommand(opts FlatOptions) runtime.Command {
	args := []string{opts.App, "--platform=" + opts.Platform, "--identity=" + opts.Identity, "--pkg=" + opts.Pkg}
	args = appendFlag(args, "keychain", opts.Keychain)
	return runtime.Command{Program: s.flat, Args: args}
}

func appendFlag(args []string, name, value string) []string {
	if value == "" {
		return args
	}
	return append(args, "--"+name+"="+value)
}
