package codesign

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/cruciblehq/cruxpack/internal/cleanup"
	"github.com/cruciblehq/cruxpack/internal/runtime"
)

const (

	// Apple Worldwide Developer Relations intermediate certificate.
	DefaultAuthorityLink = "https://developer.apple.com/certificationauthority/AppleWWDRCA.cer"

	// macOS keychain tool.
	securityTool = "security"
)

// Certificate name prefixes of application signing identities, in order of
// preference.
var appIdentityPrefixes = []string{"Developer ID Application:", "3rd Party Mac Developer Application:"}

// Certificate name prefixes of installer signing identities.
var installerIdentityPrefixes = []string{"3rd Party Mac Developer Installer:", "Developer ID Installer:"}

// Credentials imported into an ephemeral keychain.
type KeychainOptions struct {
	Link              string // Application signing certificate (p12).
	Password          string // Password of the application certificate.
	InstallerLink     string // Optional installer signing certificate (p12).
	InstallerPassword string // Password of the installer certificate.
	AuthorityLink     string // Intermediate authority. Defaults to [DefaultAuthorityLink].
}

// Ephemeral keychain holding imported signing certificates.
type Keychain struct {
	Name              string // Keychain file name.
	Identity          string // Application signing identity found in the keychain.
	InstallerIdentity string // Installer signing identity, if an installer certificate was imported.
}

// Returns a new unique keychain name.
func KeychainName() string {
	return "csc-" + uuid.NewString() + ".keychain"
}

// Creates a keychain, imports the certificates and looks up the signing
// identities.
//
// Deletion of the keychain is registered on reg before it is created, so a
// partially created keychain is removed as well.
func CreateKeychain(ctx context.Context, runner runtime.Runner, fetcher *Fetcher, reg *cleanup.Registry, opts KeychainOptions) (*Keychain, error) {
	name := KeychainName()
	reg.Add("delete keychain "+name, func(ctx context.Context) error {
		return DeleteKeychain(ctx, runner, name)
	})

	authority := opts.AuthorityLink
	if authority == "" {
		authority = DefaultAuthorityLink
	}

	links := []string{authority, opts.Link}
	passwords := []string{opts.Password}
	if opts.InstallerLink != "" {
		links = append(links, opts.InstallerLink)
		passwords = append(passwords, opts.InstallerPassword)
	}

	files := make([]string, len(links))
	for i, link := range links {
		file, err := fetcher.Fetch(ctx, link)
		if err != nil {
			return nil, err
		}
		files[i] = file
	}

	password, err := randomPassword()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeychain, err)
	}

	setup := [][]string{
		{"create-keychain", "-p", password, name},
		{"unlock-keychain", "-p", password, name},
		{"set-keychain-settings", "-t", "3600", "-u", name},
	}
	for _, args := range setup {
		if err := security(ctx, runner, []string{password}, args...); err != nil {
			return nil, err
		}
	}

	// Certificates without a password are authorities; the rest are
	// identities with private keys.
	authorities := files[:len(files)-len(passwords)]
	identities := files[len(files)-len(passwords):]

	for _, f := range authorities {
		if err := security(ctx, runner, nil, "import", f, "-k", name, "-T", "/usr/bin/codesign"); err != nil {
			return nil, err
		}
	}
	for i, f := range identities {
		if err := security(ctx, runner, passwords[i:i+1], "import", f, "-k", name, "-T", "/usr/bin/codesign", "-T", "/usr/bin/productbuild", "-P", passwords[i]); err != nil {
			return nil, err
		}
	}

	out, err := runtime.Output(ctx, runner, runtime.Command{
		Program: securityTool,
		Args:    []string{"find-identity", "-v", "-p", "codesigning", name},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeychain, err)
	}

	k := &Keychain{
		Name:     name,
		Identity: FindIdentity(out, appIdentityPrefixes...),
	}
	if opts.InstallerLink != "" {
		k.InstallerIdentity = FindIdentity(out, installerIdentityPrefixes...)
	}

	slog.Debug("keychain created", "keychain", name, "identity", k.Identity, "installerIdentity", k.InstallerIdentity)
	return k, nil
}

// Deletes a keychain. A keychain that does not exist is not an error.
func DeleteKeychain(ctx context.Context, runner runtime.Runner, name string) error {
	result, err := runner.Exec(ctx, runtime.Command{Program: securityTool, Args: []string{"delete-keychain", name}})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeychain, err)
	}
	if result.ExitCode != 0 && !strings.Contains(result.Stderr, "could not be found") {
		return fmt.Errorf("%w: delete %s: %s", ErrKeychain, name, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// Returns the first identity in "security find-identity" output whose name
// starts with one of the prefixes, trying prefixes in order.
func FindIdentity(output string, prefixes ...string) string {
	lines := strings.Split(output, "\n")
	for _, prefix := range prefixes {
		for _, line := range lines {
			start := strings.IndexByte(line, '"')
			end := strings.LastIndexByte(line, '"')
			if start < 0 || end <= start {
				continue
			}
			if name := line[start+1 : end]; strings.HasPrefix(name, prefix) {
				return name
			}
		}
	}
	return ""
}

func security(ctx context.Context, runner runtime.Runner, secrets []string, args ...string) error {
	if _, err := runtime.Run(ctx, runner, runtime.Command{Program: securityTool, Args: args, Secrets: secrets}); err != nil {
		return fmt.Errorf("%w: %w", ErrKeychain, err)
	}
	return nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
