package codesign

// Environment variables naming signing identities already present in the
// user's keychains.
const (
	EnvIdentity          = "CSC_NAME"
	EnvInstallerIdentity = "CSC_INSTALLER_NAME"
)

// Resolved signing identity for one pipeline.
type Context struct {
	Identity          string // Application signing identity. Empty means unsigned.
	InstallerIdentity string // Installer package signing identity.
	Keychain          string // Keychain holding the identities. Empty means the default search list.
}

// Returns true if an application identity was resolved.
func (c Context) Signed() bool {
	return c.Identity != ""
}

// Sources of a macOS signing identity, in priority order.
type IdentitySources struct {
	Keychain            *Keychain           // Keychain created from embedded certificates.
	Explicit            string              // Identity given on the command line.
	Getenv              func(string) string // Environment lookup.
	Configured          string              // identity from the platform build options.
	InstallerConfigured string              // identity from the mas build options.
}

// Resolves the signing context.
//
// A keychain created from embedded certificates wins. Otherwise the
// application identity is the explicit identity, else CSC_NAME, else the
// configured identity; the installer identity is the explicit identity,
// else CSC_INSTALLER_NAME, else the configured mas identity.
func ResolveMac(src IdentitySources) Context {
	if src.Keychain != nil {
		return Context{
			Identity:          src.Keychain.Identity,
			InstallerIdentity: src.Keychain.InstallerIdentity,
			Keychain:          src.Keychain.Name,
		}
	}

	getenv := src.Getenv
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	return Context{
		Identity:          firstNonEmpty(src.Explicit, getenv(EnvIdentity), src.Configured),
		InstallerIdentity: firstNonEmpty(src.Explicit, getenv(EnvInstallerIdentity), src.InstallerConfigured),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
