package platform

import (
	"runtime"
	"strings"
)

// Target operating system of a build.
type Platform struct {
	Name      string // Display name, e.g. "macOS".
	ConfigKey string // Key of the platform block in the build configuration.
	OS        string // Operating system name as reported by the Go runtime.
	NodeName  string // Operating system name as reported by Node, used by Electron tooling.
}

var (
	MacOS   = Platform{Name: "macOS", ConfigKey: "osx", OS: "darwin", NodeName: "darwin"}
	Linux   = Platform{Name: "Linux", ConfigKey: "linux", OS: "linux", NodeName: "linux"}
	Windows = Platform{Name: "Windows", ConfigKey: "win", OS: "windows", NodeName: "win32"}
)

// Returns the build configuration key, which is also the canonical token.
func (p Platform) String() string {
	return p.ConfigKey
}

// Maps a user-supplied token to a platform.
//
// Accepts build configuration keys, Go and Node operating system names and
// common aliases, case-insensitively.
func FromString(token string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "osx", "darwin", "mac", "macos":
		return MacOS, nil
	case "linux":
		return Linux, nil
	case "win", "win32", "windows":
		return Windows, nil
	default:
		return Platform{}, &UnknownPlatformError{Token: token}
	}
}

// Maps a Go operating system name to a platform.
func FromOS(goos string) (Platform, error) {
	return FromString(goos)
}

// Machine performing the build.
type Host struct {
	OS   string // Go operating system name.
	Arch Arch   // Architecture of the host.
}

// Returns the host described by the Go runtime.
func CurrentHost() Host {
	return Host{OS: runtime.GOOS, Arch: ArchFromGo(runtime.GOARCH)}
}

// Returns true if the host runs the given platform natively.
func (h Host) Is(p Platform) bool {
	return h.OS == p.OS
}
