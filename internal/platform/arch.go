package platform

import "strings"

// CPU architecture, using the packaging backend's naming.
type Arch string

const (
	IA32  Arch = "ia32"
	X64   Arch = "x64"
	ARMv7 Arch = "armv7l"
	ARM64 Arch = "arm64"
)

// Token selecting both 32- and 64-bit Intel builds.
const allToken = "all"

// Returns the architecture name.
func (a Arch) String() string {
	return string(a)
}

// Returns "" for x64 and "-<arch>" otherwise. Used in output names so the
// default architecture keeps unsuffixed paths.
func (a Arch) Suffix() string {
	if a == X64 {
		return ""
	}
	return "-" + string(a)
}

// Returns the architecture name understood by Debian-family tooling.
func (a Arch) Debian() string {
	switch a {
	case IA32:
		return "i386"
	case X64:
		return "amd64"
	case ARMv7:
		return "armhf"
	default:
		return string(a)
	}
}

// Converts a Go architecture name into an [Arch].
func ArchFromGo(goarch string) Arch {
	switch goarch {
	case "386":
		return IA32
	case "amd64":
		return X64
	case "arm":
		return ARMv7
	default:
		return Arch(goarch)
	}
}

// Parses a user-supplied architecture token.
func ParseArch(token string) (Arch, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "ia32", "386", "x86":
		return IA32, nil
	case "x64", "amd64", "x86_64":
		return X64, nil
	case "armv7l", "arm":
		return ARMv7, nil
	case "arm64", "aarch64":
		return ARM64, nil
	default:
		return "", &UnknownArchError{Token: token}
	}
}
