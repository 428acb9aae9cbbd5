package platform

import (
	"slices"
	"strings"
)

// Resolves raw platform tokens into a canonical, deduplicated list.
//
// No tokens selects the host platform. A sole "all" selects every platform
// the host can build for: macOS, Linux and Windows on macOS; Linux and
// Windows on Linux (macOS code signing needs macOS); Windows elsewhere.
// Otherwise every token is mapped in input order, and the first unknown
// token fails the whole request.
func NormalizePlatforms(tokens []string, host Host) ([]Platform, error) {
	if len(tokens) == 0 {
		p, err := FromOS(host.OS)
		if err != nil {
			return nil, err
		}
		return []Platform{p}, nil
	}

	if len(tokens) == 1 && strings.EqualFold(strings.TrimSpace(tokens[0]), allToken) {
		switch host.OS {
		case MacOS.OS:
			return []Platform{MacOS, Linux, Windows}, nil
		case Linux.OS:
			return []Platform{Linux, Windows}, nil
		default:
			return []Platform{Windows}, nil
		}
	}

	platforms := make([]Platform, 0, len(tokens))
	for _, token := range tokens {
		p, err := FromString(token)
		if err != nil {
			return nil, err
		}
		platforms = Append(platforms, p)
	}
	return platforms, nil
}

// Appends platforms that are not already present.
func Append(list []Platform, ps ...Platform) []Platform {
	for _, p := range ps {
		if !slices.Contains(list, p) {
			list = append(list, p)
		}
	}
	return list
}

// Resolves the architectures to build for a platform.
//
// macOS always yields x64 regardless of the request. Elsewhere no token
// selects the host architecture, "all" selects ia32 and x64, and any other
// token selects that single architecture.
func NormalizeArchs(p Platform, token string, host Host) ([]Arch, error) {
	if p == MacOS {
		return []Arch{X64}, nil
	}

	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return []Arch{host.Arch}, nil
	case strings.EqualFold(token, allToken):
		return []Arch{IA32, X64}, nil
	}

	a, err := ParseArch(token)
	if err != nil {
		return nil, err
	}
	return []Arch{a}, nil
}

// Lower-cases and trims target format tokens.
//
// An empty or absent list yields nil, meaning "use the platform default",
// never an empty set.
func NormalizeTargets(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	targets := make([]string, 0, len(tokens))
	for _, t := range tokens {
		targets = append(targets, strings.ToLower(strings.TrimSpace(t)))
	}
	return targets
}
