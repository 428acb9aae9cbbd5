package metadata

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5/util"
)

// Packages that provide the Electron runtime.
var electronPackages = []string{"electron", "electron-prebuilt"}

// Returns the Electron version the application is built against.
//
// The version is taken from the development descriptor's devDependencies or
// dependencies, with any range operator stripped. Without a declared
// dependency, the version of the installed package under node_modules is
// used.
func (p *Project) ElectronVersion() (string, error) {
	for _, deps := range []map[string]string{p.DevMetadata.DevDependencies, p.DevMetadata.Dependencies} {
		for _, name := range electronPackages {
			if v := stripRange(deps[name]); v != "" {
				return v, nil
			}
		}
	}

	for _, name := range electronPackages {
		data, err := util.ReadFile(p.fs, path.Join("node_modules", name, DescriptorName))
		if err != nil {
			continue
		}
		var pkg struct {
			Version string `json:"version"`
		}
		if json.Unmarshal(data, &pkg) == nil && pkg.Version != "" {
			return pkg.Version, nil
		}
	}

	return "", &MissingFieldError{Path: p.Dev.Path, Field: "devDependencies.electron"}
}

// Strips a leading semver range operator, e.g. "^1.2.0" becomes "1.2.0".
func stripRange(v string) string {
	v = strings.TrimSpace(v)
	return strings.TrimLeft(v, "^~>=<v ")
}
