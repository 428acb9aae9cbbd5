package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Subdirectory name under each base directory.
	toolName = "cruxpack"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644

	// Permission mode for files holding secrets (downloaded certificates).
	PrivateFileMode os.FileMode = 0600

	// Default name of the output directory under the project root.
	DefaultOutputDir = "dist"

	// Default name of the build resources directory under the project root.
	DefaultBuildResourcesDir = "build"
)

// Root of the tool cache.
//
//	Linux:   $XDG_CACHE_HOME/cruxpack or ~/.cache/cruxpack
//	macOS:   ~/Library/Caches/cruxpack
//	Windows: %LOCALAPPDATA%\cruxpack
func Cache() string {
	return filepath.Join(xdg.CacheHome, toolName)
}

// Directory for downloaded code signing certificates.
//
// Files written here are removed by cleanup tasks at the end of each run.
func Certificates() string {
	return filepath.Join(Cache(), "certificates")
}

// Directory for per-run scratch files (desktop entries, installer specs).
func Scratch() string {
	return filepath.Join(Cache(), "tmp")
}

// Directory node-gyp uses for Electron headers during dependency rebuilds.
func ElectronGyp() string {
	return filepath.Join(xdg.Home, ".electron-gyp")
}

// Creates a unique directory under [Scratch] with the given name prefix.
func MkScratch(prefix string) (string, error) {
	if err := os.MkdirAll(Scratch(), DefaultDirMode); err != nil {
		return "", err
	}
	return os.MkdirTemp(Scratch(), prefix)
}
