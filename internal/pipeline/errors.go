package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cruciblehq/cruxpack/internal/platform"
)

var (
	ErrPipeline        = errors.New("pipeline failed")
	ErrUnknownTarget   = errors.New("unknown target")
	ErrSigningRequired = errors.New("signing required")
	ErrPackageSanity   = errors.New("package sanity check failed")
	ErrMissingIconURL  = errors.New("icon url missing")
	ErrInstallerOption = errors.New("invalid installer option")
)

// Raised at construction for a target the platform cannot produce.
type UnknownTargetError struct {
	Platform  platform.Platform
	Target    string
	Supported []string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target %q for %s, supported: %s", e.Target, e.Platform.Name, strings.Join(e.Supported, ", "))
}

func (e *UnknownTargetError) Unwrap() error {
	return ErrUnknownTarget
}

// Raised when a Mac App Store build cannot be signed.
type SigningRequiredError struct {
	Missing string // Name of the missing identity.
}

func (e *SigningRequiredError) Error() string {
	return fmt.Sprintf("signing is required for mas builds but no %s is specified, set CSC_LINK/CSC_INSTALLER_LINK or CSC_NAME/CSC_INSTALLER_NAME", e.Missing)
}

func (e *SigningRequiredError) Unwrap() error {
	return ErrSigningRequired
}

// Raised when the packaging backend produced an unusable bundle.
type PackageSanityError struct {
	Path   string
	Reason string
}

func (e *PackageSanityError) Error() string {
	return fmt.Sprintf("%q %s, seems like a wrong configuration", e.Path, e.Reason)
}

func (e *PackageSanityError) Unwrap() error {
	return ErrPackageSanity
}

// Raised when the Windows installer has no icon URL and none can be derived
// from the repository.
type MissingIconURLError struct{}

func (e *MissingIconURLError) Error() string {
	return "iconUrl is not specified in build.win or build and cannot be derived from the repository"
}

func (e *MissingIconURLError) Unwrap() error {
	return ErrMissingIconURL
}

// Raised for a Windows build option the installer tool must not receive.
type InstallerOptionError struct {
	Option string
	Reason string
}

func (e *InstallerOptionError) Error() string {
	return fmt.Sprintf("option %q %s", e.Option, e.Reason)
}

func (e *InstallerOptionError) Unwrap() error {
	return ErrInstallerOption
}
