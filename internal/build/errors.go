package build

import (
	"errors"
	"fmt"

	"github.com/cruciblehq/cruxpack/internal/cleanup"
)

var (
	ErrBuild               = errors.New("build failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrToolchain           = errors.New("toolchain check failed")
)

// A required cross-compilation tool is not installed.
type ToolchainMissingError struct {
	Tool string // Executable name.
	Err  error  // Failure reported when running it.
}

func (e *ToolchainMissingError) Error() string {
	return fmt.Sprintf("%s is required, please install it: %v", e.Tool, e.Err)
}

func (e *ToolchainMissingError) Unwrap() []error {
	return []error{ErrToolchain, e.Err}
}

// A cross-compilation tool is older than required or reports an unreadable
// version.
type ToolchainVersionError struct {
	Tool    string // Executable name.
	Version string // Version as reported by the tool.
	Minimum string // Lowest supported version.
}

func (e *ToolchainVersionError) Error() string {
	return fmt.Sprintf("%s %s or later is required, but %q is installed", e.Tool, e.Minimum, e.Version)
}

func (e *ToolchainVersionError) Unwrap() error { return ErrToolchain }

// Build failure followed by failed teardown actions.
//
// The primary failure is the one reported; the cleanup failures are kept as
// context and remain reachable through [errors.Is] and [errors.As].
type RunError struct {
	Err     error                   // Primary failure.
	Cleanup *cleanup.AggregateError // Teardown failures.
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%v (additionally, %v)", e.Err, e.Cleanup)
}

func (e *RunError) Unwrap() []error {
	return []error{e.Err, e.Cleanup}
}
