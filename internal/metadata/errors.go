package metadata

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("invalid project metadata")
	ErrDescriptor = errors.New("cannot read package descriptor")
)

// A required field is absent from a descriptor.
type MissingFieldError struct {
	Path  string // Descriptor that should declare the field.
	Field string // Dotted field name.
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("please specify '%s' in the application package.json (%q)", e.Field, e.Path)
}

func (e *MissingFieldError) Unwrap() error { return ErrValidation }

// The application descriptor of a two-package project declares a build
// configuration.
type MisplacedBuildConfigError struct {
	AppPath string // Application descriptor.
	DevPath string // Development descriptor, where the block belongs.
}

func (e *MisplacedBuildConfigError) Error() string {
	return fmt.Sprintf("'build' in the application package.json (%q) is not supported, please move it to the development package.json (%q)", e.AppPath, e.DevPath)
}

func (e *MisplacedBuildConfigError) Unwrap() error { return ErrValidation }

// The development descriptor has no build configuration.
type MissingBuildConfigError struct {
	Path string
}

func (e *MissingBuildConfigError) Error() string {
	return fmt.Sprintf("please specify 'build' configuration in the development package.json (%q), at least 'build.app-bundle-id' and 'build.app-category-type' are expected", e.Path)
}

func (e *MissingBuildConfigError) Unwrap() error { return ErrValidation }

// The build configuration redeclares a field owned by the application
// descriptor.
type ConflictingFieldError struct {
	Path  string // Development descriptor.
	Field string
}

func (e *ConflictingFieldError) Error() string {
	return fmt.Sprintf("'build.%s' in %q is not allowed, '%s' is taken from the application package.json", e.Field, e.Path, e.Field)
}

func (e *ConflictingFieldError) Unwrap() error { return ErrValidation }

// The build configuration sets an option the packaging backend reserves.
type ReservedOptionError struct {
	Option string
}

func (e *ReservedOptionError) Error() string {
	return fmt.Sprintf("option %s is ignored, do not specify it", e.Option)
}

func (e *ReservedOptionError) Unwrap() error { return ErrValidation }
