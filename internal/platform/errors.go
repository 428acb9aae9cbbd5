package platform

import (
	"errors"
	"fmt"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// Raised for a platform token that maps to no supported platform.
type UnknownPlatformError struct {
	Token string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform: %q", e.Token)
}

func (e *UnknownPlatformError) Unwrap() error {
	return ErrUnknownPlatform
}

// Raised for an architecture token that maps to no supported architecture.
type UnknownArchError struct {
	Token string
}

func (e *UnknownArchError) Error() string {
	return fmt.Sprintf("unknown architecture: %q", e.Token)
}

func (e *UnknownArchError) Unwrap() error {
	return ErrUnknownPlatform
}
