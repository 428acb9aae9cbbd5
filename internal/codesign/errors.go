package codesign

import "errors"

var (
	ErrCertificate = errors.New("cannot obtain certificate")
	ErrKeychain    = errors.New("keychain operation failed")
	ErrSign        = errors.New("code signing failed")
)
