// Package codesign resolves signing identities and drives the platform
// signing tools.
//
// On macOS, embedded certificates (a p12 link and its password) are
// imported into an ephemeral keychain whose deletion is registered as a
// cleanup task. Without embedded certificates the identity comes from the
// command line, the CSC_NAME environment variable or the build options, see
// [ResolveMac]. Windows executables are signed with Authenticode using a
// certificate file obtained through a [Fetcher].
//
// Tool failures are returned wrapping [ErrSign] with the offending command
// line; passwords are masked.
package codesign
