// Package platform normalizes build requests.
//
// Raw platform, architecture and target tokens from the command line are
// turned into canonical values before any work starts, so that unknown
// values are rejected before a single side effect happens.
package platform
