// Parses flags and configures logging for cruxpack.
//
// The command line accepts the following global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output.
//
// build is the default command. It selects platforms with --platform or the
// --osx, --win and --linux shorthands, architectures with --arch or --x64
// and --ia32, and target formats with --target. Signing certificates are
// read from --csc-link and --csc-key-password, or the CSC_LINK and
// CSC_KEY_PASSWORD environment variables.
//
// Flags override build-time defaults set via linker flags. After parsing, the
// global logger is reconfigured to reflect the final level and verbosity before
// the command runs.
package cli
