// Provides platform-appropriate locations for files the tool creates outside
// the project tree.
//
// Base directories follow XDG conventions on Linux and platform-native
// conventions on macOS and Windows, with "cruxpack" as the subdirectory.
// Nothing stored here outlives a run except the cache root itself: files are
// registered for cleanup by whichever component created them.
package paths
