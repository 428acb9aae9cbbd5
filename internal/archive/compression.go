package archive

import (
	"fmt"
	"strings"
)

// Trade-off between archive size and build time.
type Compression string

const (
	Store   Compression = "store"   // Fastest, largest output.
	Normal  Compression = "normal"  // Tool defaults.
	Maximum Compression = "maximum" // Slowest, smallest output.
)

// Parses a compression policy. The empty string is [Normal].
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return Normal, nil
	case Store, Normal, Maximum:
		return c, nil
	default:
		return "", fmt.Errorf("%w: compression must be one of store, normal, maximum, got %q", ErrArchive, s)
	}
}

// Tool parameters for one tar-family format.
//
// The compression level is passed through an environment variable read by
// the compressor tar spawns.
type CompressionDescriptor struct {
	Flag     string // tar flag selecting the compressor.
	Env      string // Environment variable holding the compressor options.
	MinLevel string // Level token used for [Store].
	MaxLevel string // Level token used for [Maximum].
}

var descriptors = map[string]CompressionDescriptor{
	"tar.xz":  {Flag: "--xz", Env: "XZ_OPT", MinLevel: "-0", MaxLevel: "-9e"},
	"tar.lz":  {Flag: "--lzip", Env: "LZOP", MinLevel: "-0", MaxLevel: "-9"},
	"tar.gz":  {Flag: "--gz", Env: "GZIP", MinLevel: "-1", MaxLevel: "-9"},
	"tar.bz2": {Flag: "--bzip2", Env: "BZIP2", MinLevel: "-1", MaxLevel: "-9"},
}

// Returns the descriptor of a tar-family format.
func Descriptor(format string) (CompressionDescriptor, bool) {
	d, ok := descriptors[format]
	return d, ok
}

// Returns true if the format is produced with tar.
func IsTar(format string) bool {
	_, ok := descriptors[format]
	return ok
}

// Returns the environment overrides for a policy: the minimum level for
// [Store], the maximum level for [Maximum], and nothing otherwise.
func (d CompressionDescriptor) Environment(c Compression) map[string]string {
	switch c {
	case Store:
		return map[string]string{d.Env: d.MinLevel}
	case Maximum:
		return map[string]string{d.Env: d.MaxLevel}
	default:
		return nil
	}
}
