package backend

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Converts an option map into "--key=value" flags, sorted by key.
//
// Nested maps use dotted keys, lists repeat the flag, true becomes a bare
// flag and nil values are dropped. Keys listed in skip are ignored at the
// top level.
func Flags(opts map[string]any, skip ...string) []string {
	var out []string
	appendFlags(&out, "", opts, skip)
	return out
}

func appendFlags(out *[]string, prefix string, opts map[string]any, skip []string) {
	for _, k := range slices.Sorted(maps.Keys(opts)) {
		if prefix == "" && slices.Contains(skip, k) {
			continue
		}
		appendValue(out, prefix+k, opts[k], skip)
	}
}

func appendValue(out *[]string, key string, v any, skip []string) {
	switch v := v.(type) {
	case nil:
	case bool:
		if v {
			*out = append(*out, "--"+key)
		} else {
			*out = append(*out, "--"+key+"=false")
		}
	case map[string]any:
		appendFlags(out, key+".", v, skip)
	case []any:
		for _, item := range v {
			appendValue(out, key, item, skip)
		}
	case []string:
		for _, item := range v {
			*out = append(*out, "--"+key+"="+item)
		}
	case float64:
		*out = append(*out, "--"+key+"="+strconv.FormatFloat(v, 'f', -1, 64))
	default:
		*out = append(*out, fmt.Sprintf("--%s=%v", key, v))
	}
}
