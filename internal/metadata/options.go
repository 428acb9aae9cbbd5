package metadata

import (
	"fmt"
	"maps"

	"dario.cat/mergo"
)

// Keys of the per-platform blocks inside the build configuration.
var PlatformKeys = []string{"osx", "mas", "win", "linux"}

// Free-form option bag decoded from a descriptor.
//
// Values keep the shapes produced by JSON and YAML decoding: strings, bools,
// numbers, []any and map[string]any. Accessors return zero values for
// missing keys and for values of the wrong shape.
type Options map[string]any

// Returns true if the key is present, even with a null value.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Returns the string value of key.
func (o Options) String(key string) string {
	switch v := o[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Returns the boolean value of key and whether it was set to a boolean.
func (o Options) Bool(key string) (value bool, ok bool) {
	value, ok = o[key].(bool)
	return value, ok
}

// Returns the nested option bag under key, or nil.
func (o Options) Map(key string) Options {
	switch v := o[key].(type) {
	case map[string]any:
		return Options(v)
	case Options:
		return v
	default:
		return nil
	}
}

// Returns the value of key as a list of strings. A single string is a list
// of one.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Returns a shallow copy without the given keys.
func (o Options) Without(keys ...string) Options {
	out := maps.Clone(o)
	if out == nil {
		out = Options{}
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Returns a deep merge of over on top of o. Neither input is modified.
func (o Options) Merge(over Options) Options {
	return Options(Merge(o, over))
}

// Deep-merges src over dst into a new map.
//
// Nested maps are merged key by key; any other value in src replaces the
// value in dst, including lists and nulls. Both inputs are copied first, so
// the result shares no maps or lists with them.
func Merge(dst, src map[string]any) map[string]any {
	out := cloneMap(dst)
	if err := mergo.Merge(&out, cloneMap(src), mergo.WithOverride); err != nil {
		panic(err) // unreachable: both sides are map[string]any
	}
	return out
}

// Returns a deep copy of m with nested Options converted to plain maps.
func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case Options:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
