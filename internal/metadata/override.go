package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Reads an override document for the development descriptor.
//
// The file may be YAML or JSON. Its top level must be a mapping; it is
// deep-merged over the development descriptor, so a file holding only a
// "build" block adjusts build options without touching anything else.
func ReadOverride(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptor, err)
	}
	return ParseOverride(data, path)
}

// Parses an override document. name is only used in error messages.
func ParseOverride(data []byte, name string) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDescriptor, name, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}
