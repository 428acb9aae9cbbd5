package metadata

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// File name of package descriptors.
const DescriptorName = "package.json"

// One decoded package descriptor.
type Document struct {
	Path string         // Absolute path of the descriptor file.
	Raw  map[string]any // Decoded contents, with any override applied.
}

// Decodes the document into v through its JSON representation.
func (d *Document) Decode(v any) error {
	data, err := json.Marshal(d.Raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDescriptor, d.Path, err)
	}
	return nil
}

// Returns the build configuration block, or nil if absent.
func (d *Document) Build() Options {
	return Options(d.Raw).Map("build")
}

// Returns true if the document declares key at the top level.
func (d *Document) Has(key string) bool {
	return Options(d.Raw).Has(key)
}

// Fields of the application descriptor the build reads.
type AppMetadata struct {
	Name        string      `json:"name"`
	ProductName string      `json:"productName"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Main        string      `json:"main"`
	Homepage    string      `json:"homepage"`
	License     string      `json:"license"`
	Author      *Author     `json:"author"`
	Repository  *Repository `json:"repository"`
}

// Returns the main entry file relative to the application directory.
func (m *AppMetadata) MainFile() string {
	if m.Main == "" {
		return "index.js"
	}
	return m.Main
}

// Fields of the development descriptor the build reads.
type DevMetadata struct {
	Homepage        string            `json:"homepage"`
	License         string            `json:"license"`
	Repository      *Repository       `json:"repository"`
	Directories     Directories       `json:"directories"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Project directories declared in the development descriptor, relative to
// the project root.
type Directories struct {
	BuildResources string `json:"buildResources"`
	Output         string `json:"output"`
	App            string `json:"app"`
}

// Package author.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	URL   string `json:"url"`
}

var authorPattern = regexp.MustCompile(`^([^<(]*)(?:<([^>]*)>)?\s*(?:\(([^)]*)\))?`)

// Accepts the object form and the "Name <email> (url)" string form.
func (a *Author) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = ParseAuthor(s)
		return nil
	}
	type plain Author
	return json.Unmarshal(data, (*plain)(a))
}

// Parses the "Name <email> (url)" author form. Email and URL are optional.
func ParseAuthor(s string) Author {
	m := authorPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Author{Name: strings.TrimSpace(s)}
	}
	return Author{
		Name:  strings.TrimSpace(m[1]),
		Email: strings.TrimSpace(m[2]),
		URL:   strings.TrimSpace(m[3]),
	}
}

// Repository reference.
type Repository struct {
	URL string `json:"url"`
}

// Accepts the object form and the plain string form.
func (r *Repository) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.URL = s
		return nil
	}
	type plain Repository
	return json.Unmarshal(data, (*plain)(r))
}
