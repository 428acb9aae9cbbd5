// Package asar reads the directory of asar archives.
//
// An asar archive starts with two length-prefixed pickle frames: the first
// holds the size of the second, and the second holds a JSON document
// describing the file tree. Only the directory is read; file contents are
// never needed by the build.
package asar

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrCorrupted = errors.New("corrupted asar archive")

// Upper bound on the JSON header, guarding against garbage length fields.
const maxHeaderSize = 64 << 20

// One node of the archive tree.
type Entry struct {
	Files    map[string]*Entry `json:"files,omitempty"`    // Children, for directories.
	Size     int64             `json:"size,omitempty"`     // File size in bytes.
	Offset   string            `json:"offset,omitempty"`   // Offset of the contents after the header.
	Unpacked bool              `json:"unpacked,omitempty"` // Stored next to the archive instead of inside it.
	Link     string            `json:"link,omitempty"`     // Symlink target, relative to the archive root.
}

// Returns true if the entry is a directory.
func (e *Entry) IsDir() bool {
	return e.Files != nil
}

// Parsed asar directory.
type Archive struct {
	root *Entry
}

// Reads the directory of the archive at path.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	a, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Reads an archive directory from r.
func Read(r io.Reader) (*Archive, error) {
	var sizePickle [8]byte
	if _, err := io.ReadFull(r, sizePickle[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	if binary.LittleEndian.Uint32(sizePickle[0:]) != 4 {
		return nil, fmt.Errorf("%w: unexpected size pickle", ErrCorrupted)
	}

	headerSize := binary.LittleEndian.Uint32(sizePickle[4:])
	if headerSize < 8 || headerSize > maxHeaderSize {
		return nil, fmt.Errorf("%w: header size %d", ErrCorrupted, headerSize)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	strLen := binary.LittleEndian.Uint32(header[4:])
	if uint64(strLen)+8 > uint64(len(header)) {
		return nil, fmt.Errorf("%w: header string overruns pickle", ErrCorrupted)
	}

	root := &Entry{}
	if err := json.Unmarshal(header[8:8+strLen], root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	if root.Files == nil {
		root.Files = map[string]*Entry{}
	}
	return &Archive{root: root}, nil
}

// Looks up a file by its path relative to the archive root.
//
// Symlinks are followed, up to a fixed depth.
func (a *Archive) Stat(name string) (*Entry, bool) {
	name = path.Clean(filepath.ToSlash(name))
	for range 16 {
		e, ok := a.lookup(name)
		if !ok || e.Link == "" {
			return e, ok
		}
		name = path.Clean(filepath.ToSlash(e.Link))
	}
	return nil, false
}

func (a *Archive) lookup(name string) (*Entry, bool) {
	e := a.root
	if name == "." || name == "" {
		return e, true
	}
	for _, part := range strings.Split(strings.TrimPrefix(name, "/"), "/") {
		if e.Files == nil {
			return nil, false
		}
		next, ok := e.Files[part]
		if !ok {
			return nil, false
		}
		e = next
	}
	return e, true
}
