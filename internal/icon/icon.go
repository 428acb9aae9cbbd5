// Package icon validates Windows icon files before packaging.
//
// The packaging backend embeds the icon into the executable; a malformed or
// too small icon makes it fail with an unrelated error much later, so the
// check runs up front and has no recovery path.
package icon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (

	// Bytes read from the start of the file.
	headerSize = 512

	// Offset of the first directory entry.
	entriesOffset = 6

	// Size of one directory entry.
	entrySize = 16

	// Minimum edge, in pixels, of at least one image.
	minSize = 256
)

var ErrInvalidIcon = errors.New("invalid windows icon")

// The file does not start with an icon container header.
type InvalidIconFormatError struct {
	Path string
}

func (e *InvalidIconFormatError) Error() string {
	return fmt.Sprintf("windows icon is not a valid ico file, please fix %q", e.Path)
}

func (e *InvalidIconFormatError) Unwrap() error { return ErrInvalidIcon }

// No image in the icon is at least 256x256.
type IconTooSmallError struct {
	Path string
}

func (e *IconTooSmallError) Error() string {
	return fmt.Sprintf("windows icon size must be at least 256x256, please fix %q", e.Path)
}

func (e *IconTooSmallError) Unwrap() error { return ErrInvalidIcon }

// Width and height of one image in an icon.
type Size struct {
	Width  int
	Height int
}

// Checks that the file at path is an icon with an image of at least 256x256.
func Validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIcon, err)
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrInvalidIcon, err)
	}

	return ValidateHeader(buf[:n], path)
}

// Checks an icon header already read into memory. path is only used in
// error messages.
func ValidateHeader(buf []byte, path string) error {
	sizes, ok := Parse(buf)
	if !ok {
		return &InvalidIconFormatError{Path: path}
	}
	for _, s := range sizes {
		if s.Width >= minSize && s.Height >= minSize {
			return nil
		}
	}
	return &IconTooSmallError{Path: path}
}

// Parses the image directory of an icon header.
//
// Reports false if the header is not an icon container. A stored width or
// height of zero means 256. Entries past the end of buf are ignored.
func Parse(buf []byte) ([]Size, bool) {
	if len(buf) < entriesOffset {
		return nil, false
	}
	if binary.LittleEndian.Uint16(buf[0:]) != 0 || binary.LittleEndian.Uint16(buf[2:]) != 1 {
		return nil, false
	}

	count := int(binary.LittleEndian.Uint16(buf[4:]))
	sizes := make([]Size, 0, count)
	for i := range count {
		off := entriesOffset + i*entrySize
		if off+2 > len(buf) {
			break
		}
		sizes = append(sizes, Size{
			Width:  dimension(buf[off]),
			Height: dimension(buf[off+1]),
		})
	}
	return sizes, true
}

func dimension(b byte) int {
	if b == 0 {
		return minSize
	}
	return int(b)
}
