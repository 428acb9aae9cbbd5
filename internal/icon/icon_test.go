package icon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Returns a 512-byte icon header with one directory entry per size pair.
func header(sizes ...[2]byte) []byte {
	buf := make([]byte, 512)
	buf[2] = 1
	buf[4] = byte(len(sizes))
	for i, s := range sizes {
		buf[6+i*16] = s[0]
		buf[7+i*16] = s[1]
	}
	return buf
}

func TestValidateHeader(t *testing.T) {
	t.Run("zero means 256", func(t *testing.T) {
		require.NoError(t, ValidateHeader(header([2]byte{0, 0}), "icon.ico"))
	})

	t.Run("one large entry among small ones", func(t *testing.T) {
		require.NoError(t, ValidateHeader(header([2]byte{16, 16}, [2]byte{0, 0}), "icon.ico"))
	})

	t.Run("too small", func(t *testing.T) {
		err := ValidateHeader(header([2]byte{64, 64}), "icon.ico")
		var small *IconTooSmallError
		require.ErrorAs(t, err, &small)
		assert.ErrorIs(t, err, ErrInvalidIcon)
		assert.Contains(t, err.Error(), "at least 256x256")
	})

	t.Run("only width is large", func(t *testing.T) {
		err := ValidateHeader(header([2]byte{0, 128}), "icon.ico")
		var small *IconTooSmallError
		require.ErrorAs(t, err, &small)
	})

	t.Run("bad reserved word", func(t *testing.T) {
		buf := header([2]byte{0, 0})
		buf[0] = 1
		var invalid *InvalidIconFormatError
		require.ErrorAs(t, ValidateHeader(buf, "icon.ico"), &invalid)
	})

	t.Run("cursor type", func(t *testing.T) {
		buf := header([2]byte{0, 0})
		buf[2] = 2
		var invalid *InvalidIconFormatError
		require.ErrorAs(t, ValidateHeader(buf, "icon.ico"), &invalid)
	})

	t.Run("truncated", func(t *testing.T) {
		var invalid *InvalidIconFormatError
		require.ErrorAs(t, ValidateHeader([]byte{0, 0, 1}, "icon.ico"), &invalid)
	})
}

func TestParse(t *testing.T) {
	sizes, ok := Parse(header([2]byte{32, 48}, [2]byte{0, 0}))
	require.True(t, ok)
	assert.Equal(t, []Size{{32, 48}, {256, 256}}, sizes)
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.ico")
	require.NoError(t, os.WriteFile(good, header([2]byte{0, 0}), 0o644))
	require.NoError(t, Validate(good))

	// Files shorter than the header are still parsed.
	short := filepath.Join(dir, "short.ico")
	require.NoError(t, os.WriteFile(short, header([2]byte{0, 0})[:22], 0o644))
	require.NoError(t, Validate(short))

	err := Validate(filepath.Join(dir, "missing.ico"))
	assert.ErrorIs(t, err, ErrInvalidIcon)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
