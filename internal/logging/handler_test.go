package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerBuffersUntilFlush(t *testing.T) {
	h := NewHandler()
	logger := slog.New(h)

	logger.Info("packaging", "platform", "osx")
	logger.Debug("hidden")

	var out bytes.Buffer
	h.SetStream(&out)
	assert.Empty(t, out.String(), "nothing is written before Flush")

	require.NoError(t, h.Flush())
	assert.Equal(t, "info packaging platform=osx\n", out.String())

	logger.Warn("app is not signed", "arch", "x64")
	assert.Equal(t, "info packaging platform=osx\nwarn app is not signed arch=x64\n", out.String())
}

func TestHandlerLevelAppliesToBufferedRecords(t *testing.T) {
	h := NewHandler()
	h.SetLevel(slog.LevelDebug)
	logger := slog.New(h)
	logger.Debug("exec", "command", "tar")
	logger.Info("done")

	var out bytes.Buffer
	h.SetLevel(slog.LevelWarn)
	h.SetStream(&out)
	require.NoError(t, h.Flush())
	assert.Empty(t, out.String())
}

func TestHandlerFlushWithoutStreamKeepsRecords(t *testing.T) {
	h := NewHandler()
	slog.New(h).Info("early")
	require.NoError(t, h.Flush())

	var out bytes.Buffer
	h.SetStream(&out)
	require.NoError(t, h.Flush())
	assert.Equal(t, "info early\n", out.String())
}

func TestFormatterVerbosity(t *testing.T) {
	var out bytes.Buffer
	h := NewHandler()
	h.SetStream(&out)
	require.NoError(t, h.Flush())

	logger := slog.New(h.WithGroup("cruxpack")).With("file", "dist/App.dmg")

	logger.Info("artifact created", "size", 10)
	assert.Equal(t, "info artifact created file=dist/App.dmg\n", out.String())

	out.Reset()
	f := NewPrettyFormatter(false)
	f.SetVerbose(true)
	h.SetFormatter(f)
	logger.Info("artifact created", "size", 10, "name", "App 1.0")
	assert.Equal(t, "info artifact created cruxpack.file=dist/App.dmg cruxpack.size=10 cruxpack.name=\"App 1.0\"\n", out.String())
}
