package logging

import (
	"bytes"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/gookit/color"
)

// Renders one log record as a line of output.
type Formatter interface {
	Format(r slog.Record, attrs []slog.Attr, groups []string) []byte
}

// Attributes printed even when the formatter is not verbose.
var summaryKeys = []string{"platform", "arch", "target", "file", "error"}

// Human-oriented formatter: "level message key=value...".
type PrettyFormatter struct {
	color   bool // Color the level with ANSI escapes.
	verbose bool // Print every attribute, not only the summary keys.
}

// Creates a new [PrettyFormatter]. color should be true only when the output
// stream is a terminal.
func NewPrettyFormatter(color bool) *PrettyFormatter {
	return &PrettyFormatter{color: color}
}

// Enables printing of every attribute, including grouped ones.
func (f *PrettyFormatter) SetVerbose(verbose bool) {
	f.verbose = verbose
}

func (f *PrettyFormatter) Format(r slog.Record, attrs []slog.Attr, groups []string) []byte {
	var buf bytes.Buffer
	buf.WriteString(f.level(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	prefix := ""
	if f.verbose && len(groups) > 0 {
		prefix = strings.Join(groups, ".") + "."
	}

	write := func(a slog.Attr) bool {
		f.writeAttr(&buf, prefix, a)
		return true
	}
	for _, a := range attrs {
		write(a)
	}
	r.Attrs(write)

	buf.WriteByte('\n')
	return buf.Bytes()
}

func (f *PrettyFormatter) writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			f.writeAttr(buf, prefix+a.Key+".", ga)
		}
		return
	}

	if !f.verbose && !slices.Contains(summaryKeys, a.Key) {
		return
	}

	buf.WriteByte(' ')
	buf.WriteString(prefix + a.Key)
	buf.WriteByte('=')
	buf.WriteString(quoteValue(a.Value.String()))
}

func (f *PrettyFormatter) level(l slog.Level) string {
	name := strings.ToLower(l.String())
	if !f.color {
		return name
	}
	switch {
	case l >= slog.LevelError:
		return color.Red.Sprint(name)
	case l >= slog.LevelWarn:
		return color.Yellow.Sprint(name)
	case l >= slog.LevelInfo:
		return color.Cyan.Sprint(name)
	default:
		return color.Gray.Sprint(name)
	}
}

func quoteValue(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
