package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/cruciblehq/cruxpack/internal/paths"
	"github.com/cruciblehq/cruxpack/internal/runtime"
)

// Step lines printed by appdmg, e.g. "[ 3/20] Creating temporary image...".
var appdmgStep = regexp.MustCompile(`^\[\s*(\d+)/(\d+)\]\s+(.*?)\s*(?:\[[A-Z ]+\])?\s*$`)

// [DMGBuilder] backed by the appdmg command line tool.
type AppDMG struct {
	runner     runtime.Runner
	program    string
	ScratchDir string // Directory for the specification file. Defaults to [paths.Scratch].
}

// Creates a new [AppDMG].
func NewAppDMG(runner runtime.Runner) *AppDMG {
	return &AppDMG{runner: runner, program: "appdmg"}
}

// Writes the specification to a scratch file and runs appdmg on it.
//
// Relative icon and background paths are resolved against opts.BasePath,
// since appdmg resolves them against the specification file.
func (d *AppDMG) Build(ctx context.Context, opts DMGOptions, progress func(Progress)) error {
	spec := make(map[string]any, len(opts.Specification))
	for k, v := range opts.Specification {
		spec[k] = v
	}
	for _, key := range []string{"icon", "background"} {
		if p, ok := spec[key].(string); ok && p != "" && !filepath.IsAbs(p) {
			spec[key] = filepath.Join(opts.BasePath, p)
		}
	}

	file, remove, err := writeSpec(d.ScratchDir, "dmg-", spec)
	if err != nil {
		return err
	}
	defer remove()

	if err := os.Remove(opts.Target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %w", ErrBackend, err)
	}

	result, err := runtime.Run(ctx, d.runner, runtime.Command{
		Program: d.program,
		Args:    []string{file, opts.Target},
		Dir:     opts.BasePath,
	})
	if result != nil && progress != nil {
		ReportSteps(result.Stdout, progress)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return nil
}

// Parses appdmg step lines from output and reports them in order.
func ReportSteps(output string, progress func(Progress)) {
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		m := appdmgStep.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		current, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		progress(Progress{Current: current, Total: total, Title: m[3]})
	}
}

// Writes spec as JSON into a new scratch directory and returns the file and
// a function removing the directory.
func writeSpec(dir, prefix string, spec any) (string, func(), error) {
	var tmp string
	var err error
	if dir == "" {
		tmp, err = paths.MkScratch(prefix)
	} else {
		tmp, err = os.MkdirTemp(dir, prefix)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	remove := func() { os.RemoveAll(tmp) }

	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		remove()
		return "", nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}

	file := filepath.Join(tmp, "spec.json")
	if err := os.WriteFile(file, data, paths.PrivateFileMode); err != nil {
		remove()
		return "", nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return file, remove, nil
}
