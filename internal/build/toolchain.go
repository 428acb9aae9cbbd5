package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/cruciblehq/cruxpack/internal/runtime"
)

const (
	wineProgram    = "wine"
	wineMinVersion = "1.8.0"
	winePrefix     = "wine-"
)

// Checks that wine is installed and recent enough to run the Windows
// installer tooling.
func checkWine(ctx context.Context, runner runtime.Runner) error {
	out, err := runtime.Output(ctx, runner, runtime.Command{
		Program: wineProgram,
		Args:    []string{"--version"},
	})
	if errors.Is(err, runtime.ErrNotFound) {
		return &ToolchainMissingError{Tool: wineProgram, Err: err}
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrToolchain, wineProgram, err)
	}
	return checkVersion(wineProgram, out, winePrefix, wineMinVersion)
}

// Checks a version reported by a tool against a floor.
//
// The first word of output is taken as the version, with prefix stripped,
// so "wine-1.9.8 (Staging)" reads as 1.9.8.
func checkVersion(tool, output, prefix, minimum string) error {
	word, _, _ := strings.Cut(strings.TrimSpace(output), " ")
	raw := strings.TrimPrefix(word, prefix)

	floor := semver.MustParse(minimum)
	v, err := semver.NewVersion(raw)
	if err != nil || v.LessThan(floor) {
		return &ToolchainVersionError{Tool: tool, Version: raw, Minimum: floor.String()}
	}

	slog.Debug("toolchain found", "tool", tool, "version", v.String())
	return nil
}

// Result of a check started in the background, awaited at most once.
type pendingCheck struct {
	once sync.Once
	ch   chan error
	err  error
}

// Starts check in the background.
func startCheck(ctx context.Context, check func(context.Context) error) *pendingCheck {
	p := &pendingCheck{ch: make(chan error, 1)}
	go func() { p.ch <- check(ctx) }()
	return p
}

// Blocks until the check has finished and returns its result. A nil
// receiver reports success.
func (p *pendingCheck) wait() error {
	if p == nil {
		return nil
	}
	p.once.Do(func() { p.err = <-p.ch })
	return p.err
}
