package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/cruciblehq/cruxpack/internal/runtime"
)

// Script handing a JSON specification to electron-winstaller.
const squirrelScript = `require("electron-winstaller").createWindowsInstaller(require(process.argv[1])).catch(e => { console.error(e.message || e); process.exit(1) })`

// [InstallerBuilder] running electron-winstaller through node.
type Squirrel struct {
	runner     runtime.Runner
	node       string
	debug      bool
	ScratchDir string // Directory for the specification file. Defaults to [paths.Scratch].
}

// Creates a new [Squirrel].
func NewSquirrel(runner runtime.Runner, debug bool) *Squirrel {
	return &Squirrel{runner: runner, node: "node", debug: debug}
}

func (s *Squirrel) Build(ctx context.Context, spec map[string]any) error {
	file, remove, err := writeSpec(s.ScratchDir, "squirrel-", spec)
	if err != nil {
		return err
	}
	defer remove()

	var secrets []string
	if pw, ok := spec["certificatePassword"].(string); ok && pw != "" {
		secrets = append(secrets, pw)
	}

	_, err = runtime.Run(ctx, s.runner, runtime.Command{
		Program: s.node,
		Args:    []string{"-e", squirrelScript, file},
		Stream:  s.debug,
		Secrets: secrets,
	})
	if err != nil {
		return fmt.Errorf("%w: squirrel: %w", ErrBackend, err)
	}
	return nil
}

// Converts a semantic version into the NuGet form used in package names:
// dots are removed from the pre-release part, so "1.0.0-beta.1" becomes
// "1.0.0-beta1".
func ConvertVersion(version string) string {
	main, pre, ok := strings.Cut(version, "-")
	if !ok {
		return version
	}
	return main + "-" + strings.ReplaceAll(pre, ".", "")
}
