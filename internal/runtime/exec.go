package runtime

import (
	"context"
	"io"
	"maps"
	"slices"
	"strings"
)

// Describes one external process invocation.
//
// Env holds overrides layered on top of the inherited process environment.
// The ambient environment of the tool itself is never modified.
type Command struct {
	Program string            // Executable name or path.
	Args    []string          // Arguments, without the program name.
	Dir     string            // Working directory. Empty inherits the current one.
	Env     map[string]string // Environment overrides.
	Stdin   io.Reader         // Optional standard input.
	Stream  bool              // Mirror stdout/stderr to the console while capturing.
	Secrets []string          // Argument values masked in String, such as passwords.
}

// Returns the command line as it would be typed in a shell, with secret
// arguments masked.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Program))
	for _, a := range c.Args {
		if a != "" && slices.Contains(c.Secrets, a) {
			a = "***"
		}
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

// Returns the environment overrides as sorted "key=value" strings.
func (c Command) Environ() []string {
	keys := slices.Sorted(maps.Keys(c.Env))
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+c.Env[k])
	}
	return env
}

// Output of a finished process.
type ExecResult struct {
	ExitCode int    // Exit code of the process.
	Stdout   string // Captured standard output.
	Stderr   string // Captured standard error.
}

// Spawns external processes.
//
// Exec waits for the process to finish. A non-zero exit code is not treated
// as an error; the caller decides. A missing executable is reported as an
// error wrapping [ErrNotFound].
type Runner interface {
	Exec(ctx context.Context, cmd Command) (*ExecResult, error)
}

// Runs a command and converts a non-zero exit into a [CommandError].
func Run(ctx context.Context, r Runner, cmd Command) (*ExecResult, error) {
	result, err := r.Exec(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := checkExit(cmd, result); err != nil {
		return result, err
	}
	return result, nil
}

// Runs a command and returns its trimmed standard output.
func Output(ctx context.Context, r Runner, cmd Command) (string, error) {
	result, err := Run(ctx, r, cmd)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Stdout), nil
}

// Merges override env vars on top of a base env slice.
//
// Later entries win. Entries without "=" are dropped.
func mergeEnv(base, overrides []string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	for _, entry := range slices.Concat(base, overrides) {
		if k, v, ok := strings.Cut(entry, "="); ok {
			merged[k] = v
		}
	}

	result := make([]string, 0, len(merged))
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		result = append(result, k+"="+merged[k])
	}
	return result
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\"'") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
