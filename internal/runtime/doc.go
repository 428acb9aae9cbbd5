// Package runtime spawns the external tools the build depends on.
//
// Every tool invocation (packaging backend, signing tools, tar, 7-Zip,
// installer generators, npm, wine) goes through a [Runner]. A [Command]
// carries its own environment overrides, which are layered over the
// inherited environment of the child only; the tool never mutates its own
// environment to configure a child process.
//
// [Runtime] is the host implementation. Tests substitute the recorder in the
// runtimetest package.
//
// Example usage:
//
//	rt := runtime.New()
//	out, err := runtime.Output(ctx, rt, runtime.Command{
//	    Program: "wine",
//	    Args:    []string{"--version"},
//	})
//	if err != nil {
//	    return err
//	}
package runtime
