// Package build drives a packaging run from request to artifacts.
//
// A run loads the project descriptors, normalizes the requested platforms,
// architectures and targets, and validates everything before writing a
// single file. Each platform then gets its pipeline; for every architecture
// the native dependencies of two-package projects are rebuilt (when the
// host can run them) and the pipeline packages the application. The
// distributable tasks pipelines queue run concurrently once every platform
// has been packaged.
//
// Pipelines register teardown actions (ephemeral keychains, downloaded
// certificates, scratch files) on a cleanup registry. The registry is
// drained exactly once, after all work has settled, whether the build
// succeeded or not. A primary failure is always the reported error; cleanup
// failures are attached to it as a [RunError].
//
// Building for Windows on another host needs wine. Its version is checked
// in the background the first time a Windows platform is reached and awaited
// before the first Windows architecture is packaged.
//
// Example usage:
//
//	result, err := build.Run(ctx, build.Options{
//	    ProjectDir: ".",
//	    Platforms:  []string{"osx", "win"},
//	    Arch:       "all",
//	    Dist:       true,
//	})
//	if err != nil {
//	    return err
//	}
//	for _, a := range result.Artifacts {
//	    fmt.Println(a.File)
//	}
package build
