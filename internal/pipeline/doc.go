// Package pipeline packages an application for one operating system.
//
// Each platform has a pipeline built over a shared [Context]: the loaded
// project, the request options, the external tools and the event sink. A
// pipeline packages one architecture at a time into "<out>/<platform>[-arch]",
// checks that the bundle actually contains the application, copies extra
// files and signs what the platform requires. Distributables (disk images,
// installers, Linux packages, archives) are not produced right away; they
// are pushed onto a [Queue] that the driver runs after every platform has
// been packaged. Every file produced is reported as an [artifact.Event].
//
// macOS builds a regular bundle and, when "mas" is a target, an App Store
// bundle signed with installer identities. Windows moves the bundle into the
// layout the Squirrel installer expects. Linux converts the bundle with the
// package converter or archives it.
//
// Example usage:
//
//	p, err := pipeline.New(ctx, bc, platform.Linux)
//	if err != nil {
//	    return err
//	}
//	queue := pipeline.NewQueue()
//	if err := p.Pack(ctx, "dist", platform.X64, queue); err != nil {
//	    return err
//	}
//	return queue.Run(ctx)
package pipeline
