// Package metadata loads and validates the package descriptors of a project.
//
// A project has a development descriptor at its root, which owns the build
// configuration, and an application descriptor, which owns the name,
// version, description and author of the packaged application. In a
// single-package project both are the same document; in a two-package
// project the application lives in its own directory with its own
// descriptor.
//
// Descriptors are read through a billy filesystem rooted at the project
// directory, so tests can run against an in-memory tree.
//
// Example usage:
//
//	project, err := metadata.NewOSLoader(projectDir).Load(metadata.LoadOptions{
//	    Override: override,
//	})
//	if err != nil {
//	    return err
//	}
//	err = metadata.Validate(project, metadata.ValidateOptions{
//	    Platforms: platforms,
//	    Dist:      true,
//	})
package metadata
