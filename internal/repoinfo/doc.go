// Package repoinfo locates the hosted repository of a project.
//
// The location is only a fallback for URLs the build needs but the project
// does not declare: the product homepage and the icon URL of Windows
// installers. Declared repository fields win; otherwise the origin remote
// of the enclosing git repository is read with go-git.
//
// Example usage:
//
//	provider := repoinfo.NewGitProvider(projectDir, appRepositoryURL, devRepositoryURL)
//	info, err := provider.RepositoryInfo(ctx)
//	if err != nil {
//	    return err
//	}
//	if info != nil {
//	    homepage = info.URL()
//	}
package repoinfo
