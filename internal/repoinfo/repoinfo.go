package repoinfo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
)

// Name of the remote consulted for the repository location.
const DefaultRemoteName = "origin"

var ErrRepoInfo = errors.New("cannot resolve repository info")

// Location of a hosted repository.
type Info struct {
	Host    string // Hosting service, e.g. "github.com".
	User    string // Owner of the repository.
	Project string // Repository name, without a ".git" suffix.
}

// Returns the web URL of the repository.
func (i *Info) URL() string {
	return fmt.Sprintf("https://%s/%s/%s", i.Host, i.User, i.Project)
}

// Resolves the repository a project lives in.
//
// RepositoryInfo returns nil without an error when the location cannot be
// determined; callers treat the information as an optional fallback.
type Provider interface {
	RepositoryInfo(ctx context.Context) (*Info, error)
}

// Resolves the repository from declared repository URLs, then from the
// origin remote of the git repository containing the project.
//
// The result is computed once and shared by all callers.
type GitProvider struct {
	dir      string   // Project directory; parents are searched for .git.
	declared []string // Repository URLs from the package descriptors, in priority order.

	once sync.Once
	info *Info
	err  error
}

// Creates a new [GitProvider]. Empty declared URLs are ignored.
func NewGitProvider(dir string, declared ...string) *GitProvider {
	return &GitProvider{dir: dir, declared: declared}
}

// Implements [Provider].
func (p *GitProvider) RepositoryInfo(ctx context.Context) (*Info, error) {
	p.once.Do(func() {
		p.info, p.err = p.resolve(ctx)
	})
	return p.info, p.err
}

func (p *GitProvider) resolve(ctx context.Context) (*Info, error) {
	for _, u := range p.declared {
		if u == "" {
			continue
		}
		if info, ok := ParseURL(u); ok {
			return info, nil
		}
		slog.Debug("cannot parse declared repository url", "url", u)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo, err := git.PlainOpenWithOptions(p.dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepoInfo, err)
	}

	remote, err := repo.Remote(DefaultRemoteName)
	if errors.Is(err, git.ErrRemoteNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepoInfo, err)
	}

	for _, u := range remote.Config().URLs {
		if info, ok := ParseURL(u); ok {
			return info, nil
		}
	}
	return nil, nil
}

// Parses a repository reference.
//
// Accepted forms are web and git URLs ("https://github.com/user/project.git",
// "git@github.com:user/project.git", "git+ssh://git@host/user/project"),
// hosted shorthands ("github:user/project", "gitlab:user/project") and the
// bare "user/project" shorthand, which means GitHub.
func ParseURL(s string) (*Info, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	host := "github.com"
	var path string

	switch {
	case strings.Contains(s, "://"):
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return nil, false
		}
		host, path = u.Hostname(), u.Path
	case strings.HasPrefix(s, "git@"):
		rest := strings.TrimPrefix(s, "git@")
		h, p, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, false
		}
		host, path = h, p
	default:
		if prefix, rest, ok := strings.Cut(s, ":"); ok {
			switch prefix {
			case "github":
			case "gitlab":
				host = "gitlab.com"
			case "bitbucket":
				host = "bitbucket.org"
			default:
				return nil, false
			}
			s = rest
		}
		path = s
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, false
	}
	return &Info{
		Host:    host,
		User:    parts[0],
		Project: strings.TrimSuffix(parts[1], ".git"),
	}, true
}
