package repoinfo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		in   string
		want *Info
	}{
		{"https://github.com/foo/bar.git", &Info{Host: "github.com", User: "foo", Project: "bar"}},
		{"https://github.com/foo/bar", &Info{Host: "github.com", User: "foo", Project: "bar"}},
		{"git+ssh://git@gitlab.com/foo/bar.git", &Info{Host: "gitlab.com", User: "foo", Project: "bar"}},
		{"git@github.com:foo/bar.git", &Info{Host: "github.com", User: "foo", Project: "bar"}},
		{"github:foo/bar", &Info{Host: "github.com", User: "foo", Project: "bar"}},
		{"bitbucket:foo/bar", &Info{Host: "bitbucket.org", User: "foo", Project: "bar"}},
		{"foo/bar", &Info{Host: "github.com", User: "foo", Project: "bar"}},
		{"", nil},
		{"just-a-name", nil},
		{"svn:foo/bar", nil},
		{"https://github.com/foo", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseURL(tt.in)
			assert.Equal(t, tt.want != nil, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInfoURL(t *testing.T) {
	info := &Info{Host: "github.com", User: "foo", Project: "bar"}
	assert.Equal(t, "https://github.com/foo/bar", info.URL())
}

func TestGitProviderDeclaredWins(t *testing.T) {
	p := NewGitProvider(t.TempDir(), "", "github:declared/project")
	info, err := p.RepositoryInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "declared", info.User)
}

func TestGitProviderOriginRemote(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: DefaultRemoteName,
		URLs: []string{"git@github.com:remote-user/remote-project.git"},
	})
	require.NoError(t, err)

	// The project may live in a subdirectory of the repository.
	projectDir := filepath.Join(root, "packages", "app")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))

	info, err := NewGitProvider(projectDir).RepositoryInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Info{Host: "github.com", User: "remote-user", Project: "remote-project"}, info)
}

func TestGitProviderWithoutRepository(t *testing.T) {
	info, err := NewGitProvider(t.TempDir()).RepositoryInfo(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestGitProviderWithoutOrigin(t *testing.T) {
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	info, err := NewGitProvider(root).RepositoryInfo(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
}
