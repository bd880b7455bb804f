package gitrepo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gogitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netopscockpit/cockpit/internal/cache"
	"github.com/netopscockpit/cockpit/internal/models"
)

// initFixtureRepo creates an on-disk repository with an origin remote
// and a few commits, returning its path.
func initFixtureRepo(t *testing.T, remoteURL string) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	_, err = repo.CreateRemote(&gogitcfg.RemoteConfig{
		Name: "origin",
		URLs: []string{remoteURL},
	})
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	sig := func(offset time.Duration) *object.Signature {
		return &object.Signature{
			Name:  "fixture",
			Email: "fixture@example.com",
			When:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).Add(offset),
		}
	}

	write := func(rel, content string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, rel)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644))
		_, err := wt.Add(rel)
		require.NoError(t, err)
	}

	write("router1.cfg", "hostname router1\n")
	_, err = wt.Commit("add router1 config", &gogit.CommitOptions{Author: sig(0)})
	require.NoError(t, err)

	write("inv/servers.yaml", "srv-1: {}\n")
	_, err = wt.Commit("add server inventory", &gogit.CommitOptions{Author: sig(time.Minute)})
	require.NoError(t, err)

	write("router1.cfg", "hostname router1\ninterface eth0\n")
	_, err = wt.Commit("update router1 config", &gogit.CommitOptions{Author: sig(2 * time.Minute)})
	require.NoError(t, err)

	return dir
}

func TestReadCommits_NewestFirst(t *testing.T) {
	dir := initFixtureRepo(t, "https://git.example.com/fixtures.git")

	commits, err := readCommits(dir, "master", 10, "")
	require.NoError(t, err)
	require.Len(t, commits, 3)

	assert.Equal(t, "update router1 config", commits[0].Message)
	assert.Equal(t, "add server inventory", commits[1].Message)
	assert.Equal(t, "add router1 config", commits[2].Message)
	assert.Len(t, commits[0].ShortHash, 7)
}

func TestReadCommits_Limit(t *testing.T) {
	dir := initFixtureRepo(t, "https://git.example.com/fixtures.git")

	commits, err := readCommits(dir, "master", 2, "")
	require.NoError(t, err)
	assert.Len(t, commits, 2)
}

func TestReadCommits_FileFilter(t *testing.T) {
	dir := initFixtureRepo(t, "https://git.example.com/fixtures.git")

	commits, err := readCommits(dir, "master", 10, "inv/servers.yaml")
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "add server inventory", commits[0].Message)

	commits, err = readCommits(dir, "master", 10, "router1.cfg")
	require.NoError(t, err)
	assert.Len(t, commits, 2)
}

func TestViews_CommitsCached(t *testing.T) {
	dir := initFixtureRepo(t, "https://git.example.com/fixtures.git")
	base := filepath.Dir(dir)

	clock := clockwork.NewFakeClock()
	c := cache.New(10*time.Minute, clock)
	mgr := NewManager(base, Timeouts{Clone: time.Minute, Pull: time.Minute, Remote: 10 * time.Second, Test: 30 * time.Second}, nil, "", "")
	views := NewViews(mgr, c, 10*time.Minute)

	repo := &models.GitRepository{
		ID:     1,
		Name:   filepath.Base(dir),
		URL:    "https://git.example.com/fixtures.git",
		Branch: "master",
	}

	requireGit(t)

	commits, err := views.Commits(t.Context(), repo, "master", 10)
	require.NoError(t, err)
	require.Len(t, commits, 3)

	_, ok := c.Get("repo:1:commits:master")
	assert.True(t, ok, "commit list should be memoized")

	views.Invalidate(repo.ID)
	_, ok = c.Get("repo:1:commits:master")
	assert.False(t, ok)
}

func TestViews_CommitsLimitNotPinnedByFirstCaller(t *testing.T) {
	dir := initFixtureRepo(t, "https://git.example.com/fixtures.git")
	base := filepath.Dir(dir)

	clock := clockwork.NewFakeClock()
	c := cache.New(10*time.Minute, clock)
	mgr := NewManager(base, Timeouts{Clone: time.Minute, Pull: time.Minute, Remote: 10 * time.Second, Test: 30 * time.Second}, nil, "", "")
	views := NewViews(mgr, c, 10*time.Minute)

	repo := &models.GitRepository{
		ID:     1,
		Name:   filepath.Base(dir),
		URL:    "https://git.example.com/fixtures.git",
		Branch: "master",
	}

	requireGit(t)

	commits, err := views.Commits(t.Context(), repo, "master", 2)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	// The cached fetch holds the full history, so a wider request
	// served from the same entry sees all of it.
	commits, err = views.Commits(t.Context(), repo, "master", 10)
	require.NoError(t, err)
	assert.Len(t, commits, 3)
}
