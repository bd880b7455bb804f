package gitrepo

import (
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netopscockpit/cockpit/internal/models"
	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
)

// requireGit skips tests that exec the git binary when it is absent.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func testTimeouts() Timeouts {
	return Timeouts{
		Clone:  time.Minute,
		Pull:   time.Minute,
		Remote: 10 * time.Second,
		Test:   30 * time.Second,
	}
}

func TestTranslateGitError(t *testing.T) {
	tests := []struct {
		name       string
		stderr     string
		wantCode   string
		wantStatus int
	}{
		{"auth failed", "fatal: Authentication failed for 'https://git.example.com/a.git'", "auth_error", http.StatusUnauthorized},
		{"username prompt", "fatal: could not read Username for 'https://git.example.com'", "auth_error", http.StatusUnauthorized},
		{"repo missing", "fatal: repository 'https://git.example.com/a.git' not found", "not_found", http.StatusNotFound},
		{"host unreachable", "fatal: unable to access: Could not resolve host: git.example.com", "remote_unavailable", http.StatusServiceUnavailable},
		{"unclassified", "fatal: something unusual", "internal_error", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateGitError(tt.stderr, fmt.Errorf("exit status 128"))
			apiErr := apierrors.AsAPIError(err)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
		})
	}
}

func TestTranslateGitError_NilPassthrough(t *testing.T) {
	assert.NoError(t, translateGitError("", nil))
}

func TestTranslateGitError_PreservesAPIErrors(t *testing.T) {
	timeout := apierrors.NewRemoteError("git clone timed out after 2m0s")
	assert.Equal(t, timeout, translateGitError("whatever", timeout))
}

func TestSearchFiles_Ranking(t *testing.T) {
	requireGit(t)
	dir := initFixtureRepo(t, "https://git.example.com/fixtures.git")
	mgr := NewManager(filepath.Dir(dir), testTimeouts(), nil, "", "")

	repo := &models.GitRepository{
		ID:     1,
		Name:   filepath.Base(dir),
		URL:    "https://git.example.com/fixtures.git",
		Branch: "master",
	}

	matches, err := mgr.SearchFiles(t.Context(), repo, "router1.cfg", 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "router1.cfg", matches[0].Name, "exact filename ranks first")

	matches, err = mgr.SearchFiles(t.Context(), repo, "servers", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "inv/servers.yaml", matches[0].Path)

	matches, err = mgr.SearchFiles(t.Context(), repo, "inv", 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	// "inv" matches the directory segment of inv/servers.yaml.
	assert.Equal(t, "inv/servers.yaml", matches[0].Path)
}

func TestSearchFiles_EmptyQueryListsAll(t *testing.T) {
	requireGit(t)
	dir := initFixtureRepo(t, "https://git.example.com/fixtures.git")
	mgr := NewManager(filepath.Dir(dir), testTimeouts(), nil, "", "")

	repo := &models.GitRepository{
		ID:     1,
		Name:   filepath.Base(dir),
		URL:    "https://git.example.com/fixtures.git",
		Branch: "master",
	}

	matches, err := mgr.SearchFiles(t.Context(), repo, "", 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestConfigFiles(t *testing.T) {
	dir := initFixtureRepo(t, "https://git.example.com/fixtures.git")

	files := configFiles(dir)
	assert.Equal(t, []string{"inv/servers.yaml", "router1.cfg"}, files)
}

func TestStatus_MissingTree(t *testing.T) {
	mgr := NewManager(t.TempDir(), testTimeouts(), nil, "", "")
	repo := &models.GitRepository{ID: 1, Name: "absent", URL: "https://git.example.com/a.git", Branch: "main"}

	status := mgr.Status(t.Context(), repo)
	assert.False(t, status.Exists)
	assert.False(t, status.IsGitRepo)
	assert.False(t, status.IsSynced)
}

func TestWorktreePath(t *testing.T) {
	mgr := NewManager("/data/git", testTimeouts(), nil, "", "")

	withPath := &models.GitRepository{Name: "configs", Path: "custom/dir"}
	assert.Equal(t, filepath.Join("/data/git", "custom/dir"), mgr.WorktreePath(withPath))

	byName := &models.GitRepository{Name: "configs"}
	assert.Equal(t, filepath.Join("/data/git", "configs"), mgr.WorktreePath(byName))
}

func TestWorktreePath_StaysUnderGitRoot(t *testing.T) {
	mgr := NewManager("/data/git", testTimeouts(), nil, "", "")

	tests := []struct {
		name string
		path string
		want string
	}{
		{"parent traversal", "../../etc/cron.d", "/data/git/__/__/etc/cron.d"},
		{"absolute path", "/etc/cron.d", "/data/git/etc/cron.d"},
		{"embedded traversal", "configs/../../outside", "/data/git/configs/__/__/outside"},
		{"dot segments", "./configs/.", "/data/git/configs"},
		{"backslash traversal", "..\\..\\etc", "/data/git/__/__/etc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &models.GitRepository{Name: "configs", Path: tt.path}
			got := mgr.WorktreePath(repo)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
			assert.True(t, strings.HasPrefix(got, filepath.FromSlash("/data/git/")))
		})
	}

	// A path that cleanses to nothing falls back to the name.
	repo := &models.GitRepository{Name: "configs", Path: "///"}
	assert.Equal(t, filepath.Join("/data/git", "configs"), mgr.WorktreePath(repo))
}
