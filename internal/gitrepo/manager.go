package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netopscockpit/cockpit/internal/middleware"
	"github.com/netopscockpit/cockpit/internal/models"
	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
)

// CredentialResolver looks up a named token credential and returns its
// plaintext. Implemented by the credential service over the vault.
type CredentialResolver interface {
	ResolveToken(ctx context.Context, name string) (username, token string, err error)
}

// Timeouts bounds each class of git child process.
type Timeouts struct {
	Clone  time.Duration
	Pull   time.Duration
	Remote time.Duration
	Test   time.Duration
}

// Manager owns the working trees under baseDir. All mutating git
// operations on one tree are serialized by a per-path mutex.
type Manager struct {
	baseDir   string
	timeouts  Timeouts
	resolver  CredentialResolver
	sslCAInfo string
	sslCert   string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a working-tree manager rooted at baseDir.
func NewManager(baseDir string, timeouts Timeouts, resolver CredentialResolver, sslCAInfo, sslCert string) *Manager {
	return &Manager{
		baseDir:   baseDir,
		timeouts:  timeouts,
		resolver:  resolver,
		sslCAInfo: sslCAInfo,
		sslCert:   sslCert,
		locks:     make(map[string]*sync.Mutex),
	}
}

// WorktreePath returns the on-disk path for a repository.
func (m *Manager) WorktreePath(repo *models.GitRepository) string {
	return filepath.Join(m.baseDir, repo.DirName())
}

// pathLock returns the mutex serializing operations on path.
func (m *Manager) pathLock(path string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[path]
	if !ok {
		l = &sync.Mutex{}
		m.locks[path] = l
	}
	return l
}

// authURL resolves the clone/push URL with credentials applied.
// A named credential wins over the inline token.
func (m *Manager) authURL(ctx context.Context, repo *models.GitRepository) (string, error) {
	if repo.CredentialName != "" {
		username, token, err := m.resolver.ResolveToken(ctx, repo.CredentialName)
		if err != nil {
			return "", err
		}
		return InjectAuth(repo.URL, username, token)
	}
	if repo.Token != "" {
		return InjectAuth(repo.URL, repo.Username, repo.Token)
	}
	return repo.URL, nil
}

// runGit executes one git child process in dir with the repository's
// SSL environment scoped around it.
func (m *Manager) runGit(ctx context.Context, repo *models.GitRepository, dir string, timeout time.Duration, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scope := enterSSLScope(repo.VerifySSL, m.sslCAInfo, m.sslCert)
	defer scope.exit()

	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return stdout.String(), stderr.String(),
			apierrors.NewRemoteError(fmt.Sprintf("git %s timed out after %s", args[0], timeout))
	}
	return stdout.String(), stderr.String(), err
}

// translateGitError maps raw git stderr to a stable error kind with a
// readable message.
func translateGitError(stderr string, err error) error {
	if err == nil {
		return nil
	}
	if apierrors.IsAPIError(err) {
		return err
	}
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "authentication failed") || strings.Contains(s, "could not read username") ||
		strings.Contains(s, "invalid username or password") || strings.Contains(s, "403"):
		return apierrors.ErrAuthFailed.WithMessage("Git authentication failed; check the repository credentials")
	case strings.Contains(s, "repository not found") || strings.Contains(s, "not found"):
		return apierrors.NewNotFoundError("Remote repository")
	case strings.Contains(s, "remote branch") && strings.Contains(s, "not found"):
		return apierrors.ErrBadRequest.WithMessage("Branch not found on remote")
	case strings.Contains(s, "could not resolve host") || strings.Contains(s, "connection timed out") ||
		strings.Contains(s, "connection refused"):
		return apierrors.NewRemoteError("Git host unreachable")
	case errIsExecNotFound(err):
		return apierrors.ErrInternal.WithMessage("git binary not found on PATH")
	}
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = err.Error()
	}
	return apierrors.ErrInternal.WithMessage(msg)
}

func errIsExecNotFound(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr) && execErr.Err == exec.ErrNotFound
}

// OpenOrClone ensures a valid working tree exists for repo and returns
// its path. A tree whose origin URL no longer matches the configured
// URL (after userinfo stripping) is removed and re-cloned.
func (m *Manager) OpenOrClone(ctx context.Context, repo *models.GitRepository) (string, error) {
	path := m.WorktreePath(repo)
	lock := m.pathLock(path)
	lock.Lock()
	defer lock.Unlock()
	return m.openOrCloneLocked(ctx, repo, path)
}

func (m *Manager) openOrCloneLocked(ctx context.Context, repo *models.GitRepository, path string) (string, error) {
	if m.isValidWorktree(ctx, repo, path) {
		return path, nil
	}
	if _, err := os.Stat(path); err == nil {
		slog.Info("removing stale working tree", "repo", repo.Name, "path", path)
		if err := os.RemoveAll(path); err != nil {
			return "", fmt.Errorf("failed to remove stale working tree: %w", err)
		}
	}
	if err := m.clone(ctx, repo, path); err != nil {
		return "", err
	}
	return path, nil
}

// isValidWorktree reports whether path is a git repository whose origin
// matches the configured remote.
func (m *Manager) isValidWorktree(ctx context.Context, repo *models.GitRepository, path string) bool {
	if fi, err := os.Stat(filepath.Join(path, ".git")); err != nil || !fi.IsDir() {
		return false
	}
	stdout, _, err := m.runGit(ctx, repo, path, m.timeouts.Remote, "remote", "get-url", "origin")
	if err != nil {
		return false
	}
	return SameRemote(strings.TrimSpace(stdout), repo.URL)
}

// clone creates the working tree; a partially-created directory is
// removed on failure.
func (m *Manager) clone(ctx context.Context, repo *models.GitRepository, path string) error {
	cloneURL, err := m.authURL(ctx, repo)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create git directory: %w", err)
	}

	args := []string{"clone", "--branch", repo.Branch, cloneURL, path}
	start := time.Now()
	_, stderr, err := m.runGit(ctx, repo, "", m.timeouts.Clone, args...)
	middleware.RecordGitOperation("clone", err == nil)
	if err != nil {
		os.RemoveAll(path)
		slog.Error("clone failed", "repo", repo.Name, "url", RedactURL(repo.URL), "error", strings.TrimSpace(stderr))
		return translateGitError(stderr, err)
	}
	slog.Info("cloned repository", "repo", repo.Name, "url", RedactURL(repo.URL),
		"branch", repo.Branch, "duration", time.Since(start))
	return nil
}

// Sync clones the repository if the tree is absent or invalid,
// otherwise pulls origin/<branch>. The tree is untouched on pull
// failure.
func (m *Manager) Sync(ctx context.Context, repo *models.GitRepository) *models.SyncResult {
	path := m.WorktreePath(repo)
	lock := m.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	if !m.isValidWorktree(ctx, repo, path) {
		if _, err := m.openOrCloneLocked(ctx, repo, path); err != nil {
			return &models.SyncResult{Success: false, Message: err.Error()}
		}
		return &models.SyncResult{Success: true, Message: "Repository cloned", Path: path}
	}

	start := time.Now()
	_, stderr, err := m.runGit(ctx, repo, path, m.timeouts.Pull, "pull", "origin", repo.Branch)
	middleware.RecordGitOperation("pull", err == nil)
	if err != nil {
		terr := translateGitError(stderr, err)
		slog.Error("pull failed", "repo", repo.Name, "error", terr)
		return &models.SyncResult{Success: false, Message: terr.Error(), Path: path}
	}
	slog.Info("pulled repository", "repo", repo.Name, "branch", repo.Branch, "duration", time.Since(start))
	return &models.SyncResult{Success: true, Message: "Repository updated", Path: path}
}

// Status inspects the working tree without mutating it. The remote
// check uses fetch --dry-run with the short remote timeout; when it
// fails, is_synced defaults to false.
func (m *Manager) Status(ctx context.Context, repo *models.GitRepository) *models.RepositoryStatus {
	path := m.WorktreePath(repo)
	status := &models.RepositoryStatus{}

	if _, err := os.Stat(path); err != nil {
		return status
	}
	status.Exists = true

	if fi, err := os.Stat(filepath.Join(path, ".git")); err != nil || !fi.IsDir() {
		return status
	}
	status.IsGitRepo = true

	if out, _, err := m.runGit(ctx, repo, path, m.timeouts.Remote, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		status.CurrentBranch = strings.TrimSpace(out)
	}
	if out, _, err := m.runGit(ctx, repo, path, m.timeouts.Remote, "remote", "get-url", "origin"); err == nil {
		status.RemoteURL = NormalizeURL(strings.TrimSpace(out))
	}
	if out, _, err := m.runGit(ctx, repo, path, m.timeouts.Remote, "branch", "--format=%(refname:short)"); err == nil {
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			if line != "" {
				status.Branches = append(status.Branches, line)
			}
		}
	}
	status.RecentCommits = m.recentCommits(ctx, repo, path, 10)
	if len(status.RecentCommits) > 0 {
		status.LastCommit = &status.RecentCommits[0]
	}
	status.ConfigFiles = configFiles(path)

	// Remote freshness: dry-run fetch, then count divergence.
	if _, _, err := m.runGit(ctx, repo, path, m.timeouts.Remote, "fetch", "--dry-run", "origin", repo.Branch); err == nil {
		if _, _, err := m.runGit(ctx, repo, path, m.timeouts.Remote, "fetch", "origin", repo.Branch); err == nil {
			upstream := "origin/" + repo.Branch
			if out, _, err := m.runGit(ctx, repo, path, m.timeouts.Remote, "rev-list", "--count", "HEAD.."+upstream); err == nil {
				status.BehindCount, _ = strconv.Atoi(strings.TrimSpace(out))
			}
			if out, _, err := m.runGit(ctx, repo, path, m.timeouts.Remote, "rev-list", "--count", upstream+"..HEAD"); err == nil {
				status.AheadCount, _ = strconv.Atoi(strings.TrimSpace(out))
			}
			status.IsSynced = status.BehindCount == 0
		}
	}

	return status
}

// recentCommits reads the last n commits via a NUL-delimited format.
func (m *Manager) recentCommits(ctx context.Context, repo *models.GitRepository, path string, n int) []models.CommitInfo {
	format := "%H%x00%h%x00%an%x00%ae%x00%aI%x00%s"
	out, _, err := m.runGit(ctx, repo, path, m.timeouts.Remote,
		"log", "-n", strconv.Itoa(n), "--format="+format)
	if err != nil {
		return nil
	}

	var commits []models.CommitInfo
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Split(line, "\x00")
		if len(parts) != 6 {
			continue
		}
		date, _ := time.Parse(time.RFC3339, parts[4])
		commits = append(commits, models.CommitInfo{
			Hash:        parts[0],
			ShortHash:   parts[1],
			Author:      parts[2],
			AuthorEmail: parts[3],
			Date:        date,
			Message:     parts[5],
		})
	}
	return commits
}

// configFiles walks the tree collecting configuration-like files,
// relative to the worktree root.
func configFiles(root string) []string {
	exts := map[string]bool{
		".cfg": true, ".conf": true, ".config": true,
		".txt": true, ".yml": true, ".yaml": true, ".json": true,
	}
	var files []string
	filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if exts[strings.ToLower(filepath.Ext(p))] {
			if rel, rerr := filepath.Rel(root, p); rerr == nil {
				files = append(files, filepath.ToSlash(rel))
			}
		}
		return nil
	})
	sort.Strings(files)
	return files
}

// CommitAndPush stages relPath, commits with message (defaulting to the
// file's basename) and optionally pushes origin/<branch>.
func (m *Manager) CommitAndPush(ctx context.Context, repo *models.GitRepository, relPath, message string, push bool) error {
	path := m.WorktreePath(repo)
	lock := m.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	if message == "" {
		message = filepath.Base(relPath)
	}

	if _, stderr, err := m.runGit(ctx, repo, path, m.timeouts.Remote, "add", relPath); err != nil {
		return translateGitError(stderr, err)
	}
	if _, stderr, err := m.runGit(ctx, repo, path, m.timeouts.Remote, "commit", "-m", message); err != nil {
		// An empty diff is not an error worth surfacing as internal.
		if strings.Contains(stderr, "nothing to commit") || strings.Contains(stderr, "nothing added") {
			slog.Info("nothing to commit", "repo", repo.Name, "path", relPath)
		} else {
			return translateGitError(stderr, err)
		}
	} else if out, _, herr := m.runGit(ctx, repo, path, m.timeouts.Remote, "rev-parse", "HEAD"); herr == nil {
		slog.Info("committed file", "repo", repo.Name, "path", relPath,
			"message", message, "commit", strings.TrimSpace(out))
	}

	if !push {
		return nil
	}

	pushURL, err := m.authURL(ctx, repo)
	if err != nil {
		return err
	}
	if _, stderr, err := m.runGit(ctx, repo, path, m.timeouts.Remote, "remote", "set-url", "origin", pushURL); err != nil {
		return translateGitError(stderr, err)
	}
	// Restore the credential-free URL whatever the push outcome.
	defer m.runGit(ctx, repo, path, m.timeouts.Remote, "remote", "set-url", "origin", repo.URL)

	_, stderr, err := m.runGit(ctx, repo, path, m.timeouts.Pull, "push", "origin", repo.Branch)
	middleware.RecordGitOperation("push", err == nil)
	if err != nil {
		return translateGitError(stderr, err)
	}
	slog.Info("pushed repository", "repo", repo.Name, "branch", repo.Branch)
	return nil
}

// Test performs a shallow clone into a temporary directory to verify
// connectivity and credentials without touching the working tree.
func (m *Manager) Test(ctx context.Context, repo *models.GitRepository) *models.TestResult {
	cloneURL, err := m.authURL(ctx, repo)
	if err != nil {
		return &models.TestResult{Success: false, Message: err.Error()}
	}

	tmpDir := filepath.Join(os.TempDir(), "cockpit-git-test-"+uuid.NewString())
	defer os.RemoveAll(tmpDir)

	args := []string{"clone", "--depth", "1", "--branch", repo.Branch, cloneURL, tmpDir}
	_, stderr, err := m.runGit(ctx, repo, "", m.timeouts.Test, args...)
	middleware.RecordGitOperation("test", err == nil)
	if err != nil {
		terr := translateGitError(stderr, err)
		return &models.TestResult{
			Success: false,
			Message: terr.Error(),
			Details: strings.TrimSpace(stderr),
		}
	}
	return &models.TestResult{Success: true, Message: "Repository accessible"}
}

// SearchFiles lists worktree files matching query, best match first:
// exact filename, then filename prefix, then filename substring, then
// path substring, alphabetical within each rank.
func (m *Manager) SearchFiles(ctx context.Context, repo *models.GitRepository, query string, limit int) ([]models.FileMatch, error) {
	path, err := m.OpenOrClone(ctx, repo)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	q := strings.ToLower(query)
	type ranked struct {
		match models.FileMatch
		rank  int
	}
	var matches []ranked

	filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, rerr := filepath.Rel(path, p)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := strings.ToLower(info.Name())
		rank := -1
		switch {
		case q == "":
			rank = 3
		case name == q:
			rank = 0
		case strings.HasPrefix(name, q):
			rank = 1
		case strings.Contains(name, q):
			rank = 2
		case strings.Contains(strings.ToLower(rel), q):
			rank = 3
		}
		if rank >= 0 {
			matches = append(matches, ranked{
				match: models.FileMatch{Path: rel, Name: info.Name(), Size: info.Size()},
				rank:  rank,
			})
		}
		return nil
	})

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank < matches[j].rank
		}
		return matches[i].match.Path < matches[j].match.Path
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]models.FileMatch, len(matches))
	for i, r := range matches {
		out[i] = r.match
	}
	return out, nil
}
