package gitrepo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/netopscockpit/cockpit/internal/cache"
	"github.com/netopscockpit/cockpit/internal/middleware"
	"github.com/netopscockpit/cockpit/internal/models"
)

// Views derives read-only data from working trees, memoized in the
// TTL cache under repo:<id>:... keys. The network-free derivations use
// go-git directly against the on-disk tree; the manager is only
// consulted to materialize the tree on a cache miss.
type Views struct {
	manager *Manager
	cache   *cache.Cache
	ttl     time.Duration
}

// NewViews wraps manager with cached derivations.
func NewViews(manager *Manager, c *cache.Cache, ttl time.Duration) *Views {
	return &Views{manager: manager, cache: c, ttl: ttl}
}

func commitsKey(repoID int64, branch string) string {
	return fmt.Sprintf("repo:%d:commits:%s", repoID, branch)
}

func fileHistoryKey(repoID int64, path string) string {
	return fmt.Sprintf("repo:%d:file-history:%s", repoID, path)
}

func statusKey(repoID int64) string {
	return fmt.Sprintf("repo:%d:status", repoID)
}

func filesKey(repoID int64, query string, limit int) string {
	return fmt.Sprintf("repo:%d:files:%s:%d", repoID, query, limit)
}

// cached is the instrumented cache lookup shared by all views.
func (v *Views) cached(key string) (any, bool) {
	val, ok := v.cache.Get(key)
	middleware.RecordCacheLookup(ok)
	return val, ok
}

// commitFetchLimit bounds every cached commit walk. The cache key
// carries no limit, so the fetch always reads this many and each
// request slices its own limit off the cached list.
const commitFetchLimit = 200

func clampCommitLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > commitFetchLimit {
		return commitFetchLimit
	}
	return limit
}

// Commits returns up to limit commits of the branch, newest first.
func (v *Views) Commits(ctx context.Context, repo *models.GitRepository, branch string, limit int) ([]models.CommitInfo, error) {
	if branch == "" {
		branch = repo.Branch
	}
	limit = clampCommitLimit(limit)

	key := commitsKey(repo.ID, branch)
	if cached, ok := v.cached(key); ok {
		if commits, ok := cached.([]models.CommitInfo); ok {
			return sliceCommits(commits, limit), nil
		}
	}

	path, err := v.manager.OpenOrClone(ctx, repo)
	if err != nil {
		return nil, err
	}
	commits, err := readCommits(path, branch, commitFetchLimit, "")
	if err != nil {
		return nil, err
	}
	v.cache.Set(key, commits, v.ttl)
	return sliceCommits(commits, limit), nil
}

// FileHistory returns the commits that touched relPath, newest first.
func (v *Views) FileHistory(ctx context.Context, repo *models.GitRepository, relPath string, limit int) ([]models.CommitInfo, error) {
	limit = clampCommitLimit(limit)

	key := fileHistoryKey(repo.ID, relPath)
	if cached, ok := v.cached(key); ok {
		if commits, ok := cached.([]models.CommitInfo); ok {
			return sliceCommits(commits, limit), nil
		}
	}

	path, err := v.manager.OpenOrClone(ctx, repo)
	if err != nil {
		return nil, err
	}
	commits, err := readCommits(path, repo.Branch, commitFetchLimit, relPath)
	if err != nil {
		return nil, err
	}
	v.cache.Set(key, commits, v.ttl)
	return sliceCommits(commits, limit), nil
}

func sliceCommits(commits []models.CommitInfo, limit int) []models.CommitInfo {
	if len(commits) > limit {
		return commits[:limit]
	}
	return commits
}

// Status returns the cached structured status, refreshing on miss.
func (v *Views) Status(ctx context.Context, repo *models.GitRepository) *models.RepositoryStatus {
	key := statusKey(repo.ID)
	if cached, ok := v.cached(key); ok {
		if status, ok := cached.(*models.RepositoryStatus); ok {
			return status
		}
	}
	status := v.manager.Status(ctx, repo)
	v.cache.Set(key, status, v.ttl)
	return status
}

// SearchFiles returns the cached file search for (query, limit).
func (v *Views) SearchFiles(ctx context.Context, repo *models.GitRepository, query string, limit int) ([]models.FileMatch, error) {
	key := filesKey(repo.ID, query, limit)
	if cached, ok := v.cached(key); ok {
		if matches, ok := cached.([]models.FileMatch); ok {
			return matches, nil
		}
	}
	matches, err := v.manager.SearchFiles(ctx, repo, query, limit)
	if err != nil {
		return nil, err
	}
	v.cache.Set(key, matches, v.ttl)
	return matches, nil
}

// Invalidate drops every cached view of one repository.
func (v *Views) Invalidate(repoID int64) {
	v.cache.ClearNamespace(fmt.Sprintf("repo:%d:", repoID))
}

// Prefetch warms the commit list for repo's active branch. Errors are
// logged only; the caller treats this as fire-and-forget.
func (v *Views) Prefetch(ctx context.Context, repo *models.GitRepository) {
	if _, err := v.Commits(ctx, repo, repo.Branch, 0); err != nil {
		slog.Warn("prefetch failed", "repo", repo.Name, "error", err)
		return
	}
	slog.Info("prefetched commit list", "repo", repo.Name, "branch", repo.Branch)
}

// StartRefresher re-warms the selected repository's commit view every
// interval until ctx is done. selected is re-resolved each tick so
// selection changes take effect without restart.
func (v *Views) StartRefresher(ctx context.Context, interval time.Duration, selected func(context.Context) (*models.GitRepository, error)) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				repo, err := selected(ctx)
				if err != nil || repo == nil {
					continue
				}
				v.cache.ClearNamespace(commitsKey(repo.ID, repo.Branch))
				v.Prefetch(ctx, repo)
			}
		}
	}()
}

// readCommits walks the on-disk repository history with go-git.
// relPath filters to commits touching that file when non-empty.
func readCommits(path, branch string, limit int, relPath string) ([]models.CommitInfo, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	var from plumbing.Hash
	if ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true); err == nil {
		from = ref.Hash()
	} else if head, herr := repo.Head(); herr == nil {
		from = head.Hash()
	} else {
		return nil, fmt.Errorf("failed to resolve branch %s: %w", branch, err)
	}

	opts := &gogit.LogOptions{From: from}
	if relPath != "" {
		opts.PathFilter = func(p string) bool { return p == relPath }
	}
	iter, err := repo.Log(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var commits []models.CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if len(commits) >= limit {
			return errStopIteration
		}
		commits = append(commits, models.CommitInfo{
			Hash:        c.Hash.String(),
			ShortHash:   c.Hash.String()[:7],
			Author:      c.Author.Name,
			AuthorEmail: c.Author.Email,
			Date:        c.Author.When,
			Message:     firstLine(c.Message),
		})
		return nil
	})
	if err != nil && err != errStopIteration {
		return nil, fmt.Errorf("failed to walk commits: %w", err)
	}
	return commits, nil
}

var errStopIteration = fmt.Errorf("stop iteration")

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
