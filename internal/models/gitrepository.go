package models

import (
	"strings"
	"time"
)

// RepositoryCategory groups repositories by what they hold.
type RepositoryCategory string

const (
	RepositoryCategoryConfigs    RepositoryCategory = "configs"
	RepositoryCategoryTemplates  RepositoryCategory = "templates"
	RepositoryCategoryOnboarding RepositoryCategory = "onboarding"
)

// ValidRepositoryCategory reports whether c is a known category.
func ValidRepositoryCategory(c string) bool {
	switch RepositoryCategory(c) {
	case RepositoryCategoryConfigs, RepositoryCategoryTemplates, RepositoryCategoryOnboarding:
		return true
	}
	return false
}

// GitRepository describes a remote repository and its local working tree.
// Token is the legacy inline secret; CredentialName takes precedence when
// both are set.
type GitRepository struct {
	ID             int64              `json:"id"`
	Name           string             `json:"name"`
	Category       RepositoryCategory `json:"category"`
	URL            string             `json:"url"`
	Branch         string             `json:"branch"`
	Username       string             `json:"username,omitempty"`
	Token          string             `json:"-"`
	CredentialName string             `json:"credential_name,omitempty"`
	Path           string             `json:"path,omitempty"`
	VerifySSL      bool               `json:"verify_ssl"`
	IsActive       bool               `json:"is_active"`
	Selected       bool               `json:"selected"`
	SyncStatus     string             `json:"sync_status,omitempty"`
	LastSync       *time.Time         `json:"last_sync,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// DirName returns the working-tree directory name under data_root/git.
// The operator-supplied path is normalized so joins cannot escape the
// git root: leading separators are stripped and ".." segments are
// replaced.
func (r *GitRepository) DirName() string {
	if d := cleanseDirName(r.Path); d != "" {
		return d
	}
	return cleanseDirName(r.Name)
}

func cleanseDirName(p string) string {
	p = strings.TrimLeft(strings.TrimSpace(p), "/\\")
	var out []string
	for _, part := range strings.Split(strings.ReplaceAll(p, "\\", "/"), "/") {
		switch part {
		case "", ".":
		case "..":
			out = append(out, "__")
		default:
			out = append(out, part)
		}
	}
	return strings.Join(out, "/")
}

// HasToken reports whether an inline token is stored; the token itself
// is never serialized.
func (r *GitRepository) HasToken() bool { return r.Token != "" }

// SyncResult is the outcome of a clone-or-pull.
type SyncResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// CommitInfo is one commit in a repository view.
type CommitInfo struct {
	Hash        string    `json:"hash"`
	ShortHash   string    `json:"short_hash"`
	Author      string    `json:"author"`
	AuthorEmail string    `json:"author_email"`
	Date        time.Time `json:"date"`
	Message     string    `json:"message"`
}

// RepositoryStatus is the structured working-tree status.
type RepositoryStatus struct {
	Exists        bool         `json:"exists"`
	IsGitRepo     bool         `json:"is_git_repo"`
	IsSynced      bool         `json:"is_synced"`
	BehindCount   int          `json:"behind_count"`
	AheadCount    int          `json:"ahead_count"`
	CurrentBranch string       `json:"current_branch,omitempty"`
	RemoteURL     string       `json:"remote_url,omitempty"`
	Branches      []string     `json:"branches,omitempty"`
	RecentCommits []CommitInfo `json:"recent_commits,omitempty"`
	ConfigFiles   []string     `json:"config_files,omitempty"`
	LastCommit    *CommitInfo  `json:"last_commit,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// TestResult is the outcome of a connectivity test clone.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// FileMatch is one entry in a working-tree file search.
type FileMatch struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}
