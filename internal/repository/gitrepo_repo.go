package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/netopscockpit/cockpit/internal/models"
)

// GitRepositoryRepository defines data access for git repository rows.
type GitRepositoryRepository interface {
	Create(ctx context.Context, r *models.GitRepository) (*models.GitRepository, error)
	GetByID(ctx context.Context, id int64) (*models.GitRepository, error)
	GetByName(ctx context.Context, name string) (*models.GitRepository, error)
	List(ctx context.Context) ([]*models.GitRepository, error)
	Update(ctx context.Context, r *models.GitRepository) error
	Delete(ctx context.Context, id int64) error
	GetSelected(ctx context.Context) (*models.GitRepository, error)
	SetSelected(ctx context.Context, id int64) error
	UpdateSyncStatus(ctx context.Context, id int64, status string, at time.Time) error
}

type gitRepositoryRepository struct {
	db *sql.DB
}

// NewGitRepositoryRepository creates a sqlite-backed repository store.
func NewGitRepositoryRepository(db *sql.DB) GitRepositoryRepository {
	return &gitRepositoryRepository{db: db}
}

const gitRepoColumns = `id, name, category, url, branch, username, token, credential_name, path, verify_ssl, is_active, selected, sync_status, last_sync, created_at, updated_at`

func (r *gitRepositoryRepository) Create(ctx context.Context, repo *models.GitRepository) (*models.GitRepository, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO git_repositories (name, category, url, branch, username, token, credential_name, path, verify_ssl, is_active, selected, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?)`,
		repo.Name, string(repo.Category), repo.URL, repo.Branch, repo.Username, repo.Token,
		repo.CredentialName, repo.Path, repo.VerifySSL, repo.IsActive, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert repository: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *gitRepositoryRepository) GetByID(ctx context.Context, id int64) (*models.GitRepository, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+gitRepoColumns+` FROM git_repositories WHERE id = ?`, id)
	return scanGitRepository(row)
}

func (r *gitRepositoryRepository) GetByName(ctx context.Context, name string) (*models.GitRepository, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+gitRepoColumns+` FROM git_repositories WHERE name = ?`, name)
	return scanGitRepository(row)
}

func (r *gitRepositoryRepository) List(ctx context.Context) ([]*models.GitRepository, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+gitRepoColumns+` FROM git_repositories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var repos []*models.GitRepository
	for rows.Next() {
		repo, err := scanGitRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

func (r *gitRepositoryRepository) Update(ctx context.Context, repo *models.GitRepository) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE git_repositories
		SET name = ?, category = ?, url = ?, branch = ?, username = ?, token = ?, credential_name = ?, path = ?, verify_ssl = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		repo.Name, string(repo.Category), repo.URL, repo.Branch, repo.Username, repo.Token,
		repo.CredentialName, repo.Path, repo.VerifySSL, repo.IsActive, time.Now().UTC(), repo.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update repository: %w", err)
	}
	return nil
}

func (r *gitRepositoryRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM git_repositories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}
	return nil
}

func (r *gitRepositoryRepository) GetSelected(ctx context.Context) (*models.GitRepository, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+gitRepoColumns+` FROM git_repositories WHERE selected = 1 LIMIT 1`)
	return scanGitRepository(row)
}

// SetSelected marks one repository selected and clears the flag on all
// others in the same transaction, preserving the single-selection rule.
func (r *gitRepositoryRepository) SetSelected(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE git_repositories SET selected = 0 WHERE selected = 1`); err != nil {
		return fmt.Errorf("failed to clear selection: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE git_repositories SET selected = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to set selection: %w", err)
	}
	return tx.Commit()
}

func (r *gitRepositoryRepository) UpdateSyncStatus(ctx context.Context, id int64, status string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE git_repositories SET sync_status = ?, last_sync = ? WHERE id = ?`,
		status, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	return nil
}

func scanGitRepository(row rowScanner) (*models.GitRepository, error) {
	var (
		repo     models.GitRepository
		category string
		lastSync sql.NullTime
	)
	err := row.Scan(&repo.ID, &repo.Name, &category, &repo.URL, &repo.Branch, &repo.Username,
		&repo.Token, &repo.CredentialName, &repo.Path, &repo.VerifySSL, &repo.IsActive,
		&repo.Selected, &repo.SyncStatus, &lastSync, &repo.CreatedAt, &repo.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan repository: %w", err)
	}
	repo.Category = models.RepositoryCategory(category)
	if lastSync.Valid {
		t := lastSync.Time
		repo.LastSync = &t
	}
	return &repo, nil
}
