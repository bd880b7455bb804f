// Package repository provides sqlite data access for settings rows.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/netopscockpit/cockpit/internal/models"
)

// CredentialRepository defines data access for credentials.
type CredentialRepository interface {
	Create(ctx context.Context, c *models.Credential) (*models.Credential, error)
	GetByID(ctx context.Context, id int64) (*models.Credential, error)
	GetByName(ctx context.Context, name string) (*models.Credential, error)
	List(ctx context.Context) ([]*models.Credential, error)
	Update(ctx context.Context, c *models.Credential) error
	Delete(ctx context.Context, id int64) error
}

type credentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a sqlite-backed credential repository.
func NewCredentialRepository(db *sql.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

const credentialColumns = `id, name, username, type, password_encrypted, valid_until, is_active, created_at, updated_at`

func (r *credentialRepository) Create(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (name, username, type, password_encrypted, valid_until, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Username, string(c.Type), c.PasswordEncrypted, validUntilParam(c.ValidUntil), c.IsActive, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert credential: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *credentialRepository) GetByID(ctx context.Context, id int64) (*models.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, id)
	return scanCredential(row)
}

func (r *credentialRepository) GetByName(ctx context.Context, name string) (*models.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE name = ?`, name)
	return scanCredential(row)
}

func (r *credentialRepository) List(ctx context.Context) ([]*models.Credential, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (r *credentialRepository) Update(ctx context.Context, c *models.Credential) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE credentials
		SET name = ?, username = ?, type = ?, password_encrypted = ?, valid_until = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Username, string(c.Type), c.PasswordEncrypted, validUntilParam(c.ValidUntil), c.IsActive, time.Now().UTC(), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	return nil
}

func (r *credentialRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanCredential maps one row; returns (nil, nil) when no row matched.
func scanCredential(row rowScanner) (*models.Credential, error) {
	var (
		c          models.Credential
		credType   string
		validUntil sql.NullString
	)
	err := row.Scan(&c.ID, &c.Name, &c.Username, &credType, &c.PasswordEncrypted, &validUntil, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}
	c.Type = models.CredentialType(credType)
	if validUntil.Valid && validUntil.String != "" {
		if t, perr := time.Parse("2006-01-02", validUntil.String); perr == nil {
			c.ValidUntil = &t
		}
	}
	return &c, nil
}

func validUntilParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}
