package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/netopscockpit/cockpit/internal/models"
)

// TemplateRepository is the read surface over stored templates. The
// scan engine resolves parser templates by id; the inventory generator
// resolves render templates by name and category.
type TemplateRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Template, error)
	GetByNameAndCategory(ctx context.Context, name, category string) (*models.Template, error)
	ListByType(ctx context.Context, t models.TemplateType) ([]*models.Template, error)
	Content(ctx context.Context, tpl *models.Template) (string, error)
}

type templateRepository struct {
	db           *sql.DB
	templatesDir string
}

// NewTemplateRepository creates a sqlite-backed template store reading
// file-backed content from templatesDir.
func NewTemplateRepository(db *sql.DB, templatesDir string) TemplateRepository {
	return &templateRepository{db: db, templatesDir: templatesDir}
}

const templateColumns = `id, name, source, type, category, content, variables, tags, is_active, created_at, updated_at`

func (r *templateRepository) GetByID(ctx context.Context, id int64) (*models.Template, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	return scanTemplate(row)
}

func (r *templateRepository) GetByNameAndCategory(ctx context.Context, name, category string) (*models.Template, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE name = ? AND category = ?`, name, category)
	return scanTemplate(row)
}

func (r *templateRepository) ListByType(ctx context.Context, t models.TemplateType) ([]*models.Template, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE type = ? AND is_active = 1 ORDER BY name`, string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var tpls []*models.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		tpls = append(tpls, tpl)
	}
	return tpls, rows.Err()
}

// Content returns the template body: inline rows carry it in the
// content column, file-backed rows read data_root/templates/<category>/<name>.
func (r *templateRepository) Content(ctx context.Context, tpl *models.Template) (string, error) {
	if tpl.Source == models.TemplateSourceWebEditor || tpl.Content != "" {
		return tpl.Content, nil
	}
	path := filepath.Join(r.templatesDir, tpl.Category, tpl.Name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template file %s: %w", path, err)
	}
	return string(data), nil
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var (
		tpl     models.Template
		source  string
		tplType string
	)
	err := row.Scan(&tpl.ID, &tpl.Name, &source, &tplType, &tpl.Category, &tpl.Content,
		&tpl.Variables, &tpl.Tags, &tpl.IsActive, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}
	tpl.Source = models.TemplateSource(source)
	tpl.Type = models.TemplateType(tplType)
	return &tpl, nil
}
