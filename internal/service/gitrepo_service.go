package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/netopscockpit/cockpit/internal/gitrepo"
	"github.com/netopscockpit/cockpit/internal/models"
	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
	"github.com/netopscockpit/cockpit/internal/repository"
)

// CreateGitRepositoryRequest is the input for registering a repository.
type CreateGitRepositoryRequest struct {
	Name           string `json:"name" validate:"required,min=1,max=128"`
	Category       string `json:"category" validate:"required,oneof=configs templates onboarding"`
	URL            string `json:"url" validate:"required,min=1"`
	Branch         string `json:"branch"`
	Username       string `json:"username"`
	Token          string `json:"token"`
	CredentialName string `json:"credential_name"`
	Path           string `json:"path"`
	VerifySSL      *bool  `json:"verify_ssl"`
}

// UpdateGitRepositoryRequest is a partial repository update.
type UpdateGitRepositoryRequest struct {
	Name           *string `json:"name,omitempty"`
	Category       *string `json:"category,omitempty"`
	URL            *string `json:"url,omitempty"`
	Branch         *string `json:"branch,omitempty"`
	Username       *string `json:"username,omitempty"`
	Token          *string `json:"token,omitempty"`
	CredentialName *string `json:"credential_name,omitempty"`
	Path           *string `json:"path,omitempty"`
	VerifySSL      *bool   `json:"verify_ssl,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

// GitRepositoryService owns repository rows and their working trees.
type GitRepositoryService interface {
	List(ctx context.Context) ([]*models.GitRepository, error)
	Get(ctx context.Context, id int64) (*models.GitRepository, error)
	Create(ctx context.Context, req CreateGitRepositoryRequest) (*models.GitRepository, error)
	Update(ctx context.Context, id int64, req UpdateGitRepositoryRequest) (*models.GitRepository, error)
	Delete(ctx context.Context, id int64) error

	GetSelected(ctx context.Context) (*models.GitRepository, error)
	SetSelected(ctx context.Context, id int64) (*models.GitRepository, error)

	Sync(ctx context.Context, id int64) (*models.SyncResult, error)
	Status(ctx context.Context, id int64) (*models.RepositoryStatus, error)
	Test(ctx context.Context, req CreateGitRepositoryRequest) *models.TestResult
	SearchFiles(ctx context.Context, id int64, query string, limit int) ([]models.FileMatch, error)
	Commits(ctx context.Context, id int64, branch string, limit int) ([]models.CommitInfo, error)
	FileHistory(ctx context.Context, id int64, path string, limit int) ([]models.CommitInfo, error)
}

type gitRepositoryService struct {
	repo    repository.GitRepositoryRepository
	manager *gitrepo.Manager
	views   *gitrepo.Views
	clock   clockwork.Clock
}

// NewGitRepositoryService creates the repository service.
func NewGitRepositoryService(repo repository.GitRepositoryRepository, manager *gitrepo.Manager, views *gitrepo.Views, clock clockwork.Clock) GitRepositoryService {
	return &gitRepositoryService{repo: repo, manager: manager, views: views, clock: clock}
}

func (s *gitRepositoryService) List(ctx context.Context) ([]*models.GitRepository, error) {
	return s.repo.List(ctx)
}

func (s *gitRepositoryService) Get(ctx context.Context, id int64) (*models.GitRepository, error) {
	repo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, apierrors.NewNotFoundError("Repository")
	}
	return repo, nil
}

func (s *gitRepositoryService) Create(ctx context.Context, req CreateGitRepositoryRequest) (*models.GitRepository, error) {
	if !models.ValidRepositoryCategory(req.Category) {
		return nil, apierrors.NewValidationError("category", fmt.Sprintf("unknown category %q", req.Category))
	}
	if existing, err := s.repo.GetByName(ctx, req.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, apierrors.NewConflictError(fmt.Sprintf("repository %q already exists", req.Name))
	}

	branch := req.Branch
	if branch == "" {
		branch = "main"
	}
	verifySSL := true
	if req.VerifySSL != nil {
		verifySSL = *req.VerifySSL
	}

	created, err := s.repo.Create(ctx, &models.GitRepository{
		Name:           req.Name,
		Category:       models.RepositoryCategory(req.Category),
		URL:            req.URL,
		Branch:         branch,
		Username:       req.Username,
		Token:          req.Token,
		CredentialName: req.CredentialName,
		Path:           req.Path,
		VerifySSL:      verifySSL,
		IsActive:       true,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("repository registered", "id", created.ID, "name", created.Name,
		"url", gitrepo.RedactURL(created.URL), "category", created.Category)
	return created, nil
}

func (s *gitRepositoryService) Update(ctx context.Context, id int64, req UpdateGitRepositoryRequest) (*models.GitRepository, error) {
	repo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != "" {
		repo.Name = *req.Name
	}
	if req.Category != nil {
		if !models.ValidRepositoryCategory(*req.Category) {
			return nil, apierrors.NewValidationError("category", fmt.Sprintf("unknown category %q", *req.Category))
		}
		repo.Category = models.RepositoryCategory(*req.Category)
	}
	if req.URL != nil && *req.URL != "" {
		repo.URL = *req.URL
	}
	if req.Branch != nil && *req.Branch != "" {
		repo.Branch = *req.Branch
	}
	if req.Username != nil {
		repo.Username = *req.Username
	}
	if req.Token != nil && *req.Token != "" {
		repo.Token = *req.Token
	}
	if req.CredentialName != nil {
		repo.CredentialName = *req.CredentialName
	}
	if req.Path != nil {
		repo.Path = *req.Path
	}
	if req.VerifySSL != nil {
		repo.VerifySSL = *req.VerifySSL
	}
	if req.IsActive != nil {
		repo.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, repo); err != nil {
		return nil, err
	}
	s.views.Invalidate(id)
	return s.Get(ctx, id)
}

func (s *gitRepositoryService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.views.Invalidate(id)
	return nil
}

func (s *gitRepositoryService) GetSelected(ctx context.Context) (*models.GitRepository, error) {
	repo, err := s.repo.GetSelected(ctx)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, apierrors.NewNotFoundError("Selected repository")
	}
	return repo, nil
}

// SetSelected marks one repository for configuration comparison. Only
// active repositories of the configs category qualify.
func (s *gitRepositoryService) SetSelected(ctx context.Context, id int64) (*models.GitRepository, error) {
	repo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !repo.IsActive {
		return nil, apierrors.NewConflictError("cannot select an inactive repository")
	}
	if repo.Category != models.RepositoryCategoryConfigs {
		return nil, apierrors.NewConflictError("only repositories in the configs category can be selected")
	}
	if err := s.repo.SetSelected(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Sync clones or pulls the working tree, recording the outcome on the
// repository row.
func (s *gitRepositoryService) Sync(ctx context.Context, id int64) (*models.SyncResult, error) {
	repo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := s.manager.Sync(ctx, repo)

	status := "success"
	if !result.Success {
		status = "error: " + result.Message
	}
	if err := s.repo.UpdateSyncStatus(ctx, id, status, s.clock.Now()); err != nil {
		slog.Error("failed to record sync status", "repo", repo.Name, "error", err)
	}
	s.views.Invalidate(id)
	return result, nil
}

func (s *gitRepositoryService) Status(ctx context.Context, id int64) (*models.RepositoryStatus, error) {
	repo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.views.Status(ctx, repo), nil
}

// Test verifies connectivity with a shallow clone into a temp dir; the
// repository does not need to exist in the store.
func (s *gitRepositoryService) Test(ctx context.Context, req CreateGitRepositoryRequest) *models.TestResult {
	branch := req.Branch
	if branch == "" {
		branch = "main"
	}
	verifySSL := true
	if req.VerifySSL != nil {
		verifySSL = *req.VerifySSL
	}
	return s.manager.Test(ctx, &models.GitRepository{
		Name:           req.Name,
		URL:            req.URL,
		Branch:         branch,
		Username:       req.Username,
		Token:          req.Token,
		CredentialName: req.CredentialName,
		VerifySSL:      verifySSL,
	})
}

func (s *gitRepositoryService) SearchFiles(ctx context.Context, id int64, query string, limit int) ([]models.FileMatch, error) {
	repo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.views.SearchFiles(ctx, repo, query, limit)
}

// Commits returns the cached commit list for branch (the repository's
// active branch when empty).
func (s *gitRepositoryService) Commits(ctx context.Context, id int64, branch string, limit int) ([]models.CommitInfo, error) {
	repo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.views.Commits(ctx, repo, branch, limit)
}

// FileHistory returns the commits that touched one file, newest first.
func (s *gitRepositoryService) FileHistory(ctx context.Context, id int64, path string, limit int) ([]models.CommitInfo, error) {
	repo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, apierrors.NewValidationError("path", "path is required")
	}
	return s.views.FileHistory(ctx, repo, path, limit)
}
