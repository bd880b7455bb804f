// Package service implements the application use-cases on top of the
// repositories, the vault and the external clients.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/netopscockpit/cockpit/internal/models"
	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
	"github.com/netopscockpit/cockpit/internal/repository"
	"github.com/netopscockpit/cockpit/internal/scan"
	"github.com/netopscockpit/cockpit/internal/vault"
)

// CreateCredentialRequest is the input for creating a credential.
type CreateCredentialRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=128"`
	Username   string `json:"username"`
	Type       string `json:"type" validate:"required,oneof=ssh tacacs generic token"`
	Password   string `json:"password" validate:"required,min=1"`
	ValidUntil string `json:"valid_until,omitempty"`
}

// UpdateCredentialRequest is a partial update; nil fields are left
// untouched. The password is re-encrypted only when present.
type UpdateCredentialRequest struct {
	Name       *string `json:"name,omitempty"`
	Username   *string `json:"username,omitempty"`
	Type       *string `json:"type,omitempty"`
	Password   *string `json:"password,omitempty"`
	ValidUntil *string `json:"valid_until,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

// CredentialService mediates all credential access. Decryption is
// reserved for the scan engine and the Git orchestrator.
type CredentialService interface {
	List(ctx context.Context, includeExpired bool) ([]models.CredentialInfo, error)
	Create(ctx context.Context, req CreateCredentialRequest) (*models.CredentialInfo, error)
	Update(ctx context.Context, id int64, req UpdateCredentialRequest) (*models.CredentialInfo, error)
	Delete(ctx context.Context, id int64) error
	Decrypt(ctx context.Context, id int64) (*models.Credential, string, error)

	// ResolveToken satisfies the Git orchestrator's credential lookup.
	ResolveToken(ctx context.Context, name string) (username, token string, err error)
	// ResolveAll satisfies the scan engine's credential resolution.
	ResolveAll(ctx context.Context, ids []int64) ([]scan.Credential, error)
}

type credentialService struct {
	repo  repository.CredentialRepository
	vault *vault.Vault
	clock clockwork.Clock
}

// NewCredentialService creates the credential service.
func NewCredentialService(repo repository.CredentialRepository, v *vault.Vault, clock clockwork.Clock) CredentialService {
	return &credentialService{repo: repo, vault: v, clock: clock}
}

func (s *credentialService) List(ctx context.Context, includeExpired bool) ([]models.CredentialInfo, error) {
	creds, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	infos := make([]models.CredentialInfo, 0, len(creds))
	for _, c := range creds {
		info := c.Info(now)
		if !includeExpired && info.Status == models.CredentialStatusExpired {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *credentialService) Create(ctx context.Context, req CreateCredentialRequest) (*models.CredentialInfo, error) {
	if !models.ValidCredentialType(req.Type) {
		return nil, apierrors.NewValidationError("type", fmt.Sprintf("unknown credential type %q", req.Type))
	}
	if req.Name == "" {
		return nil, apierrors.NewValidationError("name", "name must not be empty")
	}
	if req.Password == "" {
		return nil, apierrors.NewValidationError("password", "password must not be empty")
	}

	if existing, err := s.repo.GetByName(ctx, req.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, apierrors.NewConflictError(fmt.Sprintf("credential %q already exists", req.Name))
	}

	validUntil, err := parseValidUntil(req.ValidUntil)
	if err != nil {
		return nil, err
	}

	ciphertext, err := s.vault.Encrypt(req.Password)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, &models.Credential{
		Name:              req.Name,
		Username:          req.Username,
		Type:              models.CredentialType(req.Type),
		PasswordEncrypted: ciphertext,
		ValidUntil:        validUntil,
		IsActive:          true,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("credential created", "id", created.ID, "name", created.Name, "type", created.Type)
	info := created.Info(s.clock.Now())
	return &info, nil
}

func (s *credentialService) Update(ctx context.Context, id int64, req UpdateCredentialRequest) (*models.CredentialInfo, error) {
	cred, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, apierrors.NewNotFoundError("Credential")
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, apierrors.NewValidationError("name", "name must not be empty")
		}
		cred.Name = *req.Name
	}
	if req.Username != nil {
		cred.Username = *req.Username
	}
	if req.Type != nil {
		if !models.ValidCredentialType(*req.Type) {
			return nil, apierrors.NewValidationError("type", fmt.Sprintf("unknown credential type %q", *req.Type))
		}
		cred.Type = models.CredentialType(*req.Type)
	}
	if req.Password != nil && *req.Password != "" {
		ciphertext, err := s.vault.Encrypt(*req.Password)
		if err != nil {
			return nil, err
		}
		cred.PasswordEncrypted = ciphertext
	}
	if req.ValidUntil != nil {
		validUntil, err := parseValidUntil(*req.ValidUntil)
		if err != nil {
			return nil, err
		}
		cred.ValidUntil = validUntil
	}
	if req.IsActive != nil {
		cred.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, cred); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	info := updated.Info(s.clock.Now())
	return &info, nil
}

func (s *credentialService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Decrypt returns the credential row together with its plaintext.
func (s *credentialService) Decrypt(ctx context.Context, id int64) (*models.Credential, string, error) {
	cred, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if cred == nil {
		return nil, "", apierrors.NewNotFoundError("Credential")
	}
	plaintext, err := s.vault.Decrypt(cred.PasswordEncrypted)
	if err != nil {
		return nil, "", err
	}
	return cred, plaintext, nil
}

func (s *credentialService) ResolveToken(ctx context.Context, name string) (string, string, error) {
	cred, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return "", "", err
	}
	if cred == nil {
		return "", "", apierrors.NewNotFoundError(fmt.Sprintf("Credential %q", name))
	}
	if cred.Type != models.CredentialTypeToken {
		return "", "", apierrors.NewValidationError("credential_name",
			fmt.Sprintf("credential %q is of type %s, expected token", name, cred.Type))
	}
	token, err := s.vault.Decrypt(cred.PasswordEncrypted)
	if err != nil {
		return "", "", err
	}
	return cred.Username, token, nil
}

func (s *credentialService) ResolveAll(ctx context.Context, ids []int64) ([]scan.Credential, error) {
	creds := make([]scan.Credential, 0, len(ids))
	for _, id := range ids {
		cred, plaintext, err := s.Decrypt(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("credential %d: %w", id, err)
		}
		creds = append(creds, scan.Credential{
			ID:       cred.ID,
			Username: cred.Username,
			Password: plaintext,
		})
	}
	return creds, nil
}

func parseValidUntil(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, apierrors.NewValidationError("valid_until", "expected date in YYYY-MM-DD format")
	}
	return &t, nil
}
