package service

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netopscockpit/cockpit/internal/models"
	"github.com/netopscockpit/cockpit/internal/vault"
)

// memCredentialRepo is an in-memory CredentialRepository.
type memCredentialRepo struct {
	nextID int64
	rows   map[int64]*models.Credential
}

func newMemCredentialRepo() *memCredentialRepo {
	return &memCredentialRepo{nextID: 1, rows: make(map[int64]*models.Credential)}
}

func (m *memCredentialRepo) Create(_ context.Context, c *models.Credential) (*models.Credential, error) {
	cp := *c
	cp.ID = m.nextID
	m.nextID++
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memCredentialRepo) GetByID(_ context.Context, id int64) (*models.Credential, error) {
	if c, ok := m.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *memCredentialRepo) GetByName(_ context.Context, name string) (*models.Credential, error) {
	for _, c := range m.rows {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCredentialRepo) List(_ context.Context) ([]*models.Credential, error) {
	out := make([]*models.Credential, 0, len(m.rows))
	for _, c := range m.rows {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memCredentialRepo) Update(_ context.Context, c *models.Credential) error {
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memCredentialRepo) Delete(_ context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}

func newTestCredentialService(t *testing.T) (CredentialService, *memCredentialRepo, *clockwork.FakeClock) {
	t.Helper()
	v, err := vault.New("test-secret")
	require.NoError(t, err)
	repo := newMemCredentialRepo()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	return NewCredentialService(repo, v, clock), repo, clock
}

func TestCredentialService_CreateDecryptRoundTrip(t *testing.T) {
	svc, _, _ := newTestCredentialService(t)

	info, err := svc.Create(t.Context(), CreateCredentialRequest{
		Name: "lab-ssh", Username: "admin", Type: "ssh", Password: "hunter2",
	})
	require.NoError(t, err)
	assert.True(t, info.HasPassword)
	assert.Equal(t, models.CredentialStatusActive, info.Status)

	_, plaintext, err := svc.Decrypt(t.Context(), info.ID)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plaintext)
}

func TestCredentialService_CreateValidation(t *testing.T) {
	svc, _, _ := newTestCredentialService(t)

	_, err := svc.Create(t.Context(), CreateCredentialRequest{Name: "x", Type: "kerberos", Password: "p"})
	require.Error(t, err, "unknown type rejected")

	_, err = svc.Create(t.Context(), CreateCredentialRequest{Name: "", Type: "ssh", Password: "p"})
	require.Error(t, err, "empty name rejected")

	_, err = svc.Create(t.Context(), CreateCredentialRequest{Name: "x", Type: "ssh", Password: ""})
	require.Error(t, err, "empty password rejected")
}

func TestCredentialService_DuplicateName(t *testing.T) {
	svc, _, _ := newTestCredentialService(t)

	_, err := svc.Create(t.Context(), CreateCredentialRequest{Name: "dup", Type: "ssh", Password: "p"})
	require.NoError(t, err)
	_, err = svc.Create(t.Context(), CreateCredentialRequest{Name: "dup", Type: "ssh", Password: "p"})
	require.Error(t, err)
}

func TestCredentialService_StatusDerivation(t *testing.T) {
	svc, _, _ := newTestCredentialService(t)

	// Fake clock sits at 2026-08-24.
	tests := []struct {
		name       string
		validUntil string
		want       models.CredentialStatus
	}{
		{"expired", "2026-08-23", models.CredentialStatusExpired},
		{"expiring today", "2026-08-24", models.CredentialStatusExpiring},
		{"expiring within 7d", "2026-08-31", models.CredentialStatusExpiring},
		{"active beyond 7d", "2026-09-01", models.CredentialStatusActive},
		{"no expiry", "", models.CredentialStatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := svc.Create(t.Context(), CreateCredentialRequest{
				Name: "cred-" + tt.name, Type: "ssh", Password: "p", ValidUntil: tt.validUntil,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, info.Status)
		})
	}
}

func TestCredentialService_ListHidesExpired(t *testing.T) {
	svc, _, _ := newTestCredentialService(t)

	_, err := svc.Create(t.Context(), CreateCredentialRequest{Name: "live", Type: "ssh", Password: "p"})
	require.NoError(t, err)
	_, err = svc.Create(t.Context(), CreateCredentialRequest{Name: "dead", Type: "ssh", Password: "p", ValidUntil: "2020-01-01"})
	require.NoError(t, err)

	infos, err := svc.List(t.Context(), false)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "live", infos[0].Name)

	infos, err = svc.List(t.Context(), true)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestCredentialService_UpdateKeepsPasswordWhenAbsent(t *testing.T) {
	svc, repo, _ := newTestCredentialService(t)

	info, err := svc.Create(t.Context(), CreateCredentialRequest{Name: "c", Username: "u", Type: "ssh", Password: "original"})
	require.NoError(t, err)

	before, _ := repo.GetByID(t.Context(), info.ID)

	newUser := "root"
	_, err = svc.Update(t.Context(), info.ID, UpdateCredentialRequest{Username: &newUser})
	require.NoError(t, err)

	after, _ := repo.GetByID(t.Context(), info.ID)
	assert.Equal(t, before.PasswordEncrypted, after.PasswordEncrypted, "ciphertext untouched without a new password")
	assert.Equal(t, "root", after.Username)

	_, plaintext, err := svc.Decrypt(t.Context(), info.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", plaintext)
}

func TestCredentialService_UpdateReencryptsPassword(t *testing.T) {
	svc, repo, _ := newTestCredentialService(t)

	info, err := svc.Create(t.Context(), CreateCredentialRequest{Name: "c", Type: "ssh", Password: "old"})
	require.NoError(t, err)
	before, _ := repo.GetByID(t.Context(), info.ID)

	newPass := "new"
	_, err = svc.Update(t.Context(), info.ID, UpdateCredentialRequest{Password: &newPass})
	require.NoError(t, err)

	after, _ := repo.GetByID(t.Context(), info.ID)
	assert.NotEqual(t, before.PasswordEncrypted, after.PasswordEncrypted)

	_, plaintext, err := svc.Decrypt(t.Context(), info.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", plaintext)
}

func TestCredentialService_ResolveToken(t *testing.T) {
	svc, _, _ := newTestCredentialService(t)

	_, err := svc.Create(t.Context(), CreateCredentialRequest{Name: "gh-token", Username: "bot", Type: "token", Password: "tok123"})
	require.NoError(t, err)
	_, err = svc.Create(t.Context(), CreateCredentialRequest{Name: "lab-ssh", Type: "ssh", Password: "p"})
	require.NoError(t, err)

	user, token, err := svc.ResolveToken(t.Context(), "gh-token")
	require.NoError(t, err)
	assert.Equal(t, "bot", user)
	assert.Equal(t, "tok123", token)

	_, _, err = svc.ResolveToken(t.Context(), "lab-ssh")
	require.Error(t, err, "non-token credentials are rejected")

	_, _, err = svc.ResolveToken(t.Context(), "missing")
	require.Error(t, err)
}

func TestCredentialService_ResolveAllPreservesOrder(t *testing.T) {
	svc, _, _ := newTestCredentialService(t)

	a, err := svc.Create(t.Context(), CreateCredentialRequest{Name: "a", Username: "ua", Type: "ssh", Password: "pa"})
	require.NoError(t, err)
	b, err := svc.Create(t.Context(), CreateCredentialRequest{Name: "b", Username: "ub", Type: "ssh", Password: "pb"})
	require.NoError(t, err)

	creds, err := svc.ResolveAll(t.Context(), []int64{b.ID, a.ID})
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, b.ID, creds[0].ID)
	assert.Equal(t, "pb", creds[0].Password)
	assert.Equal(t, a.ID, creds[1].ID)
}

func TestCredentialService_DeleteIdempotent(t *testing.T) {
	svc, _, _ := newTestCredentialService(t)

	info, err := svc.Create(t.Context(), CreateCredentialRequest{Name: "c", Type: "ssh", Password: "p"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(t.Context(), info.ID))
	require.NoError(t, svc.Delete(t.Context(), info.ID), "second delete is a no-op")
}
