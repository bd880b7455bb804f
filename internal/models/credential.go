// Package models defines the domain types shared across the application.
package models

import "time"

// CredentialType enumerates the supported credential kinds.
type CredentialType string

const (
	CredentialTypeSSH     CredentialType = "ssh"
	CredentialTypeTACACS  CredentialType = "tacacs"
	CredentialTypeGeneric CredentialType = "generic"
	CredentialTypeToken   CredentialType = "token"
)

// ValidCredentialType reports whether t is one of the supported kinds.
func ValidCredentialType(t string) bool {
	switch CredentialType(t) {
	case CredentialTypeSSH, CredentialTypeTACACS, CredentialTypeGeneric, CredentialTypeToken:
		return true
	}
	return false
}

// CredentialStatus is derived from valid_until at read time.
type CredentialStatus string

const (
	CredentialStatusActive   CredentialStatus = "active"
	CredentialStatusExpiring CredentialStatus = "expiring"
	CredentialStatusExpired  CredentialStatus = "expired"
	CredentialStatusUnknown  CredentialStatus = "unknown"
)

// Credential is a stored credential row. PasswordEncrypted never leaves
// the process; API responses use CredentialInfo instead.
type Credential struct {
	ID                int64
	Name              string
	Username          string
	Type              CredentialType
	PasswordEncrypted []byte
	ValidUntil        *time.Time
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CredentialInfo is the API read model for a credential.
type CredentialInfo struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Username    string           `json:"username"`
	Type        CredentialType   `json:"type"`
	ValidUntil  *string          `json:"valid_until,omitempty"`
	Status      CredentialStatus `json:"status"`
	IsActive    bool             `json:"is_active"`
	HasPassword bool             `json:"has_password"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// StatusAt derives the credential status at the given instant.
// Expiry within 7 days counts as expiring.
func (c *Credential) StatusAt(now time.Time) CredentialStatus {
	if c.ValidUntil == nil {
		return CredentialStatusActive
	}
	today := now.Truncate(24 * time.Hour)
	until := c.ValidUntil.Truncate(24 * time.Hour)
	if until.Before(today) {
		return CredentialStatusExpired
	}
	if until.Sub(today) <= 7*24*time.Hour {
		return CredentialStatusExpiring
	}
	return CredentialStatusActive
}

// Info builds the API read model, deriving status against now.
func (c *Credential) Info(now time.Time) CredentialInfo {
	info := CredentialInfo{
		ID:          c.ID,
		Name:        c.Name,
		Username:    c.Username,
		Type:        c.Type,
		Status:      c.StatusAt(now),
		IsActive:    c.IsActive,
		HasPassword: len(c.PasswordEncrypted) > 0,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.ValidUntil != nil {
		s := c.ValidUntil.Format("2006-01-02")
		info.ValidUntil = &s
	}
	return info
}
