// Package domain defines per-tenant integration credentials for the external calendar and
// messaging provider. Access tokens are stored encrypted and only decrypted on use.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies which external system an integration connects.
type Kind string

const (
	KindCalendar  Kind = "calendar"
	KindMessaging Kind = "messaging"
)

// Validate checks if the kind is known.
func (k Kind) Validate() error {
	switch k {
	case KindCalendar, KindMessaging:
		return nil
	default:
		return ErrInvalidKind
	}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Integration links a tenant to an external account.
type Integration struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Kind     Kind
	// AccountID is the calendar id or the messaging phone-number id.
	AccountID      string
	EncryptedToken []byte
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Credential is a decrypted integration ready to call the external system.
type Credential struct {
	TenantID    uuid.UUID
	Kind        Kind
	AccountID   string
	AccessToken string `json:"-"`
}
