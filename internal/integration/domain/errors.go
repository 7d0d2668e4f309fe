package domain

import (
	"github.com/allisson/clinicops/internal/errors"
)

var (
	// ErrIntegrationNotFound indicates the tenant has no active integration of the requested kind.
	ErrIntegrationNotFound = errors.Wrap(errors.ErrNotFound, "integration not found")

	// ErrInvalidKind indicates an unknown integration kind.
	ErrInvalidKind = errors.Wrap(errors.ErrInvalidInput, "invalid integration kind")
)
