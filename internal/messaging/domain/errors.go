package domain

import (
	"github.com/allisson/clinicops/internal/errors"
)

// Messaging errors.
var (
	// ErrTemplateRequired indicates a template is mandatory but none was named.
	ErrTemplateRequired = errors.Wrap(errors.ErrPolicyViolation, "template required")

	// ErrTemplateNotApproved indicates no approved template exists for the name.
	ErrTemplateNotApproved = errors.Wrap(errors.ErrPolicyViolation, "template not approved")

	// ErrBodyRequired indicates a freeform message without a body.
	ErrBodyRequired = errors.Wrap(errors.ErrInvalidInput, "message body is required")

	// ErrRecipientRequired indicates a message without a recipient.
	ErrRecipientRequired = errors.Wrap(errors.ErrInvalidInput, "recipient is required")

	// ErrInvalidClassification indicates an unknown classification.
	ErrInvalidClassification = errors.Wrap(errors.ErrInvalidInput, "invalid message classification")

	// ErrInvalidStatus indicates an unknown message status.
	ErrInvalidStatus = errors.Wrap(errors.ErrInvalidInput, "invalid message status")

	// ErrInvalidReceipt indicates a receipt without an id or with an unknown status.
	ErrInvalidReceipt = errors.Wrap(errors.ErrInvalidInput, "invalid delivery receipt")

	// ErrInvalidTransition indicates a status change the lifecycle forbids.
	ErrInvalidTransition = errors.Wrap(errors.ErrConflict, "invalid message status transition")

	// ErrIdempotencyKeyTaken indicates another message already holds the idempotency key.
	ErrIdempotencyKeyTaken = errors.Wrap(errors.ErrConflict, "idempotency key already used")

	// ErrIdempotencyKeyInUse indicates the idempotency key belongs to another tenant's message.
	ErrIdempotencyKeyInUse = errors.Wrap(errors.ErrConflict, "idempotency key is in use")

	// ErrProviderNotConfigured indicates the tenant has no messaging integration.
	ErrProviderNotConfigured = errors.Wrap(errors.ErrGateway, "message provider not configured")

	// ErrProviderUnavailable indicates the provider rejected the message or could not be reached.
	ErrProviderUnavailable = errors.Wrap(errors.ErrGateway, "message provider unavailable")

	// ErrMessageNotFound indicates the message does not exist.
	ErrMessageNotFound = errors.Wrap(errors.ErrNotFound, "message not found")

	// ErrTemplateNotFound indicates the template does not exist.
	ErrTemplateNotFound = errors.Wrap(errors.ErrNotFound, "template not found")
)
