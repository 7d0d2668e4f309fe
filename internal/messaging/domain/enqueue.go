package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EnqueueRequest asks for a message to be delivered.
type EnqueueRequest struct {
	TenantID        uuid.UUID
	ConversationRef *string
	Recipient       string
	Classification  Classification
	TemplateName    string
	// Language defaults to the configured messaging language.
	Language  string
	Variables map[string]string
	// Body is the text of a freeform message.
	Body string
	// IdempotencyKey is derived from the content when empty.
	IdempotencyKey string
	// NotBefore, when set, is the earliest send time.
	NotBefore *time.Time
	// Delay is used when NotBefore is nil; it is clamped to the configured maximum.
	Delay time.Duration
}

// idempotencyInput is serialized with a fixed field order; maps are sorted by key.
type idempotencyInput struct {
	TenantID        string          `json:"tenant_id"`
	ConversationRef *string         `json:"conversation_ref"`
	Payload         idempotencyBody `json:"payload"`
	Classification  Classification  `json:"classification"`
}

type idempotencyBody struct {
	Template  string            `json:"template,omitempty"`
	Language  string            `json:"language,omitempty"`
	Body      string            `json:"body"`
	Variables map[string]string `json:"variables,omitempty"`
}

// DeriveIdempotencyKey returns the hex SHA-256 of the canonical JSON of the message identity.
// body is the text that will be sent, so for templated messages it is the rendered template.
func DeriveIdempotencyKey(
	tenantID uuid.UUID,
	conversationRef *string,
	classification Classification,
	templateName, language, body string,
	variables map[string]string,
) string {
	raw, _ := json.Marshal(idempotencyInput{
		TenantID:        tenantID.String(),
		ConversationRef: conversationRef,
		Payload: idempotencyBody{
			Template:  templateName,
			Language:  language,
			Body:      body,
			Variables: variables,
		},
		Classification: classification,
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
