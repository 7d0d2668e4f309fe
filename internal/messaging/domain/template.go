package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// TemplateStatus is the provider approval status of a template.
type TemplateStatus string

const (
	TemplateStatusDraft    TemplateStatus = "draft"
	TemplateStatusPending  TemplateStatus = "pending"
	TemplateStatusApproved TemplateStatus = "approved"
	TemplateStatusRejected TemplateStatus = "rejected"
)

// MessageTemplate is a provider-approved message body with {{var}} placeholders.
type MessageTemplate struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Language  string
	Body      string
	Status    TemplateStatus
	CreatedAt time.Time
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Render replaces {{ key }} placeholders with variable values. Unknown placeholders are kept.
func Render(body string, variables map[string]string) string {
	if len(variables) == 0 {
		return body
	}
	return placeholder.ReplaceAllStringFunc(body, func(match string) string {
		key := placeholder.FindStringSubmatch(match)[1]
		if value, ok := variables[key]; ok {
			return value
		}
		return match
	})
}
