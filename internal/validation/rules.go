// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/clinicops/internal/errors"
)

var (
	// recipientRegex accepts E.164 style numbers, with or without the leading plus.
	recipientRegex = regexp.MustCompile(`^\+?[1-9][0-9]{6,14}$`)

	// languageRegex accepts tags like "pt", "pt_BR" or "en-US".
	languageRegex = regexp.MustCompile(`^[a-z]{2,3}([_-][A-Za-z]{2,4})?$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// UUID validates that a string parses as a UUID.
var UUID = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	},
	validation.NewError("validation_uuid", "must be a valid UUID"),
)

// RFC3339 validates that a string is an RFC 3339 timestamp with an explicit offset.
var RFC3339 = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	},
	validation.NewError("validation_rfc3339", "must be an RFC 3339 timestamp"),
)

// Recipient validates a messaging address in E.164 form.
var Recipient = validation.NewStringRuleWithError(
	func(s string) bool {
		return recipientRegex.MatchString(s)
	},
	validation.NewError("validation_recipient", "must be a phone number in E.164 format"),
)

// Language validates a template language tag.
var Language = validation.NewStringRuleWithError(
	func(s string) bool {
		return languageRegex.MatchString(s)
	},
	validation.NewError("validation_language", "must be a language tag such as pt_BR"),
)
