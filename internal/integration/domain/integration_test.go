package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/clinicops/internal/errors"
)

func TestKind_Validate(t *testing.T) {
	assert.NoError(t, KindCalendar.Validate())
	assert.NoError(t, KindMessaging.Validate())

	err := Kind("crm").Validate()
	assert.ErrorIs(t, err, ErrInvalidKind)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
