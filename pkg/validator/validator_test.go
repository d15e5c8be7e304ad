package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type inviteInput struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,role"`
	Name  string `json:"display_name" validate:"required,min=2"`
}

func TestValidate(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	require.NoError(t, v.Validate(inviteInput{Email: "alice@example.com", Role: "manager", Name: "Al"}))
	require.NoError(t, v.Validate(inviteInput{Email: "alice@example.com", Name: "Al"}))

	err := v.Validate(inviteInput{Email: "nope", Role: "owner", Name: "A"})
	require.EqualError(t, err,
		"email must be a valid email address; role must be one of EMPLOYEE, MANAGER, ADMIN; display_name must be at least 2 characters")
}
