package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testUser() *domain.User {
	return &domain.User{ID: uuid.New(), Email: "alice@example.com", Role: domain.RoleManager}
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	svc, err := NewTokenService(testSecret, time.Hour, "docflow")
	require.NoError(t, err)

	user := testUser()
	token, exp, err := svc.Issue(user)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, user.Email, claims.Email)
	require.Equal(t, domain.RoleManager, claims.Role)
}

func TestExpiryIsClampedToSevenDays(t *testing.T) {
	t.Parallel()

	svc, err := NewTokenService(testSecret, 30*24*time.Hour, "docflow")
	require.NoError(t, err)
	require.Equal(t, MaxTokenLifetime, svc.Expiry())
}

func TestWeakSecretRejected(t *testing.T) {
	t.Parallel()

	_, err := NewTokenService("short", time.Hour, "docflow")
	require.ErrorIs(t, err, ErrWeakSecret)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	issuedAt := time.Now().Add(-2 * time.Hour)
	issuer, err := NewTokenService(testSecret, time.Hour, "docflow", WithClock(func() time.Time { return issuedAt }))
	require.NoError(t, err)
	token, _, err := issuer.Issue(testUser())
	require.NoError(t, err)

	verifier, err := NewTokenService(testSecret, time.Hour, "docflow")
	require.NoError(t, err)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsEveryByteMutation(t *testing.T) {
	t.Parallel()

	svc, err := NewTokenService(testSecret, time.Hour, "docflow")
	require.NoError(t, err)
	token, _, err := svc.Issue(testUser())
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		b := []byte(token)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		_, err := svc.Verify(string(b))
		require.ErrorIs(t, err, ErrInvalidToken, "mutation at byte %d verified", i)
	}
}

func TestVerifyRejectsOtherSecretAndAlgorithm(t *testing.T) {
	t.Parallel()

	svc, err := NewTokenService(testSecret, time.Hour, "docflow")
	require.NoError(t, err)
	other, err := NewTokenService(strings.Repeat("x", 32), time.Hour, "docflow")
	require.NoError(t, err)

	token, _, err := other.Issue(testUser())
	require.NoError(t, err)
	_, err = svc.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	// alg=none
	parts := strings.Split(token, ".")
	none := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0." + parts[1] + "."
	_, err = svc.Verify(none)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
