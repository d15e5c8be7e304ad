package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/pkg/totp"
)

func TestAuthenticateWritesExactlyOneEntry(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com", domain.RoleEmployee, "correct horse")

	user, err := env.auth.Authenticate(ctxBg, "alice@example.com", "correct horse", testRC)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	entries := env.activities.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "LOGIN", entries[0].Action)
	assert.Equal(t, domain.StatusSuccess, entries[0].Status)
	assert.Equal(t, alice.ID, *entries[0].ActorID)
	assert.Equal(t, testRC.IP, entries[0].IPAddress)
	assert.Equal(t, testRC.Device, entries[0].Device)
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", domain.RoleEmployee, "correct horse")
	disabled := env.createUser(t, "bob@example.com", domain.RoleEmployee, "battery staple")
	require.NoError(t, env.users.UpdateStatus(ctxBg, disabled.ID, domain.UserStatusDisabled))

	_, wrongPassword := env.auth.Authenticate(ctxBg, "alice@example.com", "wrong", testRC)
	_, unknownEmail := env.auth.Authenticate(ctxBg, "nobody@example.com", "wrong", testRC)
	_, disabledAccount := env.auth.Authenticate(ctxBg, "bob@example.com", "battery staple", testRC)

	for _, err := range []error{wrongPassword, unknownEmail, disabledAccount} {
		require.ErrorIs(t, err, errs.ErrInvalidCredentials)
		assert.Equal(t, wrongPassword.Error(), err.Error())
	}

	entries := env.activities.withAction("LOGIN")
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, domain.StatusFailure, e.Status)
	}
	assert.Nil(t, entries[1].ActorID, "unknown email has no actor")
}

func TestLoginIssuesTokenAndSession(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com", domain.RoleManager, "correct horse")

	res, err := env.auth.Login(ctxBg, LoginRequest{Email: "Alice@Example.com", Password: "correct horse"}, testRC)
	require.NoError(t, err)

	claims, err := env.auth.VerifyToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.UserID)
	assert.Equal(t, domain.RoleManager, claims.Role)
	assert.Equal(t, env.now.Add(time.Hour), res.ExpiresAt)

	session, err := env.sessions.GetByID(ctxBg, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, session.UserID)
	assert.Equal(t, testRC.Device, session.Device)
	assert.Nil(t, session.Country)

	stored, err := env.users.GetByID(ctxBg, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)

	require.Len(t, env.activities.all(), 1)
}

func TestVerifyTokenRejectsTampering(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com", domain.RoleEmployee, "correct horse")

	token, _, err := env.auth.IssueToken(alice)
	require.NoError(t, err)

	tampered := []byte(token)
	tampered[len(tampered)/2] ^= 0x01
	_, err = env.auth.VerifyToken(string(tampered))
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	env.now = env.now.Add(2 * time.Hour)
	_, err = env.auth.VerifyToken(token)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestLoginThrottleBlocksAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", domain.RoleEmployee, "correct horse")

	for i := 0; i < 3; i++ {
		_, err := env.auth.Login(ctxBg, LoginRequest{Email: "alice@example.com", Password: "nope"}, testRC)
		require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	}

	_, err := env.auth.Login(ctxBg, LoginRequest{Email: "alice@example.com", Password: "correct horse"}, testRC)
	require.ErrorIs(t, err, errs.ErrRateLimited)
	assert.Len(t, env.activities.withAction("LOGIN"), 4)

	env.redis.FastForward(16 * time.Minute)
	_, err = env.auth.Login(ctxBg, LoginRequest{Email: "alice@example.com", Password: "correct horse"}, testRC)
	require.NoError(t, err)
}

func enableTwoFactor(t *testing.T, env *testEnv, u *domain.User) string {
	t.Helper()
	enrollment, err := env.auth.EnrollSecondFactor(ctxBg, principal(u))
	require.NoError(t, err)

	code, err := totp.Code(enrollment.Secret, env.now)
	require.NoError(t, err)
	require.NoError(t, env.auth.ConfirmSecondFactor(ctxBg, principal(u), code, testRC))
	return enrollment.Secret
}

func TestSecondFactorEnrollment(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com", domain.RoleEmployee, "correct horse")

	enrollment, err := env.auth.EnrollSecondFactor(ctxBg, principal(alice))
	require.NoError(t, err)
	assert.Contains(t, enrollment.URI, "otpauth://totp/")

	stored, _ := env.users.GetByID(ctxBg, alice.ID)
	assert.False(t, stored.TwoFactorEnabled, "enrollment alone must not enable 2FA")

	err = env.auth.ConfirmSecondFactor(ctxBg, principal(alice), "12a456", testRC)
	require.ErrorIs(t, err, errs.ErrInvalidCode)
	err = env.auth.ConfirmSecondFactor(ctxBg, principal(alice), "1234567", testRC)
	require.ErrorIs(t, err, errs.ErrInvalidCode)

	code, err := totp.Code(enrollment.Secret, env.now)
	require.NoError(t, err)
	require.NoError(t, env.auth.ConfirmSecondFactor(ctxBg, principal(alice), code, testRC))

	stored, _ = env.users.GetByID(ctxBg, alice.ID)
	assert.True(t, stored.TwoFactorEnabled)
	assert.True(t, env.auth.VerifySecondFactor(stored, code))

	_, err = env.auth.EnrollSecondFactor(ctxBg, principal(alice))
	assert.Equal(t, errs.Conflict, errs.KindOf(err))

	enabled := env.activities.withAction("TWO_FACTOR_ENABLE")
	require.Len(t, enabled, 1)
	assert.Equal(t, domain.StatusSuccess, enabled[0].Status)
}

func TestLoginWithSecondFactor(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com", domain.RoleEmployee, "correct horse")
	secret := enableTwoFactor(t, env, alice)

	_, err := env.auth.Login(ctxBg, LoginRequest{Email: "alice@example.com", Password: "correct horse"}, testRC)
	require.ErrorIs(t, err, errs.ErrSecondFactorRequired)

	_, err = env.auth.Login(ctxBg, LoginRequest{Email: "alice@example.com", Password: "correct horse", Code: "abcdef"}, testRC)
	require.ErrorIs(t, err, errs.ErrInvalidCode)

	code, err := totp.Code(secret, env.now)
	require.NoError(t, err)
	res, err := env.auth.Login(ctxBg, LoginRequest{Email: "alice@example.com", Password: "correct horse", Code: code}, testRC)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	entries := env.activities.withAction("LOGIN_2FA")
	require.Len(t, entries, 3)
	assert.Equal(t, domain.StatusFailure, entries[0].Status)
	assert.Equal(t, domain.StatusFailure, entries[1].Status)
	assert.Equal(t, domain.StatusSuccess, entries[2].Status)
	assert.Empty(t, env.activities.withAction("LOGIN"))
}

func TestDisableSecondFactor(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com", domain.RoleEmployee, "correct horse")
	secret := enableTwoFactor(t, env, alice)

	code, err := totp.Code(secret, env.now)
	require.NoError(t, err)
	require.NoError(t, env.auth.DisableSecondFactor(ctxBg, principal(alice), code, testRC))

	stored, _ := env.users.GetByID(ctxBg, alice.ID)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Nil(t, stored.TwoFactorSecret)

	_, err = env.auth.Login(ctxBg, LoginRequest{Email: "alice@example.com", Password: "correct horse"}, testRC)
	require.NoError(t, err)
}

func TestLogoutDeletesCurrentSession(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com", domain.RoleEmployee, "correct horse")

	res, err := env.auth.Login(ctxBg, LoginRequest{Email: "alice@example.com", Password: "correct horse"}, testRC)
	require.NoError(t, err)
	require.NoError(t, env.auth.Logout(ctxBg, principal(alice), res.Session.ID, testRC))

	_, err = env.sessions.GetByID(ctxBg, res.Session.ID)
	require.True(t, errors.Is(err, errs.ErrNotFound))
	require.Len(t, env.activities.withAction("LOGOUT"), 1)
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com", domain.RoleEmployee, "correct horse")

	first, err := env.auth.Login(ctxBg, LoginRequest{Email: "alice@example.com", Password: "correct horse"}, testRC)
	require.NoError(t, err)
	_, err = env.auth.Login(ctxBg, LoginRequest{Email: "alice@example.com", Password: "correct horse"}, testRC)
	require.NoError(t, err)

	err = env.auth.ChangePassword(ctxBg, principal(alice), "wrong", "new password!", first.Session.ID, testRC)
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)

	require.NoError(t, env.auth.ChangePassword(ctxBg, principal(alice), "correct horse", "new password!", first.Session.ID, testRC))

	sessions, err := env.sessionSv.List(ctxBg, alice.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, first.Session.ID, sessions[0].ID)

	_, err = env.auth.Authenticate(ctxBg, "alice@example.com", "new password!", testRC)
	require.NoError(t, err)
}
