package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/internal/repository"
	"github.com/CeliaPro/ysm2-sub001/pkg/hash"
	"github.com/CeliaPro/ysm2-sub001/pkg/jwt"
	"github.com/CeliaPro/ysm2-sub001/pkg/totp"
)

// LoginLimiter tracks failed logins per account.
type LoginLimiter interface {
	Blocked(ctx context.Context, identity string) (bool, error)
	Fail(ctx context.Context, identity string) (int64, error)
	Reset(ctx context.Context, identity string) error
}

type AuthService struct {
	userRepo repository.UserRepository
	sessions *SessionService
	recorder *ActivityRecorder
	tokens   *jwt.TokenService
	hasher   *hash.Hasher
	otp      *totp.Authenticator
	limiter  LoginLimiter
	logger   *zap.Logger
	now      clock
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
	Code     string `json:"code,omitempty" form:"code"`
}

// LoginResult carries what the transport needs to set the jwt and sessionId cookies.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
	Session   *domain.Session
}

// NewAuthService wires the credential and token issuer. limiter may be nil.
func NewAuthService(
	userRepo repository.UserRepository,
	sessions *SessionService,
	recorder *ActivityRecorder,
	tokens *jwt.TokenService,
	hasher *hash.Hasher,
	otp *totp.Authenticator,
	limiter LoginLimiter,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		sessions: sessions,
		recorder: recorder,
		tokens:   tokens,
		hasher:   hasher,
		otp:      otp,
		limiter:  limiter,
		logger:   logger,
		now:      utcNow,
	}
}

// Authenticate checks email and password and writes exactly one LOGIN entry.
// Unknown email, wrong password and disabled accounts fail identically.
func (s *AuthService) Authenticate(ctx context.Context, email, password string, rc domain.RequestContext) (*domain.User, error) {
	user, reason, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		s.recorder.Record(ctx, actorOf(user), domain.ActionLogin, domain.StatusFailure, reason, rc)
		return nil, err
	}
	s.recorder.Success(ctx, user.ID, domain.ActionLogin, "password verified", rc)
	return user, nil
}

// RejectLogin records a LOGIN failure for a request that never reached the
// credential check, such as a body that fails validation.
func (s *AuthService) RejectLogin(ctx context.Context, reason string, rc domain.RequestContext) {
	s.recorder.Record(ctx, nil, domain.ActionLogin, domain.StatusFailure, reason, rc)
}

// Login runs the whole sign-in: credentials, the second factor when enabled,
// token and session. Each call writes exactly one LOGIN or LOGIN_2FA entry.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, rc domain.RequestContext) (*LoginResult, error) {
	user, reason, err := s.checkCredentials(ctx, req.Email, req.Password)
	if err != nil {
		s.recorder.Record(ctx, actorOf(user), domain.ActionLogin, domain.StatusFailure, reason, rc)
		return nil, err
	}

	var action domain.Action = domain.ActionLogin
	if user.TwoFactorEnabled {
		action = domain.ActionLogin2FA
		if req.Code == "" {
			s.recorder.Failure(ctx, user.ID, action, "two-factor code missing", rc)
			return nil, errs.ErrSecondFactorRequired
		}
		if !s.VerifySecondFactor(user, req.Code) {
			s.fail(ctx, req.Email)
			s.recorder.Failure(ctx, user.ID, action, "invalid two-factor code", rc)
			return nil, errs.ErrInvalidCode
		}
	}

	result, err := s.startSession(ctx, user, rc)
	if err != nil {
		s.recorder.Failure(ctx, user.ID, action, "could not start session", rc)
		return nil, err
	}

	s.resetThrottle(ctx, req.Email)
	s.recorder.Success(ctx, user.ID, action, "signed in on "+result.Session.Device, rc)
	return result, nil
}

// checkCredentials returns the matched user (or the user a wrong password was
// tried against) plus an audit reason on failure.
func (s *AuthService) checkCredentials(ctx context.Context, email, password string) (*domain.User, string, error) {
	if s.limiter != nil {
		blocked, err := s.limiter.Blocked(ctx, email)
		if err != nil {
			s.logger.Warn("login throttle unavailable", zap.Error(err))
		} else if blocked {
			return nil, "too many failed attempts for " + email, errs.ErrRateLimited
		}
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.hasher.VerifyDummy(password)
			s.fail(ctx, email)
			return nil, "unknown email " + email, errs.ErrInvalidCredentials
		}
		return nil, "credential store unavailable", err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash is unreadable", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	if !ok {
		s.fail(ctx, email)
		return user, "wrong password", errs.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return user, "account disabled", errs.ErrInvalidCredentials
	}
	return user, "", nil
}

func (s *AuthService) fail(ctx context.Context, email string) {
	if s.limiter == nil {
		return
	}
	if _, err := s.limiter.Fail(ctx, email); err != nil {
		s.logger.Warn("failed to count login failure", zap.Error(err))
	}
}

func (s *AuthService) resetThrottle(ctx context.Context, email string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.Warn("failed to reset login throttle", zap.Error(err))
	}
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User, rc domain.RequestContext) (*LoginResult, error) {
	token, exp, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Create(ctx, user.ID, rc)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	return &LoginResult{User: user, Token: token, ExpiresAt: exp, Session: session}, nil
}

// IssueToken signs a token for user.
func (s *AuthService) IssueToken(user *domain.User) (string, time.Time, error) {
	token, exp, err := s.tokens.Issue(user)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, exp, nil
}

// VerifyToken decodes a token. Any failure is Unauthorized.
func (s *AuthService) VerifyToken(token string) (*domain.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, errs.ErrUnauthorized
	}
	return claims, nil
}

// Logout ends the current session. A session that is already gone is not an error.
func (s *AuthService) Logout(ctx context.Context, principal domain.Principal, sessionID string, rc domain.RequestContext) error {
	if sessionID != "" {
		if _, err := s.sessions.End(ctx, sessionID, principal.ID); err != nil {
			return err
		}
	}
	s.recorder.Success(ctx, principal.ID, domain.ActionLogout, "signed out", rc)
	return nil
}

// Me returns the current user record.
func (s *AuthService) Me(ctx context.Context, principal domain.Principal) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, principal.ID)
}

// ChangePassword replaces the password after checking the current one and
// signs out every other device.
func (s *AuthService) ChangePassword(
	ctx context.Context,
	principal domain.Principal,
	currentPassword, newPassword, currentSession string,
	rc domain.RequestContext,
) error {
	user, err := s.userRepo.GetByID(ctx, principal.ID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil || !ok {
		s.recorder.Failure(ctx, user.ID, domain.ActionPasswordChange, "current password mismatch", rc)
		return errs.ErrInvalidCredentials
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return err
	}

	revoked, err := s.sessions.RevokeOthers(ctx, user.ID, currentSession)
	if err != nil {
		s.logger.Warn("failed to revoke sessions after password change", zap.Error(err))
	}
	s.recorder.Success(ctx, user.ID, domain.ActionPasswordChange, fmt.Sprintf("password changed, %d other sessions revoked", revoked), rc)
	return nil
}

// EnrollSecondFactor stores a fresh pending secret. It does not enable 2FA.
func (s *AuthService) EnrollSecondFactor(ctx context.Context, principal domain.Principal) (*totp.Enrollment, error) {
	user, err := s.userRepo.GetByID(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, errs.E(errs.Conflict, "two-factor authentication is already enabled")
	}

	enrollment, err := s.otp.Generate(user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate two-factor secret: %w", err)
	}
	if err := s.userRepo.SetTwoFactor(ctx, user.ID, &enrollment.Secret, false); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// ConfirmSecondFactor enables 2FA once code matches the pending secret.
func (s *AuthService) ConfirmSecondFactor(ctx context.Context, principal domain.Principal, code string, rc domain.RequestContext) error {
	if !totp.WellFormed(code) {
		return errs.ErrInvalidCode
	}

	user, err := s.userRepo.GetByID(ctx, principal.ID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return errs.E(errs.Conflict, "two-factor authentication is already enabled")
	}
	if user.TwoFactorSecret == nil {
		return errs.E(errs.Conflict, "no pending two-factor enrollment")
	}

	if ok, _ := s.otp.Validate(*user.TwoFactorSecret, code); !ok {
		s.recorder.Failure(ctx, user.ID, domain.ActionTwoFactorEnable, "invalid confirmation code", rc)
		return errs.ErrInvalidCode
	}

	if err := s.userRepo.SetTwoFactor(ctx, user.ID, user.TwoFactorSecret, true); err != nil {
		return err
	}
	s.recorder.Success(ctx, user.ID, domain.ActionTwoFactorEnable, "two-factor authentication enabled", rc)
	return nil
}

// VerifySecondFactor checks code against the user's secret without changing state.
func (s *AuthService) VerifySecondFactor(user *domain.User, code string) bool {
	if user.TwoFactorSecret == nil {
		return false
	}
	ok, _ := s.otp.Validate(*user.TwoFactorSecret, code)
	return ok
}

// DisableSecondFactor turns 2FA off after checking a current code.
func (s *AuthService) DisableSecondFactor(ctx context.Context, principal domain.Principal, code string, rc domain.RequestContext) error {
	if !totp.WellFormed(code) {
		return errs.ErrInvalidCode
	}

	user, err := s.userRepo.GetByID(ctx, principal.ID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return errs.E(errs.Conflict, "two-factor authentication is not enabled")
	}
	if !s.VerifySecondFactor(user, code) {
		s.recorder.Failure(ctx, user.ID, domain.ActionTwoFactorDisable, "invalid code", rc)
		return errs.ErrInvalidCode
	}

	if err := s.userRepo.SetTwoFactor(ctx, user.ID, nil, false); err != nil {
		return err
	}
	s.recorder.Success(ctx, user.ID, domain.ActionTwoFactorDisable, "two-factor authentication disabled", rc)
	return nil
}

func actorOf(user *domain.User) *uuid.UUID {
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}
