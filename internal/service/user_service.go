package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/internal/repository"
	"github.com/CeliaPro/ysm2-sub001/pkg/email"
	"github.com/CeliaPro/ysm2-sub001/pkg/hash"
)

var errInvalidResetToken = errs.E(errs.Conflict, "invalid or expired reset token")

// UserService covers password recovery and user administration.
type UserService struct {
	userRepo  repository.UserRepository
	resetRepo repository.PasswordResetRepository
	sessions  *SessionService
	recorder  *ActivityRecorder
	hasher    *hash.Hasher
	mailer    email.Sender
	logger    *zap.Logger
	publicURL string
	resetTTL  time.Duration
	now       clock
}

type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" form:"token" validate:"required"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=128"`
}

type ChangeRoleRequest struct {
	Role domain.Role `json:"role" validate:"required,role"`
}

func NewUserService(
	userRepo repository.UserRepository,
	resetRepo repository.PasswordResetRepository,
	sessions *SessionService,
	recorder *ActivityRecorder,
	hasher *hash.Hasher,
	mailer email.Sender,
	logger *zap.Logger,
	publicURL string,
	resetTTL time.Duration,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		resetRepo: resetRepo,
		sessions:  sessions,
		recorder:  recorder,
		hasher:    hasher,
		mailer:    mailer,
		logger:    logger,
		publicURL: strings.TrimRight(publicURL, "/"),
		resetTTL:  resetTTL,
		now:       utcNow,
	}
}

// RequestPasswordReset emails a reset link when the address belongs to an
// active user. The outcome is the same for unknown addresses.
func (s *UserService) RequestPasswordReset(ctx context.Context, addr string, rc domain.RequestContext) error {
	user, err := s.userRepo.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}
	if !user.IsActive() {
		return nil
	}

	token, err := generateSecureToken(32)
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	now := s.now()
	reset := &domain.PasswordReset{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}
	if err := s.resetRepo.Create(ctx, reset); err != nil {
		return err
	}

	link := s.publicURL + "/reset-password?token=" + url.QueryEscape(token)
	notify(ctx, s.mailer, s.logger, user.Email, "Reset your password", email.PasswordResetEmailTemplate(user.Name, link))

	s.recorder.Success(ctx, user.ID, domain.ActionPasswordResetRequest, "password reset link sent", rc)
	return nil
}

// ResetPassword consumes a reset token, sets the new password and signs the
// user out everywhere.
func (s *UserService) ResetPassword(ctx context.Context, req ResetPasswordRequest, rc domain.RequestContext) error {
	reset, err := s.resetRepo.GetByTokenHash(ctx, hashToken(req.Token))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errInvalidResetToken
		}
		return err
	}
	if reset.UsedAt != nil || !s.now().Before(reset.ExpiresAt) {
		return errInvalidResetToken
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	consumed, err := s.resetRepo.MarkUsed(ctx, reset.ID)
	if err != nil {
		return err
	}
	if !consumed {
		return errInvalidResetToken
	}

	if err := s.userRepo.UpdatePassword(ctx, reset.UserID, passwordHash); err != nil {
		return err
	}

	if _, err := s.sessions.RevokeAll(ctx, reset.UserID, rc); err != nil {
		s.logger.Warn("failed to revoke sessions after password reset", zap.Error(err))
	}
	s.recorder.Success(ctx, reset.UserID, domain.ActionPasswordReset, "password reset completed", rc)

	if user, err := s.userRepo.GetByID(ctx, reset.UserID); err == nil {
		notify(ctx, s.mailer, s.logger, user.Email, "Your password was changed", email.PasswordChangedEmailTemplate(user.Name))
	}
	return nil
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int, search string) ([]*domain.User, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.userRepo.List(ctx, limit, offset, strings.TrimSpace(search))
}

// ChangeRole sets userID's role. Admins cannot change their own role.
func (s *UserService) ChangeRole(ctx context.Context, admin domain.Principal, userID uuid.UUID, role domain.Role, rc domain.RequestContext) (*domain.User, error) {
	parsed, err := domain.ParseRole(string(role))
	if err != nil {
		return nil, errs.E(errs.Validation, err.Error())
	}
	if userID == admin.ID {
		s.recorder.Failure(ctx, admin.ID, domain.ActionRoleChange, "attempted to change own role", rc)
		return nil, errs.E(errs.Forbidden, "you cannot change your own role")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := user.Role

	if err := s.userRepo.UpdateRole(ctx, userID, parsed); err != nil {
		return nil, err
	}
	user.Role = parsed

	s.recorder.Success(ctx, admin.ID, domain.ActionRoleChange,
		fmt.Sprintf("changed role of %s from %s to %s", user.Email, previous, parsed), rc)
	return user, nil
}

// DisableUser soft-deletes userID and ends all of its sessions.
func (s *UserService) DisableUser(ctx context.Context, admin domain.Principal, userID uuid.UUID, rc domain.RequestContext) error {
	if userID == admin.ID {
		return errs.E(errs.Forbidden, "you cannot disable your own account")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdateStatus(ctx, userID, domain.UserStatusDisabled); err != nil {
		return err
	}

	revoked, err := s.sessions.Purge(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to revoke sessions of disabled user", zap.String("user_id", userID.String()), zap.Error(err))
	}

	s.recorder.Success(ctx, admin.ID, domain.ActionUserDisable,
		fmt.Sprintf("disabled %s, %d sessions revoked", user.Email, revoked), rc)
	return nil
}

// BootstrapAdmin creates the first ADMIN when the user table is empty. It is a
// no-op once any user exists, so it is safe to run on every start.
func (s *UserService) BootstrapAdmin(ctx context.Context, addr, name, password string) (bool, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" || password == "" {
		return false, nil
	}

	_, total, err := s.userRepo.List(ctx, 1, 0, "")
	if err != nil {
		return false, err
	}
	if total > 0 {
		return false, nil
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	if name == "" {
		name = strings.Split(addr, "@")[0]
	}

	now := s.now()
	admin := &domain.User{
		ID:           uuid.New(),
		Email:        addr,
		Name:         name,
		Role:         domain.RoleAdmin,
		PasswordHash: passwordHash,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return false, err
	}

	s.logger.Info("bootstrap admin created", zap.String("email", addr))
	return true, nil
}
