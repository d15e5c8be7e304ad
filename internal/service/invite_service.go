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

var errInvalidInvite = errs.E(errs.Conflict, "invalid or expired invite")

// InviteService issues invitations and redeems them into accounts.
type InviteService struct {
	inviteRepo repository.InviteRepository
	userRepo   repository.UserRepository
	recorder   *ActivityRecorder
	hasher     *hash.Hasher
	mailer     email.Sender
	logger     *zap.Logger
	publicURL  string
	ttl        time.Duration
	now        clock
}

type CreateInviteRequest struct {
	Email string      `json:"email" validate:"required,email"`
	Role  domain.Role `json:"role" validate:"omitempty,role"`
}

type RegisterRequest struct {
	Token    string `json:"token" form:"token" validate:"required"`
	Name     string `json:"name" form:"name" validate:"required,max=100"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=128"`
}

// CreatedInvite is returned to the inviting admin once. The raw token is not stored.
type CreatedInvite struct {
	Invite *domain.Invite `json:"invite"`
	Token  string         `json:"token"`
	Link   string         `json:"link"`
}

func NewInviteService(
	inviteRepo repository.InviteRepository,
	userRepo repository.UserRepository,
	recorder *ActivityRecorder,
	hasher *hash.Hasher,
	mailer email.Sender,
	logger *zap.Logger,
	publicURL string,
	ttl time.Duration,
) *InviteService {
	return &InviteService{
		inviteRepo: inviteRepo,
		userRepo:   userRepo,
		recorder:   recorder,
		hasher:     hasher,
		mailer:     mailer,
		logger:     logger,
		publicURL:  strings.TrimRight(publicURL, "/"),
		ttl:        ttl,
		now:        utcNow,
	}
}

// CreateInvite stores a single-use invite for req.Email and emails the link.
func (s *InviteService) CreateInvite(ctx context.Context, admin domain.Principal, req CreateInviteRequest, rc domain.RequestContext) (*CreatedInvite, error) {
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	role := domain.RoleEmployee
	if req.Role != "" {
		parsed, err := domain.ParseRole(string(req.Role))
		if err != nil {
			return nil, errs.E(errs.Validation, err.Error())
		}
		role = parsed
	}

	if _, err := s.userRepo.GetByEmail(ctx, addr); err == nil {
		s.recorder.Failure(ctx, admin.ID, domain.ActionInviteCreate, "email already registered: "+addr, rc)
		return nil, errs.E(errs.Conflict, "a user with this email already exists")
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	token, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite token: %w", err)
	}

	now := s.now()
	invite := &domain.Invite{
		ID:        uuid.New(),
		TokenHash: hashToken(token),
		Email:     addr,
		InvitedBy: admin.ID,
		Role:      role,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.inviteRepo.Create(ctx, invite); err != nil {
		return nil, err
	}

	link := s.publicURL + "/register?token=" + url.QueryEscape(token)
	validDays := int(s.ttl.Hours() / 24)
	if validDays < 1 {
		validDays = 1
	}
	notify(ctx, s.mailer, s.logger, addr, "You have been invited to Docflow", email.InviteEmailTemplate(string(role), link, validDays))

	s.recorder.Success(ctx, admin.ID, domain.ActionInviteCreate, fmt.Sprintf("invited %s as %s", addr, role), rc)
	return &CreatedInvite{Invite: invite, Token: token, Link: link}, nil
}

// ValidateInvite returns the invite for token if it can still be redeemed.
func (s *InviteService) ValidateInvite(ctx context.Context, token string) (*domain.Invite, error) {
	invite, err := s.inviteRepo.GetByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errInvalidInvite
		}
		return nil, err
	}
	if !invite.IsValid(s.now()) {
		return nil, errInvalidInvite
	}
	return invite, nil
}

func (s *InviteService) ListInvites(ctx context.Context, limit, offset int) ([]*domain.Invite, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.inviteRepo.List(ctx, limit, offset)
}

// Register redeems an invite. The invite is consumed and the user created in
// one transaction, so concurrent redemptions create at most one account.
func (s *InviteService) Register(ctx context.Context, req RegisterRequest, rc domain.RequestContext) (*domain.User, error) {
	invite, err := s.ValidateInvite(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        invite.Email,
		Name:         strings.TrimSpace(req.Name),
		Role:         invite.Role,
		PasswordHash: passwordHash,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !user.Role.Valid() {
		user.Role = domain.RoleEmployee
	}

	if err := s.inviteRepo.Redeem(ctx, invite.ID, user); err != nil {
		if errs.KindOf(err) == errs.Conflict {
			s.recorder.Record(ctx, nil, domain.ActionRegister, domain.StatusFailure, "invite redemption rejected for "+invite.Email, rc)
		}
		return nil, err
	}

	s.recorder.Success(ctx, user.ID, domain.ActionRegister, "registered via invite as "+string(user.Role), rc)
	return user, nil
}
