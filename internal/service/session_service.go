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
	"github.com/CeliaPro/ysm2-sub001/pkg/geo"
)

const geoLookupTimeout = 3 * time.Second

// SessionService is the registry of signed-in devices.
type SessionService struct {
	repo     repository.SessionRepository
	locator  geo.Locator
	recorder *ActivityRecorder
	logger   *zap.Logger
	now      clock
}

// NewSessionService creates the registry. locator may be nil to skip geolocation.
func NewSessionService(
	repo repository.SessionRepository,
	locator geo.Locator,
	recorder *ActivityRecorder,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{repo: repo, locator: locator, recorder: recorder, logger: logger, now: utcNow}
}

// Create opens a session for userID. Geolocation is advisory: any failure
// leaves country and city empty.
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID, rc domain.RequestContext) (*domain.Session, error) {
	id, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := s.now()
	session := &domain.Session{
		ID:         id,
		UserID:     userID,
		Device:     orUnknown(rc.Device),
		IPAddress:  orUnknown(rc.IP),
		UserAgent:  rc.UserAgent,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	s.locate(ctx, session)

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) locate(ctx context.Context, session *domain.Session) {
	if s.locator == nil {
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, geoLookupTimeout)
	defer cancel()

	loc, err := s.locator.Lookup(lookupCtx, session.IPAddress)
	if err != nil {
		s.logger.Debug("geolocation lookup failed", zap.String("ip", session.IPAddress), zap.Error(err))
		return
	}
	if loc == nil {
		return
	}
	if loc.Country != "" {
		session.Country = &loc.Country
	}
	if loc.City != "" {
		session.City = &loc.City
	}
}

// List returns the user's sessions, most recently used first.
func (s *SessionService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// Revoke deletes a session owned by requester. Someone else's session is
// left untouched and reported as Forbidden.
func (s *SessionService) Revoke(ctx context.Context, sessionID string, requester uuid.UUID, rc domain.RequestContext) error {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.E(errs.NotFound, "session not found")
		}
		return err
	}

	if session.UserID != requester {
		s.recorder.Failure(ctx, requester, domain.ActionSessionRevoke, "attempted to revoke another user's session", rc)
		return errs.E(errs.Forbidden, "you can only revoke your own sessions")
	}

	deleted, err := s.repo.DeleteOwned(ctx, sessionID, requester)
	if err != nil {
		return err
	}
	if !deleted {
		return errs.E(errs.NotFound, "session not found")
	}

	s.recorder.Success(ctx, requester, domain.ActionSessionRevoke, "revoked session on "+session.Device, rc)
	return nil
}

// End deletes sessionID when ownerID holds it and reports whether a row went.
// Callers record their own activity.
func (s *SessionService) End(ctx context.Context, sessionID string, ownerID uuid.UUID) (bool, error) {
	return s.repo.DeleteOwned(ctx, sessionID, ownerID)
}

// Purge deletes every session of userID without an activity entry.
func (s *SessionService) Purge(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.DeleteByUserID(ctx, userID)
}

// RevokeAll deletes every session of userID and returns how many there were.
func (s *SessionService) RevokeAll(ctx context.Context, userID uuid.UUID, rc domain.RequestContext) (int64, error) {
	n, err := s.Purge(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.recorder.Success(ctx, userID, domain.ActionSessionRevokeAll, fmt.Sprintf("revoked %d sessions", n), rc)
	return n, nil
}

// RevokeOthers deletes all of userID's sessions except keep.
func (s *SessionService) RevokeOthers(ctx context.Context, userID uuid.UUID, keep string) (int, error) {
	sessions, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, session := range sessions {
		if session.ID == keep {
			continue
		}
		ok, err := s.repo.DeleteOwned(ctx, session.ID, userID)
		if err != nil {
			s.logger.Warn("failed to revoke session", zap.String("user_id", userID.String()), zap.Error(err))
			continue
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// Touch records use of a session by userID. A session owned by someone else
// is Forbidden. A missing session is accepted: revoking a session does not
// revoke tokens already issued for it.
func (s *SessionService) Touch(ctx context.Context, sessionID string, userID uuid.UUID) error {
	owner, found, err := s.repo.Touch(ctx, sessionID, userID, s.now())
	if err != nil {
		return err
	}
	if found && owner != userID {
		return errs.E(errs.Forbidden, "session does not belong to this user")
	}
	return nil
}
