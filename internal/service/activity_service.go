package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/repository"
)

const recordTimeout = 5 * time.Second

// ActivityRecorder appends audit entries. Recording never fails the caller:
// storage errors are logged and dropped.
type ActivityRecorder struct {
	repo   repository.ActivityRepository
	logger *zap.Logger
	now    clock
}

func NewActivityRecorder(repo repository.ActivityRepository, logger *zap.Logger) *ActivityRecorder {
	return &ActivityRecorder{repo: repo, logger: logger, now: utcNow}
}

// Record writes one entry. The write runs to completion even when the
// request context is already cancelled.
func (r *ActivityRecorder) Record(
	ctx context.Context,
	actorID *uuid.UUID,
	action domain.Action,
	status domain.ActivityStatus,
	description string,
	rc domain.RequestContext,
) {
	if action == nil || action.Tag() == "" {
		r.logger.Error("activity dropped: empty action", zap.String("description", description))
		return
	}

	entry := &domain.ActivityLog{
		ID:          uuid.New(),
		ActorID:     actorID,
		Action:      action.Tag(),
		Category:    action.Category(),
		Status:      status,
		Description: description,
		IPAddress:   orUnknown(rc.IP),
		Device:      orUnknown(rc.Device),
		UserAgent:   rc.UserAgent,
		CreatedAt:   r.now(),
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := r.repo.Append(writeCtx, entry); err != nil {
		r.logger.Error("failed to record activity",
			zap.String("action", entry.Action),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

// Success records a SUCCESS entry for actor.
func (r *ActivityRecorder) Success(ctx context.Context, actor uuid.UUID, action domain.Action, description string, rc domain.RequestContext) {
	r.Record(ctx, &actor, action, domain.StatusSuccess, description, rc)
}

// Failure records a FAILURE entry for actor.
func (r *ActivityRecorder) Failure(ctx context.Context, actor uuid.UUID, action domain.Action, description string, rc domain.RequestContext) {
	r.Record(ctx, &actor, action, domain.StatusFailure, description, rc)
}

// List returns entries newest first.
func (r *ActivityRecorder) List(ctx context.Context, filter domain.ActivityFilter) ([]*domain.ActivityLog, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return r.repo.List(ctx, filter)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
