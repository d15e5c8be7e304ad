package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/repository"
)

const defaultActivityLimit = 50

type activityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new PostgreSQL activity log repository
func NewActivityRepository(db *sqlx.DB) repository.ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Append(ctx context.Context, entry *domain.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (
			id, actor_id, action, category, status, description,
			ip_address, device, user_agent, created_at
		) VALUES (
			:id, :actor_id, :action, :category, :status, :description,
			:ip_address, :device, :user_agent, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// List returns matching entries newest first. seq is assigned at insert and
// breaks ties between entries written in the same instant.
func (r *activityRepository) List(ctx context.Context, filter domain.ActivityFilter) ([]*domain.ActivityLog, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.ActorID != nil {
		add("actor_id = $%d", *filter.ActorID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}

	query := `
		SELECT id, actor_id, action, category, status, description,
			   ip_address, device, user_agent, created_at
		FROM activity_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	entries := []*domain.ActivityLog{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return entries, nil
}
