package repository

import (
	"context"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
)

// ActivityRepository is append-only: there is no update or delete.
type ActivityRepository interface {
	Append(ctx context.Context, entry *domain.ActivityLog) error
	List(ctx context.Context, filter domain.ActivityFilter) ([]*domain.ActivityLog, error)
}
