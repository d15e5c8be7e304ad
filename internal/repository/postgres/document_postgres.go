package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/repository"
)

const documentColumns = `id, project_id, owner_id, title, description, storage_key, content_type,
		size_bytes, status, created_at, updated_at, archived_at`

type documentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new PostgreSQL document repository
func NewDocumentRepository(db *sqlx.DB) repository.DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (
			id, project_id, owner_id, title, description, storage_key, content_type,
			size_bytes, status, created_at, updated_at
		) VALUES (
			:id, :project_id, :owner_id, :title, :description, :storage_key, :content_type,
			:size_bytes, :status, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.GetContext(ctx, &doc, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "document")
	}
	return &doc, nil
}

// List returns documents the viewer owns or can reach through a project.
func (r *documentRepository) List(ctx context.Context, viewer *uuid.UUID, filter domain.DocumentFilter) ([]*domain.Document, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if viewer != nil {
		p := arg(*viewer)
		conds = append(conds, `(d.owner_id = `+p+` OR EXISTS (
			SELECT 1 FROM projects p
			LEFT JOIN project_members m ON m.project_id = p.id AND m.user_id = `+p+`
			WHERE p.id = d.project_id AND (p.owner_id = `+p+` OR m.user_id IS NOT NULL)))`)
	}
	if filter.ProjectID != nil {
		conds = append(conds, "d.project_id = "+arg(*filter.ProjectID))
	}
	if !filter.IncludeArchived {
		conds = append(conds, "d.status = "+arg(domain.ResourceActive))
	}

	query := `SELECT ` + qualify("d", documentColumns) + ` FROM documents d`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY d.updated_at DESC LIMIT " + arg(limit) + " OFFSET " + arg(filter.Offset)

	docs := []*domain.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (r *documentRepository) Update(ctx context.Context, doc *domain.Document) error {
	query := `
		UPDATE documents
		SET project_id = :project_id,
			title = :title,
			description = :description,
			storage_key = :storage_key,
			content_type = :content_type,
			size_bytes = :size_bytes,
			status = :status,
			updated_at = :updated_at,
			archived_at = :archived_at
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, doc)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return requireRows(res, "document")
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return requireRows(res, "document")
}

// qualify prefixes every column in a comma separated list with alias.
func qualify(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
