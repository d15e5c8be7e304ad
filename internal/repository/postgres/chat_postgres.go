package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/repository"
)

type chatRepository struct {
	db *sqlx.DB
}

// NewChatRepository creates a new PostgreSQL chat repository
func NewChatRepository(db *sqlx.DB) repository.ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	query := `
		INSERT INTO conversations (id, user_id, document_id, title, created_at, updated_at)
		VALUES (:id, :user_id, :document_id, :title, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, conv); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (r *chatRepository) GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT id, user_id, document_id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1`

	var conv domain.Conversation
	if err := r.db.GetContext(ctx, &conv, query, id); err != nil {
		return nil, notFound(err, "conversation")
	}
	return &conv, nil
}

func (r *chatRepository) ListConversations(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error) {
	query := `
		SELECT id, user_id, document_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC`

	convs := []*domain.Conversation{}
	if err := r.db.SelectContext(ctx, &convs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// DeleteConversation removes the conversation; messages go with it by cascade.
func (r *chatRepository) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return requireRows(res, "conversation")
}

// AddMessage stores msg and bumps the conversation's updated_at.
func (r *chatRepository) AddMessage(ctx context.Context, msg *domain.Message) error {
	query := `
		WITH inserted AS (
			INSERT INTO messages (id, conversation_id, role, content, created_at)
			VALUES ($1, $2, $3, $4, $5)
		)
		UPDATE conversations SET updated_at = $5 WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}
	return nil
}

// ListMessages returns the latest limit messages in chronological order.
func (r *chatRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at FROM (
			SELECT id, conversation_id, role, content, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) latest
		ORDER BY created_at ASC`

	msgs := []*domain.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, conversationID, limit); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}
