package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
)

type ChatRepository interface {
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	AddMessage(ctx context.Context, msg *domain.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error)
}
