package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/internal/repository"
	"github.com/CeliaPro/ysm2-sub001/pkg/assistant"
)

// ChatService stores conversations and relays them to the assistant.
type ChatService struct {
	repo      repository.ChatRepository
	documents *DocumentService
	assistant assistant.Assistant
	history   int
	logger    *zap.Logger
	now       clock
}

type ConversationRequest struct {
	Title      string     `json:"title" validate:"max=200"`
	DocumentID *uuid.UUID `json:"document_id"`
}

type MessageRequest struct {
	Content string `json:"content" validate:"required,max=8000"`
}

// Exchange is one user message and the assistant's answer.
type Exchange struct {
	Question *domain.Message `json:"question"`
	Answer   *domain.Message `json:"answer"`
}

// NewChatService creates the chat service. A nil assistant makes SendMessage Unavailable.
func NewChatService(
	repo repository.ChatRepository,
	documents *DocumentService,
	asst assistant.Assistant,
	history int,
	logger *zap.Logger,
) *ChatService {
	if history <= 0 {
		history = 20
	}
	return &ChatService{repo: repo, documents: documents, assistant: asst, history: history, logger: logger, now: utcNow}
}

func (s *ChatService) CreateConversation(ctx context.Context, p domain.Principal, req ConversationRequest) (*domain.Conversation, error) {
	title := strings.TrimSpace(req.Title)
	if req.DocumentID != nil {
		doc, err := s.documents.Get(ctx, p, *req.DocumentID)
		if err != nil {
			return nil, err
		}
		if title == "" {
			title = doc.Title
		}
	}
	if title == "" {
		title = "New conversation"
	}

	now := s.now()
	conv := &domain.Conversation{
		ID:         uuid.New(),
		UserID:     p.ID,
		DocumentID: req.DocumentID,
		Title:      title,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ChatService) ListConversations(ctx context.Context, p domain.Principal) ([]*domain.Conversation, error) {
	return s.repo.ListConversations(ctx, p.ID)
}

// GetConversation returns the conversation with its recent messages.
// Conversations are private to their owner.
func (s *ChatService) GetConversation(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Conversation, []*domain.Message, error) {
	conv, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, id, 200)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

func (s *ChatService) DeleteConversation(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	if _, err := s.owned(ctx, p, id); err != nil {
		return err
	}
	return s.repo.DeleteConversation(ctx, id)
}

// SendMessage stores the question, asks the assistant with the recent
// history and stores the answer.
func (s *ChatService) SendMessage(ctx context.Context, p domain.Principal, id uuid.UUID, req MessageRequest) (*Exchange, error) {
	if s.assistant == nil {
		return nil, errs.E(errs.Unavailable, "the assistant is not configured")
	}
	conv, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}

	question := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           domain.MessageRoleUser,
		Content:        strings.TrimSpace(req.Content),
		CreatedAt:      s.now(),
	}
	if err := s.repo.AddMessage(ctx, question); err != nil {
		return nil, err
	}

	history, err := s.repo.ListMessages(ctx, conv.ID, s.history)
	if err != nil {
		return nil, err
	}
	turns := make([]assistant.Turn, 0, len(history)+1)
	if conv.DocumentID != nil {
		if doc, err := s.documents.Get(ctx, p, *conv.DocumentID); err == nil {
			turns = append(turns, assistant.Turn{Role: "system", Content: documentContext(doc)})
		}
	}
	for _, m := range history {
		turns = append(turns, assistant.Turn{Role: string(m.Role), Content: m.Content})
	}

	reply, err := s.assistant.Reply(ctx, turns)
	if err != nil {
		s.logger.Error("assistant request failed", zap.String("conversation_id", conv.ID.String()), zap.Error(err))
		return nil, errs.E(errs.Unavailable, "the assistant is unavailable, try again later", err)
	}

	answer := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           domain.MessageRoleAssistant,
		Content:        reply,
		CreatedAt:      s.now(),
	}
	if err := s.repo.AddMessage(ctx, answer); err != nil {
		return nil, err
	}
	return &Exchange{Question: question, Answer: answer}, nil
}

func (s *ChatService) owned(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.UserID != p.ID {
		return nil, errs.E(errs.NotFound, "conversation not found")
	}
	return conv, nil
}

const maxContextRunes = 2000

func documentContext(doc *domain.Document) string {
	return fmt.Sprintf("The user is asking about the document %q. Description: %s", doc.Title, truncateRunes(doc.Description, maxContextRunes))
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
