package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/service"
	"github.com/CeliaPro/ysm2-sub001/pkg/validator"
)

type ChatHandler struct {
	chatService *service.ChatService
	validator   *validator.Validator
}

func NewChatHandler(chatService *service.ChatService, validator *validator.Validator) *ChatHandler {
	return &ChatHandler{chatService: chatService, validator: validator}
}

// GET /api/v1/chat/conversations
func (h *ChatHandler) List(c *fiber.Ctx, p domain.Principal) error {
	convs, err := h.chatService.ListConversations(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

// POST /api/v1/chat/conversations
func (h *ChatHandler) Create(c *fiber.Ctx, p domain.Principal) error {
	var req service.ConversationRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	conv, err := h.chatService.CreateConversation(c.UserContext(), p, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

// GET /api/v1/chat/conversations/:id
func (h *ChatHandler) Get(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	conv, msgs, err := h.chatService.GetConversation(c.UserContext(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"conversation": conv, "messages": msgs})
}

// DELETE /api/v1/chat/conversations/:id
func (h *ChatHandler) Delete(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.chatService.DeleteConversation(c.UserContext(), p, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/v1/chat/conversations/:id/messages
func (h *ChatHandler) Send(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.MessageRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	exchange, err := h.chatService.SendMessage(c.UserContext(), p, id, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(exchange)
}
