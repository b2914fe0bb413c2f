package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskline/helpdesk/internal/api/dto"
	"github.com/deskline/helpdesk/internal/service"
)

// MessagesHandler exposes ticket thread endpoints.
type MessagesHandler struct {
	service *service.MessageService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(messageService *service.MessageService) *MessagesHandler {
	return &MessagesHandler{service: messageService}
}

// ListMessages GET /tickets/:id/messages.
func (h *MessagesHandler) ListMessages(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	thread, err := h.service.ListMessages(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":  dto.NewMessageResponses(thread.Messages),
		"count": thread.Count,
	})
}

// CreateMessage POST /tickets/:id/messages.
func (h *MessagesHandler) CreateMessage(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	msg, err := h.service.CreateMessage(c.UserContext(), user, c.Params("id"), service.MessageCreateInput{
		Content:    req.Content,
		IsInternal: req.IsInternal,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, dto.NewMessageResponse(msg), "message created")
}

// GetMessage GET /messages/:id.
func (h *MessagesHandler) GetMessage(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	msg, err := h.service.GetMessageByID(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewMessageResponse(msg), "")
}
