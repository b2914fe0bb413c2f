package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/deskline/helpdesk/internal/api/dto"
	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/service"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), user, service.TicketCreateInput{
		FormID:     req.FormID,
		ResponseID: req.ResponseID,
		Priority:   domain.TicketPriority(strings.ToUpper(string(req.Priority))),
		Notes:      req.Notes,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, dto.NewTicketResponse(ticket), "ticket created")
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListTickets(c.UserContext(), user, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":        dto.NewTicketResponses(page.Tickets),
		"total":       page.Total,
		"total_pages": page.TotalPages,
		"page":        page.Page,
		"limit":       page.Limit,
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicketByID(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewTicketResponse(ticket), "")
}

// UpdateTicket PATCH|PUT /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	// The role gate runs before the payload is decoded.
	if !auth.CanMutateTicket(user) {
		return apperrors.NewForbidden("only internal users can update tickets")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	if req.Status != nil {
		status := domain.TicketStatus(strings.ToUpper(string(*req.Status)))
		req.Status = &status
	}
	if req.Priority != nil {
		priority := domain.TicketPriority(strings.ToUpper(string(*req.Priority)))
		req.Priority = &priority
	}
	input := service.TicketUpdateInput{
		Status:        req.Status,
		Priority:      req.Priority,
		Notes:         req.Notes,
		ResponsibleID: service.NullableID{Set: req.ResponsibleID.Set, Value: req.ResponsibleID.Value},
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), user, c.Params("id"), input)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewTicketResponse(ticket), "ticket updated")
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AssignToMe POST /tickets/:id/assign.
func (h *TicketsHandler) AssignToMe(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.AssignToMe, "ticket assigned")
}

// ReturnToQueue POST /tickets/:id/return.
func (h *TicketsHandler) ReturnToQueue(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.ReturnToQueue, "ticket returned to queue")
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.Close, "ticket closed")
}

type lifecycleAction func(ctx context.Context, user *domain.User, ticketID string) (*domain.Ticket, error)

func (h *TicketsHandler) lifecycle(c *fiber.Ctx, action lifecycleAction, message string) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := action(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewTicketResponse(ticket), message)
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{
		Page:  parseInt(c.Query("page"), 1),
		Limit: parseInt(c.Query("limit"), 0),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		s := domain.TicketStatus(strings.ToUpper(status))
		filter.Status = &s
	}
	if priority := strings.TrimSpace(c.Query("priority")); priority != "" {
		p := domain.TicketPriority(strings.ToUpper(priority))
		filter.Priority = &p
	}
	formID, err := optionalUUID(c, "form_id")
	if err != nil {
		return filter, err
	}
	filter.FormID = formID
	responsibleID, err := optionalUUID(c, "responsible_id")
	if err != nil {
		return filter, err
	}
	filter.ResponsibleID = responsibleID
	return filter, nil
}
