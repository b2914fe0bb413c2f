package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/domain"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

// respond writes the {data, message?} envelope.
func respond(c *fiber.Ctx, status int, data any, message string) error {
	body := fiber.Map{"data": data}
	if message != "" {
		body["message"] = message
	}
	return c.Status(status).JSON(body)
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal.User, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// optionalUUID reads a query parameter that must be a UUID when present.
func optionalUUID(c *fiber.Ctx, key string) (*string, error) {
	val := c.Query(key)
	if val == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(val); err != nil {
		return nil, apperrors.NewValidationError(key+" must be a UUID", map[string]any{"field": key})
	}
	return &val, nil
}

func invalidPayload(err error) error {
	return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
}
