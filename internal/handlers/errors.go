package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// respondError maps the store error taxonomy onto HTTP statuses. Remote failures hide
// their detail; it is already logged by the session.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, apperr.ErrAuthenticationRequired):
		status, message = fiber.StatusUnauthorized, err.Error()
	case errors.Is(err, apperr.ErrAuthorizationDenied):
		status, message = fiber.StatusForbidden, err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		status, message = fiber.StatusNotFound, err.Error()
	case errors.Is(err, apperr.ErrInvalidContent):
		status, message = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrRemote):
		status, message = fiber.StatusBadGateway, "Upstream service unavailable"
	case apperr.IsCancellation(err):
		status, message = fiber.StatusServiceUnavailable, "Request cancelled"
	default:
		slog.Error("unhandled handler error", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}

func badRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid request body",
	})
}
