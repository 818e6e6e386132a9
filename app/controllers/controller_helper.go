package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/JonasWeigert/PawTrack/internal/pkg/payments"
)

// respondBillingError maps the billing core's typed errors onto JSON error
// responses with the matching HTTP status.
func respondBillingError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	code := "internal_server_error"

	switch {
	case errors.Is(err, payments.ErrUnauthorized):
		status, code = fiber.StatusUnauthorized, "unauthorized"
	case errors.Is(err, payments.ErrForbidden):
		status, code = fiber.StatusForbidden, "forbidden"
	case errors.Is(err, payments.ErrBadRequest):
		status, code = fiber.StatusBadRequest, "bad_request"
	case errors.Is(err, payments.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		status, code = fiber.StatusNotFound, "not_found"
	case errors.Is(err, payments.ErrInvalidState):
		status, code = fiber.StatusConflict, "invalid_state"
	case errors.Is(err, payments.ErrUpstream):
		status, code = fiber.StatusBadGateway, "upstream_error"
	}

	if status >= fiber.StatusInternalServerError {
		log.Printf("billing endpoint error: %v", err)
	}

	return c.Status(status).JSON(fiber.Map{"error": code, "message": err.Error()})
}
