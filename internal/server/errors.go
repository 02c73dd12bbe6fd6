package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/auth"
	"github.com/tallystack/treasury/internal/domain"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// errorHandler maps the domain error taxonomy to HTTP statuses in one
// place; handlers return errors and never write error responses
// themselves.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return respondError(c, fe.Code, "http_error", fe.Message)
	}

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return respondError(c, fiber.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, domain.ErrNotAuthorized):
		return respondError(c, fiber.StatusForbidden, "not_authorized", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return respondError(c, fiber.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		return respondError(c, fiber.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		return respondError(c, fiber.StatusUnprocessableEntity, "insufficient_balance", err.Error())
	case errors.Is(err, domain.ErrInsufficientLiquidity):
		return respondError(c, fiber.StatusUnprocessableEntity, "insufficient_liquidity", err.Error())
	case errors.Is(err, domain.ErrSlippage):
		return respondError(c, fiber.StatusUnprocessableEntity, "slippage_exceeded", err.Error())
	case errors.Is(err, domain.ErrOverflow):
		return respondError(c, fiber.StatusUnprocessableEntity, "amount_overflow", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		return respondError(c, fiber.StatusBadRequest, "invalid_input", err.Error())
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled handler error")

	return respondError(c, fiber.StatusInternalServerError, "internal_error", "internal server error")
}

func respondError(c *fiber.Ctx, status int, title, message string) error {
	return c.Status(status).JSON(errorBody{
		Code:    strconv.Itoa(status),
		Title:   title,
		Message: message,
	})
}
