package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/internal/domain"
)

// writeError traduce errores de dominio a HTTP. Lo no reconocido se registra y sale como 500
// con un mensaje genérico.
func writeError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = fiber.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		status, code = fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrInvalidTransition):
		status, code = fiber.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrInsufficientStock):
		status, code = fiber.StatusConflict, "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrBatchOverAllocation):
		status, code = fiber.StatusConflict, "BATCH_OVER_ALLOCATION"
	case errors.Is(err, domain.ErrDuplicateLot):
		status, code = fiber.StatusConflict, "DUPLICATE_LOT"
	case errors.Is(err, domain.ErrDuplicateCode):
		status, code = fiber.StatusConflict, "DUPLICATE_CODE"
	case errors.Is(err, domain.ErrDuplicate):
		status, code = fiber.StatusConflict, "DUPLICATE"
	case errors.Is(err, domain.ErrConflict):
		status, code = fiber.StatusConflict, "CONFLICT"
	}
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("http: error no controlado")
		return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: "error interno"})
	}
	resp := dto.ErrorResponse{Code: code, Message: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	return c.Status(status).JSON(resp)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
