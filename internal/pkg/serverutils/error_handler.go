package serverutils

import (
	"errors"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/repository/contract"
	"kb-assistant-be/pkg/governor"
	"kb-assistant-be/pkg/speech"

	"github.com/gofiber/fiber/v2"
)

// ApologyMessage is what users see when the service is too busy or shutting down.
const ApologyMessage = "Sorry, I'm a bit overloaded right now. Please try again in a moment."

// StatusFor maps domain errors onto HTTP statuses.
func StatusFor(err error) int {
	var fe *fiber.Error
	var ve *dto.ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve):
		return fiber.StatusBadRequest
	case errors.Is(err, contract.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, speech.ErrEmptyTranscript):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, speech.ErrNotConfigured):
		return fiber.StatusNotImplemented
	case errors.Is(err, governor.ErrTimeout):
		return fiber.StatusGatewayTimeout
	case governor.IsUnavailable(err):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware turns errors returned by handlers into the common response envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := StatusFor(err)
		resp := ErrorResponse(code, err.Error())

		var ve *dto.ValidationError
		switch {
		case errors.As(err, &ve):
			resp.Message = "Validation failed"
			resp.Errors = ve.Fields
		case code == fiber.StatusServiceUnavailable || code == fiber.StatusGatewayTimeout:
			resp.Message = ApologyMessage
		case code == fiber.StatusInternalServerError:
			resp.Message = "Internal server error"
		}
		return ctx.Status(code).JSON(resp)
	}
}
