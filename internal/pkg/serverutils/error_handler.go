package serverutils

import (
	"errors"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/document"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/prompt"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/quota"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/response"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/store"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps a pipeline error to the HTTP status the API answers with.
func StatusFor(err error) int {
	var (
		validationErr *ValidationError
		fiberErr      *fiber.Error
		unsupported   *document.UnsupportedFormatError
		exceeded      *quota.ExceededError
		conversion    *document.ConversionError
		timeout       *llm.TimeoutError
		canceled      *llm.CanceledError
		connection    *llm.ConnectionError
		protocol      *llm.ProtocolError
	)

	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &unsupported):
		return fiber.StatusUnsupportedMediaType
	case errors.As(err, &exceeded):
		return fiber.StatusRequestEntityTooLarge
	case errors.As(err, &conversion), errors.Is(err, prompt.ErrDocumentRequired):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &timeout):
		return fiber.StatusGatewayTimeout
	case errors.As(err, &canceled):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &connection), errors.As(err, &protocol):
		return fiber.StatusBadGateway
	case errors.Is(err, store.ErrEmptySession):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware turns errors returned by handlers into BaseResponse bodies.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return writeError(ctx, err)
	}
}

// ErrorHandler is the same mapping in fiber.Config form, for errors raised outside route handlers.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	return writeError(ctx, err)
}

func writeError(ctx *fiber.Ctx, err error) error {
	code := StatusFor(err)

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		body := ErrorResponse(code, "validation", "Validation failed")
		body.Errors = validationErr.Fields
		return ctx.Status(code).JSON(body)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(code).JSON(ErrorResponse(code, "http", fiberErr.Message))
	}

	return ctx.Status(code).JSON(ErrorResponse(code, response.ErrorKind(err), response.UserMessage(err)))
}
