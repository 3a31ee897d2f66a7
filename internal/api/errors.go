package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string             `json:"error"`
	Batch *model.ImportBatch `json:"batch,omitempty"`
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	var (
		fe       *fiber.Error
		validErr *model.ValidationError
		fieldErr *model.ParseFieldError
		contErr  *model.BalanceContinuityError
		rejected *model.ImportRejectedError
		bankErr  *model.UnsupportedBankError
		dupErr   *model.DuplicateWholeDocumentError
		conflict *model.ReconciliationConflictError
		notFound *model.NotFoundError
	)
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &dupErr), errors.As(err, &conflict):
		return fiber.StatusConflict
	case errors.As(err, &notFound):
		return fiber.StatusNotFound
	case errors.As(err, &validErr), errors.As(err, &fieldErr), errors.As(err, &contErr),
		errors.As(err, &rejected), errors.As(err, &bankErr):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := Status(err)
		msg := err.Error()
		if code == fiber.StatusInternalServerError {
			log.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
			msg = "internal server error"
		}
		return c.Status(code).JSON(ErrorResponse{Error: msg})
	}
}
