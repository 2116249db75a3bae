package httpserver

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gardenjournal/gardenjournal/internal/errs"
)

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrInvalidID):
		return fiber.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyExists):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// errorHandler renders errors as {"error": ..., "requestId": ...}. Internal
// errors are logged here and reported without detail.
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)
		msg := err.Error()
		if code == fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("path", c.Path()),
				zap.String("request_id", requestIDOf(c)),
				zap.Error(err))
			msg = "internal error"
		}
		return c.Status(code).JSON(fiber.Map{"error": msg, "requestId": requestIDOf(c)})
	}
}

// bind parses the JSON body into dst and runs the validate tags.
func (h *handler) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fmt.Errorf("%w: body: %s", errs.ErrValidation, err.Error())
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return fmt.Errorf("%w: %s failed %s", errs.ErrValidation, ve[0].Field(), ve[0].Tag())
		}
		return fmt.Errorf("%w: %s", errs.ErrValidation, err.Error())
	}
	return nil
}
