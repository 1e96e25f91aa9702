package httpapi

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/i474232898/forecast-bot/internal/common"
	"github.com/i474232898/forecast-bot/internal/weather"
	"github.com/i474232898/forecast-bot/internal/webhook"
)

var errUnauthorized = errors.New("invalid Authorization header value")

type errorClass struct {
	target  error
	status  int
	code    string
	message string
}

// errorClasses maps domain errors to stable HTTP answers. First match wins.
var errorClasses = []errorClass{
	{webhook.ErrSignatureMismatch, fiber.StatusForbidden, "signature_mismatch", "Signature mismatch"},
	{webhook.ErrNoMessage, fiber.StatusBadRequest, "no_message", "No messages to process"},
	{webhook.ErrDuplicateMessage, fiber.StatusBadRequest, "duplicate_message", "Message already processed"},
	{webhook.ErrStaleMessage, fiber.StatusBadRequest, "stale_message", "Message too old to process"},
	{webhook.ErrInvalidPayload, fiber.StatusBadRequest, "invalid_payload", "Invalid webhook payload"},
	{errUnauthorized, fiber.StatusForbidden, "unauthorized", "Invalid Authorization header value"},
	{weather.ErrLocationNotFound, fiber.StatusNotFound, "location_not_found", "Location not found"},
	{common.ErrUpstreamCall, fiber.StatusBadGateway, "upstream_failure", "Upstream service call failed"},
}

// ErrorHandler renders every handler error as {"error", "code", "message"}.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		status, code, message := classify(err)
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
		}
		return c.Status(status).JSON(fiber.Map{
			"error":   true,
			"code":    code,
			"message": message,
		})
	}
}

func classify(err error) (int, string, string) {
	for _, class := range errorClasses {
		if errors.Is(err, class.target) {
			return class.status, class.code, class.message
		}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fiber.StatusBadRequest, "invalid_request", err.Error()
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := strings.ToLower(strings.ReplaceAll(utils.StatusMessage(fe.Code), " ", "_"))
		return fe.Code, code, fe.Message
	}

	return fiber.StatusInternalServerError, "internal_error", "Internal server error"
}
