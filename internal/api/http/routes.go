package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/forecast-bot/internal/weather"
	"github.com/i474232898/forecast-bot/internal/webhook"
	"github.com/i474232898/forecast-bot/internal/whatsapp"
)

var validate = validator.New()

// DefaultPipelineTimeout bounds one request-triggered pipeline run.
const DefaultPipelineTimeout = 2 * time.Minute

// Sender runs the forecast pipeline.
type Sender interface {
	SendForecast(ctx context.Context, req weather.Request) error
}

type Options struct {
	Gate             *webhook.Gate
	Sender           Sender
	VerifyToken      string
	AuthorizationKey string
	PipelineTimeout  time.Duration
	Logger           *slog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, opts Options) {
	timeout := opts.PipelineTimeout
	if timeout <= 0 {
		timeout = DefaultPipelineTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	// Get also answers HEAD with an empty body.
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "forecast-bot",
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	wa := app.Group("/whatsapp")

	wa.Get("/webhook", func(c *fiber.Ctx) error {
		challenge, ok := webhook.Handshake(c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"), opts.VerifyToken)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "Not Found")
		}
		return c.SendString(challenge)
	})

	wa.Post("/webhook", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()

		msg, err := opts.Gate.Handle(ctx, c.Body(), c.Get(webhook.SignatureHeader))
		switch {
		case errors.Is(err, weather.ErrLocationNotFound):
			// The sender already got a text reply.
			return c.JSON(fiber.Map{"detail": "Location not found"})
		case err != nil:
			return err
		}
		logger.Info("webhook message processed", "message_id", msg.ID)
		return c.JSON(fiber.Map{"detail": "Message processed"})
	})

	wa.Post("/send", func(c *fiber.Ctx) error {
		if opts.AuthorizationKey == "" || c.Get(fiber.HeaderAuthorization) != opts.AuthorizationKey {
			return errUnauthorized
		}

		var req sendRequest
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()

		err := opts.Sender.SendForecast(ctx, weather.Request{
			To:       whatsapp.NormalizeNumber(req.To),
			Location: req.Location,
			Auto:     req.Auto,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"detail": "Message sent"})
	})
}

// sendRequest is accepted as a JSON body or, when the body is empty, as query parameters.
type sendRequest struct {
	To       string `json:"to" query:"to" validate:"required,numeric"`
	Location string `json:"location" query:"location" validate:"required"`
	Auto     bool   `json:"auto" query:"auto"`
}

func (r *sendRequest) bind(c *fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return c.QueryParser(r)
	}
	return c.BodyParser(r)
}
