package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/i474232898/precip-ensemble/internal/geocode"
	"github.com/i474232898/precip-ensemble/internal/store"
	"github.com/i474232898/precip-ensemble/internal/weather"
)

// Options configures the Fiber app.
type Options struct {
	AppName        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins string
	// AccessLog enables fiber's request logger.
	AccessLog bool
	Logger    zerolog.Logger
}

// NewApp builds the Fiber app with middleware, the centralized error
// handler and every route.
func NewApp(deps Deps, opts Options) *fiber.App {
	if opts.AppName == "" {
		opts.AppName = "precip-ensemble"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		// A cold forecast touches the baseline up to nine times.
		opts.WriteTimeout = 60 * time.Second
	}
	if opts.AllowedOrigins == "" {
		opts.AllowedOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:               opts.AppName,
		DisableStartupMessage: true,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		ErrorHandler:          NewErrorHandler(opts.Logger),
	})

	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: opts.AllowedOrigins}))

	RegisterRoutes(app, deps)
	return app
}

// NewErrorHandler maps domain errors onto HTTP status codes and renders
// them as {"error": true, "message": ...}.
func NewErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)
		msg := err.Error()
		if code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Int("status", code).Msg("request failed")
		}
		if code == http.StatusInternalServerError {
			msg = "internal server error"
		}
		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": msg,
		})
	}
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, weather.ErrInvalidLocation), errors.Is(err, geocode.ErrEmptyQuery):
		return fiber.StatusBadRequest
	case errors.Is(err, weather.ErrDataUnavailable),
		errors.Is(err, geocode.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, weather.ErrNoStore):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, weather.ErrUpstreamUnavailable):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
