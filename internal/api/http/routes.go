package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/precip-ensemble/internal/geocode"
	"github.com/i474232898/precip-ensemble/internal/weather"
	"github.com/i474232898/precip-ensemble/internal/weather/providers"
)

var validate = validator.New()

const defaultHistoryLimit = 10

// ForecastService is the part of weather.Service the API exposes.
type ForecastService interface {
	ForecastAndRecord(ctx context.Context, loc weather.Location, date time.Time) (weather.EnsembleResult, error)
	History(ctx context.Context, loc weather.Location, limit int) ([]weather.ForecastRecord, error)
	Statistics(ctx context.Context) (weather.Statistics, error)
}

// RecordGetter looks up a saved forecast by ID.
type RecordGetter interface {
	Get(ctx context.Context, id string) (weather.ForecastRecord, error)
}

// ModelInfoer describes the learned model.
type ModelInfoer interface {
	Info(ctx context.Context) (providers.ModelInfo, error)
}

// Deps holds the handlers' collaborators. Service is required; a nil
// Records, Geocoder, Model or Metrics disables the routes that need it.
type Deps struct {
	Service  ForecastService
	Records  RecordGetter
	Geocoder geocode.Geocoder
	Model    ModelInfoer
	Metrics  http.Handler
}

type handlers struct {
	Deps
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	h := &handlers{Deps: deps}

	app.Get("/health", h.health)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	v1 := app.Group("/api/v1")
	v1.Post("/forecast", h.forecast)
	v1.Get("/forecasts/history", h.history)
	v1.Get("/forecasts/stats", h.stats)
	v1.Get("/forecasts/:id", h.record)
	v1.Get("/geocode", h.geocode)
	v1.Get("/model", h.model)
}

func (h *handlers) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"service":   "precip-ensemble",
		"geocoding": h.Geocoder != nil,
		"history":   h.Records != nil,
	})
}

// forecastRequest is the POST /forecast body. One of Location or Query is required.
type forecastRequest struct {
	EventDate string            `json:"event_date" validate:"required"`
	Location  *weather.Location `json:"location"`
	Query     string            `json:"query"`
}

func (h *handlers) forecast(c *fiber.Ctx) error {
	var req forecastRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "event_date is required")
	}
	date, err := parseEventDate(req.EventDate)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	loc, err := h.resolveLocation(ctx, req)
	if err != nil {
		return err
	}

	result, err := h.Service.ForecastAndRecord(ctx, loc, date)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *handlers) resolveLocation(ctx context.Context, req forecastRequest) (weather.Location, error) {
	query := strings.TrimSpace(req.Query)
	switch {
	case req.Location != nil:
		loc := *req.Location
		if err := loc.Validate(); err != nil {
			return weather.Location{}, err
		}
		if loc.Name == "" && h.Geocoder != nil {
			// Best effort; an unnamed location is still forecastable.
			if name, err := h.Geocoder.Reverse(ctx, loc.Latitude, loc.Longitude); err == nil {
				loc.Name = name
			}
		}
		return loc, nil
	case query != "":
		if h.Geocoder == nil {
			return weather.Location{}, fiber.NewError(fiber.StatusBadRequest, "geocoding is not enabled; send coordinates instead")
		}
		return h.Geocoder.Geocode(ctx, query)
	default:
		return weather.Location{}, fiber.NewError(fiber.StatusBadRequest, "either location or query is required")
	}
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Lat   *float64 `query:"lat" validate:"required"`
	Lon   *float64 `query:"lon" validate:"required"`
	Limit int      `query:"limit" validate:"gte=0,lte=100"`
}

func (h *handlers) history(c *fiber.Ctx) error {
	var q historyQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "lat and lon are required; limit must be between 0 and 100")
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultHistoryLimit
	}

	loc := weather.Location{Latitude: *q.Lat, Longitude: *q.Lon}
	if err := loc.Validate(); err != nil {
		return err
	}

	records, err := h.Service.History(c.UserContext(), loc, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"location":  loc,
		"count":     len(records),
		"forecasts": records,
	})
}

func (h *handlers) stats(c *fiber.Ctx) error {
	stats, err := h.Service.Statistics(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (h *handlers) record(c *fiber.Ctx) error {
	if h.Records == nil {
		return weather.ErrNoStore
	}
	rec, err := h.Records.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (h *handlers) geocode(c *fiber.Ctx) error {
	if h.Geocoder == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "geocoding is not enabled")
	}
	loc, err := h.Geocoder.Geocode(c.UserContext(), c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(loc)
}

func (h *handlers) model(c *fiber.Ctx) error {
	if h.Model == nil {
		return c.JSON(providers.ModelInfo{ModelAvailable: false, Message: "no learned model configured"})
	}
	info, err := h.Model.Info(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "model service unreachable")
	}
	return c.JSON(info)
}

// parseEventDate accepts a calendar date or an RFC3339 timestamp.
func parseEventDate(s string) (time.Time, error) {
	if d, err := time.Parse(weather.DateLayout, s); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return weather.Day(ts), nil
	}
	return time.Time{}, errors.New("invalid event_date; use YYYY-MM-DD or RFC3339")
}
