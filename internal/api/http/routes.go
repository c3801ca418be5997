package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/common"
	"github.com/i474232898/basin-data-api/internal/forecast"
	"github.com/i474232898/basin-data-api/internal/reservoir"
)

var validate = validator.New()

const (
	msgStartAfterEnd  = "Start date cannot be after the end date."
	msgEndBeforeStart = "End date cannot be earlier than start date."
	msgNoData         = "No data found for the applied filters. Please run the POST /ingest for the desired period."
)

// BasinService is the ingestion and query surface used by the routes.
type BasinService interface {
	Ingest(ctx context.Context, start, end time.Time) (basin.IngestionReport, error)
	HistoricalData(ctx context.Context, q basin.Query) (basin.Page, error)
}

// ReservoirService is the reservoir ingestion and query surface.
type ReservoirService interface {
	Ingest(ctx context.Context, start, end time.Time) (basin.IngestionReport, error)
	HistoricalData(ctx context.Context, q basin.Query) (reservoir.Page, error)
}

// Forecaster runs forecasts. It may be nil when no model is configured.
type Forecaster interface {
	Run(ctx context.Context, req forecast.Request) (forecast.Result, error)
}

// Observer records operation durations. It may be nil.
type Observer interface {
	ObserveOperation(operation string, start time.Time, err error)
}

// Deps groups what the routes need.
type Deps struct {
	Basin        BasinService
	Reservoir    ReservoirService
	Forecaster   Forecaster
	Observer     Observer
	DefaultBasin string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	h := &handlers{deps: deps}

	app.Get("/docs", h.docs)

	api := app.Group("/api/basin")
	api.Post("/ingest", h.ingest)
	api.Get("/historical-data", h.historicalData)
	api.Get("/forecast", h.forecast)

	if deps.Reservoir != nil {
		v1 := app.Group("/api/v1")
		v1.Post("/ingest", h.ingestReservoir)
		v1.Get("/reservoir-volume/historical", h.reservoirData)
	}
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

type handlers struct {
	deps Deps
}

// endpoint is one entry of the /docs index.
type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

func (h *handlers) docs(c *fiber.Ctx) error {
	endpoints := []endpoint{
		{fiber.MethodPost, "/api/basin/ingest", "Ingest basin ENA data for {start_date, end_date}."},
		{fiber.MethodGet, "/api/basin/historical-data", "Paginated basin ENA records: start_date, end_date, page, size."},
		{fiber.MethodGet, "/api/basin/forecast", "Recursive ENA forecast: basin, horizon, cutoff."},
	}
	if h.deps.Reservoir != nil {
		endpoints = append(endpoints,
			endpoint{fiber.MethodPost, "/api/v1/ingest", "Ingest reservoir EAR data for {start_date, end_date}."},
			endpoint{fiber.MethodGet, "/api/v1/reservoir-volume/historical", "Paginated reservoir EAR records: start_date, end_date, page, size."},
		)
	}
	endpoints = append(endpoints,
		endpoint{fiber.MethodGet, "/health", "Liveness."},
		endpoint{fiber.MethodGet, "/metrics", "Prometheus metrics."},
	)
	return c.JSON(fiber.Map{"endpoints": endpoints})
}

func (h *handlers) observe(operation string, start time.Time, err error) {
	if h.deps.Observer != nil {
		h.deps.Observer.ObserveOperation(operation, start, err)
	}
}

// ingestRequest is the POST /ingest body.
type ingestRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

func parseIngestRequest(c *fiber.Ctx) (start, end time.Time, err error) {
	var req ingestRequest
	if err := c.BodyParser(&req); err != nil {
		return start, end, fiber.NewError(fiber.StatusUnprocessableEntity, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return start, end, fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	start, _ = common.ParseDate(req.StartDate)
	end, _ = common.ParseDate(req.EndDate)
	if end.Before(start) {
		return start, end, fiber.NewError(fiber.StatusUnprocessableEntity, msgEndBeforeStart)
	}
	return start, end, nil
}

func (h *handlers) ingest(c *fiber.Ctx) error {
	start, end, err := parseIngestRequest(c)
	if err != nil {
		return err
	}

	began := time.Now()
	report, err := h.deps.Basin.Ingest(c.UserContext(), start, end)
	h.observe("ingest", began, err)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to ingest data")
	}
	return c.JSON(report)
}

func (h *handlers) ingestReservoir(c *fiber.Ctx) error {
	start, end, err := parseIngestRequest(c)
	if err != nil {
		return err
	}

	began := time.Now()
	report, err := h.deps.Reservoir.Ingest(c.UserContext(), start, end)
	h.observe("ingest_reservoir", began, err)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to ingest data")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":       "Data ingestion completed.",
		"rows_ingested": report.Summary.TotalRowsIngested,
		"details":       report.Details,
	})
}

// historyQuery holds query parameters for the historical-data endpoint.
type historyQuery struct {
	StartDate string `query:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `query:"end_date" validate:"required,datetime=2006-01-02"`
	Page      int    `query:"page" validate:"gte=1"`
	Size      int    `query:"size" validate:"gte=1,lte=1000"`
}

func parseHistoryQuery(c *fiber.Ctx) (basin.Query, error) {
	q := historyQuery{Page: 1, Size: basin.DefaultPageSize}
	if err := c.QueryParser(&q); err != nil {
		return basin.Query{}, fiber.NewError(fiber.StatusUnprocessableEntity, "page and size must be integers")
	}
	if err := validate.Struct(q); err != nil {
		return basin.Query{}, fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	start, _ := common.ParseDate(q.StartDate)
	end, _ := common.ParseDate(q.EndDate)
	if start.After(end) {
		return basin.Query{}, fiber.NewError(fiber.StatusBadRequest, msgStartAfterEnd)
	}
	return basin.Query{Start: start, End: end, Page: q.Page, Size: q.Size}, nil
}

func queryError(err error) error {
	if errors.Is(err, basin.ErrInvalidQuery) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to query historical data")
}

func (h *handlers) historicalData(c *fiber.Ctx) error {
	q, err := parseHistoryQuery(c)
	if err != nil {
		return err
	}

	began := time.Now()
	page, err := h.deps.Basin.HistoricalData(c.UserContext(), q)
	h.observe("query", began, err)
	if err != nil {
		return queryError(err)
	}

	if len(page.Items) == 0 {
		return fiber.NewError(fiber.StatusNotFound, msgNoData)
	}
	return c.JSON(page)
}

func (h *handlers) reservoirData(c *fiber.Ctx) error {
	q, err := parseHistoryQuery(c)
	if err != nil {
		return err
	}

	began := time.Now()
	page, err := h.deps.Reservoir.HistoricalData(c.UserContext(), q)
	h.observe("query_reservoir", began, err)
	if err != nil {
		return queryError(err)
	}

	if len(page.Items) == 0 {
		return fiber.NewError(fiber.StatusNotFound, msgNoData)
	}
	return c.JSON(page)
}

// forecastQuery holds query parameters for the forecast endpoint.
type forecastQuery struct {
	Basin   string `query:"basin"`
	Horizon int    `query:"horizon" validate:"omitempty,gte=1,lte=365"`
	Cutoff  string `query:"cutoff" validate:"omitempty,datetime=2006-01-02"`
}

func (h *handlers) forecast(c *fiber.Ctx) error {
	if h.deps.Forecaster == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "forecasting is not configured")
	}

	var q forecastQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "horizon must be an integer")
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	req := forecast.Request{Basin: q.Basin, Horizon: q.Horizon}
	if req.Basin == "" {
		req.Basin = h.deps.DefaultBasin
	}
	if q.Cutoff != "" {
		req.Cutoff, _ = common.ParseDate(q.Cutoff)
	}

	began := time.Now()
	result, err := h.deps.Forecaster.Run(c.UserContext(), req)
	h.observe("forecast", began, err)
	switch {
	case errors.Is(err, forecast.ErrInvalidRequest):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, forecast.ErrInsufficientHistory):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case err != nil:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate forecast")
	}

	c.Set("X-Run-Id", result.RunID)
	return c.JSON(result.Points)
}
