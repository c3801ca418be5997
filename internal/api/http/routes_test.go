package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/common"
	"github.com/i474232898/basin-data-api/internal/forecast"
	"github.com/i474232898/basin-data-api/internal/reservoir"
)

type fakeBasin struct {
	report basin.IngestionReport
	page   basin.Page
	err    error

	ingestCalls int
	start, end  time.Time
	query       basin.Query
}

func (f *fakeBasin) Ingest(_ context.Context, start, end time.Time) (basin.IngestionReport, error) {
	f.ingestCalls++
	f.start, f.end = start, end
	return f.report, f.err
}

func (f *fakeBasin) HistoricalData(_ context.Context, q basin.Query) (basin.Page, error) {
	f.query = q
	return f.page, f.err
}

type fakeForecaster struct {
	req    forecast.Request
	result forecast.Result
	err    error
}

func (f *fakeForecaster) Run(_ context.Context, req forecast.Request) (forecast.Result, error) {
	f.req = req
	return f.result, f.err
}

type countingObserver struct {
	ops []string
}

func (o *countingObserver) ObserveOperation(op string, _ time.Time, _ error) {
	o.ops = append(o.ops, op)
}

func newApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, deps)
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp, decoded
}

func onePage() basin.Page {
	v := 40.0
	return basin.Page{
		TotalItems: 1, TotalPages: 1, CurrentPage: 1, ItemsOnPage: 1,
		Items: []basin.BasinVolume{{BasinName: "SUDESTE", Date: common.Date(2023, 1, 1), StorablePercentMLT: &v}},
	}
}

func TestIngest(t *testing.T) {
	svc := &fakeBasin{report: basin.IngestionReport{
		Summary: basin.IngestionSummary{YearsRequested: []int{2023}, TotalRowsIngested: 100},
		Details: []basin.YearResult{{Year: 2023, Status: basin.StatusSuccess, Detail: "Data saved successfully.", RowsIngested: 100}},
	}}
	obs := &countingObserver{}
	app := newApp(Deps{Basin: svc, Observer: obs})

	resp, body := do(t, app, http.MethodPost, "/api/basin/ingest", `{"start_date":"2023-01-01","end_date":"2023-12-31"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, common.Date(2023, 1, 1), svc.start)
	assert.Equal(t, common.Date(2023, 12, 31), svc.end)

	summary := body["summary"].(map[string]any)
	assert.Equal(t, 100.0, summary["total_rows_ingested"])
	details := body["details"].([]any)
	assert.Equal(t, "SUCCESS", details[0].(map[string]any)["status"])
	assert.Equal(t, []string{"ingest"}, obs.ops)
}

func TestIngestRejectsInvalidBodies(t *testing.T) {
	svc := &fakeBasin{}
	app := newApp(Deps{Basin: svc})

	for name, body := range map[string]string{
		"missing end date": `{"start_date":"2023-01-01"}`,
		"malformed date":   `{"start_date":"01/01/2023","end_date":"2023-01-02"}`,
		"inverted range":   `{"start_date":"2023-02-01","end_date":"2023-01-01"}`,
		"not json":         `start_date=2023-01-01`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, decoded := do(t, app, http.MethodPost, "/api/basin/ingest", body)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			assert.Equal(t, true, decoded["error"])
		})
	}
	assert.Zero(t, svc.ingestCalls)
}

func TestHistoricalData(t *testing.T) {
	svc := &fakeBasin{page: onePage()}
	app := newApp(Deps{Basin: svc})

	resp, body := do(t, app, http.MethodGet, "/api/basin/historical-data?start_date=2023-01-01&end_date=2023-01-10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, basin.Query{Start: common.Date(2023, 1, 1), End: common.Date(2023, 1, 10), Page: 1, Size: 100}, svc.query)
	item := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "SUDESTE", item["nom_bacia"])
	assert.Equal(t, "2023-01-01", item["ena_data"])
	assert.Nil(t, item["ena_bruta_bacia_mwmed"])
	assert.Equal(t, 1.0, body["items_on_page"])
}

type fakeReservoir struct {
	report basin.IngestionReport
	page   reservoir.Page
	err    error
	query  basin.Query
}

func (f *fakeReservoir) Ingest(_ context.Context, _, _ time.Time) (basin.IngestionReport, error) {
	return f.report, f.err
}

func (f *fakeReservoir) HistoricalData(_ context.Context, q basin.Query) (reservoir.Page, error) {
	f.query = q
	return f.page, f.err
}

func TestReservoirHistoricalData(t *testing.T) {
	v := 55.2
	res := &fakeReservoir{page: reservoir.Page{
		TotalItems: 1, TotalPages: 1, CurrentPage: 2, ItemsOnPage: 1,
		Items: []reservoir.Volume{{ReservoirName: "FURNAS", Date: common.Date(2023, 1, 1), StoredPercent: &v}},
	}}
	basinSvc := &fakeBasin{page: onePage()}
	app := newApp(Deps{Basin: basinSvc, Reservoir: res})

	resp, body := do(t, app, http.MethodGet, "/api/v1/reservoir-volume/historical?start_date=2023-01-01&end_date=2023-01-10&page=2&size=5", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, res.query.Page)
	assert.Equal(t, 5, res.query.Size)
	assert.Zero(t, basinSvc.query.Page, "reservoir route must not hit the basin service")

	item := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "FURNAS", item["nom_reservatorio"])
	assert.Equal(t, "2023-01-01", item["ear_data"])

	res.page = reservoir.Page{Items: []reservoir.Volume{}}
	resp, body = do(t, app, http.MethodGet, "/api/v1/reservoir-volume/historical?start_date=2023-01-01&end_date=2023-01-10", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, msgNoData, body["message"])
}

func TestReservoirIngest(t *testing.T) {
	res := &fakeReservoir{report: basin.IngestionReport{
		Summary: basin.IngestionSummary{YearsRequested: []int{2023}, TotalRowsIngested: 42},
		Details: []basin.YearResult{{Year: 2023, Status: basin.StatusSuccess, RowsIngested: 42}},
	}}
	app := newApp(Deps{Basin: &fakeBasin{}, Reservoir: res})

	resp, body := do(t, app, http.MethodPost, "/api/v1/ingest", `{"start_date":"2023-01-01","end_date":"2023-12-31"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Data ingestion completed.", body["message"])
	assert.Equal(t, 42.0, body["rows_ingested"])

	resp, _ = do(t, app, http.MethodPost, "/api/v1/ingest", `{"start_date":"2023-12-31","end_date":"2023-01-01"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestReservoirRoutesNeedService(t *testing.T) {
	app := newApp(Deps{Basin: &fakeBasin{page: onePage()}})
	resp, _ := do(t, app, http.MethodGet, "/api/v1/reservoir-volume/historical?start_date=2023-01-01&end_date=2023-01-10", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoricalDataErrors(t *testing.T) {
	cases := []struct {
		name   string
		target string
		page   basin.Page
		err    error
		status int
		msg    string
	}{
		{"start after end", "?start_date=2023-02-01&end_date=2023-01-31", onePage(), nil, http.StatusBadRequest, msgStartAfterEnd},
		{"missing end", "?start_date=2023-01-01", onePage(), nil, http.StatusUnprocessableEntity, ""},
		{"missing start", "?end_date=2023-01-31", onePage(), nil, http.StatusUnprocessableEntity, ""},
		{"malformed date", "?start_date=2023-13-01&end_date=2023-12-31", onePage(), nil, http.StatusUnprocessableEntity, ""},
		{"size too large", "?start_date=2023-01-01&end_date=2023-01-31&size=1001", onePage(), nil, http.StatusUnprocessableEntity, ""},
		{"page zero", "?start_date=2023-01-01&end_date=2023-01-31&page=0", onePage(), nil, http.StatusUnprocessableEntity, ""},
		{"page not a number", "?start_date=2023-01-01&end_date=2023-01-31&page=x", onePage(), nil, http.StatusUnprocessableEntity, ""},
		{"empty page", "?start_date=2023-01-01&end_date=2023-01-31", basin.Page{Items: []basin.BasinVolume{}}, nil, http.StatusNotFound, msgNoData},
		{"backend failure", "?start_date=2023-01-01&end_date=2023-01-31", basin.Page{}, errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newApp(Deps{Basin: &fakeBasin{page: tc.page, err: tc.err}})
			resp, body := do(t, app, http.MethodGet, "/api/basin/historical-data"+tc.target, "")
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, body["message"])
			}
		})
	}
}

func TestForecast(t *testing.T) {
	fc := &fakeForecaster{result: forecast.Result{
		RunID: "run-1",
		Points: []forecast.Point{
			{Date: common.Date(2025, 1, 1), Value: 10},
			{Date: common.Date(2025, 1, 2), Value: 11.5},
		},
	}}
	app := newApp(Deps{Basin: &fakeBasin{}, Forecaster: fc, DefaultBasin: "PARANAPANEMA"})

	req := httptest.NewRequest(http.MethodGet, "/api/basin/forecast?horizon=2&cutoff=2024-12-31", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "run-1", resp.Header.Get("X-Run-Id"))

	var points []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&points))
	require.Len(t, points, 2)
	assert.Equal(t, "2025-01-02", points[1]["date"])
	assert.Equal(t, 11.5, points[1]["value"])

	assert.Equal(t, forecast.Request{Basin: "PARANAPANEMA", Horizon: 2, Cutoff: common.Date(2024, 12, 31)}, fc.req)
}

func TestForecastErrors(t *testing.T) {
	cases := []struct {
		name   string
		target string
		err    error
		status int
	}{
		{"horizon too large", "?horizon=366", nil, http.StatusUnprocessableEntity},
		{"horizon not a number", "?horizon=abc", nil, http.StatusUnprocessableEntity},
		{"malformed cutoff", "?cutoff=yesterday", nil, http.StatusUnprocessableEntity},
		{"insufficient history", "?basin=SUL", fmt.Errorf("wrap: %w", forecast.ErrInsufficientHistory), http.StatusNotFound},
		{"model failure", "", errors.New("model down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newApp(Deps{Basin: &fakeBasin{}, Forecaster: &fakeForecaster{err: tc.err}, DefaultBasin: "SUL"})
			resp, _ := do(t, app, http.MethodGet, "/api/basin/forecast"+tc.target, "")
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestForecastNotConfigured(t *testing.T) {
	app := newApp(Deps{Basin: &fakeBasin{}})
	resp, body := do(t, app, http.MethodGet, "/api/basin/forecast", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "forecasting is not configured", body["message"])
}

func TestDocsListsRoutes(t *testing.T) {
	paths := func(body map[string]any) []string {
		var out []string
		for _, e := range body["endpoints"].([]any) {
			out = append(out, e.(map[string]any)["path"].(string))
		}
		return out
	}

	resp, body := do(t, newApp(Deps{Basin: &fakeBasin{}}), http.MethodGet, "/docs", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, paths(body), "/api/basin/historical-data")
	assert.NotContains(t, paths(body), "/api/v1/reservoir-volume/historical")

	_, body = do(t, newApp(Deps{Basin: &fakeBasin{}, Reservoir: &fakeReservoir{}}), http.MethodGet, "/docs", "")
	assert.Contains(t, paths(body), "/api/v1/reservoir-volume/historical")
}
