package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/basin-data-api/internal/common"
	"github.com/i474232898/basin-data-api/internal/logging"
)

const (
	DefaultWindow  = 180
	DefaultHorizon = 180
	MaxHorizon     = 365
)

var (
	// ErrInsufficientHistory is returned when the basin has fewer than
	// window+MaxLag observations up to the cutoff.
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrInvalidRequest      = errors.New("invalid forecast request")
)

// Request parameterizes one forecast run. A zero Horizon means the
// forecaster default; a zero Cutoff means today.
type Request struct {
	Basin   string
	Horizon int
	Cutoff  time.Time
}

// Result is the output of one run.
type Result struct {
	RunID       string
	Basin       string
	GeneratedAt time.Time
	Points      []Point
}

// Sink persists forecast results.
type Sink interface {
	Save(ctx context.Context, result Result) error
}

// Forecaster runs the recursive forecasting loop. It is safe for
// concurrent use; runs share no mutable state.
type Forecaster struct {
	history History
	scaler  *Scaler
	model   Model
	sink    Sink
	window  int
	horizon int
	now     func() time.Time
	log     *slog.Logger
}

type Option func(*Forecaster)

func WithWindow(n int) Option {
	return func(f *Forecaster) {
		if n > 0 {
			f.window = n
		}
	}
}

func WithHorizon(n int) Option {
	return func(f *Forecaster) {
		if n > 0 && n <= MaxHorizon {
			f.horizon = n
		}
	}
}

// WithSink appends every successful run to s.
func WithSink(s Sink) Option {
	return func(f *Forecaster) { f.sink = s }
}

func WithClock(now func() time.Time) Option {
	return func(f *Forecaster) { f.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Forecaster) { f.log = l }
}

// NewForecaster wires a forecaster. The scaler must cover Columns.
func NewForecaster(history History, scaler *Scaler, model Model, opts ...Option) (*Forecaster, error) {
	if scaler.Width() != len(Columns) {
		return nil, fmt.Errorf("%w: scaler has %d columns, want %d", ErrInvalidArtifact, scaler.Width(), len(Columns))
	}
	f := &Forecaster{
		history: history,
		scaler:  scaler,
		model:   model,
		window:  DefaultWindow,
		horizon: DefaultHorizon,
		now:     time.Now,
		log:     logging.Component("forecaster"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Run forecasts req.Horizon days starting the day after the last
// observation on or before the cutoff.
func (f *Forecaster) Run(ctx context.Context, req Request) (Result, error) {
	return logging.Timed(f.log, "forecast", func() (Result, error) {
		return f.run(ctx, req)
	})
}

func (f *Forecaster) run(ctx context.Context, req Request) (Result, error) {
	if req.Basin == "" {
		return Result{}, fmt.Errorf("%w: basin is required", ErrInvalidRequest)
	}
	horizon := req.Horizon
	if horizon == 0 {
		horizon = f.horizon
	}
	if horizon < 1 || horizon > MaxHorizon {
		return Result{}, fmt.Errorf("%w: horizon must be between 1 and %d", ErrInvalidRequest, MaxHorizon)
	}
	until := req.Cutoff
	if until.IsZero() {
		until = common.Day(f.now())
	}

	need := f.window + MaxLag
	obs, err := f.history.Recent(ctx, req.Basin, until, need)
	if err != nil {
		return Result{}, fmt.Errorf("load history: %w", err)
	}
	if len(obs) < need {
		return Result{}, fmt.Errorf("%w: basin %s has %d observations up to %s, need %d",
			ErrInsufficientHistory, req.Basin, len(obs), common.FormatDate(until), need)
	}
	// Lags are positional, so a missing day would shift every lag feature.
	if i := firstGap(obs); i >= 0 {
		return Result{}, fmt.Errorf("%w: basin %s has no contiguous daily series, %s is followed by %s",
			ErrInsufficientHistory, req.Basin, common.FormatDate(obs[i-1].Date), common.FormatDate(obs[i].Date))
	}

	series := make([]float64, len(obs), len(obs)+horizon)
	for i, o := range obs {
		series[i] = o.Value
	}

	rows := make([][]float64, 0, f.window)
	for i := len(obs) - f.window; i < len(obs); i++ {
		vec, err := FeatureVector(obs[i].Date, series[:i+1])
		if err != nil {
			return Result{}, err
		}
		rows = append(rows, f.scaler.Transform(vec))
	}
	win := NewWindow(rows, obs[len(obs)-1].Date)

	points := make([]Point, 0, horizon)
	for step := 0; step < horizon; step++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		scaled, err := f.model.Predict(ctx, win.Rows())
		if err != nil {
			return Result{}, fmt.Errorf("step %d: %w", step+1, err)
		}
		value := f.scaler.InverseAt(0, scaled)
		date := win.Last().AddDate(0, 0, 1)

		series = append(series, value)
		vec, err := FeatureVector(date, series)
		if err != nil {
			return Result{}, err
		}
		win.Push(f.scaler.Transform(vec))
		points = append(points, Point{Date: date, Value: value})
	}

	result := Result{
		RunID:       uuid.NewString(),
		Basin:       req.Basin,
		GeneratedAt: f.now().UTC(),
		Points:      points,
	}

	if f.sink != nil {
		if err := f.sink.Save(ctx, result); err != nil {
			f.log.Error("failed to persist forecast", "run_id", result.RunID, "error", err)
		}
	}
	return result, nil
}
