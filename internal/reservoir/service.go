package reservoir

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/common"
	"github.com/i474232898/basin-data-api/internal/logging"
)

// Fetcher downloads and normalizes the reservoir dataset for one year.
type Fetcher interface {
	FetchYear(ctx context.Context, year int) ([]RawRow, error)
}

// Store keeps one object per year.
type Store interface {
	Exists(ctx context.Context, year int) (bool, error)
	Save(ctx context.Context, rows []RawRow, year int) error
	LoadYears(ctx context.Context, from, to int) ([]RawRow, error)
}

// Service ingests and queries reservoir data.
type Service struct {
	store    Store
	fetcher  Fetcher
	recorder basin.Recorder
	now      basin.Clock
	workers  int
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithRecorder(r basin.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithClock(c basin.Clock) Option {
	return func(s *Service) { s.now = c }
}

// WithWorkers bounds the ingestion pool to 1..basin.DefaultWorkers.
func WithWorkers(n int) Option {
	return func(s *Service) {
		s.workers = min(max(n, 1), basin.DefaultWorkers)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a reservoir Service.
func NewService(store Store, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		store:   store,
		fetcher: fetcher,
		now:     time.Now,
		workers: basin.DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Component("reservoir")
	}
	return s
}

// Ingest fetches and stores every year in [start.Year(), end.Year()].
// Closed years that are already stored are skipped. The current year has a
// single object, so it is fetched again and replaced on every call.
func (s *Service) Ingest(ctx context.Context, start, end time.Time) (basin.IngestionReport, error) {
	if end.Before(start) {
		return basin.IngestionReport{}, basin.ErrInvalidRange
	}

	return logging.Timed(s.log, "ingest_reservoir_data", func() (basin.IngestionReport, error) {
		today := common.Day(s.now().UTC())
		years := common.YearsBetween(start, end)
		return basin.RunYears(years, s.workers, s.recorder, s.log, func(year int) basin.YearResult {
			return s.ingestYear(ctx, year, today.Year())
		}), nil
	})
}

func (s *Service) ingestYear(ctx context.Context, year, currentYear int) basin.YearResult {
	log := s.log.With("year", year)

	if year > currentYear {
		log.Warn("year is in the future, skipping fetch")
		return basin.Failed(year, basin.FutureYearDetail(year))
	}
	if year < currentYear {
		exists, err := s.store.Exists(ctx, year)
		if err != nil {
			log.Error("partition check failed", "error", err)
			return basin.Failed(year, fmt.Sprintf("checking partition: %v", err))
		}
		if exists {
			log.Info("partition already exists, skipping")
			return basin.YearResult{Year: year, Status: basin.StatusSkipped, Detail: "Historical data already exists."}
		}
	}

	rows, err := s.fetcher.FetchYear(ctx, year)
	if err != nil {
		log.Error("failed to fetch year", "error", err)
		return basin.Failed(year, err.Error())
	}
	if len(rows) == 0 {
		log.Warn("no rows returned")
		return basin.Failed(year, basin.ErrNoData.Error())
	}

	if err := s.store.Save(ctx, rows, year); err != nil {
		log.Error("failed to save partition", "error", err)
		return basin.Failed(year, fmt.Sprintf("saving partition: %v", err))
	}

	log.Info("year ingested", "rows", len(rows))
	return basin.YearResult{
		Year:         year,
		Status:       basin.StatusSuccess,
		Detail:       "Data saved successfully.",
		RowsIngested: len(rows),
	}
}

// HistoricalData returns one page of validated reservoir records dated in
// [q.Start, q.End], sorted by (date, reservoir name). Invalid rows are
// logged and dropped.
func (s *Service) HistoricalData(ctx context.Context, q basin.Query) (Page, error) {
	if err := q.Validate(); err != nil {
		return Page{}, err
	}

	return logging.Timed(s.log, "get_reservoir_data", func() (Page, error) {
		rows, err := s.store.LoadYears(ctx, q.Start.Year(), q.End.Year())
		if err != nil {
			return Page{}, fmt.Errorf("load partitions: %w", err)
		}

		var (
			valid   []Volume
			skipped int
		)
		for _, row := range rows {
			v, err := ParseRow(row)
			if err != nil {
				s.log.Warn("validation error on data row, skipping", "error", err)
				skipped++
				continue
			}
			if common.InRange(v.Date, q.Start, q.End) {
				valid = append(valid, v)
			}
		}
		if s.recorder != nil && skipped > 0 {
			s.recorder.RowsSkipped(skipped)
		}

		sort.SliceStable(valid, func(i, j int) bool {
			if !valid[i].Date.Equal(valid[j].Date) {
				return valid[i].Date.Before(valid[j].Date)
			}
			return valid[i].ReservoirName < valid[j].ReservoirName
		})
		return basin.Paginate(valid, q.Page, q.Size), nil
	})
}
