package basin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/basin-data-api/internal/common"
	"github.com/i474232898/basin-data-api/internal/logging"
)

// DefaultWorkers is the size of the per-year ingestion pool.
const DefaultWorkers = 5

// ErrInvalidRange is returned when a request's end date precedes its start.
var ErrInvalidRange = errors.New("end date cannot be earlier than start date")

// Service orchestrates the ONS client and the partition store for ingestion
// and serves paginated historical queries.
type Service struct {
	store    PartitionStore
	fetcher  Fetcher
	pages    PageSource
	recorder Recorder
	now      Clock
	workers  int
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPageSource makes queries delegate filtering and pagination to src
// instead of scanning partitions.
func WithPageSource(src PageSource) Option {
	return func(s *Service) { s.pages = src }
}

// WithRecorder reports ingestion and validation outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the wall clock used to decide "today".
func WithClock(c Clock) Option {
	return func(s *Service) { s.now = c }
}

// WithWorkers bounds the ingestion pool. Values outside 1..DefaultWorkers
// are clamped.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n < 1 {
			n = 1
		}
		if n > DefaultWorkers {
			n = DefaultWorkers
		}
		s.workers = n
	}
}

// WithLogger sets the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a new Service.
func NewService(store PartitionStore, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		store:   store,
		fetcher: fetcher,
		now:     time.Now,
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Component("basin")
	}
	return s
}

// Ingest fetches and stores every year in [start.Year(), end.Year()].
// Years are processed concurrently on a bounded pool; a year's failure is
// reported in its detail record and never aborts the others. Details are
// returned in year order regardless of completion order.
func (s *Service) Ingest(ctx context.Context, start, end time.Time) (IngestionReport, error) {
	if end.Before(start) {
		return IngestionReport{}, ErrInvalidRange
	}

	return logging.Timed(s.log, "ingest_data", func() (IngestionReport, error) {
		today := common.Day(s.now().UTC())
		years := common.YearsBetween(start, end)
		return RunYears(years, s.workers, s.recorder, s.log, func(year int) YearResult {
			return s.ingestYear(ctx, year, today)
		}), nil
	})
}

// RunYears runs ingest for every year on a pool of at most workers
// goroutines and assembles the report. Details keep the order of years. A
// panic inside ingest becomes a FAILED record. rec may be nil.
func RunYears(years []int, workers int, rec Recorder, log *slog.Logger, ingest func(year int) YearResult) IngestionReport {
	results := make([]YearResult, len(years))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, year := range years {
		i, year := i, year
		g.Go(func() error {
			results[i] = ingestSafely(year, rec, log, ingest)
			return nil
		})
	}
	_ = g.Wait()

	report := IngestionReport{
		Summary: IngestionSummary{YearsRequested: years},
		Details: results,
	}
	for _, r := range results {
		if r.Status == StatusSuccess {
			report.Summary.TotalRowsIngested += r.RowsIngested
		}
	}
	return report
}

func ingestSafely(year int, rec Recorder, log *slog.Logger, ingest func(int) YearResult) (res YearResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while ingesting year", "year", year, "panic", r)
			res = Failed(year, fmt.Sprintf("unexpected error: %v", r))
		}
		if rec != nil {
			rec.YearProcessed(res.Status, res.RowsIngested)
		}
	}()
	return ingest(year)
}

func (s *Service) ingestYear(ctx context.Context, year int, today time.Time) YearResult {
	log := s.log.With("year", year)

	switch currentYear := today.Year(); {
	case year > currentYear:
		log.Warn("year is in the future, skipping fetch")
		return Failed(year, FutureYearDetail(year))
	case year < currentYear:
		exists, err := s.store.HistoricalExists(ctx, year)
		if err != nil {
			log.Error("historical partition check failed", "error", err)
			return Failed(year, fmt.Sprintf("checking historical partition: %v", err))
		}
		if exists {
			log.Info("historical partition already exists, skipping")
			return YearResult{Year: year, Status: StatusSkipped, Detail: "Historical data already exists."}
		}
	case year == currentYear:
		latest, ok, err := s.store.LatestIngestionDate(ctx, year)
		if err != nil {
			log.Error("latest ingestion date lookup failed", "error", err)
			return Failed(year, fmt.Sprintf("looking up latest ingestion date: %v", err))
		}
		if ok && latest.Equal(today) {
			log.Info("current year already ingested today, skipping", "ingestion_date", common.FormatDate(latest))
			return YearResult{Year: year, Status: StatusSkipped, Detail: "Current year data already ingested today."}
		}
	}

	rows, err := s.fetcher.FetchYear(ctx, year)
	if err != nil {
		if IsClientError(err) {
			log.Error("failed to fetch year", "error", err)
		} else {
			log.Error("unexpected error while fetching year", "error", err, "error_type", fmt.Sprintf("%T", err))
		}
		return Failed(year, err.Error())
	}
	if len(rows) == 0 {
		log.Warn("no rows returned")
		return Failed(year, ErrNoData.Error())
	}

	if err := s.store.Save(ctx, rows, year, today); err != nil {
		log.Error("failed to save partition", "error", err)
		return Failed(year, fmt.Sprintf("saving partition: %v", err))
	}

	log.Info("year ingested", "rows", len(rows))
	return YearResult{
		Year:         year,
		Status:       StatusSuccess,
		Detail:       "Data saved successfully.",
		RowsIngested: len(rows),
	}
}

// FutureYearDetail is the detail of a year after the current one.
func FutureYearDetail(year int) string {
	return fmt.Sprintf("Year %d is in the future; no data is published yet.", year)
}

// Failed is the FAILED record of year.
func Failed(year int, detail string) YearResult {
	return YearResult{Year: year, Status: StatusFailed, Detail: detail}
}
