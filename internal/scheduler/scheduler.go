package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/common"
	"github.com/i474232898/basin-data-api/internal/logging"
)

// Ingester runs an ingestion over a date range.
type Ingester interface {
	Ingest(ctx context.Context, start, end time.Time) (basin.IngestionReport, error)
}

// Scheduler refreshes the current year once a day.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ingester  Ingester
	at        string
	timeout   time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// New creates a Scheduler that runs daily at at ("HH:MM", UTC).
func New(ingester Ingester, at string) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		ingester:  ingester,
		at:        at,
		timeout:   30 * time.Minute,
		now:       time.Now,
		log:       logging.Component("scheduler"),
	}
}

// Start schedules the daily job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At(s.at).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.Refresh(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info("daily refresh scheduled", "at", s.at)
	return nil
}

// Refresh ingests [Jan 1 of the current year, today]. Years already
// ingested today are skipped by the orchestrator.
func (s *Scheduler) Refresh(ctx context.Context) {
	today := common.Day(s.now().UTC())
	start := common.Date(today.Year(), time.January, 1)

	s.log.Info("running current-year refresh", "start", common.FormatDate(start), "end", common.FormatDate(today))
	report, err := s.ingester.Ingest(ctx, start, today)
	if err != nil {
		s.log.Error("refresh failed", "error", err)
		return
	}
	for _, d := range report.Details {
		s.log.Info("refresh finished", "year", d.Year, "status", d.Status, "detail", d.Detail, "rows", d.RowsIngested)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
