package basin

import (
	"context"
	"time"
)

// Fetcher downloads and normalizes the dataset for one year.
type Fetcher interface {
	FetchYear(ctx context.Context, year int) ([]RawRow, error)
}

// PartitionStore persists yearly partitions and answers freshness checks.
// Implementations must be safe for concurrent use by the ingestion workers.
type PartitionStore interface {
	// HistoricalExists reports whether a committed partition exists for a
	// past year.
	HistoricalExists(ctx context.Context, year int) (bool, error)
	// LatestIngestionDate returns the newest ingestion date committed for
	// year. ok is false when there is none.
	LatestIngestionDate(ctx context.Context, year int) (date time.Time, ok bool, err error)
	// Save writes rows as the partition for year. For the current year the
	// partition is keyed by ingestionDate too.
	Save(ctx context.Context, rows []RawRow, year int, ingestionDate time.Time) error
	// Scan returns every stored row dated in [start, end], sorted by
	// (date, basin name).
	Scan(ctx context.Context, start, end time.Time) ([]RawRow, error)
}

// PageSource is a storage backend that filters, orders and paginates by
// itself. total is the number of matching rows before pagination.
type PageSource interface {
	FindByDateRange(ctx context.Context, start, end time.Time, page, size int) (rows []RawRow, total int, err error)
}

// Recorder receives ingestion and query outcomes. A nil Recorder is allowed.
type Recorder interface {
	YearProcessed(status Status, rows int)
	RowsSkipped(n int)
}

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time
