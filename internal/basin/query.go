package basin

import (
	"context"
	"errors"
	"fmt"

	"github.com/i474232898/basin-data-api/internal/logging"
)

// ErrInvalidQuery is returned for pagination parameters out of bounds.
var ErrInvalidQuery = errors.New("invalid query")

// HistoricalData returns one page of validated records dated in
// [q.Start, q.End]. Rows that fail validation are logged and dropped; they
// never fail the request. An empty result is a zero-valued page, not an
// error.
func (s *Service) HistoricalData(ctx context.Context, q Query) (Page, error) {
	if err := q.Validate(); err != nil {
		return Page{}, err
	}

	return logging.Timed(s.log, "get_historical_data", func() (Page, error) {
		if s.pages != nil {
			return s.delegatedPage(ctx, q)
		}
		return s.scannedPage(ctx, q)
	})
}

// Validate checks the date order and the pagination bounds.
func (q Query) Validate() error {
	if q.End.Before(q.Start) {
		return ErrInvalidRange
	}
	if q.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1", ErrInvalidQuery)
	}
	if q.Size < 1 || q.Size > MaxPageSize {
		return fmt.Errorf("%w: size must be between 1 and %d", ErrInvalidQuery, MaxPageSize)
	}
	return nil
}

// scannedPage reads every intersecting partition, validates all rows and
// paginates in memory. Counts are over validated rows.
func (s *Service) scannedPage(ctx context.Context, q Query) (Page, error) {
	rows, err := s.store.Scan(ctx, q.Start, q.End)
	if err != nil {
		return Page{}, fmt.Errorf("scan partitions: %w", err)
	}

	valid := s.validate(rows)
	return Paginate(valid, q.Page, q.Size), nil
}

// delegatedPage lets the page source filter, order and paginate. The total
// is the source's raw count; only the items on the page are validated.
func (s *Service) delegatedPage(ctx context.Context, q Query) (Page, error) {
	rows, total, err := s.pages.FindByDateRange(ctx, q.Start, q.End, q.Page, q.Size)
	if err != nil {
		return Page{}, fmt.Errorf("query page source: %w", err)
	}
	if total == 0 {
		return emptyPage[BasinVolume](q.Page), nil
	}

	valid := s.validate(rows)
	return Page{
		TotalItems:  total,
		TotalPages:  ceilDiv(total, q.Size),
		CurrentPage: q.Page,
		ItemsOnPage: len(valid),
		Items:       valid,
	}, nil
}

func (s *Service) validate(rows []RawRow) []BasinVolume {
	valid, rejected := ValidateRows(rows)
	for _, r := range rejected {
		s.log.Warn("validation error on data row, skipping", "error", r.Err)
	}
	if s.recorder != nil && len(rejected) > 0 {
		s.recorder.RowsSkipped(len(rejected))
	}
	return valid
}

// Paginate slices items[(page-1)*size : (page-1)*size+size], clamped to the
// available items.
func Paginate[T any](items []T, page, size int) PageOf[T] {
	total := len(items)
	if total == 0 {
		return emptyPage[T](page)
	}

	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	pageItems := items[start:end]
	return PageOf[T]{
		TotalItems:  total,
		TotalPages:  ceilDiv(total, size),
		CurrentPage: page,
		ItemsOnPage: len(pageItems),
		Items:       pageItems,
	}
}

func emptyPage[T any](page int) PageOf[T] {
	return PageOf[T]{CurrentPage: page, Items: []T{}}
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
