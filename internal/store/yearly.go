package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/i474232898/basin-data-api/internal/logging"
)

// KeyFunc maps a year to the object key of its partition.
type KeyFunc func(year int) string

// YearlyKey returns the flat layout "<root>/<root>_<year>.parquet".
func YearlyKey(root string) KeyFunc {
	return func(year int) string {
		return fmt.Sprintf("%s/%s_%d.parquet", root, root, year)
	}
}

// YearFiles keeps one Parquet object of T per year. Saving a year replaces
// its object.
type YearFiles[T any] struct {
	blobs BlobStore
	key   KeyFunc
	log   *slog.Logger
}

// NewYearFiles creates a YearFiles storing objects under key(year).
func NewYearFiles[T any](blobs BlobStore, key KeyFunc) *YearFiles[T] {
	return &YearFiles[T]{
		blobs: blobs,
		key:   key,
		log:   logging.Component("year-files"),
	}
}

func (f *YearFiles[T]) Exists(ctx context.Context, year int) (bool, error) {
	return f.blobs.Exists(ctx, f.key(year))
}

// Save writes rows as the object of year.
func (f *YearFiles[T]) Save(ctx context.Context, rows []T, year int) error {
	key := f.key(year)
	data, err := EncodeRows(rows)
	if err != nil {
		return fmt.Errorf("encode partition %s: %w", key, err)
	}
	if err := f.blobs.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write partition %s: %w", key, err)
	}

	f.log.Info("partition saved", "key", key, "rows", len(rows))
	return nil
}

// Load returns the rows of year. ok is false when nothing was saved for it.
func (f *YearFiles[T]) Load(ctx context.Context, year int) (rows []T, ok bool, err error) {
	data, err := f.blobs.Get(ctx, f.key(year))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	rows, err = DecodeRows[T](data)
	if err != nil {
		return nil, false, err
	}
	return rows, true, nil
}

// LoadYears concatenates the rows of every year in [from, to] in year
// order. Missing years contribute nothing; every unreadable one is reported.
func (f *YearFiles[T]) LoadYears(ctx context.Context, from, to int) ([]T, error) {
	var (
		out  []T
		errs *multierror.Error
	)
	for year := from; year <= to; year++ {
		rows, _, err := f.Load(ctx, year)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("year %d: %w", year, err))
			continue
		}
		out = append(out, rows...)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}
