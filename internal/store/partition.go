package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/common"
	"github.com/i474232898/basin-data-api/internal/logging"
)

const (
	rootPrefix       = "basin_data"
	historicalPrefix = rootPrefix + "/historical/"
	currentPrefix    = rootPrefix + "/current/"
)

// HistoricalKey is the object key of a closed year's partition.
func HistoricalKey(year int) string {
	return fmt.Sprintf("%sbasin_data_%d.parquet", historicalPrefix, year)
}

// CurrentKey is the object key of the current year's partition ingested on
// ingestionDate.
func CurrentKey(year int, ingestionDate time.Time) string {
	return fmt.Sprintf("%sdt=%s/basin_data_%d.parquet", yearPrefix(year), common.FormatDate(ingestionDate), year)
}

func yearPrefix(year int) string {
	return fmt.Sprintf("%syear=%d/", currentPrefix, year)
}

// Partitions implements basin.PartitionStore on top of a BlobStore, one
// Parquet object per partition.
type Partitions struct {
	blobs      BlobStore
	historical *YearFiles[basin.RawRow]
	log        *slog.Logger
}

var _ basin.PartitionStore = (*Partitions)(nil)

// NewPartitions creates a partition store writing to blobs.
func NewPartitions(blobs BlobStore) *Partitions {
	return &Partitions{
		blobs:      blobs,
		historical: NewYearFiles[basin.RawRow](blobs, HistoricalKey),
		log:        logging.Component("partitions"),
	}
}

func (p *Partitions) HistoricalExists(ctx context.Context, year int) (bool, error) {
	return p.historical.Exists(ctx, year)
}

// LatestIngestionDate returns the newest dt= partition of year. A dt=
// directory whose value is not a date makes the result absent, which makes
// the caller re-ingest. Objects outside dt= directories are ignored.
func (p *Partitions) LatestIngestionDate(ctx context.Context, year int) (time.Time, bool, error) {
	latest, found, malformed, err := p.ingestionDates(ctx, year)
	if err != nil || malformed {
		return time.Time{}, false, err
	}
	return latest, found, nil
}

// ingestionDates lists the dt= partitions of year and returns the newest
// well-formed date and whether a malformed dt= value was seen.
func (p *Partitions) ingestionDates(ctx context.Context, year int) (latest time.Time, found, malformed bool, err error) {
	prefix := yearPrefix(year) + "dt="
	keys, err := p.blobs.List(ctx, prefix)
	if err != nil {
		return time.Time{}, false, false, err
	}

	for _, key := range keys {
		value, _, ok := strings.Cut(strings.TrimPrefix(key, prefix), "/")
		if !ok {
			continue
		}
		dt, err := common.ParseDate(value)
		if err != nil {
			p.log.Warn("malformed partition key", "key", key)
			malformed = true
			continue
		}
		if !found || dt.After(latest) {
			latest, found = dt, true
		}
	}
	return latest, found, malformed, nil
}

// Save writes rows as the partition of year. A year equal to the year of
// ingestionDate is the current year: its rows are stamped with the
// ingestion date and stored under a dt= partition. Any other year replaces
// its historical partition.
func (p *Partitions) Save(ctx context.Context, rows []basin.RawRow, year int, ingestionDate time.Time) error {
	if year != ingestionDate.Year() {
		return p.historical.Save(ctx, rows, year)
	}

	key := CurrentKey(year, ingestionDate)
	stamp := common.FormatDate(ingestionDate)
	stamped := make([]basin.RawRow, len(rows))
	for i, row := range rows {
		row.IngestionDate = stamp
		stamped[i] = row
	}

	data, err := EncodeRows(stamped)
	if err != nil {
		return fmt.Errorf("encode partition %s: %w", key, err)
	}
	if err := p.blobs.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write partition %s: %w", key, err)
	}

	p.log.Info("partition saved", "key", key, "rows", len(rows))
	return nil
}

// Scan reads, for each year overlapping [start, end], the historical
// partition or else the latest dt= partition, and returns the rows dated in
// range sorted by (date, basin name). Rows whose date cannot be parsed are
// kept so the caller can account for them. Every unreadable partition is
// reported in the returned error.
func (p *Partitions) Scan(ctx context.Context, start, end time.Time) ([]basin.RawRow, error) {
	var (
		out  []basin.RawRow
		errs *multierror.Error
	)

	for _, year := range common.YearsBetween(start, end) {
		rows, err := p.readYear(ctx, year)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("year %d: %w", year, err))
			continue
		}
		for _, row := range rows {
			d, err := common.ParseDate(strings.TrimSpace(row.Date))
			if err == nil && !common.InRange(d, start, end) {
				continue
			}
			out = append(out, row)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].BasinName < out[j].BasinName
	})
	return out, nil
}

func (p *Partitions) readYear(ctx context.Context, year int) ([]basin.RawRow, error) {
	rows, ok, err := p.historical.Load(ctx, year)
	if err != nil || ok {
		return rows, err
	}

	dt, found, _, err := p.ingestionDates(ctx, year)
	if err != nil || !found {
		return nil, err
	}
	data, err := p.blobs.Get(ctx, CurrentKey(year, dt))
	if err != nil {
		return nil, err
	}
	return DecodeRows[basin.RawRow](data)
}
