package forecast

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/logging"
)

// History supplies the most recent observations of a basin.
type History interface {
	// Recent returns at most n observations dated on or before until,
	// oldest first.
	Recent(ctx context.Context, basinName string, until time.Time, n int) ([]Observation, error)
}

// PartitionHistory reads observations from the staged partitions. The
// target is the storable ENA in MWmed; rows without it are skipped.
type PartitionHistory struct {
	store basin.PartitionStore
	log   *slog.Logger
}

var _ History = (*PartitionHistory)(nil)

func NewPartitionHistory(store basin.PartitionStore) *PartitionHistory {
	return &PartitionHistory{
		store: store,
		log:   logging.Component("forecast-history"),
	}
}

func (h *PartitionHistory) Recent(ctx context.Context, basinName string, until time.Time, n int) ([]Observation, error) {
	// Twice the needed span covers late publication; the forecaster rejects gaps.
	start := until.AddDate(0, 0, -2*n)
	rows, err := h.store.Scan(ctx, start, until)
	if err != nil {
		return nil, err
	}

	var (
		obs     []Observation
		skipped int
	)
	for _, row := range rows {
		res := basin.ParseRow(row)
		if res.Err != nil || !strings.EqualFold(res.Volume.BasinName, basinName) {
			continue
		}
		if res.Volume.StorableMWmed == nil {
			skipped++
			continue
		}
		obs = append(obs, Observation{Date: res.Volume.Date, Value: *res.Volume.StorableMWmed})
	}
	if skipped > 0 {
		h.log.Warn("observations without storable ENA skipped", "basin", basinName, "count", skipped)
	}

	if len(obs) > n {
		obs = obs[len(obs)-n:]
	}
	return obs, nil
}
