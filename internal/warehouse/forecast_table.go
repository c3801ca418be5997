package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/i474232898/basin-data-api/internal/forecast"
)

// ForecastTable appends forecast runs to a results table with columns
// (run_id, basin, forecast_date, value, generated_at). It implements
// forecast.Sink.
type ForecastTable struct {
	db        *sql.DB
	insertSQL string
}

var _ forecast.Sink = (*ForecastTable)(nil)

func NewForecastTable(db *sql.DB, table string) (*ForecastTable, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return &ForecastTable{
		db:        db,
		insertSQL: fmt.Sprintf("INSERT INTO %s (run_id, basin, forecast_date, value, generated_at)", table),
	}, nil
}

// Save inserts every point of result as one batch.
func (t *ForecastTable) Save(ctx context.Context, result forecast.Result) (err error) {
	if len(result.Points) == 0 {
		return nil
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin forecast batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, t.insertSQL)
	if err != nil {
		return fmt.Errorf("prepare forecast batch: %w", err)
	}
	defer stmt.Close()

	for _, p := range result.Points {
		if _, err = stmt.ExecContext(ctx, result.RunID, result.Basin, p.Date, p.Value, result.GeneratedAt); err != nil {
			return fmt.Errorf("append forecast point: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit forecast batch: %w", err)
	}
	return nil
}

