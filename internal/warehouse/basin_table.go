package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/common"
)

// BasinTable serves date-range pages from the silver basin table. It
// implements basin.PageSource.
type BasinTable struct {
	db        *sql.DB
	countSQL  string
	selectSQL string
}

var _ basin.PageSource = (*BasinTable)(nil)

func NewBasinTable(db *sql.DB, table string) (*BasinTable, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return &BasinTable{
		db:       db,
		countSQL: fmt.Sprintf("SELECT count() FROM %s WHERE ena_data BETWEEN ? AND ?", table),
		selectSQL: fmt.Sprintf(`SELECT nom_bacia, ena_data,
       ena_bruta_bacia_mwmed, ena_bruta_bacia_percentualmlt,
       ena_armazenavel_bacia_mwmed, ena_armazenavel_bacia_percentualmlt
FROM %s
WHERE ena_data BETWEEN ? AND ?
ORDER BY ena_data, nom_bacia
LIMIT ? OFFSET ?`, table),
	}, nil
}

// FindByDateRange counts the matching rows, then fetches one page of them.
// The page query is skipped when nothing matches.
func (t *BasinTable) FindByDateRange(ctx context.Context, start, end time.Time, page, size int) ([]basin.RawRow, int, error) {
	from, to := common.FormatDate(start), common.FormatDate(end)

	var total uint64
	if err := t.db.QueryRowContext(ctx, t.countSQL, from, to).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count basin rows: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	rows, err := t.db.QueryContext(ctx, t.selectSQL, from, to, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("query basin rows: %w", err)
	}
	defer rows.Close()

	var out []basin.RawRow
	for rows.Next() {
		var (
			name                       sql.NullString
			date                       sql.NullTime
			gross, grossPct, stor, pct sql.NullFloat64
		)
		if err := rows.Scan(&name, &date, &gross, &grossPct, &stor, &pct); err != nil {
			return nil, 0, fmt.Errorf("scan basin row: %w", err)
		}

		row := basin.RawRow{
			BasinName:          name.String,
			GrossMWmed:         formatFloat(gross),
			GrossPercentMLT:    formatFloat(grossPct),
			StorableMWmed:      formatFloat(stor),
			StorablePercentMLT: formatFloat(pct),
		}
		if date.Valid {
			row.Date = common.FormatDate(date.Time)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate basin rows: %w", err)
	}
	return out, int(total), nil
}

func formatFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}
