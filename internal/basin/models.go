package basin

import (
	"encoding/json"
	"time"

	"github.com/i474232898/basin-data-api/internal/common"
)

// Status is the outcome of ingesting a single year.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
)

// RawRow is a basin record as staged in a partition: every value is kept as
// the string the source feed published, so staging is lossless. Parsing into
// typed values happens on the read path (see ParseRow).
type RawRow struct {
	BasinName          string `parquet:"nom_bacia" json:"nom_bacia"`
	Date               string `parquet:"ena_data" json:"ena_data"`
	GrossMWmed         string `parquet:"ena_bruta_bacia_mwmed" json:"ena_bruta_bacia_mwmed"`
	GrossPercentMLT    string `parquet:"ena_bruta_bacia_percentualmlt" json:"ena_bruta_bacia_percentualmlt"`
	StorableMWmed      string `parquet:"ena_armazenavel_bacia_mwmed" json:"ena_armazenavel_bacia_mwmed"`
	StorablePercentMLT string `parquet:"ena_armazenavel_bacia_percentualmlt" json:"ena_armazenavel_bacia_percentualmlt"`

	// IngestionDate is only stamped on current-year partitions.
	IngestionDate string `parquet:"data_carga_bronze,optional" json:"data_carga_bronze,omitempty"`
}

// BasinVolume is a validated basin record served by the query API.
// Measured quantities are nil when the source value was absent or
// unparseable.
type BasinVolume struct {
	BasinName          string    `json:"nom_bacia"`
	Date               time.Time `json:"-"`
	GrossMWmed         *float64  `json:"ena_bruta_bacia_mwmed"`
	GrossPercentMLT    *float64  `json:"ena_bruta_bacia_percentualmlt"`
	StorableMWmed      *float64  `json:"ena_armazenavel_bacia_mwmed"`
	StorablePercentMLT *float64  `json:"ena_armazenavel_bacia_percentualmlt"`
}

// MarshalJSON renders the observation date as YYYY-MM-DD.
func (v BasinVolume) MarshalJSON() ([]byte, error) {
	type alias BasinVolume
	return json.Marshal(struct {
		alias
		Date string `json:"ena_data"`
	}{alias: alias(v), Date: common.FormatDate(v.Date)})
}

// YearResult is the per-year detail record of an IngestionReport.
type YearResult struct {
	Year         int    `json:"year"`
	Status       Status `json:"status"`
	Detail       string `json:"detail"`
	RowsIngested int    `json:"rows_ingested"`
}

// IngestionSummary aggregates an ingestion request.
type IngestionSummary struct {
	YearsRequested    []int `json:"years_requested"`
	TotalRowsIngested int   `json:"total_rows_ingested"`
}

// IngestionReport is returned by Service.Ingest. Details are in the order
// the years were requested.
type IngestionReport struct {
	Summary IngestionSummary `json:"summary"`
	Details []YearResult     `json:"details"`
}

// PageOf is one page of validated records plus pagination metadata.
type PageOf[T any] struct {
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
	ItemsOnPage int `json:"items_on_page"`
	Items       []T `json:"items"`
}

// Page is one page of validated basin records.
type Page = PageOf[BasinVolume]

// Query selects a page of records whose observation date is in
// [Start, End].
type Query struct {
	Start time.Time
	End   time.Time
	Page  int
	Size  int
}

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)
