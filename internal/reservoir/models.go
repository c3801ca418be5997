// Package reservoir ingests and serves the daily stored-energy (EAR)
// dataset of individual reservoirs published by ONS. Each year is kept as
// one flat Parquet object that ingestion replaces.
package reservoir

import (
	"encoding/json"
	"time"

	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/common"
)

// RawRow is a reservoir record as staged in a partition. Values are the
// strings the feed published.
type RawRow struct {
	ReservoirName  string `parquet:"nom_reservatorio" json:"nom_reservatorio"`
	ReservoirType  string `parquet:"tip_reservatorio" json:"tip_reservatorio"`
	BasinName      string `parquet:"nom_bacia" json:"nom_bacia"`
	REEName        string `parquet:"nom_ree" json:"nom_ree"`
	SubsystemName  string `parquet:"nom_subsistema" json:"nom_subsistema"`
	Date           string `parquet:"ear_data" json:"ear_data"`
	StoredPercent  string `parquet:"ear_reservatorio_percentual" json:"ear_reservatorio_percentual"`
	StoredMWmes    string `parquet:"ear_total_mwmes" json:"ear_total_mwmes"`
	MaxStoredMWmes string `parquet:"ear_maxima_total_mwmes" json:"ear_maxima_total_mwmes"`
}

// Volume is a validated reservoir record.
type Volume struct {
	ReservoirName  string    `json:"nom_reservatorio"`
	ReservoirType  string    `json:"tip_reservatorio"`
	BasinName      string    `json:"nom_bacia"`
	REEName        string    `json:"nom_ree"`
	SubsystemName  string    `json:"nom_subsistema"`
	Date           time.Time `json:"-"`
	StoredPercent  *float64  `json:"ear_reservatorio_percentual"`
	StoredMWmes    *float64  `json:"ear_total_mwmes"`
	MaxStoredMWmes *float64  `json:"ear_maxima_total_mwmes"`
}

// MarshalJSON renders the observation date as YYYY-MM-DD.
func (v Volume) MarshalJSON() ([]byte, error) {
	type alias Volume
	return json.Marshal(struct {
		alias
		Date string `json:"ear_data"`
	}{alias: alias(v), Date: common.FormatDate(v.Date)})
}

// Page is one page of validated reservoir records.
type Page = basin.PageOf[Volume]
