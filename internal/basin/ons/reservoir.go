package ons

import (
	"context"
	"net/http"

	"github.com/i474232898/basin-data-api/internal/reservoir"
	"github.com/i474232898/basin-data-api/internal/resilience"
)

// Column names of the reservoir EAR feed.
const (
	ColReservoirName  = "nom_reservatorio"
	ColReservoirType  = "tip_reservatorio"
	ColREEName        = "nom_ree"
	ColSubsystemName  = "nom_subsistema"
	ColReservoirDate  = "ear_data"
	ColStoredPercent  = "ear_reservatorio_percentual"
	ColStoredMWmes    = "ear_total_mwmes"
	ColMaxStoredMWmes = "ear_maxima_total_mwmes"
)

// ReservoirClient fetches the daily reservoir EAR dataset. It implements
// reservoir.Fetcher.
type ReservoirClient struct {
	client *Client
}

var _ reservoir.Fetcher = (*ReservoirClient)(nil)

// NewReservoirClient creates a client for the reservoir package served at
// apiURL. Empty arguments select the public ONS endpoint and
// ReservoirPackageID.
func NewReservoirClient(httpClient *http.Client, apiURL, packageID string) *ReservoirClient {
	if packageID == "" {
		packageID = ReservoirPackageID
	}
	locator := NewLocator(httpClient, apiURL, packageID)
	return &ReservoirClient{client: NewClient(httpClient, locator)}
}

// WithBackoff overrides the retry schedule of metadata and download requests.
func (c *ReservoirClient) WithBackoff(b resilience.BackoffConfig) *ReservoirClient {
	if l, ok := c.client.locator.(*Locator); ok {
		l.WithBackoff(b)
	}
	c.client.WithBackoff(b)
	return c
}

// FetchYear locates, downloads and parses the reservoir dataset for year.
func (c *ReservoirClient) FetchYear(ctx context.Context, year int) ([]reservoir.RawRow, error) {
	return fetchRows(ctx, c.client, year, ParseReservoirCSV)
}

// ParseReservoirCSV parses a semicolon-delimited reservoir payload with the
// same encoding rules as ParseCSV.
func ParseReservoirCSV(body []byte) ([]reservoir.RawRow, error) {
	return parseFeed(body, ColReservoirDate, []string{ColReservoirName}, func(field func(string) string, date string) reservoir.RawRow {
		return reservoir.RawRow{
			ReservoirName:  field(ColReservoirName),
			ReservoirType:  field(ColReservoirType),
			BasinName:      field(ColBasinName),
			REEName:        field(ColREEName),
			SubsystemName:  field(ColSubsystemName),
			Date:           date,
			StoredPercent:  field(ColStoredPercent),
			StoredMWmes:    field(ColStoredMWmes),
			MaxStoredMWmes: field(ColMaxStoredMWmes),
		}
	})
}
