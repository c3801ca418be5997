package ons

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"golang.org/x/text/encoding/charmap"

	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/common"
	"github.com/i474232898/basin-data-api/internal/logging"
	"github.com/i474232898/basin-data-api/internal/resilience"
)

// ResourceLocator resolves a year to a download URL.
type ResourceLocator interface {
	Locate(ctx context.Context, year int) (string, error)
}

// Column names of the basin ENA feed.
const (
	ColBasinName          = "nom_bacia"
	ColDate               = "ena_data"
	ColGrossMWmed         = "ena_bruta_bacia_mwmed"
	ColGrossPercentMLT    = "ena_bruta_bacia_percentualmlt"
	ColStorableMWmed      = "ena_armazenavel_bacia_mwmed"
	ColStorablePercentMLT = "ena_armazenavel_bacia_percentualmlt"
)

var errMissingColumn = errors.New("missing expected column")

// Client downloads a year's dataset and normalizes it into staged rows.
// It implements basin.Fetcher.
type Client struct {
	locator ResourceLocator
	httpCfg resilience.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	log     *slog.Logger
}

var _ basin.Fetcher = (*Client)(nil)

// NewClient creates a Client that resolves URLs through locator.
func NewClient(client *http.Client, locator ResourceLocator) *Client {
	return &Client{
		locator: locator,
		httpCfg: resilience.HTTPClientConfig{
			Client:  client,
			Backoff: resilience.DefaultBackoff,
		},
		circuit: resilience.NewBreaker("ons-download"),
		log:     logging.Component("ons-client"),
	}
}

// WithBackoff overrides the retry schedule of downloads.
func (c *Client) WithBackoff(b resilience.BackoffConfig) *Client {
	c.httpCfg.Backoff = b
	return c
}

// FetchYear locates, downloads and parses the basin dataset for year.
// Locator errors are returned as-is; download and parse failures are
// *basin.DataProcessingError.
func (c *Client) FetchYear(ctx context.Context, year int) ([]basin.RawRow, error) {
	return fetchRows(ctx, c, year, ParseCSV)
}

// download locates the resource of year and returns its body.
func (c *Client) download(ctx context.Context, year int) ([]byte, error) {
	csvURL, err := c.locator.Locate(ctx, year)
	if err != nil {
		return nil, err
	}

	c.log.Info("downloading data", "year", year, "url", csvURL)
	resp, err := resilience.Do(ctx, c.httpCfg, c.circuit, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, csvURL, nil)
	})
	if err != nil {
		return nil, &basin.DataProcessingError{
			Year: year,
			Msg:  fmt.Sprintf("Network failure while downloading data for year %d.", year),
			Err:  err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &basin.DataProcessingError{
			Year: year,
			Msg:  fmt.Sprintf("Network failure while downloading data for year %d.", year),
			Err:  err,
		}
	}
	return body, nil
}

func fetchRows[T any](ctx context.Context, c *Client, year int, parse func([]byte) ([]T, error)) ([]T, error) {
	body, err := c.download(ctx, year)
	if err != nil {
		return nil, err
	}

	rows, err := parse(body)
	if err != nil {
		return nil, &basin.DataProcessingError{
			Year: year,
			Msg:  fmt.Sprintf("Failed to parse or process data for year %d.", year),
			Err:  err,
		}
	}

	c.log.Info("data processed", "year", year, "rows", len(rows))
	return rows, nil
}

// ParseCSV parses a semicolon-delimited basin payload. Payloads that are
// not valid UTF-8 are decoded as ISO-8859-1. The date column must be
// YYYY-MM-DD; every other value is kept verbatim. Optional measurement
// columns that are missing stay empty.
func ParseCSV(body []byte) ([]basin.RawRow, error) {
	return parseFeed(body, ColDate, []string{ColBasinName}, func(field func(string) string, date string) basin.RawRow {
		return basin.RawRow{
			BasinName:          field(ColBasinName),
			Date:               date,
			GrossMWmed:         field(ColGrossMWmed),
			GrossPercentMLT:    field(ColGrossPercentMLT),
			StorableMWmed:      field(ColStorableMWmed),
			StorablePercentMLT: field(ColStorablePercentMLT),
		}
	})
}

// parseFeed decodes an ONS CSV payload and builds one T per record. The
// dateColumn and every required column must be present in the header;
// dates are normalised to YYYY-MM-DD before build is called.
func parseFeed[T any](body []byte, dateColumn string, required []string, build func(field func(string) string, date string) T) ([]T, error) {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(body) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
		if err != nil {
			return nil, fmt.Errorf("decode latin-1: %w", err)
		}
		body = decoded
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.Comma = ';'
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range append([]string{dateColumn}, required...) {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w %q", errMissingColumn, col)
		}
	}

	var rows []T
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}

		field := func(col string) string {
			i, ok := index[col]
			if !ok {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		date, err := common.ParseDate(field(dateColumn))
		if err != nil {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, build(field, common.FormatDate(date)))
	}
	return rows, nil
}
