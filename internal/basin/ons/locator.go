// Package ons talks to the open data portal of the national grid operator
// (ONS): it resolves a year to a downloadable resource and fetches and
// normalizes the semicolon-separated basin dataset behind it.
package ons

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/logging"
	"github.com/i474232898/basin-data-api/internal/resilience"
)

const (
	// DefaultAPIURL is the CKAN package_show endpoint of the ONS portal.
	DefaultAPIURL = "https://dados.ons.org.br/api/3/action/package_show"
	// BasinPackageID identifies the daily basin ENA package.
	BasinPackageID = "a0ec7472-1da3-4bb5-b501-5bfd2fdf26a8"
	// ReservoirPackageID identifies the daily reservoir EAR package.
	ReservoirPackageID = "61e92787-9847-4731-8b73-e878eb5bc158"
)

// Locator resolves a year to the URL of its resource in a CKAN package.
type Locator struct {
	apiURL    string
	packageID string
	httpCfg   resilience.HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
	log       *slog.Logger
}

// NewLocator creates a Locator for packageID served at apiURL.
func NewLocator(client *http.Client, apiURL, packageID string) *Locator {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if packageID == "" {
		packageID = BasinPackageID
	}
	return &Locator{
		apiURL:    apiURL,
		packageID: packageID,
		httpCfg: resilience.HTTPClientConfig{
			Client:  client,
			Backoff: resilience.DefaultBackoff,
		},
		circuit: resilience.NewBreaker("ons-metadata"),
		log:     logging.Component("ons-locator"),
	}
}

// WithBackoff overrides the retry schedule of metadata requests.
func (l *Locator) WithBackoff(b resilience.BackoffConfig) *Locator {
	l.httpCfg.Backoff = b
	return l
}

type manifest struct {
	Result *struct {
		Resources *[]struct {
			Name *string `json:"name"`
			URL  *string `json:"url"`
		} `json:"resources"`
	} `json:"result"`
}

// Locate returns the URL of the first resource whose name contains the
// decimal year. It fails with *basin.ResourceNotFoundError when none does
// and with *basin.ClientError on network failure or a malformed manifest.
func (l *Locator) Locate(ctx context.Context, year int) (string, error) {
	l.log.Info("fetching package metadata", "package_id", l.packageID, "year", year)

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("id", l.packageID)
		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", l.apiURL, values.Encode()), nil)
	}

	resp, err := resilience.Do(ctx, l.httpCfg, l.circuit, buildRequest)
	if err != nil {
		return "", basin.NewClientError("A network error occurred while communicating with the ONS API.", err)
	}
	defer resp.Body.Close()

	var payload manifest
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", basin.NewClientError("Unexpected response format from the ONS API.", err)
	}
	if payload.Result == nil || payload.Result.Resources == nil {
		return "", basin.NewClientError("Unexpected response format from the ONS API.", fmt.Errorf("missing result.resources"))
	}

	needle := strconv.Itoa(year)
	for _, res := range *payload.Result.Resources {
		if res.Name == nil {
			return "", basin.NewClientError("Unexpected response format from the ONS API.", fmt.Errorf("resource without name"))
		}
		if !strings.Contains(*res.Name, needle) {
			continue
		}
		if res.URL == nil || *res.URL == "" {
			return "", basin.NewClientError("Unexpected response format from the ONS API.", fmt.Errorf("resource %q without url", *res.Name))
		}
		l.log.Info("found resource", "year", year, "url", *res.URL)
		return *res.URL, nil
	}

	return "", &basin.ResourceNotFoundError{Year: year}
}
