package ons

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/resilience"
)

var quickBackoff = resilience.BackoffConfig{
	MaxRetries:      1,
	InitialInterval: time.Millisecond,
	MaxInterval:     time.Millisecond,
}

type fakeONS struct {
	srv           *httptest.Server
	metadataCalls atomic.Int32
	csvCalls      atomic.Int32
	manifest      string
	csv           []byte
	csvStatus     int
}

func newFakeONS(t *testing.T) *fakeONS {
	f := &fakeONS{csvStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/3/action/package_show", func(w http.ResponseWriter, r *http.Request) {
		f.metadataCalls.Add(1)
		assert.Equal(t, BasinPackageID, r.URL.Query().Get("id"))
		_, _ = io.WriteString(w, f.manifest)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		f.csvCalls.Add(1)
		w.WriteHeader(f.csvStatus)
		_, _ = w.Write(f.csv)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	f.manifest = fmt.Sprintf(`{"result": {"resources": [
		{"name": "ENA Diario por Bacia - 2022", "format": "CSV", "url": "%[1]s/files/2022.csv"},
		{"name": "ENA Diario por Bacia - 2023", "format": "CSV", "url": "%[1]s/files/2023.csv"},
		{"name": "ENA Diario por Bacia - 2023 (xlsx)", "format": "XLSX", "url": "%[1]s/files/2023.xlsx"}
	]}}`, f.srv.URL)
	return f
}

func (f *fakeONS) client() *Client {
	loc := NewLocator(f.srv.Client(), f.srv.URL+"/api/3/action/package_show", BasinPackageID).WithBackoff(quickBackoff)
	return NewClient(f.srv.Client(), loc).WithBackoff(quickBackoff)
}

func TestLocatePicksFirstMatch(t *testing.T) {
	f := newFakeONS(t)
	loc := NewLocator(f.srv.Client(), f.srv.URL+"/api/3/action/package_show", "").WithBackoff(quickBackoff)

	u, err := loc.Locate(context.Background(), 2023)
	require.NoError(t, err)
	assert.Equal(t, f.srv.URL+"/files/2023.csv", u)
}

func TestFetchYearSuccess(t *testing.T) {
	f := newFakeONS(t)
	f.csv = []byte("nom_bacia;ena_data;ena_armazenavel_bacia_mwmed\nSUDESTE;2023-01-01;1234,5\nSUL;2023-01-02;\n")

	rows, err := f.client().FetchYear(context.Background(), 2023)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "SUDESTE", rows[0].BasinName)
	assert.Equal(t, "2023-01-01", rows[0].Date)
	assert.Equal(t, "1234,5", rows[0].StorableMWmed)
	assert.Equal(t, "", rows[1].StorableMWmed)
	assert.Equal(t, int32(1), f.metadataCalls.Load())
	assert.Equal(t, int32(1), f.csvCalls.Load())
}

func TestFetchYearResourceNotFound(t *testing.T) {
	f := newFakeONS(t)

	_, err := f.client().FetchYear(context.Background(), 2025)
	require.Error(t, err)
	assert.True(t, basin.IsResourceNotFound(err))
	assert.True(t, basin.IsClientError(err))
	assert.Equal(t, "No resource found for year 2025.", err.Error())
	assert.Zero(t, f.csvCalls.Load())
}

func TestLocateMalformedManifest(t *testing.T) {
	f := newFakeONS(t)
	f.manifest = `{"success": true}`

	_, err := f.client().FetchYear(context.Background(), 2023)
	require.Error(t, err)
	assert.True(t, basin.IsClientError(err))
	assert.False(t, basin.IsResourceNotFound(err))
	assert.Contains(t, err.Error(), "Unexpected response format")
}

func TestLocateNetworkError(t *testing.T) {
	f := newFakeONS(t)
	client := f.client()
	f.srv.Close()

	_, err := client.FetchYear(context.Background(), 2023)
	require.Error(t, err)
	assert.True(t, basin.IsClientError(err))
	assert.False(t, basin.IsDataProcessing(err))
	assert.Contains(t, err.Error(), "A network error occurred")
}

func TestFetchYearDownloadFailure(t *testing.T) {
	f := newFakeONS(t)
	f.csvStatus = http.StatusServiceUnavailable

	_, err := f.client().FetchYear(context.Background(), 2023)
	require.Error(t, err)
	assert.True(t, basin.IsDataProcessing(err))
	assert.Contains(t, err.Error(), "Network failure while downloading data for year 2023.")
}

func TestFetchYearParseFailure(t *testing.T) {
	f := newFakeONS(t)
	f.csv = []byte("bacia;data\nSUL;2023-01-01\n")

	_, err := f.client().FetchYear(context.Background(), 2023)
	require.Error(t, err)
	assert.True(t, basin.IsDataProcessing(err))
	assert.Contains(t, err.Error(), "Failed to parse or process data for year 2023.")
}

func TestParseCSV(t *testing.T) {
	t.Run("latin-1 payload", func(t *testing.T) {
		body := []byte("nom_bacia;ena_data\nS\xc3O FRANCISCO;2023-05-01\n")
		rows, err := ParseCSV(body)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "SÃO FRANCISCO", rows[0].BasinName)
	})

	t.Run("bom and column order", func(t *testing.T) {
		body := []byte("\xef\xbb\xbfena_data;nom_bacia\n2023-01-01;SUDESTE\n")
		rows, err := ParseCSV(body)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "SUDESTE", rows[0].BasinName)
	})

	t.Run("ragged record", func(t *testing.T) {
		_, err := ParseCSV([]byte("nom_bacia;ena_data\nSUL;2023-01-01;extra\n"))
		assert.Error(t, err)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := ParseCSV([]byte("nom_bacia;ena_data\nSUL;01/01/2023\n"))
		assert.Error(t, err)
	})
}

func TestReservoirClientFetchYear(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/api/3/action/package_show", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ReservoirPackageID, r.URL.Query().Get("id"))
		fmt.Fprintf(w, `{"result": {"resources": [{"name": "EAR Diario por Reservatorio - 2024", "url": "%s/files/ear_2024.csv"}]}}`, srv.URL)
	})
	mux.HandleFunc("/files/ear_2024.csv", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "nom_reservatorio;nom_bacia;ear_data;ear_reservatorio_percentual\nFURNAS;GRANDE;2024-01-01;55,2\n")
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewReservoirClient(srv.Client(), srv.URL+"/api/3/action/package_show", "").WithBackoff(quickBackoff)
	rows, err := client.FetchYear(context.Background(), 2024)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "FURNAS", rows[0].ReservoirName)
	assert.Equal(t, "GRANDE", rows[0].BasinName)
	assert.Equal(t, "2024-01-01", rows[0].Date)
	assert.Equal(t, "55,2", rows[0].StoredPercent)
}

func TestParseReservoirCSVRequiresReservoirColumns(t *testing.T) {
	_, err := ParseReservoirCSV([]byte("nom_bacia;ena_data\nSUL;2023-01-01\n"))
	assert.Error(t, err)
}
