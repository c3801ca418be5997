package basin

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/basin-data-api/internal/common"
)

func volumes(n int) []BasinVolume {
	out := make([]BasinVolume, n)
	for i := range out {
		out[i] = BasinVolume{BasinName: fmt.Sprintf("B%02d", i), Date: common.Date(2023, 1, 1)}
	}
	return out
}

func TestPaginate(t *testing.T) {
	items := volumes(25)

	p1 := Paginate(items, 1, 10)
	assert.Equal(t, 25, p1.TotalItems)
	assert.Equal(t, 3, p1.TotalPages)
	assert.Equal(t, 10, p1.ItemsOnPage)
	assert.Equal(t, "B00", p1.Items[0].BasinName)

	p3 := Paginate(items, 3, 10)
	assert.Equal(t, 5, p3.ItemsOnPage)
	assert.Equal(t, "B20", p3.Items[0].BasinName)

	p4 := Paginate(items, 4, 10)
	assert.Equal(t, 0, p4.ItemsOnPage)
	assert.Empty(t, p4.Items)
	assert.Equal(t, 3, p4.TotalPages)
	assert.Equal(t, 4, p4.CurrentPage)
}

func TestPaginateEmpty(t *testing.T) {
	p := Paginate[BasinVolume](nil, 2, 10)
	assert.Zero(t, p.TotalItems)
	assert.Zero(t, p.TotalPages)
	assert.Zero(t, p.ItemsOnPage)
	assert.NotNil(t, p.Items)
}

func TestHistoricalDataScanDropsInvalidRows(t *testing.T) {
	store := newFakeStore()
	store.scanRows = []RawRow{
		{BasinName: "SUDESTE", Date: "2023-01-01", StorablePercentMLT: "40,5"},
		{BasinName: "", Date: "2023-01-02"},
		{BasinName: "SUL", Date: "01/03/2023"},
		{BasinName: "SUL", Date: "2023-01-04", StorablePercentMLT: "nan"},
	}
	rec := &countingRecorder{}
	svc := newTestService(store, newFakeFetcher(), common.Date(2024, 1, 1), WithRecorder(rec))

	page, err := svc.HistoricalData(context.Background(), Query{
		Start: common.Date(2023, 1, 1), End: common.Date(2023, 1, 10), Page: 1, Size: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, page.TotalItems)
	assert.Equal(t, 2, page.ItemsOnPage)
	require.NotNil(t, page.Items[0].StorablePercentMLT)
	assert.InDelta(t, 40.5, *page.Items[0].StorablePercentMLT, 1e-9)
	assert.Nil(t, page.Items[1].StorablePercentMLT)
	assert.Equal(t, 2, rec.skipped)
}

type fakePageSource struct {
	rows  []RawRow
	total int
	calls int
	page  int
	size  int
}

func (f *fakePageSource) FindByDateRange(_ context.Context, _, _ time.Time, page, size int) ([]RawRow, int, error) {
	f.calls++
	f.page, f.size = page, size
	return f.rows, f.total, nil
}

func TestHistoricalDataDelegatedKeepsRawTotal(t *testing.T) {
	src := &fakePageSource{
		rows: []RawRow{
			{BasinName: "SUDESTE", Date: "2023-01-01", GrossMWmed: "100.5"},
			{BasinName: "", Date: "2023-01-02"},
		},
		total: 2,
	}
	svc := newTestService(newFakeStore(), newFakeFetcher(), common.Date(2024, 1, 1), WithPageSource(src))

	page, err := svc.HistoricalData(context.Background(), Query{
		Start: common.Date(2023, 1, 1), End: common.Date(2023, 1, 10), Page: 2, Size: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, page.TotalItems)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 1, page.ItemsOnPage)
	assert.Equal(t, "SUDESTE", page.Items[0].BasinName)
	assert.Equal(t, 2, src.page)
	assert.Equal(t, 5, src.size)
}

func TestHistoricalDataDelegatedEmpty(t *testing.T) {
	src := &fakePageSource{}
	svc := newTestService(newFakeStore(), newFakeFetcher(), common.Date(2024, 1, 1), WithPageSource(src))

	page, err := svc.HistoricalData(context.Background(), Query{
		Start: common.Date(2023, 1, 1), End: common.Date(2023, 1, 31), Page: 1, Size: 10,
	})
	require.NoError(t, err)
	assert.Zero(t, page.TotalItems)
	assert.Empty(t, page.Items)
}

func TestHistoricalDataValidatesQuery(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeFetcher(), common.Date(2024, 1, 1))
	ctx := context.Background()
	start, end := common.Date(2023, 1, 1), common.Date(2023, 1, 31)

	_, err := svc.HistoricalData(ctx, Query{Start: end, End: start, Page: 1, Size: 10})
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = svc.HistoricalData(ctx, Query{Start: start, End: end, Page: 0, Size: 10})
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = svc.HistoricalData(ctx, Query{Start: start, End: end, Page: 1, Size: 1001})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestBasinVolumeJSON(t *testing.T) {
	v := 12.5
	data, err := json.Marshal(BasinVolume{BasinName: "SUL", Date: common.Date(2023, 3, 9), StorableMWmed: &v})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "SUL", got["nom_bacia"])
	assert.Equal(t, "2023-03-09", got["ena_data"])
	assert.Equal(t, 12.5, got["ena_armazenavel_bacia_mwmed"])
	assert.Nil(t, got["ena_bruta_bacia_mwmed"])
}
