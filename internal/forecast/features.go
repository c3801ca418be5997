// Package forecast runs a recursive daily forecast of a basin's storable
// energy over a fixed-length sliding window of engineered features.
package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/i474232898/basin-data-api/internal/common"
)

// MaxLag is the largest lag offset; a feature vector needs MaxLag prior
// values.
const MaxLag = 60

const harmonics = 4

var (
	lagOffsets    = []int{7, 14, 30, 60}
	rollingWidths = []int{7, 30}
)

// Columns is the feature order the model was trained with.
var Columns = []string{
	"ena_armazenavel",
	"sin_1", "cos_1", "sin_2", "cos_2", "sin_3", "cos_3", "sin_4", "cos_4",
	"lag_7", "lag_14", "lag_30", "lag_60",
	"rolling_mean_7", "rolling_mean_30",
}

// Observation is one daily value of the target series.
type Observation struct {
	Date  time.Time
	Value float64
}

// Point is one forecast step.
type Point struct {
	Date  time.Time
	Value float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date  string  `json:"date"`
		Value float64 `json:"value"`
	}{common.FormatDate(p.Date), p.Value})
}

// FeatureVector builds the unscaled feature row for date. series holds
// consecutive daily target values and ends with the value for date itself;
// lags and rolling means are positional over it.
func FeatureVector(date time.Time, series []float64) ([]float64, error) {
	n := len(series)
	if n < MaxLag+1 {
		return nil, fmt.Errorf("feature vector for %s: need %d values, have %d", common.FormatDate(date), MaxLag+1, n)
	}

	vec := make([]float64, 0, len(Columns))
	vec = append(vec, series[n-1])

	doy := float64(date.YearDay())
	for k := 1; k <= harmonics; k++ {
		angle := 2 * math.Pi * float64(k) * doy / 365.25
		vec = append(vec, math.Sin(angle), math.Cos(angle))
	}
	for _, lag := range lagOffsets {
		vec = append(vec, series[n-1-lag])
	}
	for _, width := range rollingWidths {
		vec = append(vec, mean(series[n-width:]))
	}
	return vec, nil
}

// firstGap returns the index of the first observation that is not exactly
// one day after its predecessor, or -1 when obs is a contiguous daily run.
func firstGap(obs []Observation) int {
	for i := 1; i < len(obs); i++ {
		if !obs[i].Date.Equal(obs[i-1].Date.AddDate(0, 0, 1)) {
			return i
		}
	}
	return -1
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
