package basin

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/i474232898/basin-data-api/internal/common"
)

var (
	errMissingName = errors.New("nom_bacia is required")
	errBadDate     = errors.New("ena_data is not a YYYY-MM-DD date")
)

// RowResult is the tagged outcome of validating one RawRow: either Volume
// is set and Err is nil, or Err says why the row was rejected.
type RowResult struct {
	Volume BasinVolume
	Err    error
}

// ParseRow validates a staged row and converts it into a BasinVolume.
// Basin name and date are required. Measured quantities accept comma or dot
// decimals; anything absent or unparseable becomes nil.
func ParseRow(r RawRow) RowResult {
	name := strings.TrimSpace(r.BasinName)
	if name == "" || IsNullToken(name) {
		return RowResult{Err: errMissingName}
	}

	date, err := common.ParseDate(strings.TrimSpace(r.Date))
	if err != nil {
		return RowResult{Err: fmt.Errorf("%w: %q", errBadDate, r.Date)}
	}

	return RowResult{Volume: BasinVolume{
		BasinName:          name,
		Date:               date,
		GrossMWmed:         ParseDecimal(r.GrossMWmed),
		GrossPercentMLT:    ParseDecimal(r.GrossPercentMLT),
		StorableMWmed:      ParseDecimal(r.StorableMWmed),
		StorablePercentMLT: ParseDecimal(r.StorablePercentMLT),
	}}
}

// ValidateRows parses every row and returns the valid volumes in input
// order together with the rejected results.
func ValidateRows(rows []RawRow) (valid []BasinVolume, rejected []RowResult) {
	valid = make([]BasinVolume, 0, len(rows))
	for _, r := range rows {
		res := ParseRow(r)
		if res.Err != nil {
			rejected = append(rejected, res)
			continue
		}
		valid = append(valid, res.Volume)
	}
	return valid, rejected
}

// ParseDecimal parses a decimal written with either a comma or a dot
// separator ("1234,5" or "1234.5"). It returns nil for empty, null-like,
// non-numeric and non-finite input.
func ParseDecimal(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || IsNullToken(s) {
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// IsNullToken reports whether s is a textual null such as "nan" or "None".
func IsNullToken(s string) bool {
	switch strings.ToLower(s) {
	case "nan", "none", "null", "nat", "<na>":
		return true
	}
	return false
}
