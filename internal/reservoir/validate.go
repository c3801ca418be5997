package reservoir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/common"
)

var (
	errMissingName = errors.New("nom_reservatorio is required")
	errBadDate     = errors.New("ear_data is not a YYYY-MM-DD date")
)

// ParseRow validates a staged row. Reservoir name and date are required;
// measured quantities follow basin.ParseDecimal.
func ParseRow(r RawRow) (Volume, error) {
	name := strings.TrimSpace(r.ReservoirName)
	if name == "" || basin.IsNullToken(name) {
		return Volume{}, errMissingName
	}
	date, err := common.ParseDate(strings.TrimSpace(r.Date))
	if err != nil {
		return Volume{}, fmt.Errorf("%w: %q", errBadDate, r.Date)
	}

	return Volume{
		ReservoirName:  name,
		ReservoirType:  strings.TrimSpace(r.ReservoirType),
		BasinName:      strings.TrimSpace(r.BasinName),
		REEName:        strings.TrimSpace(r.REEName),
		SubsystemName:  strings.TrimSpace(r.SubsystemName),
		Date:           date,
		StoredPercent:  basin.ParseDecimal(r.StoredPercent),
		StoredMWmes:    basin.ParseDecimal(r.StoredMWmes),
		MaxStoredMWmes: basin.ParseDecimal(r.MaxStoredMWmes),
	}, nil
}
