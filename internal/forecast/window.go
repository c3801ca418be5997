package forecast

import "time"

// Window is a fixed-length chronological sequence of scaled feature
// vectors. The last vector belongs to Last().
type Window struct {
	rows [][]float64
	last time.Time
}

// NewWindow takes ownership of rows; last is the date of rows[len(rows)-1].
func NewWindow(rows [][]float64, last time.Time) *Window {
	return &Window{rows: rows, last: last}
}

// Push appends the vector for the day after Last and evicts the oldest one.
func (w *Window) Push(vec []float64) {
	copy(w.rows, w.rows[1:])
	w.rows[len(w.rows)-1] = vec
	w.last = w.last.AddDate(0, 0, 1)
}

func (w *Window) Len() int { return len(w.rows) }

func (w *Window) Last() time.Time { return w.last }

// Rows exposes the vectors, oldest first. Callers must not modify them.
func (w *Window) Rows() [][]float64 { return w.rows }
