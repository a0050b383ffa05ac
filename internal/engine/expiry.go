package engine

import (
	"time"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// addOneMonth advances a date by one calendar month, pinning to the last
// valid day when the target month is shorter (Jan 31 -> Feb 28/29).
func addOneMonth(t time.Time) time.Time {
	y, m, d := t.Date()
	next := time.Date(y, m+1, d, 0, 0, 0, 0, time.UTC)
	if next.Day() != d {
		// Overflowed into the month after; take that month's last day.
		next = time.Date(y, m+2, 0, 0, 0, 0, 0, time.UTC)
	}
	return next
}

// ExpiringSoon selects rows whose end-date cell is non-null and falls within
// [asOf, asOf+1 month), preserving input order. An absent end-date column
// yields an empty dataset.
func ExpiringSoon(d *tabular.Dataset, endCol string, asOf time.Time) *tabular.Dataset {
	idx, ok := d.ColumnIndex(endCol)
	if !ok {
		return d.WithRows(nil)
	}

	y, m, day := asOf.Date()
	lower := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	upper := addOneMonth(lower)

	var kept []tabular.Row
	for _, row := range d.Rows {
		if idx >= len(row) {
			continue
		}
		end, ok := row[idx].AsDate()
		if !ok {
			continue
		}
		if !end.Before(lower) && end.Before(upper) {
			kept = append(kept, row)
		}
	}
	return d.WithRows(kept)
}
