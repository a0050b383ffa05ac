package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nelhattab/electratrack/internal/tabular"
)

func TestExpiringSoon(t *testing.T) {
	ds := tabular.FromStrings(
		[]string{"Numéro contrat", "Date de fin"},
		[][]string{
			{"C1", "2024-01-20"}, // inside the window
			{"C2", "2024-03-01"}, // past the window
			{"C3", ""},           // no end date
			{"C4", "2024-01-10"}, // already past as-of
			{"C5", "2024-01-15"}, // exactly as-of, inclusive
			{"C6", "2024-02-15"}, // exactly as-of+1mo, exclusive
		},
	)
	asOf := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	got := ExpiringSoon(ds, "Date de fin", asOf)

	require.Equal(t, 2, got.Len())
	id, _ := got.Value(0, "Numéro contrat").AsText()
	assert.Equal(t, "C1", id)
	id, _ = got.Value(1, "Numéro contrat").AsText()
	assert.Equal(t, "C5", id)
}

func TestExpiringSoonMonthEndPinning(t *testing.T) {
	ds := tabular.FromStrings(
		[]string{"Date de fin"},
		[][]string{
			{"2023-02-27"},
			{"2023-02-28"}, // last valid day, exclusive upper bound
			{"2023-03-01"},
		},
	)
	asOf := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	got := ExpiringSoon(ds, "Date de fin", asOf)

	require.Equal(t, 1, got.Len())
	d, _ := got.Value(0, "Date de fin").AsDate()
	assert.Equal(t, time.Date(2023, 2, 27, 0, 0, 0, 0, time.UTC), d)
}

func TestExpiringSoonLeapYear(t *testing.T) {
	ds := tabular.FromStrings(
		[]string{"Date de fin"},
		[][]string{{"2024-02-28"}, {"2024-02-29"}, {"2024-03-01"}},
	)
	asOf := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	got := ExpiringSoon(ds, "Date de fin", asOf)
	assert.Equal(t, 1, got.Len())
}

func TestExpiringSoonAbsentColumn(t *testing.T) {
	ds := tabular.FromStrings([]string{"a"}, [][]string{{"x"}})
	got := ExpiringSoon(ds, "Date de fin", time.Now())
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, ds.Columns, got.Columns)
}

func TestExpiringSoonIgnoresTimeOfDay(t *testing.T) {
	ds := tabular.FromStrings(
		[]string{"Date de fin"},
		[][]string{{"2024-06-10"}},
	)
	asOf := time.Date(2024, 6, 10, 23, 45, 0, 0, time.UTC)
	got := ExpiringSoon(ds, "Date de fin", asOf)
	assert.Equal(t, 1, got.Len())
}
