package engine

import (
	"sort"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// NullKey is the bucket rows with a null grouping cell land in. Grouping
// never drops rows, so counts always add up to the input row count.
const NullKey = "(null)"

// KeyCount is one group-count entry.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// KeySum is one group-sum entry.
type KeySum struct {
	Key string  `json:"key"`
	Sum float64 `json:"sum"`
}

// PairCount is one two-key group-count entry.
type PairCount struct {
	KeyA  string `json:"key_a"`
	KeyB  string `json:"key_b"`
	Count int    `json:"count"`
}

// groupKey renders a cell as a grouping key, mapping null to NullKey.
func groupKey(v tabular.Value) string {
	if s, ok := v.AsText(); ok {
		return s
	}
	return NullKey
}

// GroupSum sums valueCol per distinct value of groupCol, in first-seen key
// order. Null value cells contribute 0. If either column is absent the
// result is empty.
func GroupSum(d *tabular.Dataset, groupCol, valueCol string) []KeySum {
	gi, ok := d.ColumnIndex(groupCol)
	if !ok {
		return nil
	}
	vi, ok := d.ColumnIndex(valueCol)
	if !ok {
		return nil
	}

	sums := make(map[string]float64)
	var order []string
	for _, row := range d.Rows {
		if gi >= len(row) {
			continue
		}
		key := groupKey(row[gi])
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		var v float64
		if vi < len(row) {
			v, _ = row[vi].AsNumber()
		}
		sums[key] += v
	}

	out := make([]KeySum, 0, len(order))
	for _, key := range order {
		out = append(out, KeySum{Key: key, Sum: sums[key]})
	}
	return out
}

// GroupCount counts rows per distinct value of col, in first-seen key order.
func GroupCount(d *tabular.Dataset, col string) []KeyCount {
	idx, ok := d.ColumnIndex(col)
	if !ok {
		return nil
	}
	counts := make(map[string]int)
	var order []string
	for _, row := range d.Rows {
		if idx >= len(row) {
			continue
		}
		key := groupKey(row[idx])
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}
	out := make([]KeyCount, 0, len(order))
	for _, key := range order {
		out = append(out, KeyCount{Key: key, Count: counts[key]})
	}
	return out
}

// GroupCount2 counts rows per (colA, colB) pair, in first-seen pair order.
func GroupCount2(d *tabular.Dataset, colA, colB string) []PairCount {
	ai, ok := d.ColumnIndex(colA)
	if !ok {
		return nil
	}
	bi, ok := d.ColumnIndex(colB)
	if !ok {
		return nil
	}
	type pair struct{ a, b string }
	counts := make(map[pair]int)
	var order []pair
	for _, row := range d.Rows {
		if ai >= len(row) || bi >= len(row) {
			continue
		}
		p := pair{a: groupKey(row[ai]), b: groupKey(row[bi])}
		if counts[p] == 0 {
			order = append(order, p)
		}
		counts[p]++
	}
	out := make([]PairCount, 0, len(order))
	for _, p := range order {
		out = append(out, PairCount{KeyA: p.a, KeyB: p.b, Count: counts[p]})
	}
	return out
}

// Matrix is a rectangular cross-tabulation: Cells[i][j] counts rows whose
// row-column cell is RowKeys[i] and whose col-column cell is ColKeys[j].
// Every (row, col) pair is present, zero-filled when no row contributed.
type Matrix struct {
	RowKeys []string `json:"row_keys"`
	ColKeys []string `json:"col_keys"`
	Cells   [][]int  `json:"cells"`
}

// Total returns the sum of all cells.
func (m *Matrix) Total() int {
	var n int
	for _, row := range m.Cells {
		for _, c := range row {
			n += c
		}
	}
	return n
}

// Cell returns the count at (rowKey, colKey), 0 for unknown keys.
func (m *Matrix) Cell(rowKey, colKey string) int {
	for i, rk := range m.RowKeys {
		if rk != rowKey {
			continue
		}
		for j, ck := range m.ColKeys {
			if ck == colKey {
				return m.Cells[i][j]
			}
		}
	}
	return 0
}

// CrossTab builds the two-dimensional count matrix over two categorical
// columns. Key order is first appearance in the input. Absent columns yield
// an empty matrix.
func CrossTab(d *tabular.Dataset, rowCol, colCol string) *Matrix {
	m := &Matrix{}
	ri, ok := d.ColumnIndex(rowCol)
	if !ok {
		return m
	}
	ci, ok := d.ColumnIndex(colCol)
	if !ok {
		return m
	}

	rowIdx := make(map[string]int)
	colIdx := make(map[string]int)
	type pair struct{ r, c string }
	counts := make(map[pair]int)

	for _, row := range d.Rows {
		if ri >= len(row) || ci >= len(row) {
			continue
		}
		rk := groupKey(row[ri])
		ck := groupKey(row[ci])
		if _, seen := rowIdx[rk]; !seen {
			rowIdx[rk] = len(m.RowKeys)
			m.RowKeys = append(m.RowKeys, rk)
		}
		if _, seen := colIdx[ck]; !seen {
			colIdx[ck] = len(m.ColKeys)
			m.ColKeys = append(m.ColKeys, ck)
		}
		counts[pair{r: rk, c: ck}]++
	}

	m.Cells = make([][]int, len(m.RowKeys))
	for i, rk := range m.RowKeys {
		m.Cells[i] = make([]int, len(m.ColKeys))
		for j, ck := range m.ColKeys {
			m.Cells[i][j] = counts[pair{r: rk, c: ck}]
		}
	}
	return m
}

// YearCount is one year bucket of a time series.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// YearCounts counts rows by the year of dateCol, ascending by year. Rows
// whose cell is null or not a date are left out of the series.
func YearCounts(d *tabular.Dataset, dateCol string) []YearCount {
	idx, ok := d.ColumnIndex(dateCol)
	if !ok {
		return nil
	}
	counts := make(map[int]int)
	for _, row := range d.Rows {
		if idx >= len(row) {
			continue
		}
		if t, ok := row[idx].AsDate(); ok {
			counts[t.Year()]++
		}
	}
	years := make([]int, 0, len(counts))
	for y := range counts {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]YearCount, 0, len(years))
	for _, y := range years {
		out = append(out, YearCount{Year: y, Count: counts[y]})
	}
	return out
}

// monthNames holds the French month labels shown on the monthly chart.
var monthNames = [12]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// MonthCount is one month bucket within the latest year.
type MonthCount struct {
	Month int    `json:"month"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// LatestYearMonthCounts restricts the dataset to its maximum year in dateCol
// and counts rows per month, in calendar order. Months with no rows are
// omitted. The second return is the year the series covers; ok is false when
// no row carries a parseable date.
func LatestYearMonthCounts(d *tabular.Dataset, dateCol string) ([]MonthCount, int, bool) {
	idx, ok := d.ColumnIndex(dateCol)
	if !ok {
		return nil, 0, false
	}
	var latest int
	var found bool
	for _, row := range d.Rows {
		if idx >= len(row) {
			continue
		}
		if t, ok := row[idx].AsDate(); ok {
			if !found || t.Year() > latest {
				latest = t.Year()
				found = true
			}
		}
	}
	if !found {
		return nil, 0, false
	}

	var counts [12]int
	for _, row := range d.Rows {
		if idx >= len(row) {
			continue
		}
		if t, ok := row[idx].AsDate(); ok && t.Year() == latest {
			counts[int(t.Month())-1]++
		}
	}

	var out []MonthCount
	for m := 0; m < 12; m++ {
		if counts[m] > 0 {
			out = append(out, MonthCount{Month: m + 1, Label: monthNames[m], Count: counts[m]})
		}
	}
	return out, latest, true
}

// StatusBreakdown holds the key metrics of the status screen. Percentages
// are over the dataset the breakdown was computed on; an empty dataset
// reports 0 everywhere.
type StatusBreakdown struct {
	Total         int     `json:"total"`
	Active        int     `json:"active"`
	Terminated    int     `json:"terminated"`
	ActivePct     float64 `json:"active_pct"`
	TerminatedPct float64 `json:"terminated_pct"`
}

// Breakdown computes active/terminated counts and shares from the derived
// status column. Datasets without a status column report only the total.
func Breakdown(d *tabular.Dataset) StatusBreakdown {
	b := StatusBreakdown{Total: d.Len()}
	idx, ok := d.ColumnIndex(tabular.ColStatus)
	if !ok || b.Total == 0 {
		return b
	}
	for _, row := range d.Rows {
		if idx >= len(row) {
			continue
		}
		if s, _ := row[idx].AsText(); s == tabular.StatusTerminated {
			b.Terminated++
		} else {
			b.Active++
		}
	}
	b.ActivePct = float64(b.Active) / float64(b.Total) * 100
	b.TerminatedPct = float64(b.Terminated) / float64(b.Total) * 100
	return b
}
