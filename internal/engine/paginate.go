package engine

import (
	"sort"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// DefaultPageSize is the fixed table page size of the dashboard.
const DefaultPageSize = 10

// Page describes one slice of a result set.
type Page struct {
	Number     int `json:"number"`
	Size       int `json:"size"`
	TotalRows  int `json:"total_rows"`
	TotalPages int `json:"total_pages"`
}

// Paginate slices the dataset into fixed-size pages. TotalPages is at least
// 1 even for an empty input, and the page number is clamped into
// [1, TotalPages] rather than erroring. Only the last page may be short.
func Paginate(d *tabular.Dataset, pageSize, pageNumber int) (*tabular.Dataset, Page) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := d.Len()
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageNumber > totalPages {
		pageNumber = totalPages
	}

	start := (pageNumber - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	page := Page{
		Number:     pageNumber,
		Size:       pageSize,
		TotalRows:  total,
		TotalPages: totalPages,
	}
	return d.WithRows(append([]tabular.Row(nil), d.Rows[start:end]...)), page
}

// SortByDateDesc returns the dataset stably sorted by the given date column,
// newest first, rows without a parseable date last. Used before paging the
// table screens; an absent column leaves the order untouched.
func SortByDateDesc(d *tabular.Dataset, dateCol string) *tabular.Dataset {
	idx, ok := d.ColumnIndex(dateCol)
	if !ok {
		return d
	}
	rows := append([]tabular.Row(nil), d.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		var ti, tj int64
		hasI, hasJ := false, false
		if idx < len(rows[i]) {
			if t, ok := rows[i][idx].AsDate(); ok {
				ti, hasI = t.Unix(), true
			}
		}
		if idx < len(rows[j]) {
			if t, ok := rows[j][idx].AsDate(); ok {
				tj, hasJ = t.Unix(), true
			}
		}
		if hasI != hasJ {
			return hasI
		}
		return ti > tj
	})
	return d.WithRows(rows)
}
