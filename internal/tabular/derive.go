package tabular

// Derived column names and the status labels shown in the dashboard. The
// French labels are part of the wire contract with the uploaded files.
const (
	ColStatus = "État Contrat"
	ColYear   = "Année"
	ColMonth  = "Mois"

	StatusActive     = "En service"
	StatusTerminated = "Résilié"
)

// WithStatus adds the contract status column: terminated when the
// termination-date cell is non-null, active otherwise. Status is recomputed
// from scratch on each call, never trusted from the source file. If the
// termination column is absent the dataset is returned unchanged and no
// status column exists for downstream consumers.
func WithStatus(d *Dataset, terminationCol string) *Dataset {
	idx, ok := d.ColumnIndex(terminationCol)
	if !ok {
		return d
	}
	return d.WithColumn(ColStatus, func(row int) Value {
		r := d.Rows[row]
		if idx < len(r) && !r[idx].IsNull() {
			return Text(StatusTerminated)
		}
		return Text(StatusActive)
	})
}

// WithYearMonth adds numeric year and month columns extracted from the given
// date column. Cells that are null or fail to parse as a date yield null
// year/month for that row only. If the date column is absent the dataset is
// returned unchanged.
func WithYearMonth(d *Dataset, dateCol string) *Dataset {
	idx, ok := d.ColumnIndex(dateCol)
	if !ok {
		return d
	}
	out := d.WithColumn(ColYear, func(row int) Value {
		r := d.Rows[row]
		if idx >= len(r) {
			return Null()
		}
		if t, ok := r[idx].AsDate(); ok {
			return Number(float64(t.Year()))
		}
		return Null()
	})
	return out.WithColumn(ColMonth, func(row int) Value {
		r := d.Rows[row]
		if idx >= len(r) {
			return Null()
		}
		if t, ok := r[idx].AsDate(); ok {
			return Number(float64(t.Month()))
		}
		return Null()
	})
}
