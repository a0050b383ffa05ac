// Package export serializes datasets into download buffers for the
// dashboard's download buttons: header row first, then data rows, columns in
// schema order. No styling.
package export

import (
	"bytes"
	"encoding/csv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// XLSX writes the dataset as a single-sheet workbook.
func XLSX(d *tabular.Dataset) ([]byte, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Données")
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range d.Columns {
		header.AddCell().SetString(col)
	}

	for _, row := range d.Rows {
		out := sheet.AddRow()
		for i := range d.Columns {
			cell := out.AddCell()
			if i >= len(row) {
				continue
			}
			v := row[i]
			switch v.Kind() {
			case tabular.KindNumber:
				n, _ := v.AsNumber()
				cell.SetFloat(n)
			case tabular.KindDate:
				t, _ := v.AsDate()
				cell.SetDate(t)
			case tabular.KindText:
				s, _ := v.AsText()
				cell.SetString(s)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "export: write workbook")
	}
	return buf.Bytes(), nil
}

// CSV writes the dataset as comma-separated UTF-8 text.
func CSV(d *tabular.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(d.Columns); err != nil {
		return nil, eris.Wrap(err, "export: write header")
	}
	rec := make([]string, len(d.Columns))
	for _, row := range d.Rows {
		for i := range d.Columns {
			rec[i] = ""
			if i < len(row) {
				rec[i], _ = row[i].AsText()
			}
		}
		if err := w.Write(rec); err != nil {
			return nil, eris.Wrap(err, "export: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "export: flush")
	}
	return buf.Bytes(), nil
}
