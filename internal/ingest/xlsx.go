package ingest

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// parseXLSX reads the first sheet: first row is the header, every following
// row is data. Excel-native date cells become date values directly; all
// other cells go through type inference on their formatted text.
func parseXLSX(data []byte) (*tabular.Dataset, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return tabular.New(nil), nil
	}

	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = cell.String()
	}

	ds := tabular.New(header)
	for _, row := range sheet.Rows[1:] {
		rec := make(tabular.Row, len(header))
		for i := range header {
			rec[i] = tabular.Null()
			if i >= len(row.Cells) {
				continue
			}
			cell := row.Cells[i]
			if cell.IsTime() {
				if t, err := cell.GetTime(f.Date1904); err == nil {
					rec[i] = tabular.Date(t)
					continue
				}
			}
			rec[i] = tabular.Infer(cell.String())
		}
		ds.AppendRow(rec)
	}
	return ds, nil
}
