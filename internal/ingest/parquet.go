package ingest

import (
	"bytes"
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/rotisserie/eris"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// parseParquet materializes a parquet file into a dataset via the arrow
// reader. Column types map directly onto cell kinds; anything exotic is
// rendered to text and re-inferred.
func parseParquet(data []byte) (*tabular.Dataset, error) {
	rdr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "parquet: open")
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: 4096}, memory.DefaultAllocator)
	if err != nil {
		return nil, eris.Wrap(err, "parquet: arrow reader")
	}
	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		return nil, eris.Wrap(err, "parquet: read table")
	}
	defer tbl.Release()

	header := make([]string, tbl.NumCols())
	for i := range header {
		header[i] = tbl.Schema().Field(i).Name
	}

	cols := make([][]tabular.Value, tbl.NumCols())
	for i := 0; i < int(tbl.NumCols()); i++ {
		col := make([]tabular.Value, 0, tbl.NumRows())
		for _, chunk := range tbl.Column(i).Data().Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				col = append(col, cellValue(chunk, j))
			}
		}
		cols[i] = col
	}

	ds := tabular.New(header)
	for r := 0; r < int(tbl.NumRows()); r++ {
		row := make(tabular.Row, len(header))
		for c := range header {
			if r < len(cols[c]) {
				row[c] = cols[c][r]
			} else {
				row[c] = tabular.Null()
			}
		}
		ds.AppendRow(row)
	}
	return ds, nil
}

func cellValue(arr arrow.Array, i int) tabular.Value {
	if arr.IsNull(i) {
		return tabular.Null()
	}
	switch a := arr.(type) {
	case *array.String:
		return tabular.Infer(a.Value(i))
	case *array.LargeString:
		return tabular.Infer(a.Value(i))
	case *array.Float64:
		return tabular.Number(a.Value(i))
	case *array.Float32:
		return tabular.Number(float64(a.Value(i)))
	case *array.Int64:
		return tabular.Number(float64(a.Value(i)))
	case *array.Int32:
		return tabular.Number(float64(a.Value(i)))
	case *array.Int16:
		return tabular.Number(float64(a.Value(i)))
	case *array.Int8:
		return tabular.Number(float64(a.Value(i)))
	case *array.Uint64:
		return tabular.Number(float64(a.Value(i)))
	case *array.Uint32:
		return tabular.Number(float64(a.Value(i)))
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return tabular.Date(a.Value(i).ToTime(unit))
	case *array.Date32:
		return tabular.Date(a.Value(i).ToTime())
	case *array.Date64:
		return tabular.Date(a.Value(i).ToTime())
	case *array.Boolean:
		if a.Value(i) {
			return tabular.Text("true")
		}
		return tabular.Text("false")
	default:
		return tabular.Infer(arr.ValueStr(i))
	}
}
