package store

import (
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// Dataset blobs are msgpack-encoded and zstd-compressed. Uploaded tables run
// to tens of thousands of rows of mostly repetitive text, which compresses
// well; msgpack keeps the per-cell kind tag compact.

type wireValue struct {
	Kind uint8   `msgpack:"k"`
	Text string  `msgpack:"t,omitempty"`
	Num  float64 `msgpack:"n,omitempty"`
	Date int64   `msgpack:"d,omitempty"`
}

type wireDataset struct {
	Columns []string      `msgpack:"columns"`
	Version string        `msgpack:"version"`
	Rows    [][]wireValue `msgpack:"rows"`
}

var (
	zstdEnc, _ = zstd.NewWriter(nil)
	zstdDec, _ = zstd.NewReader(nil)
)

func encodeDataset(d *tabular.Dataset) ([]byte, error) {
	w := wireDataset{
		Columns: d.Columns,
		Version: d.Version,
		Rows:    make([][]wireValue, len(d.Rows)),
	}
	for i, row := range d.Rows {
		cells := make([]wireValue, len(row))
		for j, v := range row {
			cells[j] = toWire(v)
		}
		w.Rows[i] = cells
	}

	raw, err := msgpack.Marshal(&w)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode dataset")
	}
	return zstdEnc.EncodeAll(raw, nil), nil
}

func decodeDataset(blob []byte) (*tabular.Dataset, error) {
	raw, err := zstdDec.DecodeAll(blob, nil)
	if err != nil {
		return nil, eris.Wrap(err, "store: decompress dataset")
	}
	var w wireDataset
	if err := msgpack.Unmarshal(raw, &w); err != nil {
		return nil, eris.Wrap(err, "store: decode dataset")
	}

	ds := &tabular.Dataset{
		Columns: w.Columns,
		Version: w.Version,
		Rows:    make([]tabular.Row, len(w.Rows)),
	}
	for i, cells := range w.Rows {
		row := make(tabular.Row, len(cells))
		for j, c := range cells {
			row[j] = fromWire(c)
		}
		ds.Rows[i] = row
	}
	return ds, nil
}

func toWire(v tabular.Value) wireValue {
	switch v.Kind() {
	case tabular.KindText:
		s, _ := v.AsText()
		return wireValue{Kind: uint8(tabular.KindText), Text: s}
	case tabular.KindNumber:
		n, _ := v.AsNumber()
		return wireValue{Kind: uint8(tabular.KindNumber), Num: n}
	case tabular.KindDate:
		t, _ := v.AsDate()
		return wireValue{Kind: uint8(tabular.KindDate), Date: t.Unix()}
	default:
		return wireValue{Kind: uint8(tabular.KindNull)}
	}
}

func fromWire(c wireValue) tabular.Value {
	switch tabular.Kind(c.Kind) {
	case tabular.KindText:
		return tabular.Text(c.Text)
	case tabular.KindNumber:
		return tabular.Number(c.Num)
	case tabular.KindDate:
		return tabular.Date(time.Unix(c.Date, 0).UTC())
	default:
		return tabular.Null()
	}
}
