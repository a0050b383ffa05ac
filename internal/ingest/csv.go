package ingest

import (
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// parseCSV reads a delimited text file. Agency exports are frequently
// Windows-1252 encoded and semicolon-delimited, so the decoder falls back to
// that charset when the bytes are not valid UTF-8, and the delimiter is
// sniffed from the header line.
func parseCSV(data []byte) (*tabular.Dataset, error) {
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, eris.Wrap(err, "csv: decode windows-1252")
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return tabular.New(nil), nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		rows = append(rows, rec)
	}
	return tabular.FromStrings(header, rows), nil
}

// sniffDelimiter picks ';' when the first line carries more semicolons than
// commas, ',' otherwise.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}
