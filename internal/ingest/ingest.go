// Package ingest turns uploaded spreadsheet and columnar files into tabular
// datasets. It is the only place in the system where a load can fail; every
// failure is reported as a ParseError alongside an empty (never nil) dataset
// so downstream code needs no nil checks.
package ingest

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// ErrorKind classifies why a file could not be loaded.
type ErrorKind string

const (
	// ErrUnsupported means the file extension is not one we parse.
	ErrUnsupported ErrorKind = "unsupported"
	// ErrCorrupt means the file claimed a supported format but failed to parse.
	ErrCorrupt ErrorKind = "corrupt"
	// ErrEmpty means the file parsed but yielded no data rows.
	ErrEmpty ErrorKind = "empty"
)

// ParseError is the typed ingestion failure surfaced at the upload boundary.
type ParseError struct {
	Kind ErrorKind
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest: %s file %q: %v", e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("ingest: %s file %q", e.Kind, e.Name)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads the file and builds a dataset, dispatching on the extension.
// Supported formats: .xlsx, .parquet, .csv. The returned dataset is empty
// (not nil) whenever an error is returned.
func Parse(name string, r io.Reader) (*tabular.Dataset, error) {
	empty := tabular.New(nil)

	data, err := io.ReadAll(r)
	if err != nil {
		return empty, &ParseError{Kind: ErrCorrupt, Name: name, Err: eris.Wrap(err, "ingest: read upload")}
	}

	var ds *tabular.Dataset
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		ds, err = parseXLSX(data)
	case ".parquet":
		ds, err = parseParquet(data)
	case ".csv":
		ds, err = parseCSV(data)
	default:
		return empty, &ParseError{Kind: ErrUnsupported, Name: name}
	}
	if err != nil {
		return empty, &ParseError{Kind: ErrCorrupt, Name: name, Err: err}
	}
	if ds.Empty() {
		return ds, &ParseError{Kind: ErrEmpty, Name: name}
	}
	return ds, nil
}
