package tabular

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the runtime type of a cell value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindDate
)

// String returns the human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// Value is a single cell: text, number, date, or null. The zero value is null.
// Coercion between kinds is explicit; there are no implicit conversions.
type Value struct {
	kind Kind
	text string
	num  float64
	date time.Time
}

// Null returns the null value.
func Null() Value { return Value{} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Date returns a date value truncated to day precision in UTC.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsText coerces the value to text. Numbers render without trailing zeros,
// dates as YYYY-MM-DD. Null yields "" and ok=false.
func (v Value) AsText() (string, bool) {
	switch v.kind {
	case KindText:
		return v.text, true
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64), true
	case KindDate:
		return v.date.Format("2006-01-02"), true
	default:
		return "", false
	}
}

// AsNumber coerces the value to a float64. Text is parsed if it holds a
// number; dates and null yield ok=false.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsDate coerces the value to a date. Text is parsed against the accepted
// layouts; numbers and null yield ok=false.
func (v Value) AsDate() (time.Time, bool) {
	switch v.kind {
	case KindDate:
		return v.date, true
	case KindText:
		t, ok := parseDate(v.text)
		return t, ok
	default:
		return time.Time{}, false
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.num == o.num
	case KindDate:
		return v.date.Equal(o.date)
	default:
		return true
	}
}

// MarshalJSON renders null as JSON null, numbers as JSON numbers, dates as
// YYYY-MM-DD strings, and text as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindDate:
		return json.Marshal(v.date.Format("2006-01-02"))
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// dateLayouts are the layouts accepted when inferring cell types. French
// exports use day-first formats; ISO dates appear in parquet-sourced files.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02/01/2006 15:04:05",
	"02-01-2006",
	time.RFC3339,
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Infer builds a Value from a raw cell string: empty becomes null, then
// date layouts, then number, then text.
func Infer(cell string) Value {
	s := strings.TrimSpace(cell)
	if s == "" {
		return Null()
	}
	if t, ok := parseDate(s); ok {
		return Date(t)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Number(f)
	}
	return Text(s)
}
