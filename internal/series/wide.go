package series

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// DateHeaderLayout is the layout of date column headers: month/day/2-digit
// year without zero padding, e.g. "3/7/20".
const DateHeaderLayout = "1/2/06"

// WideTable is a snapshot with one row per geographic unit and one column per
// calendar date. Identity fields precede the date columns.
type WideTable struct {
	DateHeaders []string
	Rows        []WideRow
}

// WideRow is one geographic unit. Values line up with WideTable.DateHeaders.
type WideRow struct {
	Country     string
	Subdivision string
	Values      []Value
}

// ParseDateHeader parses a date column header.
func ParseDateHeader(header string) (civil.Date, error) {
	t, err := time.Parse(DateHeaderLayout, header)
	if err != nil {
		return civil.Date{}, &FormatError{Column: header, Err: err}
	}
	return civil.DateOf(t), nil
}

// Reshape pivots a wide table into long form. Rows are emitted row-major, then
// in column order. Any unparseable or repeated date header, or region key
// collision, aborts the whole table.
func Reshape(wide WideTable, valueName string) (LongSeries, error) {
	dates := make([]civil.Date, len(wide.DateHeaders))
	seen := make(map[civil.Date]string, len(wide.DateHeaders))
	for i, h := range wide.DateHeaders {
		d, err := ParseDateHeader(h)
		if err != nil {
			return LongSeries{}, err
		}
		// The layout also accepts zero padding, so "1/1/21" and "01/01/21"
		// name the same day.
		if prev, dup := seen[d]; dup {
			return LongSeries{}, &FormatError{Column: h, Err: fmt.Errorf("same date as column %q", prev)}
		}
		seen[d] = h
		dates[i] = d
	}

	regions := make([]string, len(wide.Rows))
	firstRow := make(map[string]int, len(wide.Rows))
	for i, row := range wide.Rows {
		region, err := RegionKey(row.Country, row.Subdivision)
		if err != nil {
			return LongSeries{}, err
		}
		if prev, dup := firstRow[region]; dup {
			return LongSeries{}, &ValidationError{
				Region: region,
				Reason: fmt.Sprintf("rows %d and %d collapse to the same region key", prev, i),
			}
		}
		if len(row.Values) != len(dates) {
			return LongSeries{}, &ValidationError{
				Region: region,
				Reason: fmt.Sprintf("row %d has %d values for %d date columns", i, len(row.Values), len(dates)),
			}
		}
		firstRow[region] = i
		regions[i] = region
	}

	out := LongSeries{Metric: valueName, Rows: make([]Observation, 0, len(wide.Rows)*len(dates))}
	for i, row := range wide.Rows {
		for c, d := range dates {
			out.Rows = append(out.Rows, Observation{Region: regions[i], Date: d, Value: row.Values[c]})
		}
	}
	return out, nil
}
