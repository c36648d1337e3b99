package report

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/smpawlowski/covid19/internal/etl"
	"github.com/smpawlowski/covid19/internal/series"
)

// Identity columns of a wide snapshot.
const (
	ColumnCountry     = "Country/Region"
	ColumnSubdivision = "Province/State"
)

// coordinateColumns sit between identity and date columns and are ignored.
var coordinateColumns = []string{"Lat", "Long", "Long_"}

// DecodeWide reads an extracted wide snapshot. Every column that is neither
// identity nor coordinate is a date column, in schema order.
func DecodeWide(b *etl.Batch) (series.WideTable, error) {
	if !b.Schema.Has(ColumnCountry) {
		return series.WideTable{}, &series.MissingColumnError{Column: ColumnCountry}
	}

	var wide series.WideTable
	for _, name := range b.Schema.FieldNames() {
		if name == ColumnCountry || name == ColumnSubdivision || slices.Contains(coordinateColumns, name) {
			continue
		}
		wide.DateHeaders = append(wide.DateHeaders, name)
	}

	wide.Rows = make([]series.WideRow, len(b.Records))
	for i, rec := range b.Records {
		row := series.WideRow{
			Country:     cellString(rec.Data[ColumnCountry]),
			Subdivision: cellString(rec.Data[ColumnSubdivision]),
			Values:      make([]series.Value, len(wide.DateHeaders)),
		}
		for c, h := range wide.DateHeaders {
			v, err := cellValue(h, rec.Data[h])
			if err != nil {
				return series.WideTable{}, fmt.Errorf("row %d: %w", i, err)
			}
			row.Values[c] = v
		}
		wide.Rows[i] = row
	}
	return wide, nil
}

// MetricColumn maps a source column onto a metric name.
type MetricColumn struct {
	Column string `yaml:"column" json:"column"`
	Metric string `yaml:"metric" json:"metric"`
}

// LongColumns names the columns of a long-format snapshot.
type LongColumns struct {
	Date    string         `yaml:"date" json:"date"`
	Region  string         `yaml:"region" json:"region"`
	Metrics []MetricColumn `yaml:"metrics" json:"metrics"`
}

// OpenZHColumns is the layout of the openZH cantonal file.
var OpenZHColumns = LongColumns{
	Date:   "date",
	Region: "abbreviation_canton_and_fl",
	Metrics: []MetricColumn{
		{Column: "ncumul_conf", Metric: Confirmed},
		{Column: "ncumul_deceased", Metric: Dead},
		{Column: "current_hosp", Metric: Hospitalized},
		{Column: "current_icu", Metric: ICU},
		{Column: "ncumul_released", Metric: Released},
	},
}

// DecodeLong reads an extracted long-format snapshot into a table with one
// metric per mapped column. Rows keep their source order.
func DecodeLong(b *etl.Batch, cols LongColumns) (series.Table, error) {
	required := []string{cols.Date, cols.Region}
	metrics := make([]string, len(cols.Metrics))
	for i, mc := range cols.Metrics {
		required = append(required, mc.Column)
		metrics[i] = mc.Metric
	}
	for _, name := range required {
		if !b.Schema.Has(name) {
			return series.Table{}, &series.MissingColumnError{Column: name}
		}
	}

	out := series.Table{Metrics: metrics, Rows: make([]series.Row, len(b.Records))}
	for i, rec := range b.Records {
		region, err := series.RegionKey(cellString(rec.Data[cols.Region]), "")
		if err != nil {
			return series.Table{}, fmt.Errorf("row %d: %w", i, err)
		}
		date, err := cellDate(cols.Date, rec.Data[cols.Date])
		if err != nil {
			return series.Table{}, fmt.Errorf("row %d: %w", i, err)
		}
		values := make([]series.Value, len(cols.Metrics))
		for m, mc := range cols.Metrics {
			if values[m], err = cellValue(mc.Column, rec.Data[mc.Column]); err != nil {
				return series.Table{}, fmt.Errorf("row %d: %w", i, err)
			}
		}
		out.Rows[i] = series.Row{Region: region, Date: date, Values: values}
	}
	return out, nil
}

var errNotFinite = errors.New("not a finite number")

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func cellValue(column string, v any) (series.Value, error) {
	switch x := v.(type) {
	case nil:
		return series.Missing, nil
	case float64:
		if !finite(x) {
			return series.Missing, &series.FormatError{Column: column, Value: cellString(x), Err: errNotFinite}
		}
		return series.Some(x), nil
	case int64:
		return series.Some(float64(x)), nil
	case int:
		return series.Some(float64(x)), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return series.Missing, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return series.Missing, &series.FormatError{Column: column, Value: x, Err: err}
		}
		// ParseFloat accepts "NaN" and "Inf"; counts are always finite.
		if !finite(f) {
			return series.Missing, &series.FormatError{Column: column, Value: x, Err: errNotFinite}
		}
		return series.Some(f), nil
	default:
		return series.Missing, &series.FormatError{Column: column, Value: fmt.Sprint(x), Err: fmt.Errorf("unsupported type %T", v)}
	}
}

// cellDate accepts ISO dates, RFC 3339 timestamps and time values.
func cellDate(column string, v any) (civil.Date, error) {
	switch x := v.(type) {
	case time.Time:
		return civil.DateOf(x), nil
	case string:
		s := strings.TrimSpace(x)
		if d, err := civil.ParseDate(s); err == nil {
			return d, nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return civil.Date{}, &series.FormatError{Column: column, Value: x, Err: err}
		}
		return civil.DateOf(t), nil
	default:
		return civil.Date{}, &series.FormatError{Column: column, Value: cellString(v), Err: fmt.Errorf("not a date")}
	}
}
