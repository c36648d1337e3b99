package series

import (
	"fmt"
	"slices"
	"strings"

	"cloud.google.com/go/civil"
)

// Observation is one (region, date, value) reading of a single metric.
type Observation struct {
	Region string
	Date   civil.Date
	Value  Value
}

// LongSeries is a single metric in long form. No two rows share a
// (region, date) key.
type LongSeries struct {
	Metric string
	Rows   []Observation
}

// Table lifts the series into a one-metric Table.
func (s LongSeries) Table() Table {
	rows := make([]Row, len(s.Rows))
	for i, o := range s.Rows {
		rows[i] = Row{Region: o.Region, Date: o.Date, Values: []Value{o.Value}}
	}
	return Table{Metrics: []string{s.Metric}, Rows: rows}
}

// Row is one (region, date) key with a value per metric of its Table.
type Row struct {
	Region string
	Date   civil.Date
	Values []Value
}

// Table is a long table keyed by (region, date) with one column per metric.
// It is the shape of densified series and of joined multi-metric tables.
type Table struct {
	Metrics []string
	Rows    []Row
}

type key struct {
	region string
	date   civil.Date
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// MetricIndex returns the column position of a metric.
func (t Table) MetricIndex(metric string) (int, error) {
	i := slices.Index(t.Metrics, metric)
	if i < 0 {
		return -1, &MissingColumnError{Column: metric}
	}
	return i, nil
}

// Column returns the values of one metric in row order.
func (t Table) Column(metric string) ([]Value, error) {
	m, err := t.MetricIndex(metric)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[m]
	}
	return out, nil
}

// Dates returns the row dates in row order.
func (t Table) Dates() []civil.Date {
	out := make([]civil.Date, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Date
	}
	return out
}

// Regions returns the distinct regions in first-seen order.
func (t Table) Regions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.Rows {
		if !seen[r.Region] {
			seen[r.Region] = true
			out = append(out, r.Region)
		}
	}
	return out
}

// ForRegion returns the rows of a single region, in table order.
func (t Table) ForRegion(region string) Table {
	out := Table{Metrics: t.Metrics}
	for _, r := range t.Rows {
		if r.Region == region {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// MaxDate returns the latest date in the table.
func (t Table) MaxDate() (civil.Date, bool) {
	if len(t.Rows) == 0 {
		return civil.Date{}, false
	}
	last := t.Rows[0].Date
	for _, r := range t.Rows[1:] {
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return last, true
}

// SortedByDate returns a copy ordered by date, then region. Ties keep table order.
func (t Table) SortedByDate() Table {
	rows := slices.Clone(t.Rows)
	slices.SortStableFunc(rows, compareRows)
	return Table{Metrics: t.Metrics, Rows: rows}
}

func compareRows(a, b Row) int {
	if c := compareDates(a.Date, b.Date); c != 0 {
		return c
	}
	return strings.Compare(a.Region, b.Region)
}

func compareDates(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

// Where returns the rows for which keep returns true.
func (t Table) Where(keep func(Row) bool) Table {
	out := Table{Metrics: t.Metrics}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// WherePositive drops rows whose metric is missing or not greater than zero.
// These are pre-onset rows with no meaning for an active-case computation.
func (t Table) WherePositive(metric string) (Table, error) {
	m, err := t.MetricIndex(metric)
	if err != nil {
		return Table{}, err
	}
	return t.Where(func(r Row) bool {
		v := r.Values[m]
		return v.Valid && v.V > 0
	}), nil
}

// WhereAtLeast drops rows whose metric is missing or below floor.
func (t Table) WhereAtLeast(metric string, floor float64) (Table, error) {
	m, err := t.MetricIndex(metric)
	if err != nil {
		return Table{}, err
	}
	return t.Where(func(r Row) bool {
		v := r.Values[m]
		return v.Valid && v.V >= floor
	}), nil
}

// WithColumn appends a metric column computed row by row.
func (t Table) WithColumn(name string, compute func(Row) Value) (Table, error) {
	values := make([]Value, len(t.Rows))
	for i, r := range t.Rows {
		values[i] = compute(r)
	}
	return t.appendColumn(name, values)
}

func (t Table) appendColumn(name string, column []Value) (Table, error) {
	if slices.Contains(t.Metrics, name) {
		return Table{}, &ValidationError{Reason: fmt.Sprintf("metric %q already present", name)}
	}
	out := Table{
		Metrics: append(slices.Clone(t.Metrics), name),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		values := make([]Value, len(r.Values)+1)
		copy(values, r.Values)
		values[len(r.Values)] = column[i]
		out.Rows[i] = Row{Region: r.Region, Date: r.Date, Values: values}
	}
	return out, nil
}

// sortIndicesByDate returns idx reordered by the date of the rows they point at.
func sortIndicesByDate(rows []Row, idx []int) []int {
	out := slices.Clone(idx)
	slices.SortStableFunc(out, func(a, b int) int { return compareDates(rows[a].Date, rows[b].Date) })
	return out
}

// WithActive derives confirmed minus recovered minus dead. A row missing any of the
// three gets a missing value.
func (t Table) WithActive(confirmed, recovered, dead, name string) (Table, error) {
	c, err := t.MetricIndex(confirmed)
	if err != nil {
		return Table{}, err
	}
	r, err := t.MetricIndex(recovered)
	if err != nil {
		return Table{}, err
	}
	d, err := t.MetricIndex(dead)
	if err != nil {
		return Table{}, err
	}
	return t.WithColumn(name, func(row Row) Value {
		vc, vr, vd := row.Values[c], row.Values[r], row.Values[d]
		if !vc.Valid || !vr.Valid || !vd.Valid {
			return Missing
		}
		return Some(vc.V - vr.V - vd.V)
	})
}

// checkShape verifies every row carries one value per metric.
func (t Table) checkShape() error {
	for _, r := range t.Rows {
		if len(r.Values) != len(t.Metrics) {
			return &ValidationError{
				Region: r.Region,
				Reason: fmt.Sprintf("row %s has %d values for %d metrics", r.Date, len(r.Values), len(t.Metrics)),
			}
		}
	}
	return nil
}
