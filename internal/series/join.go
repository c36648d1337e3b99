package series

import (
	"fmt"
	"slices"
)

// Join full-outer-joins tables on (region, date). Every key present in any
// input appears exactly once in the result; metrics absent for a key are
// Missing. Metric names must be distinct across inputs.
//
// The result is ordered by date; keys with equal dates keep first-seen order.
func Join(tables ...Table) (Table, error) {
	var metrics []string
	offsets := make([]int, len(tables))
	for i, t := range tables {
		if err := t.checkShape(); err != nil {
			return Table{}, err
		}
		offsets[i] = len(metrics)
		for _, m := range t.Metrics {
			if slices.Contains(metrics, m) {
				return Table{}, &ValidationError{Reason: fmt.Sprintf("metric %q appears in more than one input", m)}
			}
			metrics = append(metrics, m)
		}
	}

	out := Table{Metrics: metrics}
	index := make(map[key]int)
	for i, t := range tables {
		seen := make(map[key]bool, len(t.Rows))
		for _, r := range t.Rows {
			k := key{region: r.Region, date: r.Date}
			if seen[k] {
				return Table{}, &ValidationError{Region: r.Region, Reason: "duplicate observation for " + r.Date.String()}
			}
			seen[k] = true

			pos, ok := index[k]
			if !ok {
				values := make([]Value, len(metrics))
				pos = len(out.Rows)
				index[k] = pos
				out.Rows = append(out.Rows, Row{Region: r.Region, Date: r.Date, Values: values})
			}
			copy(out.Rows[pos].Values[offsets[i]:], r.Values)
		}
	}

	slices.SortStableFunc(out.Rows, func(a, b Row) int { return compareDates(a.Date, b.Date) })
	return out, nil
}
