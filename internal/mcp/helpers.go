package mcpserver

import (
	"github.com/smpawlowski/covid19/internal/series"
)

// seriesRow is the JSON shape of one table row. Missing readings are null.
type seriesRow struct {
	Region string              `json:"region"`
	Date   string              `json:"date"`
	Values map[string]*float64 `json:"values"`
}

// tableRows converts the last n rows of t (all when n <= 0).
func tableRows(t series.Table, n int) []seriesRow {
	rows := t.Rows
	if n > 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	out := make([]seriesRow, len(rows))
	for i, row := range rows {
		values := make(map[string]*float64, len(t.Metrics))
		for m, v := range row.Values {
			values[t.Metrics[m]] = v.Ptr()
		}
		out[i] = seriesRow{Region: row.Region, Date: row.Date.String(), Values: values}
	}
	return out
}
