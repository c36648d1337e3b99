package series_test

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"

	"github.com/smpawlowski/covid19/internal/series"
)

func day(t testing.TB, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	require.NoError(t, err)
	return d
}

func row(t testing.TB, region, date string, values ...float64) series.Row {
	t.Helper()
	vs := make([]series.Value, len(values))
	for i, v := range values {
		vs[i] = series.Some(v)
	}
	return series.Row{Region: region, Date: day(t, date), Values: vs}
}

func floats(t testing.TB, tbl series.Table, metric string) []float64 {
	t.Helper()
	col, err := tbl.Column(metric)
	require.NoError(t, err)
	out := make([]float64, len(col))
	for i, v := range col {
		require.True(t, v.Valid, "row %d of %s is missing", i, metric)
		out[i] = v.V
	}
	return out
}
