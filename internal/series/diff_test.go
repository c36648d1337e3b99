package series_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smpawlowski/covid19/internal/series"
)

func TestDiff1(t *testing.T) {
	assert.Equal(t, []int64{10, 0, 0}, series.Diff1([]float64{10, 10, 10}))
	assert.Equal(t, []int64{3, 2, -1}, series.Diff1([]float64{3.9, 5.2, 4}))
	assert.Empty(t, series.Diff1(nil))
}

func TestDiff1_PrefixSumRoundTrip(t *testing.T) {
	cumulative := []float64{0, 1, 1, 4, 9, 9, 20, 18, 30}
	deltas := series.Diff1(cumulative)
	var sum int64
	for i, d := range deltas {
		sum += d
		assert.Equal(t, int64(cumulative[i]), sum, "index %d", i)
	}
}

func TestWithDiff_PerRegionInDateOrder(t *testing.T) {
	tbl := series.Table{
		Metrics: []string{"CONFIRMED"},
		Rows: []series.Row{
			row(t, "A", "2021-01-02", 5),
			row(t, "B", "2021-01-01", 7),
			row(t, "A", "2021-01-01", 2),
			{Region: "B", Date: day(t, "2021-01-02"), Values: []series.Value{series.Missing}},
		},
	}
	out, err := tbl.WithDiff("CONFIRMED", "NEW_CONFIRMED")
	require.NoError(t, err)
	assert.Equal(t, []string{"CONFIRMED", "NEW_CONFIRMED"}, out.Metrics)
	assert.Equal(t, []float64{3, 7, 2, -7}, floats(t, out, "NEW_CONFIRMED"))

	// input is untouched
	assert.Len(t, tbl.Rows[0].Values, 1)
}

func TestWithDiff_UnknownMetric(t *testing.T) {
	_, err := series.Table{Metrics: []string{"DEAD"}}.WithDiff("CONFIRMED", "NEW")
	var merr *series.MissingColumnError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "CONFIRMED", merr.Column)
}
