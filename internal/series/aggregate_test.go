package series_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smpawlowski/covid19/internal/series"
)

func TestGlobalSummary_Horizon(t *testing.T) {
	tbl := series.Table{
		Metrics: []string{"CONFIRMED"},
		Rows: []series.Row{
			row(t, "A", "2021-01-01", 1),
			row(t, "A", "2021-01-02", 2),
			row(t, "A", "2021-01-03", 3),
			row(t, "A", "2021-01-04", 4),
			row(t, "A", "2021-01-05", 5),
			row(t, "B", "2021-01-01", 10),
			row(t, "B", "2021-01-02", 20),
			row(t, "B", "2021-01-03", 30),
		},
	}
	sum, err := series.GlobalSummary(tbl, "GLOBAL")
	require.NoError(t, err)

	require.Equal(t, 3, sum.Len())
	last, _ := sum.MaxDate()
	assert.Equal(t, day(t, "2021-01-03"), last)
	assert.Equal(t, []float64{11, 22, 33}, floats(t, sum, "CONFIRMED"))
	assert.Equal(t, []string{"GLOBAL"}, sum.Regions())
}

func TestGlobalSummary_MissingValues(t *testing.T) {
	tbl := series.Table{
		Metrics: []string{"CONFIRMED", "RECOVERED"},
		Rows: []series.Row{
			{Region: "A", Date: day(t, "2021-01-01"), Values: []series.Value{series.Some(4), series.Missing}},
			{Region: "B", Date: day(t, "2021-01-01"), Values: []series.Value{series.Some(6), series.Missing}},
		},
	}
	sum, err := series.GlobalSummary(tbl, "GLOBAL")
	require.NoError(t, err)
	require.Equal(t, 1, sum.Len())
	assert.Equal(t, []series.Value{series.Some(10), series.Missing}, sum.Rows[0].Values)
}

func TestGlobalSummary_Empty(t *testing.T) {
	sum, err := series.GlobalSummary(series.Table{Metrics: []string{"CONFIRMED"}}, "GLOBAL")
	require.NoError(t, err)
	assert.Zero(t, sum.Len())
}

func TestTopRegions(t *testing.T) {
	tbl := series.Table{
		Metrics: []string{"CONFIRMED"},
		Rows: []series.Row{
			row(t, "Italy", "2021-01-01", 5),
			row(t, "Italy", "2021-01-02", 50),
			row(t, "Spain", "2021-01-02", 50),
			row(t, "France", "2021-01-01", 80),
			row(t, "Chad", "2021-01-01", 1),
			{Region: "Nowhere", Date: day(t, "2021-01-01"), Values: []series.Value{series.Missing}},
		},
	}

	top, err := series.TopRegions(tbl, "CONFIRMED", 3)
	require.NoError(t, err)
	assert.Equal(t, []series.RegionPeak{
		{Region: "France", Peak: 80},
		{Region: "Italy", Peak: 50},
		{Region: "Spain", Peak: 50},
	}, top)

	all, err := series.TopRegions(tbl, "CONFIRMED", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = series.TopRegions(tbl, "DEAD", 3)
	var merr *series.MissingColumnError
	assert.ErrorAs(t, err, &merr)
}
