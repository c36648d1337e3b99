package series_test

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smpawlowski/covid19/internal/series"
)

func TestDensify_ForwardFillsAndRepairs(t *testing.T) {
	region, err := series.RegionKey("CH", "ZH")
	require.NoError(t, err)

	tbl := series.Table{
		Metrics: []string{"CONFIRMED"},
		Rows: []series.Row{
			row(t, region, "2021-01-01", 10),
			row(t, region, "2021-01-03", 8),
		},
	}
	dense, err := series.Densify(tbl)
	require.NoError(t, err)

	require.Equal(t, 3, dense.Len())
	assert.Equal(t, []string{region}, dense.Regions())
	for i, r := range dense.Rows {
		assert.Equal(t, day(t, "2021-01-01").AddDays(i), r.Date)
	}
	confirmed := floats(t, dense, "CONFIRMED")
	assert.Equal(t, []float64{10, 10, 10}, confirmed)
	assert.Equal(t, []int64{10, 0, 0}, series.Diff1(confirmed))
}

func TestDensify_ExtendsToGlobalLastDate(t *testing.T) {
	tbl := series.Table{
		Metrics: []string{"CONFIRMED", "DEAD"},
		Rows: []series.Row{
			row(t, "A", "2021-01-01", 1, 0),
			row(t, "B", "2021-01-02", 5, 1),
			row(t, "B", "2021-01-04", 6, 2),
		},
	}
	dense, err := series.Densify(tbl)
	require.NoError(t, err)

	a := dense.ForRegion("A")
	require.Equal(t, 4, a.Len())
	assert.Equal(t, []float64{1, 1, 1, 1}, floats(t, a, "CONFIRMED"))

	b := dense.ForRegion("B")
	require.Equal(t, 3, b.Len())
	assert.Equal(t, day(t, "2021-01-02"), b.Rows[0].Date)
	assert.Equal(t, []float64{5, 5, 6}, floats(t, b, "CONFIRMED"))
	assert.Equal(t, []float64{1, 1, 2}, floats(t, b, "DEAD"))
}

func TestDensify_MissingValuesTakeCarry(t *testing.T) {
	tbl := series.Table{
		Metrics: []string{"CONFIRMED", "ICU"},
		Rows: []series.Row{
			{Region: "ZH", Date: day(t, "2021-03-01"), Values: []series.Value{series.Missing, series.Some(4)}},
			{Region: "ZH", Date: day(t, "2021-03-02"), Values: []series.Value{series.Some(7), series.Missing}},
			{Region: "ZH", Date: day(t, "2021-03-03"), Values: []series.Value{series.Some(9), series.Some(3)}},
		},
	}
	dense, err := series.Densify(tbl)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 7, 9}, floats(t, dense, "CONFIRMED"))
	assert.Equal(t, []float64{4, 4, 4}, floats(t, dense, "ICU"))
}

func TestDensify_NonFiniteTakesCarry(t *testing.T) {
	tbl := series.Table{
		Metrics: []string{"CONFIRMED"},
		Rows: []series.Row{
			row(t, "A", "2021-01-01", 10),
			row(t, "A", "2021-01-02", math.NaN()),
			row(t, "A", "2021-01-03", 3),
			row(t, "B", "2021-01-01", 2),
			row(t, "B", "2021-01-02", math.Inf(1)),
			row(t, "B", "2021-01-03", 4),
		},
	}
	dense, err := series.Densify(tbl)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10, 10}, floats(t, dense.ForRegion("A"), "CONFIRMED"))
	assert.Equal(t, []float64{2, 2, 4}, floats(t, dense.ForRegion("B"), "CONFIRMED"))
}

func TestDensify_DoesNotMutateInput(t *testing.T) {
	tbl := series.Table{
		Metrics: []string{"CONFIRMED"},
		Rows: []series.Row{
			row(t, "A", "2021-01-02", 3),
			row(t, "A", "2021-01-01", 5),
		},
	}
	_, err := series.Densify(tbl)
	require.NoError(t, err)
	assert.Equal(t, 3.0, tbl.Rows[0].Values[0].V)
	assert.Equal(t, day(t, "2021-01-02"), tbl.Rows[0].Date)
}

func TestDensify_DuplicateKey(t *testing.T) {
	tbl := series.Table{
		Metrics: []string{"CONFIRMED"},
		Rows: []series.Row{
			row(t, "A", "2021-01-01", 1),
			row(t, "A", "2021-01-01", 2),
		},
	}
	_, err := series.Densify(tbl)
	var verr *series.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "A", verr.Region)
}

func TestDensify_Empty(t *testing.T) {
	dense, err := series.Densify(series.Table{Metrics: []string{"CONFIRMED"}})
	require.NoError(t, err)
	assert.Zero(t, dense.Len())
	assert.Equal(t, []string{"CONFIRMED"}, dense.Metrics)
}

// randomSparse builds a table of noisy cumulative counts with gaps.
func randomSparse(t *testing.T, seed uint64, regions, days int) series.Table {
	rng := rand.New(rand.NewPCG(seed, seed))
	start := day(t, "2020-01-22")
	tbl := series.Table{Metrics: []string{"CONFIRMED", "DEAD"}}
	for r := range regions {
		name := fmt.Sprintf("R%02d", r)
		offset := rng.IntN(days / 2)
		for d := offset; d < days; d++ {
			if rng.IntN(4) == 0 {
				continue
			}
			values := []series.Value{series.Some(float64(rng.IntN(1000))), series.Some(float64(rng.IntN(50)))}
			if rng.IntN(10) == 0 {
				values[1] = series.Missing
			}
			tbl.Rows = append(tbl.Rows, series.Row{Region: name, Date: start.AddDays(d), Values: values})
		}
	}
	return tbl
}

func TestDensify_MonotoneAndDense(t *testing.T) {
	tbl := randomSparse(t, 7, 12, 60)
	last, ok := tbl.MaxDate()
	require.True(t, ok)

	dense, err := series.Densify(tbl)
	require.NoError(t, err)

	for _, region := range tbl.Regions() {
		got := dense.ForRegion(region)
		first := tbl.ForRegion(region).SortedByDate().Rows[0].Date
		require.Equal(t, last.DaysSince(first)+1, got.Len(), region)

		for i := 1; i < got.Len(); i++ {
			prev, cur := got.Rows[i-1], got.Rows[i]
			assert.Equal(t, prev.Date.AddDays(1), cur.Date, region)
			for m := range dense.Metrics {
				require.True(t, cur.Values[m].Valid)
				assert.GreaterOrEqual(t, cur.Values[m].V, prev.Values[m].V, "%s %s", region, cur.Date)
			}
		}
	}
}

func TestDensify_WorkersMatchSerial(t *testing.T) {
	tbl := randomSparse(t, 42, 30, 90)

	serial, err := series.Densify(tbl)
	require.NoError(t, err)
	parallel, err := series.Densify(tbl, series.WithWorkers(8))
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
}
