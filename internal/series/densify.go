package series

import (
	"math"
	"slices"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"
)

type densifyConfig struct {
	workers int
}

// DensifyOption tunes Densify.
type DensifyOption func(*densifyConfig)

// WithWorkers repairs up to n regions concurrently. Regions share nothing
// but the read-only horizon, so the result does not depend on n.
func WithWorkers(n int) DensifyOption {
	return func(c *densifyConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// Densify fills every region's daily range and enforces non-decreasing
// cumulative values across all metric columns jointly.
//
// Each region runs from its own first observed date up to the latest date of
// the whole table. A missing day is forward-filled with the running carry.
// An observed value that is missing or below the carry is raised to the
// carry; otherwise it becomes the new carry. Carries start at zero.
//
// The result is sorted by date, then region.
func Densify(t Table, opts ...DensifyOption) (Table, error) {
	cfg := densifyConfig{workers: 1}
	for _, o := range opts {
		o(&cfg)
	}
	if err := t.checkShape(); err != nil {
		return Table{}, err
	}
	last, ok := t.MaxDate()
	if !ok {
		return Table{Metrics: t.Metrics}, nil
	}

	regions := t.Regions()
	grouped := make(map[string][]Row, len(regions))
	for _, r := range t.Rows {
		grouped[r.Region] = append(grouped[r.Region], r)
	}

	filled := make([][]Row, len(regions))
	var g errgroup.Group
	g.SetLimit(cfg.workers)
	for i, region := range regions {
		g.Go(func() error {
			rows, err := densifyRegion(region, grouped[region], last, len(t.Metrics))
			filled[i] = rows
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Table{}, err
	}

	out := Table{Metrics: t.Metrics}
	for _, rows := range filled {
		out.Rows = append(out.Rows, rows...)
	}
	slices.SortStableFunc(out.Rows, compareRows)
	return out, nil
}

// densifyRegion folds one region's rows over its daily range with a carry
// per metric. It owns every row it returns.
func densifyRegion(region string, rows []Row, last civil.Date, metrics int) ([]Row, error) {
	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, func(a, b Row) int { return compareDates(a.Date, b.Date) })
	for i := 1; i < len(rows); i++ {
		if rows[i].Date == rows[i-1].Date {
			return nil, &ValidationError{Region: region, Reason: "duplicate observation for " + rows[i].Date.String()}
		}
	}

	start := rows[0].Date
	carry := make([]float64, metrics)
	out := make([]Row, 0, last.DaysSince(start)+1)
	next := 0
	for dt := start; !dt.After(last); dt = dt.AddDays(1) {
		values := make([]Value, metrics)
		if next < len(rows) && rows[next].Date == dt {
			for m, v := range rows[next].Values {
				// A non-finite reading compares false with everything and
				// would break the carry, so it counts as missing.
				if !v.Valid || math.IsNaN(v.V) || math.IsInf(v.V, 0) || v.V < carry[m] {
					values[m] = Some(carry[m])
					continue
				}
				values[m] = v
				carry[m] = v.V
			}
			next++
		} else {
			for m := range values {
				values[m] = Some(carry[m])
			}
		}
		out = append(out, Row{Region: region, Date: dt, Values: values})
	}
	return out, nil
}
