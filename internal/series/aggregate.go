package series

import (
	"slices"
	"strings"

	"cloud.google.com/go/civil"
)

// GlobalSummary sums every metric across regions per date. Missing readings
// are skipped; a date where a metric has no reading at all stays Missing.
//
// A date is included only once every region has reported through it: the
// horizon is the minimum over regions of the region's latest date. This keeps
// late-reporting regions from producing an artificial dip in the total.
// Summary rows carry label as their region.
func GlobalSummary(t Table, label string) (Table, error) {
	if err := t.checkShape(); err != nil {
		return Table{}, err
	}
	horizon, ok := reportingHorizon(t)
	if !ok {
		return Table{Metrics: t.Metrics}, nil
	}

	sums := make(map[civil.Date][]Value)
	var dates []civil.Date
	for _, r := range t.Rows {
		if r.Date.After(horizon) {
			continue
		}
		acc, ok := sums[r.Date]
		if !ok {
			acc = make([]Value, len(t.Metrics))
			sums[r.Date] = acc
			dates = append(dates, r.Date)
		}
		for m, v := range r.Values {
			if v.Valid {
				acc[m] = Some(acc[m].V + v.V)
			}
		}
	}
	slices.SortFunc(dates, compareDates)

	out := Table{Metrics: t.Metrics, Rows: make([]Row, len(dates))}
	for i, d := range dates {
		out.Rows[i] = Row{Region: label, Date: d, Values: sums[d]}
	}
	return out, nil
}

// reportingHorizon returns the earliest of the per-region latest dates.
func reportingHorizon(t Table) (civil.Date, bool) {
	latest := make(map[string]civil.Date)
	for _, r := range t.Rows {
		if d, ok := latest[r.Region]; !ok || r.Date.After(d) {
			latest[r.Region] = r.Date
		}
	}
	var horizon civil.Date
	first := true
	for _, d := range latest {
		if first || d.Before(horizon) {
			horizon = d
			first = false
		}
	}
	return horizon, !first
}

// RegionPeak is a region with the peak value of a metric.
type RegionPeak struct {
	Region string
	Peak   float64
}

// TopRegions ranks regions by the peak of metric, highest first, and returns
// the first n (all when n <= 0). Ties are broken by region key. Regions with
// no reading of the metric are left out.
func TopRegions(t Table, metric string, n int) ([]RegionPeak, error) {
	m, err := t.MetricIndex(metric)
	if err != nil {
		return nil, err
	}
	peaks := make(map[string]float64)
	var order []string
	for _, r := range t.Rows {
		v := r.Values[m]
		if !v.Valid {
			continue
		}
		p, ok := peaks[r.Region]
		if !ok {
			order = append(order, r.Region)
		}
		if !ok || v.V > p {
			peaks[r.Region] = v.V
		}
	}

	out := make([]RegionPeak, len(order))
	for i, region := range order {
		out[i] = RegionPeak{Region: region, Peak: peaks[region]}
	}
	slices.SortFunc(out, func(a, b RegionPeak) int {
		switch {
		case a.Peak > b.Peak:
			return -1
		case a.Peak < b.Peak:
			return 1
		}
		return strings.Compare(a.Region, b.Region)
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out, nil
}
