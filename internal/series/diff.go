package series

// Diff1 returns day-over-day deltas of a cumulative sequence. Values are
// truncated to integers first. The baseline before index 0 is zero, so the
// first delta equals the first cumulative value.
func Diff1(values []float64) []int64 {
	out := make([]int64, len(values))
	var prev int64
	for i, v := range values {
		x := int64(v)
		out[i] = x - prev
		prev = x
	}
	return out
}

// WithDiff appends the first difference of metric as a new column, computed
// per region in date order. Missing readings count as zero.
func (t Table) WithDiff(metric, name string) (Table, error) {
	m, err := t.MetricIndex(metric)
	if err != nil {
		return Table{}, err
	}

	byRegion := make(map[string][]int)
	for i, r := range t.Rows {
		byRegion[r.Region] = append(byRegion[r.Region], i)
	}
	deltas := make([]Value, len(t.Rows))
	for _, idx := range byRegion {
		ordered := sortIndicesByDate(t.Rows, idx)
		values := make([]float64, len(ordered))
		for j, i := range ordered {
			values[j] = t.Rows[i].Values[m].Or(0)
		}
		for j, d := range Diff1(values) {
			deltas[ordered[j]] = Some(float64(d))
		}
	}

	return t.appendColumn(name, deltas)
}
