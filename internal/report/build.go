package report

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smpawlowski/covid19/internal/series"
)

// Metric names.
const (
	Confirmed    = "CONFIRMED"
	Dead         = "DEAD"
	Recovered    = "RECOVERED"
	Active       = "ACTIVE"
	Hospitalized = "HOSPITALIZED"
	ICU          = "ICU"
	Released     = "RELEASED"
	NewConfirmed = "NEW_CONFIRMED"
	NewDead      = "NEW_DEAD"
)

// Options tunes a report build.
type Options struct {
	Label   string // summary region label and title prefix, e.g. "GLOBAL"
	TopN    int    // regions ranked; <= 0 ranks all
	Workers int    // densify parallelism
	Logger  *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// WideLoader fetches the wide snapshot of one metric.
type WideLoader func(ctx context.Context, metric string) (series.WideTable, error)

// GlobalMetrics are the branches of the global report, confirmed first.
var GlobalMetrics = []string{Confirmed, Dead, Recovered}

// BuildGlobal builds the report over the three wide snapshots.
//
// The branches load concurrently. A failed confirmed branch aborts the
// build; a failed deaths or recovered branch is logged and left out, and
// ACTIVE is then not derived. Rows before the first confirmed case are
// dropped.
func BuildGlobal(ctx context.Context, load WideLoader, opts Options) (*Report, error) {
	log := opts.logger()

	tables := make([]series.Table, len(GlobalMetrics))
	errs := make([]error, len(GlobalMetrics))
	var g errgroup.Group
	for i, metric := range GlobalMetrics {
		g.Go(func() error {
			wide, err := load(ctx, metric)
			if err != nil {
				errs[i] = fmt.Errorf("load %s: %w", metric, err)
				return nil
			}
			long, err := series.Reshape(wide, metric)
			if err != nil {
				errs[i] = fmt.Errorf("reshape %s: %w", metric, err)
				return nil
			}
			tables[i] = long.Table()
			return nil
		})
	}
	_ = g.Wait()

	if errs[0] != nil {
		return nil, errs[0]
	}
	present := []series.Table{tables[0]}
	for i := 1; i < len(GlobalMetrics); i++ {
		if errs[i] != nil {
			log.Warn("metric branch omitted", zap.String("metric", GlobalMetrics[i]), zap.Error(errs[i]))
			continue
		}
		present = append(present, tables[i])
	}

	peaks, err := series.TopRegions(tables[0], Confirmed, opts.TopN)
	if err != nil {
		return nil, err
	}

	joined, err := series.Join(present...)
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	joined, err = joined.WherePositive(Confirmed)
	if err != nil {
		return nil, err
	}
	if has(joined, Dead) && has(joined, Recovered) {
		if joined, err = joined.WithActive(Confirmed, Recovered, Dead, Active); err != nil {
			return nil, err
		}
	}

	summary, err := series.GlobalSummary(joined, opts.Label)
	if err != nil {
		return nil, err
	}
	if summary, err = withNewCases(summary); err != nil {
		return nil, err
	}

	log.Debug("global report built",
		zap.Int("rows", joined.Len()),
		zap.Int("regions", len(peaks)),
		zap.Strings("metrics", joined.Metrics),
	)
	return assemble(opts.Label, joined, summary, peaks)
}

// BuildCantonal builds the report over a long-format table of cumulative
// counts. The table is densified first; summary rows with a negative daily
// increase are dropped. Every region is ranked unless TopN limits it.
func BuildCantonal(t series.Table, opts Options) (*Report, error) {
	dense, err := series.Densify(t, series.WithWorkers(opts.Workers))
	if err != nil {
		return nil, fmt.Errorf("densify: %w", err)
	}

	summary, err := series.GlobalSummary(dense, opts.Label)
	if err != nil {
		return nil, err
	}
	if summary, err = withNewCases(summary); err != nil {
		return nil, err
	}
	if summary, err = summary.WhereAtLeast(NewConfirmed, 0); err != nil {
		return nil, err
	}

	peaks, err := series.TopRegions(dense, Confirmed, opts.TopN)
	if err != nil {
		return nil, err
	}

	opts.logger().Debug("cantonal report built",
		zap.Int("input_rows", t.Len()),
		zap.Int("dense_rows", dense.Len()),
		zap.Int("regions", len(peaks)),
	)
	return assemble(opts.Label, dense, summary, peaks)
}

// assemble cuts the per-region tables of the ranked regions out of detail.
func assemble(label string, detail, summary series.Table, peaks []series.RegionPeak) (*Report, error) {
	r := &Report{Label: label, Detail: detail, Summary: summary}
	if last, ok := detail.MaxDate(); ok {
		r.LastReported = last
	}
	for i, p := range peaks {
		t, err := withNewCases(detail.ForRegion(p.Region).SortedByDate())
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", p.Region, err)
		}
		r.Regions = append(r.Regions, RegionReport{Rank: i + 1, Region: p.Region, Peak: p.Peak, Table: t})
	}
	return r, nil
}

// withNewCases appends NEW_CONFIRMED and, when deaths are present, NEW_DEAD.
func withNewCases(t series.Table) (series.Table, error) {
	t, err := t.WithDiff(Confirmed, NewConfirmed)
	if err != nil {
		return series.Table{}, err
	}
	if has(t, Dead) {
		return t.WithDiff(Dead, NewDead)
	}
	return t, nil
}

func has(t series.Table, metric string) bool {
	_, err := t.MetricIndex(metric)
	return err == nil
}
