// Package report assembles the chart datasets: it decodes extracted
// snapshots into series tables, runs the global and cantonal pipelines, and
// lays the results out as figures, pages and export tables.
package report

import (
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/smpawlowski/covid19/internal/chart"
	"github.com/smpawlowski/covid19/internal/etl"
	"github.com/smpawlowski/covid19/internal/series"
)

// Axis titles.
const (
	TotalCasesAxis = "TOTAL CASES"
	NewCasesAxis   = "NEW CASES"
)

// cumulativeOrder is the trace order on the total-cases axis.
var cumulativeOrder = []string{Confirmed, Active, Recovered, Dead, Hospitalized, ICU, Released}

// Report is the output of one dataset build.
type Report struct {
	Label        string
	Summary      series.Table // per-date totals with daily increases
	Detail       series.Table // every region, every date
	Regions      []RegionReport
	LastReported civil.Date
}

// RegionReport is one ranked region.
type RegionReport struct {
	Rank   int
	Region string
	Peak   float64
	Table  series.Table
}

var printer = message.NewPrinter(language.English)

// FormatCount renders a count with thousands separators.
func FormatCount(v float64) string {
	return printer.Sprintf("%d", int64(v))
}

// SummaryTitle is e.g. "GLOBAL CASES: 1,234 CONFIRMED".
func (r *Report) SummaryTitle() string {
	return fmt.Sprintf("%s CASES: %s CONFIRMED", r.Label, FormatCount(peak(r.Summary, Confirmed)))
}

// Title is e.g. "3. Italy: 1,234 CONFIRMED".
func (rr RegionReport) Title() string {
	return fmt.Sprintf("%d. %s: %s CONFIRMED", rr.Rank, rr.Region, FormatCount(rr.Peak))
}

// Region returns the report of one ranked region.
func (r *Report) Region(region string) (RegionReport, bool) {
	i := slices.IndexFunc(r.Regions, func(rr RegionReport) bool { return rr.Region == region })
	if i < 0 {
		return RegionReport{}, false
	}
	return r.Regions[i], true
}

func peak(t series.Table, metric string) float64 {
	col, err := t.Column(metric)
	if err != nil {
		return 0
	}
	var best float64
	for _, v := range col {
		if v.Valid && v.V > best {
			best = v.V
		}
	}
	return best
}

// Figures returns the summary figure followed by one figure per ranked region.
func (r *Report) Figures() ([]chart.Figure, error) {
	figs := make([]chart.Figure, 0, len(r.Regions)+1)
	fig, err := chart.TimeSeries(r.Summary, r.SummaryTitle(), axes(r.Summary)...)
	if err != nil {
		return nil, err
	}
	figs = append(figs, fig)
	for _, rr := range r.Regions {
		fig, err := chart.TimeSeries(rr.Table, rr.Title(), axes(rr.Table)...)
		if err != nil {
			return nil, err
		}
		figs = append(figs, fig)
	}
	return figs, nil
}

func axes(t series.Table) []chart.AxisSpec {
	total := chart.AxisSpec{Title: TotalCasesAxis}
	for _, m := range cumulativeOrder {
		if has(t, m) {
			total.Metrics = append(total.Metrics, m)
		}
	}
	daily := chart.AxisSpec{Title: NewCasesAxis}
	for _, m := range []string{NewConfirmed, NewDead} {
		if has(t, m) {
			daily.Metrics = append(daily.Metrics, m)
		}
	}
	if len(daily.Metrics) == 0 {
		return []chart.AxisSpec{total}
	}
	return []chart.AxisSpec{total, daily}
}

// PageMeta is the static text around a report page.
type PageMeta struct {
	Title   string       `yaml:"title" json:"title"`
	Heading string       `yaml:"heading" json:"heading"`
	Source  *chart.Link  `yaml:"source,omitempty" json:"source,omitempty"`
	Links   []chart.Link `yaml:"links,omitempty" json:"links,omitempty"`
}

// Page lays the report out as an HTML page.
func (r *Report) Page(meta PageMeta, updated time.Time) (chart.Page, error) {
	figs, err := r.Figures()
	if err != nil {
		return chart.Page{}, err
	}
	return chart.Page{
		Title:        meta.Title,
		Heading:      meta.Heading,
		Source:       meta.Source,
		LastReported: r.LastReported.String(),
		Updated:      updated,
		Links:        meta.Links,
		Figures:      figs,
	}, nil
}

// ── Export tables ──────────────────────────────────────────

// Output table names.
const (
	TableSummary = "summary"
	TableRegions = "regions"
	TableRanking = "ranking"
)

// NamedBatch is an export table.
type NamedBatch struct {
	Table string
	Batch *etl.Batch
}

// Batches returns the export tables: the summary, every region row, and the
// ranking.
func (r *Report) Batches() []NamedBatch {
	return []NamedBatch{
		{Table: TableSummary, Batch: TableBatch(r.Summary)},
		{Table: TableRegions, Batch: TableBatch(r.Detail)},
		{Table: TableRanking, Batch: r.rankingBatch()},
	}
}

// TableBatch converts a series table into records with columns region,
// date, then one number column per metric. Missing readings are nil.
func TableBatch(t series.Table) *etl.Batch {
	schema := &etl.Schema{Fields: []etl.Field{
		{Name: "region", Type: etl.TypeText},
		{Name: "date", Type: etl.TypeText},
	}}
	for _, m := range t.Metrics {
		schema.Fields = append(schema.Fields, etl.Field{Name: m, Type: etl.TypeNumber})
	}

	b := &etl.Batch{Schema: schema, Records: make([]etl.Record, len(t.Rows)), RowsRead: len(t.Rows)}
	for i, row := range t.Rows {
		data := make(map[string]any, len(schema.Fields))
		data["region"] = row.Region
		data["date"] = row.Date.String()
		for m, v := range row.Values {
			if v.Valid {
				data[t.Metrics[m]] = v.V
			} else {
				data[t.Metrics[m]] = nil
			}
		}
		b.Records[i] = etl.Record{Data: data}
	}
	return b
}

func (r *Report) rankingBatch() *etl.Batch {
	b := &etl.Batch{Schema: &etl.Schema{Fields: []etl.Field{
		{Name: "rank", Type: etl.TypeNumber},
		{Name: "region", Type: etl.TypeText},
		{Name: "peak_confirmed", Type: etl.TypeNumber},
	}}}
	for _, rr := range r.Regions {
		b.Records = append(b.Records, etl.Record{Data: map[string]any{
			"rank":           float64(rr.Rank),
			"region":         rr.Region,
			"peak_confirmed": rr.Peak,
		}})
	}
	b.RowsRead = len(b.Records)
	return b
}
