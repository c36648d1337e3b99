package config

import (
	"fmt"
	"slices"

	"github.com/robfig/cron/v3"

	"github.com/smpawlowski/covid19/internal/chart"
	"github.com/smpawlowski/covid19/internal/etl"
	"github.com/smpawlowski/covid19/internal/report"
)

// Kind selects the report pipeline of a dataset.
type Kind string

const (
	KindGlobal   Kind = "global"   // one wide snapshot per metric
	KindCantonal Kind = "cantonal" // one long-format snapshot
)

// Dataset is one published report.
type Dataset struct {
	Name     string `yaml:"name"`
	Kind     Kind   `yaml:"kind"`
	Label    string `yaml:"label"`
	TopN     int    `yaml:"top_n"`
	Workers  int    `yaml:"workers"`
	Schedule string `yaml:"schedule"` // cron expression; empty runs on demand only
	Watch    bool   `yaml:"watch"`    // re-run when a csv_file source changes

	// Metrics holds the wide sources of a global dataset, keyed by
	// CONFIRMED, DEAD and RECOVERED.
	Metrics map[string]etl.Job `yaml:"metrics,omitempty"`

	// Source and Columns describe a cantonal dataset.
	Source  *etl.Job           `yaml:"source,omitempty"`
	Columns report.LongColumns `yaml:"columns,omitempty"`

	Page report.PageMeta `yaml:"page"`
}

// Jobs returns every extraction job of the dataset.
func (d *Dataset) Jobs() []etl.Job {
	var jobs []etl.Job
	if d.Source != nil {
		jobs = append(jobs, *d.Source)
	}
	for _, m := range report.GlobalMetrics {
		if job, ok := d.Metrics[m]; ok {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// WatchPaths returns the local files a watched dataset depends on.
func (d *Dataset) WatchPaths() []string {
	if !d.Watch {
		return nil
	}
	var paths []string
	for _, job := range d.Jobs() {
		if job.SourceType != "csv_file" {
			continue
		}
		if p := job.SourceCfg.String("filePath", ""); p != "" && !slices.Contains(paths, p) {
			paths = append(paths, p)
		}
	}
	return paths
}

// Options returns the report build options of the dataset.
func (d *Dataset) Options() report.Options {
	return report.Options{Label: d.Label, TopN: d.TopN, Workers: d.Workers}
}

// Validate checks one dataset.
func (d *Dataset) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("dataset name is required")
	}
	wrap := func(err error) error { return fmt.Errorf("dataset %s: %w", d.Name, err) }

	switch d.Kind {
	case KindGlobal:
		if _, ok := d.Metrics[report.Confirmed]; !ok {
			return wrap(fmt.Errorf("global dataset needs a %s source", report.Confirmed))
		}
		for metric := range d.Metrics {
			if !slices.Contains(report.GlobalMetrics, metric) {
				return wrap(fmt.Errorf("unknown metric source %q", metric))
			}
		}
	case KindCantonal:
		if d.Source == nil {
			return wrap(fmt.Errorf("cantonal dataset needs a source"))
		}
		if d.Columns.Date == "" || d.Columns.Region == "" || len(d.Columns.Metrics) == 0 {
			return wrap(fmt.Errorf("cantonal dataset needs date, region and metric columns"))
		}
		if !slices.ContainsFunc(d.Columns.Metrics, func(m report.MetricColumn) bool { return m.Metric == report.Confirmed }) {
			return wrap(fmt.Errorf("cantonal dataset needs a %s column", report.Confirmed))
		}
	default:
		return wrap(fmt.Errorf("unknown kind %q", d.Kind))
	}

	for _, job := range d.Jobs() {
		if err := etl.ValidateSourceConfig(job.SourceType, job.SourceCfg); err != nil {
			return wrap(err)
		}
		if _, err := etl.BuildTransformers(job.Transforms); err != nil {
			return wrap(err)
		}
	}
	if d.Schedule != "" {
		if _, err := cron.ParseStandard(d.Schedule); err != nil {
			return wrap(fmt.Errorf("invalid schedule %q: %w", d.Schedule, err))
		}
	}
	if d.TopN < 0 {
		return wrap(fmt.Errorf("top_n must not be negative"))
	}
	return nil
}

const jhuBase = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/"

func httpCSV(name, url string) etl.Job {
	return etl.Job{Name: name, SourceType: "http_csv", SourceCfg: etl.SourceConfig{"url": url}}
}

// GlobalDataset is the JHU report: global totals followed by the 75 regions
// with the most confirmed cases.
func GlobalDataset() Dataset {
	return Dataset{
		Name:     "global",
		Kind:     KindGlobal,
		Label:    "GLOBAL",
		TopN:     75,
		Schedule: "0 */6 * * *",
		Metrics: map[string]etl.Job{
			report.Confirmed: httpCSV("jhu-confirmed", jhuBase+"time_series_covid19_confirmed_global.csv"),
			report.Dead:      httpCSV("jhu-deaths", jhuBase+"time_series_covid19_deaths_global.csv"),
			report.Recovered: httpCSV("jhu-recovered", jhuBase+"time_series_covid19_recovered_global.csv"),
		},
		Page: report.PageMeta{
			Title:   "COVID-19 global cases",
			Heading: "Global COVID-19 cases followed by 75 regions with highest number of confirmed cases.",
			Source:  &chart.Link{Label: "Johns Hopkins Coronavirus Resource Center", URL: "https://github.com/CSSEGISandData/COVID-19"},
			Links: []chart.Link{
				{Label: "Switzerland", URL: "ch.html"},
				{Label: "Johns Hopkins map", URL: "https://coronavirus.jhu.edu/map.html"},
				{Label: "Our World In Data trajectories", URL: "https://ourworldindata.org/grapher/covid-confirmed-cases-since-100th-case"},
			},
		},
	}
}

// CantonalDataset is the openZH report over Swiss cantons.
func CantonalDataset() Dataset {
	src := httpCSV("openzh", "https://raw.githubusercontent.com/openZH/covid_19/master/COVID19_Fallzahlen_CH_total_v2.csv")
	return Dataset{
		Name:     "ch",
		Kind:     KindCantonal,
		Label:    "CH",
		Workers:  4,
		Schedule: "30 */6 * * *",
		Source:   &src,
		Columns:  report.OpenZHColumns,
		Page: report.PageMeta{
			Title:   "COVID-19 cases in Switzerland",
			Heading: "COVID-19 cases in Switzerland.",
			Source:  &chart.Link{Label: "openZH", URL: "https://github.com/openZH/covid_19/blob/master/COVID19_Fallzahlen_CH_total_v2.csv"},
			Links:   []chart.Link{{Label: "Global", URL: "global.html"}},
		},
	}
}
