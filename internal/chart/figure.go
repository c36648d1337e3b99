// Package chart turns series tables into plotly figures and HTML pages.
package chart

import (
	"fmt"

	"github.com/smpawlowski/covid19/internal/series"
)

// Figure size in pixels.
const (
	Width  = 1280
	Height = 720
)

// Mode is a plotly scatter mode.
type Mode string

const (
	ModeLines        Mode = "lines"
	ModeMarkers      Mode = "markers"
	ModeLinesMarkers Mode = "lines+markers"
)

// Trace is one plotted metric. A nil Y entry is a gap.
type Trace struct {
	Name string
	Mode Mode
	X    []string
	Y    []*float64
}

// Axis is a y axis with the traces drawn against it.
type Axis struct {
	Title  string
	Traces []Trace
}

// Figure is a time-series chart with a primary and an optional secondary
// y axis.
type Figure struct {
	Title  string
	XTitle string
	Axes   []Axis
}

// AxisSpec selects the metrics drawn on one y axis.
type AxisSpec struct {
	Title   string
	Metrics []string
}

// TimeSeries plots metrics of a single-region table against its dates.
// Rows are expected in date order.
func TimeSeries(t series.Table, title string, specs ...AxisSpec) (Figure, error) {
	if len(specs) == 0 || len(specs) > 2 {
		return Figure{}, fmt.Errorf("chart %q: need one or two y axes, got %d", title, len(specs))
	}

	x := make([]string, t.Len())
	for i, d := range t.Dates() {
		x[i] = d.String()
	}

	fig := Figure{Title: title, XTitle: "DT", Axes: make([]Axis, len(specs))}
	for a, spec := range specs {
		axis := Axis{Title: spec.Title}
		for _, metric := range spec.Metrics {
			col, err := t.Column(metric)
			if err != nil {
				return Figure{}, fmt.Errorf("chart %q: %w", title, err)
			}
			y := make([]*float64, len(col))
			for i, v := range col {
				y[i] = v.Ptr()
			}
			axis.Traces = append(axis.Traces, Trace{Name: metric, Mode: ModeLinesMarkers, X: x, Y: y})
		}
		fig.Axes[a] = axis
	}
	return fig, nil
}
