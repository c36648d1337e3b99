package chart

// PlotlySpec is the argument pair of Plotly.newPlot.
type PlotlySpec struct {
	Data   []PlotlyTrace `json:"data"`
	Layout PlotlyLayout  `json:"layout"`
}

type PlotlyTrace struct {
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Mode       Mode       `json:"mode"`
	X          []string   `json:"x"`
	Y          []*float64 `json:"y"`
	YAxis      string     `json:"yaxis"`
	ShowLegend bool       `json:"showlegend"`
}

type PlotlyTitle struct {
	Text string `json:"text"`
}

type PlotlyAxis struct {
	Title      PlotlyTitle `json:"title"`
	Side       string      `json:"side,omitempty"`
	Overlaying string      `json:"overlaying,omitempty"`
}

type PlotlyLayout struct {
	Title  PlotlyTitle `json:"title"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	XAxis  PlotlyAxis  `json:"xaxis"`
	YAxis  PlotlyAxis  `json:"yaxis"`
	YAxis2 *PlotlyAxis `json:"yaxis2,omitempty"`
}

// Spec lays the figure out for plotly. The second axis, when present, sits
// on the right and overlays the first.
func (f Figure) Spec() PlotlySpec {
	spec := PlotlySpec{
		Layout: PlotlyLayout{
			Title:  PlotlyTitle{Text: f.Title},
			Width:  Width,
			Height: Height,
			XAxis:  PlotlyAxis{Title: PlotlyTitle{Text: f.XTitle}},
		},
		Data: []PlotlyTrace{},
	}
	for a, axis := range f.Axes {
		ref := "y"
		switch a {
		case 0:
			spec.Layout.YAxis = PlotlyAxis{Title: PlotlyTitle{Text: axis.Title}}
		case 1:
			ref = "y2"
			spec.Layout.YAxis2 = &PlotlyAxis{Title: PlotlyTitle{Text: axis.Title}, Side: "right", Overlaying: "y"}
		}
		for _, tr := range axis.Traces {
			spec.Data = append(spec.Data, PlotlyTrace{
				Type:       "scatter",
				Name:       tr.Name,
				Mode:       tr.Mode,
				X:          tr.X,
				Y:          tr.Y,
				YAxis:      ref,
				ShowLegend: true,
			})
		}
	}
	return spec
}
