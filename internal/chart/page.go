package chart

import (
	"html/template"
	"io"
	"time"
)

// Link is an anchor rendered on the page.
type Link struct {
	Label string `yaml:"label" json:"label"`
	URL   string `yaml:"url" json:"url"`
}

// Page is one published report page.
type Page struct {
	Title        string
	Heading      string
	Source       *Link
	LastReported string
	Updated      time.Time
	Links        []Link
	Figures      []Figure
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://cdn.plot.ly/plotly-2.35.2.min.js"></script>
<style>
body { font-family: helvetica, sans-serif; }
a { margin-right: 4px; }
</style>
</head>
<body>
<p>{{.Heading}}</p>
{{- with .Source}}
<p>Source: <a target="_blank" href="{{.URL}}">{{.Label}}</a>.</p>
{{- end}}
<p>Last reported date: {{.LastReported}}. Page updated {{.Updated.UTC.Format "2006-01-02 15:04:05 MST"}}.</p>
{{- if .Links}}
<p>{{range .Links}}<a target="_blank" href="{{.URL}}">[{{.Label}}]</a> {{end}}</p>
{{- end}}
{{range $i, $f := .Figures}}<div id="div{{$i}}"></div>
{{end -}}
<script>
{{range $i, $f := .Figures}}{{with $f.Spec}}Plotly.newPlot("div{{$i}}", {{.Data}}, {{.Layout}});
{{end}}{{end -}}
</script>
</body>
</html>
`))

// RenderHTML writes the page with one plotly div per figure.
func RenderHTML(w io.Writer, p Page) error {
	return pageTemplate.Execute(w, p)
}
