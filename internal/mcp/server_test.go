package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smpawlowski/covid19/internal/blob"
	"github.com/smpawlowski/covid19/internal/config"
	"github.com/smpawlowski/covid19/internal/etl"
	"github.com/smpawlowski/covid19/internal/report"
	"github.com/smpawlowski/covid19/internal/service"
)

const openZHCSV = `date,time,abbreviation_canton_and_fl,ncumul_tested,ncumul_conf,current_hosp,current_icu,ncumul_released,ncumul_deceased
2020-03-01,,ZH,,10,2,,,1
2020-03-03,,ZH,,8,3,1,,
2020-03-01,,BE,,5,,,,0
2020-03-02,,BE,,7,,,,0
`

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	inDir, outDir := t.TempDir(), t.TempDir()
	path := filepath.Join(inDir, "ch.csv")
	require.NoError(t, os.WriteFile(path, []byte(openZHCSV), 0o644))

	cfg := config.DefaultConfig()
	cfg.Output.Blob = blob.Config{Driver: blob.DriverFilesystem, Dir: outDir}
	src := etl.Job{Name: "openzh", SourceType: "csv_file", SourceCfg: etl.SourceConfig{"filePath": path}}
	cfg.Datasets = []config.Dataset{{
		Name: "ch", Kind: config.KindCantonal, Label: "CH", Workers: 2,
		Source: &src, Columns: report.OpenZHColumns,
		Page: report.PageMeta{Title: "CH"},
	}}
	require.NoError(t, cfg.Validate())

	logger := zaptest.NewLogger(t)
	outputs, err := service.OpenOutputs(context.Background(), cfg.Output, logger)
	require.NoError(t, err)
	t.Cleanup(func() { outputs.Close() })

	svc := service.NewReportService(cfg, service.Options{Outputs: outputs, Logger: logger})
	return New(svc, logger), outDir
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestListDatasets(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleListDatasets(context.Background(), callTool("list_datasets", nil))
	require.NoError(t, err)

	var infos []datasetInfo
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "ch", infos[0].Name)
	assert.Equal(t, "cantonal", infos[0].Kind)
	assert.False(t, infos[0].Running)
	assert.Nil(t, infos[0].LastRun)
}

func TestRunReportPublishes(t *testing.T) {
	s, outDir := newTestServer(t)

	res, err := s.handleRunReport(context.Background(), callTool("run_report", map[string]any{"dataset": "ch"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"pageKey": "ch.html"`)

	_, err = os.Stat(filepath.Join(outDir, "ch.html"))
	assert.NoError(t, err)

	res, err = s.handleListRuns(context.Background(), callTool("list_runs", map[string]any{"dataset": "ch"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"status": "success"`)
}

func TestTopRegions(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleTopRegions(context.Background(), callTool("top_regions", map[string]any{"dataset": "ch", "n": float64(1)}))
	require.NoError(t, err)

	var regions []rankedRegion
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &regions))
	assert.Equal(t, []rankedRegion{{Rank: 1, Region: "ZH", Peak: 10, Title: "1. ZH: 10 CONFIRMED"}}, regions)
}

func TestGlobalSummary(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleGlobalSummary(context.Background(), callTool("global_summary", map[string]any{"dataset": "ch", "days": float64(1)}))
	require.NoError(t, err)

	var body struct {
		Title        string      `json:"title"`
		LastReported string      `json:"lastReported"`
		Rows         []seriesRow `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &body))
	assert.Equal(t, "CH CASES: 17 CONFIRMED", body.Title)
	assert.Equal(t, "2020-03-03", body.LastReported)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "2020-03-03", body.Rows[0].Date)
}

func TestRegionSeries(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleRegionSeries(ctx, callTool("region_series", map[string]any{"dataset": "ch", "region": "ZH"}))
	require.NoError(t, err)
	var rows []seriesRow
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &rows))
	require.NotEmpty(t, rows)
	assert.Equal(t, "ZH", rows[0].Region)
	assert.Equal(t, "2020-03-01", rows[0].Date)
	require.NotNil(t, rows[0].Values[report.Confirmed])
	assert.Equal(t, 10.0, *rows[0].Values[report.Confirmed])

	res, err = s.handleRegionSeries(ctx, callTool("region_series", map[string]any{"dataset": "ch", "region": "TI"}))
	require.NoError(t, err)
	assert.Equal(t, `No rows for region "TI" in ch`, resultText(t, res))
}

func TestToolArgumentErrors(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleTopRegions(ctx, callTool("top_regions", nil))
	assert.EqualError(t, err, "dataset is required")

	_, err = s.handleRegionSeries(ctx, callTool("region_series", map[string]any{"dataset": "ch"}))
	assert.EqualError(t, err, "region is required")

	_, err = s.handleGlobalSummary(ctx, callTool("global_summary", map[string]any{"dataset": "mars"}))
	assert.ErrorContains(t, err, `unknown dataset "mars"`)
}

func TestSummaryResource(t *testing.T) {
	s, _ := newTestServer(t)

	var req mcp.ReadResourceRequest
	req.Params.URI = "covid19://dataset/ch/summary"
	contents, err := s.handleSummaryResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text := contents[0].(mcp.TextResourceContents)
	assert.Equal(t, req.Params.URI, text.URI)
	assert.Contains(t, text.Text, `"region": "CH"`)
}

func TestDatasetFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"covid19://dataset/global/summary", "global"},
		{"covid19://dataset/ch/summary", "ch"},
		{"covid19://dataset/a/b/summary", ""},
		{"covid19://dataset/ch", ""},
		{"notes://page/x/blocks", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, datasetFromURI(tt.uri), tt.uri)
	}
}
