package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/smpawlowski/covid19/internal/domain"
)

func (s *Server) registerReportTools() {
	s.mcp.AddTool(mcp.NewTool("list_datasets",
		mcp.WithDescription("List the configured datasets with their triggers and last run"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListDatasets)

	s.mcp.AddTool(mcp.NewTool("run_report",
		mcp.WithDescription("Extract, build and publish a dataset. Overwrites the published page and tables."),
		mcp.WithString("dataset", mcp.Description("Dataset name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunReport)

	s.mcp.AddTool(mcp.NewTool("global_summary",
		mcp.WithDescription("Per-date totals of a dataset with daily new cases"),
		mcp.WithString("dataset", mcp.Description("Dataset name"), mcp.Required()),
		mcp.WithNumber("days", mcp.Description("Only the last N dates (optional, all if omitted)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleGlobalSummary)

	s.mcp.AddTool(mcp.NewTool("top_regions",
		mcp.WithDescription("Regions ranked by peak confirmed cases"),
		mcp.WithString("dataset", mcp.Description("Dataset name"), mcp.Required()),
		mcp.WithNumber("n", mcp.Description("Number of regions (default 10)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleTopRegions)

	s.mcp.AddTool(mcp.NewTool("region_series",
		mcp.WithDescription("Daily series of one region"),
		mcp.WithString("dataset", mcp.Description("Dataset name"), mcp.Required()),
		mcp.WithString("region", mcp.Description("Region key, e.g. \"Italy\" or \"Australia - Victoria\""), mcp.Required()),
		mcp.WithNumber("days", mcp.Description("Only the last N dates (optional)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleRegionSeries)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("Recent runs of a dataset, newest first"),
		mcp.WithString("dataset", mcp.Description("Dataset name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListRuns)
}

func requireDataset(req mcp.CallToolRequest) (string, error) {
	name := req.GetString("dataset", "")
	if name == "" {
		return "", fmt.Errorf("dataset is required")
	}
	return name, nil
}

type datasetInfo struct {
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Label    string         `json:"label"`
	Schedule string         `json:"schedule,omitempty"`
	Watch    bool           `json:"watch,omitempty"`
	Running  bool           `json:"running"`
	LastRun  *domain.RunLog `json:"lastRun,omitempty"`
}

func (s *Server) handleListDatasets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var infos []datasetInfo
	for _, ds := range s.reports.Datasets() {
		info := datasetInfo{
			Name:     ds.Name,
			Kind:     string(ds.Kind),
			Label:    ds.Label,
			Schedule: ds.Schedule,
			Watch:    ds.Watch,
			Running:  s.reports.IsRunning(ds.Name),
		}
		if logs, err := s.reports.ListRunLogs(ds.Name); err == nil && len(logs) > 0 {
			info.LastRun = &logs[0]
		}
		infos = append(infos, info)
	}
	return jsonResult(infos)
}

func (s *Server) handleRunReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireDataset(req)
	if err != nil {
		return nil, err
	}
	result, err := s.reports.Run(ctx, name, domain.TriggerManual)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return jsonResult(result)
}

func (s *Server) handleGlobalSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireDataset(req)
	if err != nil {
		return nil, err
	}
	r, err := s.reports.Report(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	return jsonResult(map[string]any{
		"title":        r.SummaryTitle(),
		"lastReported": r.LastReported.String(),
		"rows":         tableRows(r.Summary, req.GetInt("days", 0)),
	})
}

type rankedRegion struct {
	Rank   int     `json:"rank"`
	Region string  `json:"region"`
	Peak   float64 `json:"peakConfirmed"`
	Title  string  `json:"title"`
}

func (s *Server) handleTopRegions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireDataset(req)
	if err != nil {
		return nil, err
	}
	n := req.GetInt("n", 10)
	r, err := s.reports.Report(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	regions := r.Regions
	if n > 0 && len(regions) > n {
		regions = regions[:n]
	}
	out := make([]rankedRegion, len(regions))
	for i, rr := range regions {
		out[i] = rankedRegion{Rank: rr.Rank, Region: rr.Region, Peak: rr.Peak, Title: rr.Title()}
	}
	return jsonResult(out)
}

func (s *Server) handleRegionSeries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireDataset(req)
	if err != nil {
		return nil, err
	}
	region := req.GetString("region", "")
	if region == "" {
		return nil, fmt.Errorf("region is required")
	}
	r, err := s.reports.Report(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}

	// Ranked regions carry new-case columns; fall back to the detail table.
	t := r.Detail.ForRegion(region).SortedByDate()
	if rr, ok := r.Region(region); ok {
		t = rr.Table
	}
	if t.Len() == 0 {
		return textResult(fmt.Sprintf("No rows for region %q in %s", region, name)), nil
	}
	return jsonResult(tableRows(t, req.GetInt("days", 0)))
}

func (s *Server) handleListRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireDataset(req)
	if err != nil {
		return nil, err
	}
	logs, err := s.reports.ListRunLogs(name)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return jsonResult(logs)
}
