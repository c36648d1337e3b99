package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	datasetsURI      = "covid19://datasets"
	datasetURIPrefix = "covid19://dataset/"
	summarySuffix    = "/summary"
)

func (s *Server) registerResources() {
	// ── covid19://datasets ─────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		datasetsURI,
		"All Datasets",
		mcp.WithMIMEType("application/json"),
	), s.handleDatasetsResource)

	// ── covid19://dataset/{name}/summary ───────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			datasetURIPrefix+"{name}"+summarySuffix,
			"Dataset summary series",
		),
		s.handleSummaryResource,
	)
}

func (s *Server) handleDatasetsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	type datasetSummary struct {
		Name  string `json:"name"`
		Label string `json:"label"`
	}
	var summaries []datasetSummary
	for _, ds := range s.reports.Datasets() {
		summaries = append(summaries, datasetSummary{Name: ds.Name, Label: ds.Label})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      datasetsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSummaryResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	name := datasetFromURI(uri)
	if name == "" {
		return nil, fmt.Errorf("could not extract dataset from URI: %s", uri)
	}

	r, err := s.reports.Report(ctx, name)
	if err != nil {
		return nil, err
	}
	data, _ := json.MarshalIndent(tableRows(r.Summary, 0), "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// datasetFromURI extracts the name from "covid19://dataset/{name}/summary".
func datasetFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, datasetURIPrefix)
	if !ok {
		return ""
	}
	name, ok := strings.CutSuffix(rest, summarySuffix)
	if !ok || strings.Contains(name, "/") {
		return ""
	}
	return name
}
