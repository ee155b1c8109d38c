package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/store"
)

func registerCatalogResource(s *server.MCPServer, cat *catalog.Catalog) {
	resource := mcp.NewResource(
		"verdex://catalog",
		"KPI Catalog",
		mcp.WithResourceDescription("The tracked KPI definitions: canonical names and units, aliases, keywords, and unit conversion factors."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		payload := map[string]interface{}{
			"kpis":  cat.KPIs(),
			"count": cat.Len(),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

func registerRecentRunsResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"verdex://runs/recent",
		"Recent Runs",
		mcp.WithResourceDescription("The ten most recent extraction runs with extracted and missing KPI counts."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		runs, err := st.ListRuns(ctx, 10)
		if err != nil {
			return nil, fmt.Errorf("listing recent runs: %w", err)
		}

		payload := map[string]interface{}{
			"runs":  runs,
			"count": len(runs),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
