// Package mcp provides a Model Context Protocol server for Verdex.
//
// It exposes the extraction engine (run against a report file or raw text),
// the KPI catalog, and stored run history as MCP tools, plus the catalog and
// recent runs as MCP resources. Supports stdio transport for editor and
// agent hosts.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/document"
	"github.com/verdexhq/verdex/internal/pipeline"
	"github.com/verdexhq/verdex/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Catalog  *catalog.Catalog  // nil means the built-in catalog
	Store    store.Store       // optional; enables run persistence and history tools
	Fallback pipeline.Fallback // optional model fallback for unresolved KPIs
	Version  string            // version string for MCP server info
}

// dbMu serializes MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines, and
// SQLite supports only one writer at a time. A global mutex keeps extraction
// runs and the history reads that follow them correctly ordered.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all Verdex tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Verdex",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	var opts []pipeline.Option
	if cfg.Fallback != nil {
		opts = append(opts, pipeline.WithFallback(cfg.Fallback))
	}
	if cfg.Store != nil {
		opts = append(opts, pipeline.WithStore(cfg.Store))
	}
	pipe := pipeline.New(cat, opts...)

	// Register tools
	registerExtractTool(s, pipe)
	registerExtractTextTool(s, pipe)
	registerKPIsTool(s, cat)

	// Register run history tools when persistence is attached
	if cfg.Store != nil {
		registerRunsTool(s, cfg.Store)
		registerRunGetTool(s, cfg.Store)
		registerStatsTool(s, cfg.Store)
		registerRecentRunsResource(s, cfg.Store)
	}

	// Register resources
	registerCatalogResource(s, cat)

	return s
}

// --- Tools ---

func registerExtractTool(s *server.MCPServer, pipe *pipeline.Pipeline) {
	tool := mcp.NewTool("verdex_extract",
		mcp.WithDescription("Extract the tracked ESG KPIs from a report file (txt, csv, json, pdf, xlsx). Returns one result per catalog KPI with value in the canonical unit, confidence, winning strategy, and source snippet."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the report file to extract from"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError("path is required"), nil
		}

		doc, err := document.Load(ctx, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading document: %v", err)), nil
		}

		rep, err := pipe.Run(ctx, doc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extraction error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(rep, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerExtractTextTool(s *server.MCPServer, pipe *pipeline.Pipeline) {
	tool := mcp.NewTool("verdex_extract_text",
		mcp.WithDescription("Extract the tracked ESG KPIs from raw report text passed inline. Same result shape as verdex_extract."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The report text to extract from"),
		),
		mcp.WithString("id",
			mcp.Description("Document identifier recorded with the run (default: 'mcp-input')"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError("content is required"), nil
		}
		if strings.TrimSpace(content) == "" {
			return mcp.NewToolResultError("content cannot be empty"), nil
		}

		id := "mcp-input"
		if v, err := req.RequireString("id"); err == nil && strings.TrimSpace(v) != "" {
			id = strings.TrimSpace(v)
		}

		rep, err := pipe.Run(ctx, document.FromText(id, content))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extraction error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(rep, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerKPIsTool(s *server.MCPServer, cat *catalog.Catalog) {
	tool := mcp.NewTool("verdex_kpis",
		mcp.WithDescription("List the KPI definitions the engine tracks: canonical name and unit, aliases, trigger keywords, and accepted unit conversions."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("id",
			mcp.Description("Return only the KPI with this id"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if id, err := req.RequireString("id"); err == nil && id != "" {
			k, ok := cat.ByID(id)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("unknown kpi id %q", id)), nil
			}
			data, _ := json.MarshalIndent(k, "", "  ")
			return mcp.NewToolResultText(string(data)), nil
		}

		data, _ := json.MarshalIndent(cat.KPIs(), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRunsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("verdex_runs",
		mcp.WithDescription("List recent extraction runs with per-run extracted and missing KPI counts, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to return (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := 20
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			l := int(limitVal)
			if l > 100 {
				l = 100
			}
			if l > 0 {
				limit = l
			}
		}

		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing runs: %v", err)), nil
		}

		data, _ := json.MarshalIndent(runs, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRunGetTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("verdex_run_get",
		mcp.WithDescription("Fetch one stored extraction run: the merged per-KPI results plus the full candidate audit trail."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Run id as returned by verdex_runs"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		idVal, err := req.RequireFloat("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		id := int64(idVal)

		run, err := st.GetRun(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading run: %v", err)), nil
		}
		if run == nil {
			return mcp.NewToolResultError(fmt.Sprintf("run %d not found", id)), nil
		}

		cands, err := st.RunCandidates(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading candidates: %v", err)), nil
		}
		run.Candidates = cands

		data, _ := json.MarshalIndent(run, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("verdex_stats",
		mcp.WithDescription("Get store statistics: stored runs, result and candidate rows, and database size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}
