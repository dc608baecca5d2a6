// Package mcpadapter exposes query analysis and routed retrieval as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
	"github.com/kirillkom/regulation-rag/internal/core/ports"
	"github.com/kirillkom/regulation-rag/internal/core/retrieval"
)

const (
	ToolAnalyzeQuery      = "analyze_query"
	ToolRetrieveProvision = "retrieve_provisions"

	maxK = 50
)

type RouteService interface {
	Route(ctx context.Context, query string, k int) retrieval.Resolution
}

type Tools struct {
	analyzer ports.QueryAnalyzer
	routes   RouteService
	defaultK int
	logger   *slog.Logger
}

func NewTools(analyzer ports.QueryAnalyzer, routes RouteService, defaultK int, logger *slog.Logger) *Tools {
	if defaultK <= 0 {
		defaultK = retrieval.DefaultFinalK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{analyzer: analyzer, routes: routes, defaultK: defaultK, logger: logger}
}

// NewServer builds an MCP server with both tools registered.
func NewServer(name, version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool(ToolAnalyzeQuery,
		mcp.WithDescription("Classify a regulation question into its structural intent (recital, article, section, chapter, comparison, conceptual)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The user question.")),
	), tools.AnalyzeQuery)

	s.AddTool(mcp.NewTool(ToolRetrieveProvision,
		mcp.WithDescription("Retrieve the regulation chunks that answer a question, routed by its structural intent."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The user question.")),
		mcp.WithNumber("k", mcp.Description("Maximum number of chunks to return.")),
	), tools.RetrieveProvisions)

	return s
}

func (t *Tools) AnalyzeQuery(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	analysis, err := t.analyzer.Analyze(query)
	if err != nil {
		t.logger.Error("mcp analyze failed", "error", err)
		analysis = domain.GeneralAnalysis(query, 0.3)
	}
	return jsonResult(analysis)
}

type retrieveResult struct {
	Analysis     domain.QueryAnalysis   `json:"analysis"`
	Handler      string                 `json:"handler"`
	FallbackUsed bool                   `json:"fallback_used"`
	Degraded     bool                   `json:"degraded"`
	Chunks       []domain.DocumentChunk `json:"chunks"`
}

func (t *Tools) RetrieveProvisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	k := req.GetInt("k", t.defaultK)
	if k <= 0 {
		k = t.defaultK
	}
	k = min(k, maxK)

	res := t.routes.Route(ctx, query, k)
	chunks := res.Chunks
	if chunks == nil {
		chunks = []domain.DocumentChunk{}
	}
	return jsonResult(retrieveResult{
		Analysis:     res.Analysis,
		Handler:      res.Handler,
		FallbackUsed: res.FallbackUsed,
		Degraded:     res.Degraded,
		Chunks:       chunks,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}
