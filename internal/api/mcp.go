package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/propeval/internal/pipeline"
	"github.com/kalambet/propeval/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Pipeline *pipeline.Pipeline
	Version  string
}

// NewMCPServer creates an MCP server exposing the pipeline triggers, run
// status, reports and scenarios as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"propeval",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("propeval scores residential listings for flip, rental and subdivision potential. Queue runs, poll status, then read reports."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("run_pipeline",
			mcp.WithDescription("Queue a batch run over every listing that is pending analysis. Fails if a run is already queued or running."),
		),
		mcpRunPipeline(deps),
	)

	s.AddTool(
		mcp.NewTool("analyze_listing",
			mcp.WithDescription("Queue analysis of a single listing by its numeric id."),
			mcp.WithNumber("listing_id", mcp.Description("Internal listing id"), mcp.Required()),
		),
		mcpAnalyzeListing(deps),
	)

	s.AddTool(
		mcp.NewTool("pipeline_status",
			mcp.WithDescription("Report whether a run is in progress, its progress, and the last batch summary."),
		),
		mcpPipelineStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("get_report",
			mcp.WithDescription("Return the property report for an analysed listing: verdict, score, rank, strategy, financials and flags."),
			mcp.WithNumber("listing_id", mcp.Description("Internal listing id"), mcp.Required()),
		),
		mcpGetReport(deps),
	)

	s.AddTool(
		mcp.NewTool("run_scenario",
			mcp.WithDescription("Recompute flip and rental financials and the strategy for a listing with some inputs overridden. Nothing is saved."),
			mcp.WithNumber("listing_id", mcp.Description("Internal listing id"), mcp.Required()),
			mcp.WithNumber("purchase_price", mcp.Description("Purchase price in NZD")),
			mcp.WithNumber("renovation_budget", mcp.Description("Renovation budget in NZD")),
			mcp.WithNumber("sale_price", mcp.Description("Expected sale price (ARV) in NZD")),
			mcp.WithNumber("weekly_rent", mcp.Description("Weekly rent in NZD")),
			mcp.WithNumber("interest_rate", mcp.Description("Annual mortgage interest rate, e.g. 0.065")),
			mcp.WithNumber("timeline_weeks", mcp.Description("Renovation timeline in weeks")),
		),
		mcpRunScenario(deps),
	)

	return s
}

func mcpRunPipeline(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := enqueueRun(ctx, deps.Store, deps.Pipeline)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fmt.Sprintf("Queued pipeline run %s", id)), nil
	}
}

func mcpAnalyzeListing(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		listingID, res := requireListingID(req)
		if res != nil {
			return res, nil
		}
		id, err := enqueueListing(ctx, deps.Store, listingID)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fmt.Sprintf("Queued analysis of listing %d as job %s", listingID, id)), nil
	}
}

func mcpPipelineStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := pipelineStatus(ctx, deps.Store, deps.Pipeline)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(snap)
	}
}

func mcpGetReport(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		listingID, res := requireListingID(req)
		if res != nil {
			return res, nil
		}
		report, err := deps.Pipeline.Report(ctx, listingID)
		if errors.Is(err, pipeline.ErrAnalysisNotFound) {
			return mcpError(fmt.Sprintf("listing %d has not been analysed yet", listingID)), nil
		}
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(report)
	}
}

func mcpRunScenario(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		listingID, res := requireListingID(req)
		if res != nil {
			return res, nil
		}

		args := req.GetArguments()
		num := func(key string) *float64 {
			if _, ok := args[key]; !ok {
				return nil
			}
			v := req.GetFloat(key, 0)
			return &v
		}
		o := pipeline.ScenarioOverrides{
			PurchasePrice:    num("purchase_price"),
			RenovationBudget: num("renovation_budget"),
			SalePrice:        num("sale_price"),
			WeeklyRent:       num("weekly_rent"),
			InterestRate:     num("interest_rate"),
		}
		if _, ok := args["timeline_weeks"]; ok {
			weeks := req.GetInt("timeline_weeks", 0)
			o.TimelineWeeks = &weeks
		}

		result, err := deps.Pipeline.Scenario(ctx, listingID, o)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(result)
	}
}

func requireListingID(req mcp.CallToolRequest) (int64, *mcp.CallToolResult) {
	id := req.GetInt("listing_id", 0)
	if id <= 0 {
		return 0, mcpError("listing_id is required and must be positive")
	}
	return int64(id), nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
