package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/propeval/internal/pipeline"
)

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	store := openTestStore(t)
	return MCPDeps{Store: store, Pipeline: newTestPipeline(store), Version: "test"}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_RunPipeline(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpRunPipeline(deps)

	result, err := handler(context.Background(), makeCallToolRequest("run_pipeline", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if !strings.HasPrefix(toolText(t, result), "Queued pipeline run ") {
		t.Errorf("text = %q", toolText(t, result))
	}

	result, _ = handler(context.Background(), makeCallToolRequest("run_pipeline", nil))
	if !result.IsError {
		t.Error("second run_pipeline should fail while the first is queued")
	}
}

func TestMCPTool_AnalyzeListing(t *testing.T) {
	deps := newTestMCPDeps(t)
	id := seedListing(t, deps.Store, "TM1")
	handler := mcpAnalyzeListing(deps)

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"known", map[string]any{"listing_id": float64(id)}, false},
		{"unknown", map[string]any{"listing_id": float64(9999)}, true},
		{"missing", map[string]any{}, true},
		{"negative", map[string]any{"listing_id": float64(-3)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handler(context.Background(), makeCallToolRequest("analyze_listing", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.IsError != tt.wantErr {
				t.Errorf("IsError = %v, want %v: %s", result.IsError, tt.wantErr, toolText(t, result))
			}
		})
	}
}

func TestMCPTool_PipelineStatus(t *testing.T) {
	deps := newTestMCPDeps(t)
	deps.Pipeline.Status().Start(pipeline.TaskAnalyzeListing, "Analyzing listing TM1", 1)

	result, err := mcpPipelineStatus(deps)(context.Background(), makeCallToolRequest("pipeline_status", nil))
	if err != nil {
		t.Fatal(err)
	}
	var snap pipeline.StatusSnapshot
	if err := json.Unmarshal([]byte(toolText(t, result)), &snap); err != nil {
		t.Fatalf("status is not JSON: %v", err)
	}
	if !snap.Running || snap.Task != pipeline.TaskAnalyzeListing {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestMCPTool_GetReport(t *testing.T) {
	deps := newTestMCPDeps(t)
	id := seedListing(t, deps.Store, "TM2")
	handler := mcpGetReport(deps)
	req := makeCallToolRequest("get_report", map[string]any{"listing_id": float64(id)})

	result, _ := handler(context.Background(), req)
	if !result.IsError || !strings.Contains(toolText(t, result), "not been analysed") {
		t.Fatalf("report before analysis = %s", toolText(t, result))
	}

	if _, err := deps.Pipeline.AnalyzeListing(context.Background(), id); err != nil {
		t.Fatalf("AnalyzeListing: %v", err)
	}
	result, _ = handler(context.Background(), req)
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	var report pipeline.Report
	if err := json.Unmarshal([]byte(toolText(t, result)), &report); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if report.ListingID != "TM2" || report.Verdict == "PENDING" || report.Verdict == "" {
		t.Errorf("report = %+v", report)
	}
}

func TestMCPTool_RunScenario(t *testing.T) {
	deps := newTestMCPDeps(t)
	id := seedListing(t, deps.Store, "TM3")

	result, err := mcpRunScenario(deps)(context.Background(), makeCallToolRequest("run_scenario", map[string]any{
		"listing_id":     float64(id),
		"purchase_price": float64(380000),
		"timeline_weeks": float64(12),
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	var res pipeline.ScenarioResult
	if err := json.Unmarshal([]byte(toolText(t, result)), &res); err != nil {
		t.Fatalf("scenario is not JSON: %v", err)
	}
	if res.Inputs.PurchasePrice != 380000 || res.Inputs.TimelineWeeks != 12 {
		t.Errorf("inputs = %+v", res.Inputs)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpPipelineStatus(deps)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := handler(context.Background(), makeCallToolRequest("pipeline_status", nil))
			if err != nil || result.IsError {
				t.Errorf("concurrent status call failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestNewMCPServer(t *testing.T) {
	if s := NewMCPServer(newTestMCPDeps(t)); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
