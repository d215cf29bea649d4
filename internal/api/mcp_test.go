package api

import (
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/recoagent/internal/pipeline"
	"github.com/kalambet/recoagent/internal/retrieval"
	"github.com/kalambet/recoagent/internal/scoring"
	"github.com/kalambet/recoagent/internal/validation"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := newTestStore(t)
	return NewService(store, newTestRecommender(store), store, "sqlite")
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

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_Recommend(t *testing.T) {
	handler := mcpRecommend(newTestService(t))

	result, err := handler(context.Background(), makeCallToolRequest("recommend", map[string]interface{}{
		"item_name": "Galaxy A57",
		"limit":     float64(1),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	var resp RecommendationResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if resp.PrimaryItem == nil || resp.PrimaryItem.ID != 1 {
		t.Errorf("primary_item = %+v", resp.PrimaryItem)
	}
	if len(resp.Recommendations) != 1 {
		t.Errorf("got %d recommendations, want 1", len(resp.Recommendations))
	}
}

func TestMCPTool_RecommendOmittedLimitUsesConfiguredDefault(t *testing.T) {
	store := newTestStore(t)
	rec := pipeline.NewRecommender(
		retrieval.NewRetriever(store, nil),
		retrieval.NewBuilder(nil),
		scoring.NewScorer(nil),
		nil,
		validation.New(nil),
		pipeline.Options{DefaultLimit: 1},
	)
	handler := mcpRecommend(NewService(store, rec, nil, "sqlite"))

	result, err := handler(context.Background(), makeCallToolRequest("recommend", map[string]interface{}{
		"item_name": "Galaxy A57",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	var resp RecommendationResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(resp.Recommendations) != 1 {
		t.Errorf("got %d recommendations, want the configured 1", len(resp.Recommendations))
	}
}

func TestMCPTool_RecommendUnknownItem(t *testing.T) {
	handler := mcpRecommend(newTestService(t))

	result, err := handler(context.Background(), makeCallToolRequest("recommend", map[string]interface{}{
		"item_name": "flux capacitor",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("unknown item should not be a tool error")
	}
	if !strings.Contains(toolText(t, result), "No product matches") {
		t.Errorf("text = %q", toolText(t, result))
	}
}

func TestMCPTool_RecommendInvalidArgs(t *testing.T) {
	handler := mcpRecommend(newTestService(t))

	for _, args := range []map[string]interface{}{
		{},
		{"item_name": "  "},
		{"item_name": "a57", "limit": float64(0)},
		{"item_name": "a57", "limit": float64(51)},
	} {
		result, err := handler(context.Background(), makeCallToolRequest("recommend", args))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Errorf("args %v: expected tool error", args)
		}
	}
}

func TestMCPTool_FindProduct(t *testing.T) {
	handler := mcpFindProduct(newTestService(t))

	result, err := handler(context.Background(), makeCallToolRequest("find_product", map[string]interface{}{
		"name": "charger",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := toolText(t, result)
	if !strings.Contains(text, `"id":3`) {
		t.Errorf("text = %s", text)
	}
	if strings.Contains(text, "attributes") {
		t.Errorf("find_product leaked attributes: %s", text)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("find_product", map[string]interface{}{}))
	if !result.IsError {
		t.Error("missing name should be a tool error")
	}
}

func TestMCPResource_Recent(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Recommend(context.Background(), "galaxy a57", 2); err != nil {
		t.Fatal(err)
	}

	contents, err := mcpResourceRecent(svc)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "catalog://recent"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(tc.Text), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0]["query"] != "galaxy a57" {
		t.Errorf("entries = %v", entries)
	}
}

func TestNewMCPServer(t *testing.T) {
	if NewMCPServer(newTestService(t)) == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
