package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/pipeline"
)

// NewMCPServer creates an MCP server exposing the recommendation tools and
// the recent-requests resource.
func NewMCPServer(svc *Service) *server.MCPServer {
	s := server.NewMCPServer(
		"recoagent",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("recoagent recommends compatible products from a fixed catalog."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("recommend",
			mcp.WithDescription("Recommend catalog products that go well with the named item."),
			mcp.WithString("item_name", mcp.Description("Name of the product the user has or wants"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of recommendations (1-50, defaults to the configured limit)")),
		),
		mcpRecommend(svc),
	)

	s.AddTool(
		mcp.NewTool("find_product",
			mcp.WithDescription("Look up a catalog product by name."),
			mcp.WithString("name", mcp.Description("Product name or words from it"), mcp.Required()),
		),
		mcpFindProduct(svc),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://recent",
			"Recent Recommendations",
			mcp.WithResourceDescription("Last 10 served recommendation requests"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(svc),
	)

	return s
}

func mcpRecommend(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("item_name")
		if err != nil || strings.TrimSpace(name) == "" {
			return mcpError("item_name is required"), nil
		}
		var limit int
		if _, given := req.GetArguments()["limit"]; given {
			limit = req.GetInt("limit", 0)
			if limit < 1 || limit > pipeline.MaxLimit {
				return mcpError(fmt.Sprintf("limit must be between 1 and %d", pipeline.MaxLimit)), nil
			}
		}

		resp, err := svc.Recommend(ctx, strings.TrimSpace(name), limit)
		if err != nil {
			return mcpError(fmt.Sprintf("recommendation failed: %v", err)), nil
		}
		if resp.PrimaryItem == nil {
			return mcpText(fmt.Sprintf("No product matches %q.", name)), nil
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpFindProduct(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil || strings.TrimSpace(name) == "" {
			return mcpError("name is required"), nil
		}

		p, err := svc.FindProduct(ctx, name)
		if errors.Is(err, catalog.ErrNotFound) {
			return mcpText(fmt.Sprintf("No product matches %q.", name)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		b, err := json.Marshal(p.Public())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal product: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(svc *Service) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		logs, err := svc.Recent(ctx, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent recommendations: %w", err)
		}

		type summary struct {
			ID         string  `json:"id"`
			CreatedAt  string  `json:"created_at"`
			Query      string  `json:"query"`
			ProductIDs []int64 `json:"product_ids"`
			Path       string  `json:"path"`
		}

		summaries := make([]summary, len(logs))
		for i, l := range logs {
			query := l.Query
			if utf8.RuneCountInString(query) > 200 {
				query = string([]rune(query)[:200]) + "..."
			}
			summaries[i] = summary{
				ID:         l.ID,
				CreatedAt:  l.CreatedAt.UTC().Format(time.RFC3339),
				Query:      query,
				ProductIDs: l.ProductIDs,
				Path:       l.Path,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal recommendations: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
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
