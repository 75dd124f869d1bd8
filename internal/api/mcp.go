package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/catalog"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/session"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/storage"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/workflow"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Catalogs workflow.CatalogFetcher
	Analyses workflow.AnalysisFetcher
	Session  session.Provider
	Store    *storage.Store // optional; enables catalog://recent and analyze without id
	Logger   *slog.Logger
}

func (d MCPDeps) controller() *workflow.Controller {
	opts := []workflow.Option{workflow.WithLogger(d.Logger)}
	if d.Store != nil {
		opts = append(opts, workflow.WithHistory(d.Store))
	}
	return workflow.New(d.Catalogs, d.Analyses, d.Session, opts...)
}

// NewMCPServer creates an MCP server exposing the discovery workflow.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"problems-analyzer",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Find coding problems by skill level and topic tags, then fetch the rendered analysis of a catalog."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("find_problems",
			mcp.WithDescription("Fetch a catalog of coding problems for a skill level and optional topic tags. Returns one page of 10 problems plus the catalog id."),
			mcp.WithString("skill", mcp.Description("Skill level: Beginner, Intermediate, Advanced or Master"), mcp.Required()),
			mcp.WithArray("tags", mcp.Description("Topic tags, e.g. [\"Array\", \"Dynamic Programming\"]")),
			mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
		),
		mcpFindProblems(deps),
	)

	s.AddTool(
		mcp.NewTool("analyze_catalog",
			mcp.WithDescription("Fetch the analysis images for a catalog id returned by find_problems. Without an id the most recent catalog is used."),
			mcp.WithString("id", mcp.Description("Catalog id")),
		),
		mcpAnalyzeCatalog(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://recent",
			"Recent Catalogs",
			mcp.WithResourceDescription("Last 10 fetched catalogs (without problems)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://vocabulary",
			"Skills and Tags",
			mcp.WithResourceDescription("Accepted skill levels and the known topic tags"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceVocabulary(),
	)

	return s
}

func mcpFindProblems(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		skill, err := req.RequireString("skill")
		if err != nil {
			return mcpError("skill is required"), nil
		}
		tags := req.GetStringSlice("tags", nil)
		page := req.GetInt("page", 1)

		c := deps.controller()
		defer c.Close()

		if err := c.Submit(ctx, skill, strings.Join(tags, ",")); err != nil {
			return mcpError(workflow.Message(err)), nil
		}
		c.GotoPage(page)

		b, err := json.Marshal(c.View())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal catalog: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAnalyzeCatalog(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := strings.TrimSpace(req.GetString("id", ""))
		if id == "" && deps.Store != nil {
			rec, err := deps.Store.LatestCatalog()
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return mcpError(fmt.Sprintf("failed to load latest catalog: %v", err)), nil
			}
			id = rec.ID
		}

		c := deps.controller()
		defer c.Close()

		if err := c.Restore(catalog.Query{}, catalog.Result{ID: id}); err != nil {
			return mcpError(workflow.Message(err)), nil
		}
		if err := c.Analyze(ctx); err != nil {
			return mcpError(workflow.Message(err)), nil
		}

		bundle, _ := c.Bundle()
		names := make([]string, len(bundle.Images))
		content := make([]mcp.Content, 0, len(bundle.Images)+1)
		for i, img := range bundle.Images {
			names[i] = img.Name
		}
		content = append(content, mcp.TextContent{
			Type: "text",
			Text: fmt.Sprintf("Analysis of catalog %s: %d images (%s)", id, len(names), strings.Join(names, ", ")),
		})
		for _, img := range bundle.Images {
			content = append(content, mcp.ImageContent{Type: "image", Data: img.Payload, MIMEType: img.MIMEType})
		}
		return &mcp.CallToolResult{Content: content}, nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list := []storage.CatalogRecord{}
		if deps.Store != nil {
			recent, err := deps.Store.ListCatalogs(10)
			if err != nil {
				return nil, fmt.Errorf("failed to list catalogs: %w", err)
			}
			if recent != nil {
				list = recent
			}
		}

		b, err := json.Marshal(list)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal catalogs: %w", err)
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

func mcpResourceVocabulary() server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(map[string]any{
			"skills": catalog.Skills,
			"tags":   catalog.Vocabulary,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal vocabulary: %w", err)
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
