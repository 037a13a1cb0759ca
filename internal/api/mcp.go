package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/dbcheck/internal/report"
	"github.com/kalambet/dbcheck/internal/storage"
)

// NewMCPServer creates an MCP server exposing the report and the schema dump
// as tools.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"dbcheck",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("dbcheck inspects the Karl SQLite database read-only: container states, interaction data and table schemas."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("inspect_database",
			mcp.WithDescription("Run the database check and return the plain-text report."),
			mcp.WithString("profile",
				mcp.Description(fmt.Sprintf("Report profile, one of %v. Defaults to the configured profile.", report.Profiles())),
			),
		),
		mcpInspectDatabase(deps),
	)

	s.AddTool(
		mcp.NewTool("describe_schema",
			mcp.WithDescription("List every table with its columns and declared types as JSON."),
		),
		mcpDescribeSchema(deps),
	)

	return s
}

func mcpInspectDatabase(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opts := deps.Options
		if name := req.GetString("profile", ""); name != "" {
			p, err := opts.WithProfile(name)
			if err != nil {
				return mcpError(err.Error()), nil
			}
			opts = p
		}

		text, err := report.Run(ctx, deps.DatabasePath, opts)
		if err != nil {
			return mcpError(openErrorText(deps.DatabasePath, err)), nil
		}
		return mcpText(text), nil
	}
}

func mcpDescribeSchema(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schemas, err := report.Describe(ctx, deps.DatabasePath)
		if err != nil {
			return mcpError(openErrorText(deps.DatabasePath, err)), nil
		}
		data, err := json.MarshalIndent(schemas, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal schema: %v", err)), nil
		}
		return mcpText(string(data)), nil
	}
}

func openErrorText(path string, err error) string {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Sprintf("Database file '%s' not found!", path)
	}
	return err.Error()
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
