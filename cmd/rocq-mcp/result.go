package main

import "github.com/modelcontextprotocol/go-sdk/mcp"

// textResult and errResult wrap a plain string/error into the shape the
// MCP SDK expects, kept here rather than in internal/rocq so that
// package stays free of an MCP SDK dependency.

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
