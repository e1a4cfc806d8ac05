// Command rocq-mcp is the MCP server entrypoint: it starts the session
// registry and serves the tool surface over stdio, one DocumentController
// (and one vsrocqtop subprocess) per opened file.
package main

import (
	"context"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanjit/proofctl/internal/rocq"
)

func main() {
	// All args after the binary name are passed through to vsrocqtop.
	vsrocqArgs := os.Args[1:]

	registry := rocq.NewRegistry(rocq.Config{
		VsrocqPath: "vsrocqtop",
		VsrocqArgs: vsrocqArgs,
	})

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "rocq-mcp",
		Version: "0.1.0",
	}, nil)

	registerTools(server, registry)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("server error: %v", err)
	}

	if err := registry.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
