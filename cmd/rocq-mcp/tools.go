package main

// tools.go — MCP tool registration wiring each tool name to its handler,
// each a thin adapter over internal/rocq's Registry/Do* functions.

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanjit/proofctl/internal/rocq"
)

// Tool argument types.

type fileArg struct {
	File string `json:"file" jsonschema:"path to the .v file"`
}

type checkArg struct {
	File string `json:"file" jsonschema:"path to the .v file"`
	Line int    `json:"line" jsonschema:"0-indexed line number"`
	Col  int    `json:"col" jsonschema:"0-indexed column number"`
}

type queryArg struct {
	File    string `json:"file" jsonschema:"path to the .v file"`
	Pattern string `json:"pattern" jsonschema:"the identifier or expression to query"`
}

type searchArg struct {
	File    string `json:"file" jsonschema:"path to the .v file"`
	Pattern string `json:"pattern" jsonschema:"search pattern (e.g. 'nat -> nat', '_ + _ = _ + _')"`
}

type ltacProfileArg struct {
	File    string  `json:"file" jsonschema:"path to the .v file"`
	StateID *string `json:"state_id,omitempty" jsonschema:"state id to profile from, defaults to cumulative results if omitted"`
}

// registerTools registers all MCP tools on the server.
func registerTools(server *mcp.Server, reg *rocq.Registry) {
	// Tier 1: Core proof interaction.
	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_open",
		Description: "Open a .v file in the Rocq proof checker. Must be called before any other operations on the file.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		if err := reg.OpenDoc(ctx, args.File); err != nil {
			return errResult(err), nil, nil
		}
		return textResult("Opened " + args.File), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_close",
		Description: "Close a .v file and release its resources.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		if err := reg.CloseDoc(args.File); err != nil {
			return errResult(err), nil, nil
		}
		return textResult("Closed " + args.File), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_sync",
		Description: "Re-read a .v file from disk after editing it. Required after using Edit/Write tools.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		if err := reg.SyncDoc(ctx, args.File); err != nil {
			return errResult(err), nil, nil
		}
		return textResult("Synced " + args.File), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_check",
		Description: "Check the file up to a given position. Returns proof goals and diagnostics (errors/warnings).",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args checkArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoCheck(ctx, reg, args.File, args.Line, args.Col)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_check_all",
		Description: "Check the entire file. Returns proof goals (if any remain) and all diagnostics.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoCheckAll(ctx, reg, args.File)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_step_forward",
		Description: "Step forward one sentence in the proof. Returns updated proof goals.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoStepForward(ctx, reg, args.File)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_step_backward",
		Description: "Step backward one sentence in the proof. Returns updated proof goals.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoStepBackward(ctx, reg, args.File)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_get_proof_state",
		Description: "Get the full current proof state with all goals and hypotheses. Use this when you need the complete context rather than the delta returned by step/check.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoGetProofState(reg, args.File)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	// Tier 2: Query tools.
	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_about",
		Description: "Show information about an identifier (type, module, etc). Like Rocq's 'About' command.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoQuery(ctx, reg, args.File, rocq.QueryAbout, args.Pattern)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_check_type",
		Description: "Check the type of an expression. Like Rocq's 'Check' command.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoQuery(ctx, reg, args.File, rocq.QueryCheckType, args.Pattern)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_locate",
		Description: "Locate the defining module of an identifier. Like Rocq's 'Locate' command.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoQuery(ctx, reg, args.File, rocq.QueryLocate, args.Pattern)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_print",
		Description: "Print the full definition of an identifier. Like Rocq's 'Print' command.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoQuery(ctx, reg, args.File, rocq.QueryPrint, args.Pattern)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_search",
		Description: "Search for lemmas matching a pattern. Like Rocq's 'Search' command. Results may be large; use specific patterns.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoSearch(ctx, reg, args.File, args.Pattern)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	// Tier 3: Diagnostics & state.
	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_reset",
		Description: "Reset the Rocq prover state for a file. Use when the prover is in a bad state.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoReset(ctx, reg, args.File)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_document_proofs",
		Description: "List all proof blocks in a file with their statements, tactics, and line ranges. Useful for navigating and understanding proof structure.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoDocumentProofs(ctx, reg, args.File)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_interrupt",
		Description: "Interrupt the prover's current in-flight request on a file. Use when a query or step is taking too long.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoInterrupt(reg, args.File)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rocq_ltac_profile",
		Description: "Request Ltac profiling results for a file, optionally scoped to a single state id. Returns only an acknowledgement; the profiling results are not relayed back to the MCP client.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ltacProfileArg) (*mcp.CallToolResult, any, error) {
		text, err := rocq.DoLtacProfile(reg, args.File, args.StateID)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})
}
