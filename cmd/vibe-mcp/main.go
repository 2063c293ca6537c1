package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	. "github.com/Protocol-Lattice/vibe-engine/src"
)

const (
	toolProposePlan  = "propose_plan"
	toolApplyChanges = "apply_changes"
	toolListFiles    = "list_files"
	toolReadFile     = "read_file"
	toolMemoryLog    = "memory_log"
)

var (
	eng     *Engine
	store   *DirStore
	baseReq CallRequest
)

func main() {
	root := flag.String("root", ".", "project root directory")
	configPath := flag.String("config", "", "path to config.yaml")
	user := flag.String("user", "local", "user ID for budget accounting")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	store = NewDirStore(*root)
	wallet := NewMemoryWallet()
	wallet.Grant(*user, 1000)
	eng = NewEngine(cfg, store, wallet, nil)

	baseReq = CallRequest{
		Provider: cfg.DefaultProvider,
		UserID:   *user,
		Project:  "mcp",
		UserKeys: keysFromEnv(),
	}

	s := server.NewMCPServer(
		"Vibe Engine MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	registerTools(s)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func keysFromEnv() map[Provider]string {
	keys := map[Provider]string{}
	for p, env := range map[Provider]string{
		ProviderOpenAI:    "OPENAI_API_KEY",
		ProviderGemini:    "GEMINI_API_KEY",
		ProviderAnthropic: "ANTHROPIC_API_KEY",
	} {
		if v := os.Getenv(env); v != "" {
			keys[p] = v
		}
	}
	return keys
}

func registerTools(s *server.MCPServer) {
	s.AddTool(mcp.Tool{
		Name:        toolProposePlan,
		Description: "Draft a modification plan for the project: which files would be created, updated, deleted, moved or copied, with the model's rationale. Nothing is applied.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"request": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language description of the desired change",
				},
			},
			Required: []string{"request"},
		},
	}, handleProposePlan)

	s.AddTool(mcp.Tool{
		Name:        toolApplyChanges,
		Description: "Apply a change-set to the project. Accepts the same JSON shape the planner produces: create/update/delete/move/copy.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"changes": map[string]interface{}{
					"type":        "string",
					"description": "Change-set as a JSON object",
				},
			},
			Required: []string{"changes"},
		},
	}, handleApplyChanges)

	s.AddTool(mcp.Tool{
		Name:        toolListFiles,
		Description: "List the project file tree",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handleListFiles)

	s.AddTool(mcp.Tool{
		Name:        toolReadFile,
		Description: "Read one file from the project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Project-relative path",
				},
			},
			Required: []string{"path"},
		},
	}, handleReadFile)

	s.AddTool(mcp.Tool{
		Name:        toolMemoryLog,
		Description: "Read the project's work journal (vibe/memory.md)",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handleMemoryLog)
}

func handleProposePlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := request.GetString("request", "")
	if strings.TrimSpace(req) == "" {
		return mcp.NewToolResultError("request must not be empty"), nil
	}

	files, err := store.Get(baseReq.Project)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read project: %v", err)), nil
	}

	plan, err := eng.ProposePlan(ctx, baseReq, req, files)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Plan failed: %v", err)), nil
	}

	out, err := json.MarshalIndent(map[string]any{
		"reasoning":      plan.Reasoning,
		"plan":           plan.Ops,
		"special_action": plan.Special,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func handleApplyChanges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := request.GetString("changes", "")

	var cs ChangeSet
	if err := DecodeModelJSON(raw, &cs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid change-set: %v", err)), nil
	}

	files, err := store.Get(baseReq.Project)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read project: %v", err)), nil
	}

	next, ops, err := ApplyChangeSet(files, cs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Apply failed: %v", err)), nil
	}
	if err := store.ApplyBatch(baseReq.Project, ops); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Persist failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Applied: %s (%d files now)", cs.Summary(), len(SortedPaths(next)))), nil
}

func handleListFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := store.Get(baseReq.Project)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read project: %v", err)), nil
	}
	out := RenderTree(files)
	if out == "" {
		out = "(empty project)"
	}
	return mcp.NewToolResultText(out), nil
}

func handleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := request.GetString("path", "")

	files, err := store.Get(baseReq.Project)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read project: %v", err)), nil
	}
	n := FindByPath(files, p)
	if n == nil || n.Type != NodeFile {
		return mcp.NewToolResultError(fmt.Sprintf("No such file: %s", p)), nil
	}
	return mcp.NewToolResultText(n.Content), nil
}

func handleMemoryLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := store.Get(baseReq.Project)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read project: %v", err)), nil
	}
	out := ReadMemory(files)
	if out == "" {
		out = "No journal yet"
	}
	return mcp.NewToolResultText(out), nil
}
