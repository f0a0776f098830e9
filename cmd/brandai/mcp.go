package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flemzord/brandai/internal/chat"
	"github.com/flemzord/brandai/internal/provider"
	"github.com/flemzord/brandai/pkg/app"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the chat router as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				tools := &mcpTools{router: rt.Router, store: rt.Store}
				stdio := server.NewStdioServer(tools.server())
				return stdio.Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

// mcpTools exposes sends and connection tests to MCP clients.
type mcpTools struct {
	router *chat.Router
	store  chat.HistoryStore
}

func (t *mcpTools) server() *server.MCPServer {
	s := server.NewMCPServer("brandai", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a message to an LLM provider and return the full reply. The active brand's context is injected unless a system prompt is given."),
		mcp.WithString("message", mcp.Required(), mcp.Description("User message")),
		mcp.WithString("provider", mcp.Description("openai, gemini or ollama; defaults to the configured provider")),
		mcp.WithString("model", mcp.Description("Model override")),
		mcp.WithString("brand_id", mcp.Description("Brand whose context is injected")),
		mcp.WithString("conversation_id", mcp.Description("Stored conversation to continue")),
		mcp.WithString("system_prompt", mcp.Description("System prompt replacing the brand context")),
	), t.sendMessage)

	s.AddTool(mcp.NewTool("test_connection",
		mcp.WithDescription("Check that a provider is reachable with its credential."),
		mcp.WithString("provider", mcp.Required(), mcp.Description("openai, gemini or ollama")),
		mcp.WithString("credential", mcp.Description("Credential to test instead of the configured one")),
	), t.testConnection)

	s.AddTool(mcp.NewTool("list_providers",
		mcp.WithDescription("List the configured providers with their health."),
	), t.listProviders)

	return s
}

func (t *mcpTools) sendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	send := chat.SendRequest{
		Provider:     provider.ID(req.GetString("provider", "")),
		Model:        req.GetString("model", ""),
		Messages:     []provider.Message{{Role: provider.RoleUser, Content: text}},
		SystemPrompt: req.GetString("system_prompt", ""),
		BrandID:      req.GetString("brand_id", ""),
	}

	var reply string
	if conv := req.GetString("conversation_id", ""); conv != "" {
		reply, err = t.router.Converse(ctx, t.store, conv, send)
	} else {
		reply, err = t.router.Send(ctx, send)
	}
	if err != nil {
		return mcp.NewToolResultErrorFromErr("send failed", err), nil
	}
	return mcp.NewToolResultText(reply), nil
}

func (t *mcpTools) testConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("provider")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok := t.router.TestConnection(ctx, provider.ID(id), req.GetString("credential", ""))
	return mcp.NewToolResultText(fmt.Sprintf(`{"provider":%q,"ok":%t}`, id, ok)), nil
}

type mcpProvider struct {
	provider.Descriptor
	State string `json:"state"`
}

func (t *mcpTools) listProviders(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ds := t.router.Providers()
	out := make([]mcpProvider, len(ds))
	for i, d := range ds {
		out[i] = mcpProvider{Descriptor: d, State: provider.StateUnknown.String()}
		if h := t.router.Health(); h != nil {
			out[i].State = h.Status(d.ID).State.String()
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
