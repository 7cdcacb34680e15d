package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/butlerbot/relay/internal/biz/repo"
	"github.com/butlerbot/relay/internal/calc"
)

// Server exposes the relay tools over MCP
type Server struct {
	server *mcp.Server
	tools  repo.ToolRepo
	client *Client
}

// NewServer creates a new MCP server. The chat tools are registered only when
// a relay API client is given.
func NewServer(tools repo.ToolRepo, client *Client, version string) *Server {
	if version == "" {
		version = "v1.0.0"
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "relay-tools",
		Version: version,
	}, nil)

	s := &Server{
		server: server,
		tools:  tools,
		client: client,
	}
	s.registerTools()
	return s
}

// registerTools registers the MCP tools
func (s *Server) registerTools() {
	spec := calc.Spec()
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        spec.Name,
		Description: spec.Description,
	}, s.handleEvaluate)

	if s.client == nil {
		return
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "relay_chat_history",
		Description: "Get the most recent stored messages of a chat, oldest first.",
	}, s.handleChatHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "relay_post_message",
		Description: "Post a message into a chat as the given user. The Bot answers after the debounce window if it is addressed.",
	}, s.handlePostMessage)
}

// Run serves MCP over stdio until ctx ends or the peer disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

func (s *Server) handleEvaluate(ctx context.Context, req *mcp.CallToolRequest, input calc.Arguments) (*mcp.CallToolResult, calc.Result, error) {
	args, err := json.Marshal(input)
	if err != nil {
		return nil, calc.Result{}, err
	}

	v, err := s.tools.Execute(ctx, calc.ToolName, string(args))
	if err != nil {
		return nil, calc.Result{}, err
	}

	f, ok := v.(float64)
	if !ok {
		return nil, calc.Result{}, fmt.Errorf("unexpected result type %T", v)
	}
	return nil, calc.Result{Result: f}, nil
}

// ChatHistoryInput is the input for relay_chat_history
type ChatHistoryInput struct {
	ChatID string `json:"chat_id" jsonschema:"The chat to read"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of messages (default 20)"`
}

// ChatHistoryOutput is the output for relay_chat_history
type ChatHistoryOutput struct {
	Messages []HistoryMessage `json:"messages"`
}

func (s *Server) handleChatHistory(ctx context.Context, req *mcp.CallToolRequest, input ChatHistoryInput) (*mcp.CallToolResult, ChatHistoryOutput, error) {
	if input.ChatID == "" {
		return nil, ChatHistoryOutput{}, fmt.Errorf("chat_id is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	messages, err := s.client.GetChatHistory(ctx, input.ChatID, limit)
	if err != nil {
		return nil, ChatHistoryOutput{}, err
	}
	if messages == nil {
		messages = []HistoryMessage{}
	}
	return nil, ChatHistoryOutput{Messages: messages}, nil
}

// PostMessageInput is the input for relay_post_message
type PostMessageInput struct {
	ChatID   string `json:"chat_id" jsonschema:"The chat to post into"`
	UserID   string `json:"user_id" jsonschema:"The author id, must not be 0"`
	Username string `json:"username,omitempty" jsonschema:"The author display name"`
	Text     string `json:"text" jsonschema:"The message text"`
}

// PostMessageOutput is the output for relay_post_message
type PostMessageOutput struct {
	Seq int64 `json:"seq"`
}

func (s *Server) handlePostMessage(ctx context.Context, req *mcp.CallToolRequest, input PostMessageInput) (*mcp.CallToolResult, PostMessageOutput, error) {
	seq, err := s.client.PostMessage(ctx, input.ChatID, input.UserID, input.Username, input.Text)
	if err != nil {
		return nil, PostMessageOutput{}, err
	}
	return nil, PostMessageOutput{Seq: seq}, nil
}
