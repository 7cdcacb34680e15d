package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/butlerbot/relay/internal/biz/domain"
	"github.com/butlerbot/relay/internal/calc"
	"github.com/butlerbot/relay/internal/data"
)

func TestHandleEvaluate(t *testing.T) {
	s := NewServer(data.NewToolRepo(), nil, "")

	_, out, err := s.handleEvaluate(context.Background(), nil, calc.Arguments{Expression: "12*7"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Result != 84 {
		t.Errorf("Expected 84, got %v", out.Result)
	}

	_, _, err = s.handleEvaluate(context.Background(), nil, calc.Arguments{Expression: "1/0"})
	if !errors.Is(err, domain.ErrEvaluation) {
		t.Errorf("Expected evaluation error, got %v", err)
	}

	_, _, err = s.handleEvaluate(context.Background(), nil, calc.Arguments{})
	if !errors.Is(err, domain.ErrToolArgument) {
		t.Errorf("Expected argument error, got %v", err)
	}
}

func TestEvaluateOverSession(t *testing.T) {
	ctx := context.Background()
	s := NewServer(data.NewToolRepo(), nil, "test")

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      calc.ToolName,
		Arguments: map[string]any{"expression": "2^10"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("Unexpected tool error: %+v", res.Content)
	}

	raw, _ := json.Marshal(res.StructuredContent)
	var out calc.Result
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode structured content: %v", err)
	}
	if out.Result != 1024 {
		t.Errorf("Expected 1024, got %v", out.Result)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      calc.ToolName,
		Arguments: map[string]any{"expression": "2+"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Error("Expected tool error for malformed expression")
	}
}

func TestHandleChatHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/c1/history" || r.URL.Query().Get("limit") != "20" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []HistoryMessage{
				{Seq: 1, AuthorID: "42", AuthorName: "Alice", Text: "hi"},
				{Seq: 2, AuthorID: "0", AuthorName: "ButlerBot", Text: "hello"},
			},
		})
	}))
	defer server.Close()

	s := NewServer(data.NewToolRepo(), NewClient(server.URL), "")
	_, out, err := s.handleChatHistory(context.Background(), nil, ChatHistoryInput{ChatID: "c1"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out.Messages) != 2 || out.Messages[1].AuthorName != "ButlerBot" {
		t.Errorf("Unexpected messages %+v", out.Messages)
	}

	if _, _, err := s.handleChatHistory(context.Background(), nil, ChatHistoryInput{}); err == nil {
		t.Error("Expected error for missing chat_id")
	}
}

func TestHandlePostMessage(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/messages" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]int64{"seq": 7})
	}))
	defer server.Close()

	s := NewServer(data.NewToolRepo(), NewClient(server.URL), "")
	_, out, err := s.handlePostMessage(context.Background(), nil, PostMessageInput{
		ChatID: "c1", UserID: "42", Username: "Alice", Text: "ButlerBot, 12*7?",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Seq != 7 {
		t.Errorf("Expected seq 7, got %d", out.Seq)
	}
	if got["chat_id"] != "c1" || got["text"] != "ButlerBot, 12*7?" {
		t.Errorf("Unexpected request body %+v", got)
	}
}

func TestClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "user_id is reserved", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.PostMessage(context.Background(), "c1", "0", "", "hi"); err == nil {
		t.Error("Expected error for 400 response")
	}
}
