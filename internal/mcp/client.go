package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is the HTTP client for the relay API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new relay API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// HistoryMessage is a stored chat message as served by the relay API
type HistoryMessage struct {
	Seq        int64  `json:"seq"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Text       string `json:"text"`
	CreatedAt  string `json:"created_at"` // RFC 3339
}

// ============ Chat Operations ============

// GetChatHistory gets the most recent messages of a chat
func (c *Client) GetChatHistory(ctx context.Context, chatID string, limit int) ([]HistoryMessage, error) {
	var result struct {
		Messages []HistoryMessage `json:"messages"`
	}
	path := fmt.Sprintf("/api/chat/%s/history?limit=%d", url.PathEscape(chatID), limit)
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// PostMessage submits an inbound message and returns its sequence id
func (c *Client) PostMessage(ctx context.Context, chatID, userID, username, text string) (int64, error) {
	body := map[string]string{
		"chat_id":  chatID,
		"user_id":  userID,
		"username": username,
		"text":     text,
	}
	var result struct {
		Seq int64 `json:"seq"`
	}
	if err := c.post(ctx, "/api/messages", body, &result); err != nil {
		return 0, err
	}
	return result.Seq, nil
}

// ============ HTTP Helpers ============

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", req.Method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
