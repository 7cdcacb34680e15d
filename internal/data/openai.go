package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/butlerbot/relay/internal/biz/domain"
	"github.com/butlerbot/relay/internal/biz/repo"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gpt-4o"

// ReasoningConfig contains reasoning service configuration
type ReasoningConfig struct {
	APIKey  string
	BaseURL string // Empty means the OpenAI default
	Model   string
}

// openaiRepo implements the reasoning repository over an OpenAI-compatible API
type openaiRepo struct {
	client *openai.Client
	model  string
}

// NewOpenAIRepo creates a reasoning repository
func NewOpenAIRepo(cfg ReasoningConfig) repo.ReasoningRepo {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return newOpenAIRepo(openai.NewClientWithConfig(config), cfg.Model)
}

func newOpenAIRepo(client *openai.Client, model string) *openaiRepo {
	if model == "" {
		model = DefaultModel
	}
	return &openaiRepo{client: client, model: model}
}

// Complete sends one chat completion request. There is no retry here.
func (r *openaiRepo) Complete(ctx context.Context, transcript []domain.Entry, tools []domain.ToolSpec) (*domain.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: toOpenAIMessages(transcript),
		Tools:    toOpenAITools(tools),
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response choices", domain.ErrEmptyContent)
	}

	msg := resp.Choices[0].Message
	completion := &domain.Completion{Content: msg.Content}
	for _, call := range msg.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, domain.ToolInvocationRequest{
			CallID:    call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	if !completion.HasToolCalls() && completion.Content == "" {
		return nil, fmt.Errorf("%w: finish reason %q", domain.ErrEmptyContent, resp.Choices[0].FinishReason)
	}
	return completion, nil
}

func toOpenAIMessages(transcript []domain.Entry) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(transcript))
	for _, e := range transcript {
		msg := openai.ChatCompletionMessage{
			Role:       e.Role,
			Content:    e.Content,
			ToolCallID: e.ToolCallID,
		}
		for _, call := range e.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   call.CallID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		messages = append(messages, msg)
	}
	return messages
}

func toOpenAITools(specs []domain.ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return tools
}

// classifyOpenAIError maps client errors onto the reasoning failure taxonomy
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Type == "invalid_request_error" || isPermanentStatus(apiErr.HTTPStatusCode) {
			return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && isPermanentStatus(reqErr.HTTPStatusCode) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	return fmt.Errorf("%w: %w", domain.ErrTransient, err)
}

// isPermanentStatus reports 4xx statuses that a retry cannot fix
func isPermanentStatus(code int) bool {
	if code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
		return false
	}
	return code >= 400 && code < 500
}
