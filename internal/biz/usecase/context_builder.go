package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/butlerbot/relay/internal/biz/domain"
	"github.com/butlerbot/relay/internal/biz/repo"
)

// DefaultHistoryLimit caps the number of stored messages included in a transcript
const DefaultHistoryLimit = 1000

// PromptConfig contains prompt configuration
type PromptConfig struct {
	BotName      string
	SystemPrompt string // Template, supports {{bot_name}}, {{bot_id}}, {{no_reply}}
	HistoryLimit int    // Most recent messages to include (0 = DefaultHistoryLimit)
}

// DefaultSystemPrompt is the instruction entry that leads every transcript
const DefaultSystemPrompt = `Each message in the conversation below is prefixed with the username and their unique identifier, like this: "username (123456789): MESSAGE...". ` +
	`You play the role of the user called {{bot_name}}, or simply Bot; your username and unique identifier are {{bot_name}} and {{bot_id}}. ` +
	`You are observing the users' conversation and normally you do not interfere unless you are explicitly called by name (e.g., 'bot,' '{{bot_name}},' etc.). ` +
	`Explicit mentions include cases where your name or identifier appears anywhere in the newest message. ` +
	`If you are not explicitly addressed, always respond with {{no_reply}} and nothing else. ` +
	`Reply in plain text only: no Markdown, no LaTeX, no other markup, including when reporting results of a tool call.`

// DefaultPromptConfig contains default prompt configuration
var DefaultPromptConfig = PromptConfig{
	BotName:      "ButlerBot",
	SystemPrompt: DefaultSystemPrompt,
	HistoryLimit: DefaultHistoryLimit,
}

// ContextBuilderUsecase assembles the transcript sent to the reasoning service
type ContextBuilderUsecase struct {
	messageRepo repo.MessageRepo
	cfg         PromptConfig
}

// NewContextBuilderUsecase creates a new context builder usecase
func NewContextBuilderUsecase(messageRepo repo.MessageRepo, cfg PromptConfig) *ContextBuilderUsecase {
	if cfg.BotName == "" {
		cfg.BotName = DefaultPromptConfig.BotName
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &ContextBuilderUsecase{messageRepo: messageRepo, cfg: cfg}
}

// BotName returns the configured Bot display name
func (uc *ContextBuilderUsecase) BotName() string {
	return uc.cfg.BotName
}

// Build returns the instruction entry followed by the chat's recent messages in order.
// Older messages beyond the history limit stay in the store but are left out.
func (uc *ContextBuilderUsecase) Build(ctx context.Context, key domain.ConversationKey) ([]domain.Entry, error) {
	messages, err := uc.messageRepo.Fetch(ctx, key.ChatID, uc.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	// Stores return at most the limit, but guard against one that does not.
	if len(messages) > uc.cfg.HistoryLimit {
		messages = messages[len(messages)-uc.cfg.HistoryLimit:]
	}

	transcript := make([]domain.Entry, 0, len(messages)+1)
	transcript = append(transcript, domain.Entry{
		Role:    domain.RoleSystem,
		Content: uc.FormatSystemPrompt(),
	})

	for i := range messages {
		m := &messages[i]
		role := domain.RoleUser
		if m.IsBotAuthored() {
			role = domain.RoleAssistant
		}
		transcript = append(transcript, domain.Entry{
			Role:    role,
			Content: m.Render(),
		})
	}

	return transcript, nil
}

// FormatSystemPrompt renders the instruction template
func (uc *ContextBuilderUsecase) FormatSystemPrompt() string {
	result := strings.ReplaceAll(uc.cfg.SystemPrompt, "{{bot_name}}", uc.cfg.BotName)
	result = strings.ReplaceAll(result, "{{bot_id}}", domain.BotID)
	result = strings.ReplaceAll(result, "{{no_reply}}", domain.NoReplyToken)
	return strings.TrimSpace(result)
}
