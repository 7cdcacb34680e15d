package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/butlerbot/relay/internal/biz/domain"
)

type mockMessageRepo struct {
	mu        sync.Mutex
	history   []domain.Message
	lastLimit int
	fetchErr  error
}

func (m *mockMessageRepo) Append(ctx context.Context, chatID, authorID, authorName, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq := int64(len(m.history) + 1)
	m.history = append(m.history, domain.Message{
		Seq: seq, ChatID: chatID, AuthorID: authorID, AuthorName: authorName, Text: text, CreatedAt: time.Now(),
	})
	return seq, nil
}

func (m *mockMessageRepo) Fetch(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []domain.Message
	for _, msg := range m.history {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockMessageRepo) Close() error { return nil }

func TestBuildTranscript(t *testing.T) {
	msgRepo := &mockMessageRepo{}
	ctx := context.Background()
	msgRepo.Append(ctx, "c1", "42", "Alice", "hi")
	msgRepo.Append(ctx, "c2", "7", "Eve", "other chat")
	msgRepo.Append(ctx, "c1", domain.BotID, "ButlerBot", "hello Alice")
	msgRepo.Append(ctx, "c1", "43", "Bob", "ButlerBot what is 2+2?")

	uc := NewContextBuilderUsecase(msgRepo, PromptConfig{})
	transcript, err := uc.Build(ctx, domain.ConversationKey{ChatID: "c1", UserID: "43"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(transcript) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(transcript))
	}
	if transcript[0].Role != domain.RoleSystem {
		t.Errorf("first entry role = %q, want system", transcript[0].Role)
	}

	want := []domain.Entry{
		{Role: domain.RoleUser, Content: "Alice (42): hi"},
		{Role: domain.RoleAssistant, Content: "ButlerBot (0): hello Alice"},
		{Role: domain.RoleUser, Content: "Bob (43): ButlerBot what is 2+2?"},
	}
	for i, w := range want {
		got := transcript[i+1]
		if got.Role != w.Role || got.Content != w.Content {
			t.Errorf("entry %d = {%s %q}, want {%s %q}", i+1, got.Role, got.Content, w.Role, w.Content)
		}
	}
}

func TestBuildHistoryLimit(t *testing.T) {
	msgRepo := &mockMessageRepo{}
	ctx := context.Background()
	for i := 0; i < 1005; i++ {
		msgRepo.Append(ctx, "c1", "42", "Alice", fmt.Sprintf("m%d", i))
	}

	uc := NewContextBuilderUsecase(msgRepo, PromptConfig{})
	transcript, err := uc.Build(ctx, domain.ConversationKey{ChatID: "c1", UserID: "42"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if msgRepo.lastLimit != DefaultHistoryLimit {
		t.Errorf("fetch limit = %d, want %d", msgRepo.lastLimit, DefaultHistoryLimit)
	}
	if len(transcript) != DefaultHistoryLimit+1 {
		t.Fatalf("expected %d entries, got %d", DefaultHistoryLimit+1, len(transcript))
	}
	// Oldest five are left out, order is preserved.
	if transcript[1].Content != "Alice (42): m5" {
		t.Errorf("first history entry = %q", transcript[1].Content)
	}
	if transcript[len(transcript)-1].Content != "Alice (42): m1004" {
		t.Errorf("last history entry = %q", transcript[len(transcript)-1].Content)
	}
}

func TestBuildCustomLimit(t *testing.T) {
	msgRepo := &mockMessageRepo{}
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		msgRepo.Append(ctx, "c1", "42", "Alice", fmt.Sprintf("m%d", i))
	}

	uc := NewContextBuilderUsecase(msgRepo, PromptConfig{HistoryLimit: 3})
	transcript, err := uc.Build(ctx, domain.ConversationKey{ChatID: "c1", UserID: "42"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(transcript) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(transcript))
	}
	if transcript[1].Content != "Alice (42): m7" {
		t.Errorf("first history entry = %q", transcript[1].Content)
	}
}

func TestBuildFetchError(t *testing.T) {
	msgRepo := &mockMessageRepo{fetchErr: fmt.Errorf("%w: disk gone", domain.ErrStore)}
	uc := NewContextBuilderUsecase(msgRepo, PromptConfig{})

	_, err := uc.Build(context.Background(), domain.ConversationKey{ChatID: "c1", UserID: "42"})
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}

func TestFormatSystemPrompt(t *testing.T) {
	uc := NewContextBuilderUsecase(&mockMessageRepo{}, PromptConfig{})
	prompt := uc.FormatSystemPrompt()

	for _, want := range []string{"ButlerBot", "and 0", "respond with -", "plain text"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt should contain %q", want)
		}
	}
	if strings.Contains(prompt, "{{") {
		t.Errorf("system prompt has unreplaced placeholders: %s", prompt)
	}

	custom := NewContextBuilderUsecase(&mockMessageRepo{}, PromptConfig{
		BotName:      "Jeeves",
		SystemPrompt: "You are {{bot_name}} ({{bot_id}}). Say {{no_reply}} to stay quiet.",
	})
	if got := custom.FormatSystemPrompt(); got != "You are Jeeves (0). Say - to stay quiet." {
		t.Errorf("custom prompt = %q", got)
	}
	if custom.BotName() != "Jeeves" {
		t.Errorf("BotName = %q", custom.BotName())
	}
}
