package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestConversationKey_Valid(t *testing.T) {
	if !(ConversationKey{ChatID: "c1", UserID: "u1"}).Valid() {
		t.Error("Expected key with both parts to be valid")
	}
	if (ConversationKey{ChatID: "c1"}).Valid() {
		t.Error("Expected key without user to be invalid")
	}
}

func TestInbound_Key(t *testing.T) {
	in := Inbound{ChatID: "c1", UserID: "u1", Username: "alice", Text: "hi"}
	key := in.Key()
	if key.ChatID != "c1" || key.UserID != "u1" {
		t.Errorf("Unexpected key: %+v", key)
	}
	if key.String() != "c1/u1" {
		t.Errorf("Expected c1/u1, got %s", key.String())
	}
}

func TestMessage_Render(t *testing.T) {
	tests := []struct {
		msg  Message
		want string
		bot  bool
	}{
		{Message{AuthorID: "42", AuthorName: "alice", Text: "hello"}, "alice (42): hello", false},
		{Message{AuthorID: BotID, AuthorName: "ButlerBot", Text: "84"}, "ButlerBot (0): 84", true},
	}

	for _, tt := range tests {
		if got := tt.msg.Render(); got != tt.want {
			t.Errorf("Render() = %q, want %q", got, tt.want)
		}
		if got := tt.msg.IsBotAuthored(); got != tt.bot {
			t.Errorf("IsBotAuthored() = %v, want %v", got, tt.bot)
		}
	}
}

func TestSelfPrefix(t *testing.T) {
	if got := SelfPrefix("ButlerBot"); got != "ButlerBot (0): " {
		t.Errorf("Unexpected prefix %q", got)
	}
}

func TestGenerationOutcome_Suppress(t *testing.T) {
	if got := Final(NoReplyToken).Suppress(); got.Kind != OutcomeSuppressed {
		t.Errorf("Expected sentinel to be suppressed, got %s", got.Kind)
	}
	if got := Final("84").Suppress(); got.Kind != OutcomeFinal || got.Text != "84" {
		t.Errorf("Expected final text to pass through, got %+v", got)
	}
	failed := Failed(ErrTransient)
	if got := failed.Suppress(); got.Kind != OutcomeFailed {
		t.Errorf("Expected failure to pass through, got %s", got.Kind)
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("append: %w", ErrStore), "store"},
		{fmt.Errorf("call 2: %w", ErrInvalidRequest), "invalid_request"},
		{ErrToolLoopExceeded, "tool_loop_exceeded"},
		{fmt.Errorf("wrap: %w", fmt.Errorf("inner: %w", ErrEvaluation)), "evaluation"},
		{errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestTail(t *testing.T) {
	entries := []Entry{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	if got := Tail(entries, 2); len(got) != 2 || got[0].Content != "b" {
		t.Errorf("Unexpected tail %+v", got)
	}
	if got := Tail(entries, 5); len(got) != 3 {
		t.Errorf("Expected all entries, got %d", len(got))
	}
}
