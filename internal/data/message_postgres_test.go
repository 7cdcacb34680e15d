package data

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/butlerbot/relay/internal/biz/domain"
	"github.com/butlerbot/relay/internal/biz/repo"
)

// newPostgresTestStore connects to RELAY_TEST_POSTGRES_DSN or skips
func newPostgresTestStore(t *testing.T) repo.MessageRepo {
	t.Helper()
	dsn := os.Getenv("RELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("RELAY_TEST_POSTGRES_DSN not set")
	}
	r, err := NewPostgresMessageRepo(context.Background(), PostgresConfig{DSN: dsn, ConnectAttempts: 1}, "ButlerBot")
	if err != nil {
		t.Fatalf("NewPostgresMessageRepo: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestPostgresAppendFetch(t *testing.T) {
	store := newPostgresTestStore(t)
	ctx := context.Background()
	chat := "c-" + uuid.NewString()

	store.Append(ctx, chat, "42", "Alice", "hi")
	store.Append(ctx, chat, domain.BotID, "ButlerBot", "hello")
	store.Append(ctx, "other-"+chat, "7", "Eve", "elsewhere")

	msgs, err := store.Fetch(ctx, chat, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Render() != "Alice (42): hi" || msgs[1].Render() != "ButlerBot (0): hello" {
		t.Errorf("unexpected messages %q, %q", msgs[0].Render(), msgs[1].Render())
	}
	if msgs[1].Seq <= msgs[0].Seq || !msgs[1].IsBotAuthored() {
		t.Errorf("unexpected order or author %+v", msgs)
	}
}

func TestPostgresFetchLimitKeepsMostRecent(t *testing.T) {
	store := newPostgresTestStore(t)
	ctx := context.Background()
	chat := "c-" + uuid.NewString()

	for i := 0; i < 10; i++ {
		if _, err := store.Append(ctx, chat, "42", "Alice", fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	msgs, err := store.Fetch(ctx, chat, 3)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Text != "m7" || msgs[2].Text != "m9" {
		t.Errorf("unexpected window %+v", msgs)
	}
}

func TestPingWithRetry(t *testing.T) {
	calls := 0
	flaky := func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}
	if err := pingWithRetry(context.Background(), flaky, 5, time.Millisecond); err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	calls = 0
	down := func(ctx context.Context) error {
		calls++
		return errors.New("connection refused")
	}
	if err := pingWithRetry(context.Background(), down, 4, time.Millisecond); err == nil {
		t.Fatal("expected error when the database never answers")
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	if err := pingWithRetry(ctx, down, 5, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
