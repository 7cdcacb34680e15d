package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEvalCommand(t *testing.T) {
	out, err := run(t, "eval", "12*7")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if strings.TrimSpace(out) != "84" {
		t.Errorf("output = %q, want 84", out)
	}

	if _, err := run(t, "eval", "1/0"); err == nil {
		t.Error("expected error for division by zero")
	}
}

func TestSendCommand(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]int64{"seq": 3})
	}))
	defer srv.Close()

	out, err := run(t, "send", "--api-url", srv.URL, "--name", "Alice", "c1", "42", "ButlerBot,", "what", "is", "2+2?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(out, "seq=3") {
		t.Errorf("output = %q", out)
	}
	if got["text"] != "ButlerBot, what is 2+2?" || got["username"] != "Alice" {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestReportFailureNeverBlocks(t *testing.T) {
	errCh := make(chan error, 1)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	done := make(chan struct{})
	go func() {
		reportFailure(errCh, errors.New("API server: address in use"), logger)
		reportFailure(errCh, errors.New("feishu: connection refused"), logger)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second failure blocked")
	}
	if err := <-errCh; err.Error() != "API server: address in use" {
		t.Errorf("first failure should win, got %v", err)
	}
}
