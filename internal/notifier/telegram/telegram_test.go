package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/newthinker/quant/internal/notifier"
	"github.com/newthinker/quant/internal/report"
)

func TestTelegram_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Telegram)(nil)
}

func TestTelegram_Name(t *testing.T) {
	tg := New("token", "chatid")
	if tg.Name() != "telegram" {
		t.Errorf("expected 'telegram', got '%s'", tg.Name())
	}
}

func TestTelegram_Init(t *testing.T) {
	tg := &Telegram{}

	cfg := notifier.Config{
		Params: map[string]any{
			"bot_token": "test-token",
			"chat_id":   "test-chat",
		},
	}

	err := tg.Init(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tg.botToken != "test-token" {
		t.Errorf("expected bot_token 'test-token', got '%s'", tg.botToken)
	}
	if tg.chatID != "test-chat" {
		t.Errorf("expected chat_id 'test-chat', got '%s'", tg.chatID)
	}
	if tg.apiURL != defaultAPI {
		t.Errorf("expected default api url, got '%s'", tg.apiURL)
	}
}

func TestTelegram_Init_MissingToken(t *testing.T) {
	tg := &Telegram{}

	err := tg.Init(notifier.Config{Params: map[string]any{"chat_id": "test-chat"}})
	if err == nil {
		t.Error("expected error for missing bot_token")
	}
}

func TestTelegram_Init_MissingChatID(t *testing.T) {
	tg := &Telegram{}

	err := tg.Init(notifier.Config{Params: map[string]any{"bot_token": "test-token"}})
	if err == nil {
		t.Error("expected error for missing chat_id")
	}
}

func TestTelegram_FormatSummary(t *testing.T) {
	tg := New("token", "chat")

	msg := tg.formatSummary(report.Summary{
		RunID:       "r1",
		Strategy:    "breakout",
		Instruments: []string{"IF", "IC"},
		InitialCash: 1000,
		FinalEquity: 900,
		Halted:      true,
	})

	for _, want := range []string{"breakout", "r1", "IF, IC", "900.00", "📉", "Halted"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected message to contain %q, got:\n%s", want, msg)
		}
	}
}

func TestTelegram_Send(t *testing.T) {
	var (
		path    string
		payload map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tg := New("tok", "chat")
	tg.apiURL = server.URL

	if err := tg.Send(context.Background(), report.Summary{RunID: "r1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/bottok/sendMessage" {
		t.Errorf("unexpected path %s", path)
	}
	if payload["chat_id"] != "chat" {
		t.Errorf("expected chat_id 'chat', got %v", payload["chat_id"])
	}
}

func TestTelegram_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false}`))
	}))
	defer server.Close()

	tg := New("tok", "chat")
	tg.apiURL = server.URL

	if err := tg.Send(context.Background(), report.Summary{}); err == nil {
		t.Error("expected error for 400 response")
	}
}
