package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dexwatch/internal/model"
)

// botAPIStub emulates the handful of Bot API methods the channel uses and
// records the JSON payload of every call.
type botAPIStub struct {
	mu      sync.Mutex
	calls   map[string][]map[string]any
	nextMsg int64
}

func newBotAPIStub(t *testing.T) (*httptest.Server, *botAPIStub) {
	t.Helper()
	stub := &botAPIStub{calls: make(map[string][]map[string]any)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]

		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)

		stub.mu.Lock()
		stub.calls[method] = append(stub.calls[method], payload)
		stub.nextMsg++
		msgID := stub.nextMsg
		stub.mu.Unlock()

		var result any = true
		switch method {
		case "sendMessage":
			result = map[string]any{"message_id": msgID}
		case "getUpdates":
			result = []any{}
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	}))
	t.Cleanup(srv.Close)
	return srv, stub
}

func (s *botAPIStub) last(method string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := s.calls[method]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

func newTestTelegram(t *testing.T) (*Telegram, *botAPIStub) {
	srv, stub := newBotAPIStub(t)
	tg := NewTelegram(TelegramConfig{
		Token:   "test-token",
		ChatID:  42,
		APIBase: srv.URL,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return tg, stub
}

func TestTelegram_PostAndReply(t *testing.T) {
	tg, stub := newTestTelegram(t)

	ref, err := tg.Post(context.Background(), "hello")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if ref.ID == 0 {
		t.Error("expected a message id")
	}
	payload := stub.last("sendMessage")
	if payload["chat_id"].(float64) != 42 || payload["text"] != "hello" {
		t.Errorf("sendMessage payload: %v", payload)
	}

	if err := tg.Reply(context.Background(), ref, "pong"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	payload = stub.last("sendMessage")
	if payload["reply_to_message_id"].(float64) != float64(ref.ID) {
		t.Errorf("reply payload: %v", payload)
	}
}

func TestTelegram_AttachOptions(t *testing.T) {
	tg, stub := newTestTelegram(t)

	err := tg.AttachOptions(context.Background(), model.MessageRef{ID: 7}, "✅ Approve", "❌ Reject")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	payload := stub.last("editMessageReplyMarkup")
	if payload["message_id"].(float64) != 7 {
		t.Errorf("message_id: %v", payload)
	}
	raw, _ := json.Marshal(payload["reply_markup"])
	markup := string(raw)
	for _, want := range []string{"inline_keyboard", model.ChoiceAccept, model.ChoiceReject, "✅ Approve", "❌ Reject"} {
		if !strings.Contains(markup, want) {
			t.Errorf("reply_markup missing %q: %s", want, markup)
		}
	}
}

func callback(msgID int64, data, user string, isBot bool) tgUpdate {
	return tgUpdate{Callback: &tgCallback{
		ID:      "cb",
		From:    &tgUser{IsBot: isBot, Username: user},
		Message: &tgMessage{MessageID: msgID},
		Data:    data,
	}}
}

func TestTelegram_AwaitResponse_FirstWins(t *testing.T) {
	tg, _ := newTestTelegram(t)

	type result struct {
		resp model.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := tg.AwaitResponse(context.Background(), model.MessageRef{ID: 9}, time.Second)
		done <- result{resp, err}
	}()

	// Give the waiter a moment to register.
	time.Sleep(10 * time.Millisecond)

	// A bot's press is not a qualifying response.
	tg.handleUpdate(callback(9, model.ChoiceAccept, "robo", true))
	// First human press wins…
	tg.handleUpdate(callback(9, model.ChoiceReject, "alice", false))
	// …later presses are ignored.
	tg.handleUpdate(callback(9, model.ChoiceAccept, "bob", false))

	r := <-done
	if r.err != nil {
		t.Fatalf("await: %v", r.err)
	}
	if r.resp.Choice != model.ChoiceReject || r.resp.Responder != "@alice" {
		t.Errorf("response: %+v", r.resp)
	}
}

func TestTelegram_AwaitResponse_Timeout(t *testing.T) {
	tg, _ := newTestTelegram(t)

	_, err := tg.AwaitResponse(context.Background(), model.MessageRef{ID: 5}, 10*time.Millisecond)
	if err != model.ErrAwaitTimeout {
		t.Fatalf("expected ErrAwaitTimeout, got %v", err)
	}

	// The waiter must be deregistered after timing out.
	tg.mu.Lock()
	_, pending := tg.pending[5]
	tg.mu.Unlock()
	if pending {
		t.Error("waiter leaked after timeout")
	}
}

func TestTelegram_CommandRouting(t *testing.T) {
	tg, _ := newTestTelegram(t)

	msg := func(chatID int64, text string, isBot bool) tgUpdate {
		m := &tgMessage{MessageID: 1, Text: text, From: &tgUser{IsBot: isBot}}
		m.Chat.ID = chatID
		return tgUpdate{Message: m}
	}

	tg.handleUpdate(msg(42, "/start", false))
	tg.handleUpdate(msg(42, "/status@dexwatch_bot", false))
	tg.handleUpdate(msg(42, "hello there", false)) // not a command
	tg.handleUpdate(msg(42, "/stop", true))        // bots are ignored
	tg.handleUpdate(msg(99, "/stop", false))       // wrong chat

	var got []string
	for len(tg.Commands()) > 0 {
		got = append(got, (<-tg.Commands()).Name)
	}
	if len(got) != 2 || got[0] != "start" || got[1] != "status" {
		t.Errorf("commands: %v", got)
	}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		name string
		ok   bool
	}{
		{"/start", "start", true},
		{"/stop", "stop", true},
		{"/status", "status", true},
		{" /start ", "start", true},
		{"/start@somebot", "start", true},
		{"/restart", "", false},
		{"start", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		name, ok := ParseCommand(tc.in)
		if name != tc.name || ok != tc.ok {
			t.Errorf("ParseCommand(%q) = %q,%v want %q,%v", tc.in, name, ok, tc.name, tc.ok)
		}
	}
}
