// Package notify implements the notification and approval channel over the
// Telegram Bot API: proposals are posted with inline accept/reject buttons,
// decisions arrive as callback queries, and bot commands (/start, /stop,
// /status) are surfaced on a command channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"dexwatch/internal/model"
)

const defaultAPIBase = "https://api.telegram.org"

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Token   string
	ChatID  int64
	APIBase string // default: https://api.telegram.org (overridable for tests)
}

// Telegram is a Channel backed by the Telegram Bot API. A single Run loop
// long-polls getUpdates and routes callback queries to response waiters;
// only the first qualifying response per message is delivered.
type Telegram struct {
	cfg    TelegramConfig
	client *http.Client // short calls
	poll   *http.Client // long-poll getUpdates
	log    *slog.Logger

	cmds chan model.Command

	mu      sync.Mutex
	pending map[int64]chan model.Response // message id → waiter
	offset  int64
}

// NewTelegram creates the channel. Run must be started for responses and
// commands to flow.
func NewTelegram(cfg TelegramConfig, log *slog.Logger) *Telegram {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	return &Telegram{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		poll:    &http.Client{Timeout: 60 * time.Second},
		log:     log,
		cmds:    make(chan model.Command, 16),
		pending: make(map[int64]chan model.Response),
	}
}

// Commands returns the stream of control commands received from the chat.
func (t *Telegram) Commands() <-chan model.Command {
	return t.cmds
}

// Post publishes a message to the configured chat.
func (t *Telegram) Post(ctx context.Context, text string) (model.MessageRef, error) {
	id, err := t.sendMessage(ctx, text, 0, nil)
	if err != nil {
		return model.MessageRef{}, err
	}
	return model.MessageRef{ID: id}, nil
}

// AttachOptions adds an inline keyboard with the two decision buttons.
func (t *Telegram) AttachOptions(ctx context.Context, ref model.MessageRef, accept, reject string) error {
	payload := map[string]any{
		"chat_id":      t.cfg.ChatID,
		"message_id":   ref.ID,
		"reply_markup": inlineKeyboard(accept, reject),
	}
	return t.call(ctx, t.client, "editMessageReplyMarkup", payload, nil)
}

// AwaitResponse blocks until the first button press on ref from a non-bot
// user, the timeout, or context cancellation.
func (t *Telegram) AwaitResponse(ctx context.Context, ref model.MessageRef, timeout time.Duration) (model.Response, error) {
	ch := make(chan model.Response, 1)
	t.mu.Lock()
	t.pending[ref.ID] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, ref.ID)
		t.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		return model.Response{}, model.ErrAwaitTimeout
	case <-ctx.Done():
		return model.Response{}, ctx.Err()
	}
}

// Reply posts text as a reply to ref.
func (t *Telegram) Reply(ctx context.Context, ref model.MessageRef, text string) error {
	_, err := t.sendMessage(ctx, text, ref.ID, nil)
	return err
}

// Run long-polls getUpdates until ctx is cancelled, routing callback queries
// to waiters and commands to the command channel. Poll errors are logged and
// retried after a short pause.
func (t *Telegram) Run(ctx context.Context) {
	t.log.Info("telegram update loop started", slog.Int64("chat_id", t.cfg.ChatID))
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := t.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Warn("getUpdates failed", slog.Any("err", err))
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		for _, u := range updates {
			t.handleUpdate(u)
		}
	}
}

// ── wire types ──

type tgUpdate struct {
	UpdateID int64       `json:"update_id"`
	Message  *tgMessage  `json:"message"`
	Callback *tgCallback `json:"callback_query"`
}

type tgMessage struct {
	MessageID int64   `json:"message_id"`
	Text      string  `json:"text"`
	From      *tgUser `json:"from"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

type tgCallback struct {
	ID      string     `json:"id"`
	From    *tgUser    `json:"from"`
	Message *tgMessage `json:"message"`
	Data    string     `json:"data"`
}

type tgUser struct {
	IsBot     bool   `json:"is_bot"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

func (u *tgUser) handle() string {
	if u == nil {
		return "unknown"
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

func (t *Telegram) handleUpdate(u tgUpdate) {
	switch {
	case u.Callback != nil:
		t.handleCallback(u.Callback)
	case u.Message != nil:
		t.handleMessage(u.Message)
	}
}

func (t *Telegram) handleCallback(cb *tgCallback) {
	// Always acknowledge so the client stops its spinner, even for
	// responses we end up ignoring.
	defer t.answerCallback(cb.ID)

	if cb.From != nil && cb.From.IsBot {
		return
	}
	if cb.Message == nil || (cb.Data != model.ChoiceAccept && cb.Data != model.ChoiceReject) {
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[cb.Message.MessageID]
	if ok {
		// First response wins: later presses find no waiter.
		delete(t.pending, cb.Message.MessageID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	ch <- model.Response{Choice: cb.Data, Responder: cb.From.handle()}
}

func (t *Telegram) handleMessage(msg *tgMessage) {
	if msg.From != nil && msg.From.IsBot {
		return
	}
	if msg.Chat.ID != t.cfg.ChatID {
		return
	}
	name, ok := ParseCommand(msg.Text)
	if !ok {
		return
	}
	select {
	case t.cmds <- model.Command{Name: name, Msg: model.MessageRef{ID: msg.MessageID}}:
	default:
		t.log.Warn("command channel full, dropping", slog.String("command", name))
	}
}

// ParseCommand recognizes /start, /stop and /status messages, tolerating a
// @botname suffix and surrounding whitespace.
func ParseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.TrimPrefix(text, "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	switch name {
	case "start", "stop", "status":
		return name, true
	}
	return "", false
}

// ── Bot API plumbing ──

func (t *Telegram) sendMessage(ctx context.Context, text string, replyTo int64, markup any) (int64, error) {
	payload := map[string]any{
		"chat_id": t.cfg.ChatID,
		"text":    text,
	}
	if replyTo != 0 {
		payload["reply_to_message_id"] = replyTo
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}

	var result tgMessage
	if err := t.call(ctx, t.client, "sendMessage", payload, &result); err != nil {
		return 0, err
	}
	return result.MessageID, nil
}

func (t *Telegram) getUpdates(ctx context.Context) ([]tgUpdate, error) {
	payload := map[string]any{
		"offset":          t.offset,
		"timeout":         50,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []tgUpdate
	if err := t.call(ctx, t.poll, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	for _, u := range updates {
		if u.UpdateID >= t.offset {
			t.offset = u.UpdateID + 1
		}
	}
	return updates, nil
}

func (t *Telegram) answerCallback(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.call(ctx, t.client, "answerCallbackQuery", map[string]any{"callback_query_id": id}, nil); err != nil {
		t.log.Debug("answerCallbackQuery failed", slog.Any("err", err))
	}
}

// call POSTs a JSON payload to a Bot API method and decodes result into out.
func (t *Telegram) call(ctx context.Context, client *http.Client, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.cfg.APIBase, t.cfg.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("telegram: %s decode: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram: %s: %s", method, envelope.Description)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("telegram: %s result decode: %w", method, err)
		}
	}
	return nil
}

func inlineKeyboard(accept, reject string) map[string]any {
	return map[string]any{
		"inline_keyboard": [][]map[string]string{{
			{"text": accept, "callback_data": model.ChoiceAccept},
			{"text": reject, "callback_data": model.ChoiceReject},
		}},
	}
}
