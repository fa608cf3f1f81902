package approval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"dexwatch/internal/model"
)

// fakeChannel is a scripted Channel: it records posts and replies, and
// resolves AwaitResponse from a canned response (or times out).
type fakeChannel struct {
	posts   []string
	replies []string

	resp    *model.Response // nil → timeout
	postErr error

	attachAccept string
	attachReject string
}

func (f *fakeChannel) Post(ctx context.Context, text string) (model.MessageRef, error) {
	if f.postErr != nil {
		return model.MessageRef{}, f.postErr
	}
	f.posts = append(f.posts, text)
	return model.MessageRef{ID: int64(len(f.posts))}, nil
}

func (f *fakeChannel) AttachOptions(ctx context.Context, ref model.MessageRef, accept, reject string) error {
	f.attachAccept, f.attachReject = accept, reject
	return nil
}

func (f *fakeChannel) AwaitResponse(ctx context.Context, ref model.MessageRef, timeout time.Duration) (model.Response, error) {
	if f.resp == nil {
		return model.Response{}, model.ErrAwaitTimeout
	}
	return *f.resp, nil
}

func (f *fakeChannel) Reply(ctx context.Context, ref model.MessageRef, text string) error {
	f.replies = append(f.replies, text)
	return nil
}

func testTrade() model.Trade {
	return model.Trade{
		Type:       model.ActionBuy,
		Token:      "CAKE",
		Address:    "0xcake",
		Amount:     1.0,
		Price:      4.2,
		TotalValue: 4.2,
		GasPrice:   "7000000000",
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequest_Approved(t *testing.T) {
	ch := &fakeChannel{resp: &model.Response{Choice: model.ChoiceAccept, Responder: "@alice"}}
	w := New(ch, time.Second, discard())

	outcome, err := w.Request(context.Background(), testTrade())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != Approved {
		t.Errorf("outcome: got %s, want APPROVED", outcome)
	}
	if len(ch.posts) != 1 || !strings.Contains(ch.posts[0], "Trade Approval Required") {
		t.Errorf("proposal post missing or malformed: %v", ch.posts)
	}
	if ch.attachAccept == "" || ch.attachReject == "" {
		t.Error("response affordances were not attached")
	}
	if len(ch.replies) != 1 || !strings.Contains(ch.replies[0], "approved by @alice") {
		t.Errorf("confirmation reply: got %v", ch.replies)
	}
}

func TestRequest_Rejected(t *testing.T) {
	ch := &fakeChannel{resp: &model.Response{Choice: model.ChoiceReject, Responder: "@bob"}}
	w := New(ch, time.Second, discard())

	outcome, err := w.Request(context.Background(), testTrade())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != Rejected {
		t.Errorf("outcome: got %s, want REJECTED", outcome)
	}
	if len(ch.replies) != 1 || !strings.Contains(ch.replies[0], "rejected by @bob") {
		t.Errorf("confirmation reply: got %v", ch.replies)
	}
}

func TestRequest_Timeout(t *testing.T) {
	ch := &fakeChannel{} // never responds
	w := New(ch, 5*time.Millisecond, discard())

	outcome, err := w.Request(context.Background(), testTrade())
	if err != nil {
		t.Fatalf("timeout must not surface as an error, got: %v", err)
	}
	if outcome != TimedOut {
		t.Errorf("outcome: got %s, want TIMED_OUT", outcome)
	}
	if len(ch.replies) != 1 || ch.replies[0] != "Trade approval timed out" {
		t.Errorf("timeout reply: got %v", ch.replies)
	}
}

func TestRequest_PostFailure(t *testing.T) {
	ch := &fakeChannel{postErr: errors.New("channel down")}
	w := New(ch, time.Second, discard())

	if _, err := w.Request(context.Background(), testTrade()); err == nil {
		t.Fatal("expected a transport error")
	}
}

func TestFormatProposal(t *testing.T) {
	text := FormatProposal(testTrade())
	for _, want := range []string{"Type: BUY", "Token: CAKE", "Amount: 1.0000", "Price: $4.2000", "Total Value: $4.20", "Gas Price: 7000000000"} {
		if !strings.Contains(text, want) {
			t.Errorf("proposal text missing %q:\n%s", want, text)
		}
	}
}
