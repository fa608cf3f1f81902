// Package approval implements the human approval workflow for proposed
// trades: post a proposal to the notification channel, attach accept/reject
// affordances, and wait a bounded time for the first qualifying response.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dexwatch/internal/model"
)

// Outcome is the terminal result of an approval request.
type Outcome int

const (
	Approved Outcome = iota
	Rejected
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Approved:
		return "APPROVED"
	case Rejected:
		return "REJECTED"
	case TimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// Workflow posts trade proposals and resolves them to an Outcome.
// Only one proposal is outstanding at a time: the monitoring loop is the sole
// caller and never issues a new request before the previous one resolves.
type Workflow struct {
	ch      model.Channel
	timeout time.Duration
	log     *slog.Logger
}

// New creates a Workflow waiting up to timeout for each decision.
func New(ch model.Channel, timeout time.Duration, log *slog.Logger) *Workflow {
	return &Workflow{ch: ch, timeout: timeout, log: log}
}

// Request posts the proposal and blocks until it is approved, rejected, or
// the wait times out. A timeout is a terminal non-error outcome; only channel
// transport failures return an error.
func (w *Workflow) Request(ctx context.Context, trade model.Trade) (Outcome, error) {
	ref, err := w.ch.Post(ctx, FormatProposal(trade))
	if err != nil {
		return TimedOut, fmt.Errorf("approval: post proposal: %w", err)
	}
	if err := w.ch.AttachOptions(ctx, ref, "✅ Approve", "❌ Reject"); err != nil {
		return TimedOut, fmt.Errorf("approval: attach options: %w", err)
	}

	w.log.Info("approval requested",
		slog.String("type", string(trade.Type)),
		slog.String("token", trade.Token),
		slog.Float64("price", trade.Price))

	resp, err := w.ch.AwaitResponse(ctx, ref, w.timeout)
	if err != nil {
		if errors.Is(err, model.ErrAwaitTimeout) {
			if rerr := w.ch.Reply(ctx, ref, "Trade approval timed out"); rerr != nil {
				w.log.Warn("timeout reply failed", slog.Any("err", rerr))
			}
			return TimedOut, nil
		}
		return TimedOut, fmt.Errorf("approval: await response: %w", err)
	}

	outcome := Rejected
	verdict := "rejected"
	if resp.Choice == model.ChoiceAccept {
		outcome = Approved
		verdict = "approved"
	}
	if rerr := w.ch.Reply(ctx, ref, fmt.Sprintf("Trade %s by %s", verdict, resp.Responder)); rerr != nil {
		w.log.Warn("decision reply failed", slog.Any("err", rerr))
	}

	w.log.Info("approval resolved",
		slog.String("token", trade.Token),
		slog.String("outcome", outcome.String()),
		slog.String("responder", resp.Responder))
	return outcome, nil
}

// FormatProposal renders a trade proposal for the channel. Rounding happens
// here, at the presentation edge, never inside the indicator engine.
func FormatProposal(t model.Trade) string {
	return fmt.Sprintf(
		"Trade Approval Required\n"+
			"Type: %s\n"+
			"Token: %s\n"+
			"Amount: %.4f\n"+
			"Price: $%.4f\n"+
			"Total Value: $%.2f\n"+
			"Gas Price: %s",
		t.Type, t.Token, t.Amount, t.Price, t.TotalValue, t.GasPrice)
}
