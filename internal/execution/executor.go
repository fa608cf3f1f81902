// Package execution submits approved trades to the execution venue and
// reports the outcome to the notification channel. Venue failures are
// reported, never propagated: a failed execution must not stop monitoring.
package execution

import (
	"context"
	"fmt"
	"log/slog"

	"dexwatch/internal/model"
)

// ExplorerTxURL is the link template for executed transactions.
const ExplorerTxURL = "https://bscscan.com/tx/"

// Executor places approved trades through the venue.
type Executor struct {
	venue   model.Venue
	ch      model.Channel
	journal *Journal // optional; nil disables audit recording
	log     *slog.Logger
}

// New creates an Executor. journal may be nil.
func New(venue model.Venue, ch model.Channel, journal *Journal, log *slog.Logger) *Executor {
	return &Executor{venue: venue, ch: ch, journal: journal, log: log}
}

// Execute submits the trade keyed by its type and posts the result to the
// channel. The returned error reflects the venue failure for logging and
// metrics; callers are expected to continue regardless.
func (e *Executor) Execute(ctx context.Context, trade model.Trade) (string, error) {
	var (
		txID string
		err  error
	)
	switch trade.Type {
	case model.ActionSell:
		txID, err = e.venue.Sell(ctx, trade.Address, trade.Amount)
	default:
		txID, err = e.venue.Buy(ctx, trade.Address, trade.Amount)
	}

	if err != nil {
		e.log.Error("trade execution failed",
			slog.String("type", string(trade.Type)),
			slog.String("token", trade.Token),
			slog.Any("err", err))
		if _, perr := e.ch.Post(ctxErr(ctx), fmt.Sprintf("Error executing trade: %v", err)); perr != nil {
			e.log.Warn("failed to report execution error", slog.Any("err", perr))
		}
		return "", err
	}

	e.log.Info("trade executed",
		slog.String("type", string(trade.Type)),
		slog.String("token", trade.Token),
		slog.String("tx", txID))

	if e.journal != nil {
		if jerr := e.journal.Record(trade, txID); jerr != nil {
			e.log.Warn("journal write failed", slog.Any("err", jerr))
		}
	}

	msg := fmt.Sprintf("Trade executed! Transaction hash: %s\nView on BscScan: %s%s", txID, ExplorerTxURL, txID)
	if _, perr := e.ch.Post(ctx, msg); perr != nil {
		e.log.Warn("failed to report execution", slog.Any("err", perr))
	}
	return txID, nil
}

// ctxErr strips cancellation for the error report: even if the caller's
// context just expired, the failure should still reach the channel.
func ctxErr(ctx context.Context) context.Context {
	if ctx.Err() != nil {
		return context.Background()
	}
	return ctx
}
