package model

import (
	"context"
	"errors"
	"time"
)

// ── Capability Port Interfaces ──
// These interfaces decouple the monitoring loop from the concrete execution
// venue and notification channel. Production and mock/test implementations
// are selected at startup, never branched on internally.

// Venue is the external system that supplies prices and executes trades.
type Venue interface {
	// Quote returns the price of one unit of token expressed in quoteToken.
	Quote(ctx context.Context, token, quoteToken string) (float64, error)

	// Buy submits a market buy for amount token units. Returns a transaction id.
	Buy(ctx context.Context, token string, amount float64) (string, error)

	// Sell submits a market sell for amount token units. Returns a transaction id.
	Sell(ctx context.Context, token string, amount float64) (string, error)

	// GasPrice reports the venue's current gas price as an opaque string.
	GasPrice(ctx context.Context) (string, error)
}

// MessageRef identifies a posted channel message so later operations
// (option attachment, replies, response waits) can target it.
type MessageRef struct {
	ID int64
}

// Response choice values, normalized across channel implementations.
const (
	ChoiceAccept = "accept"
	ChoiceReject = "reject"
)

// Response is a human reaction to a posted proposal.
type Response struct {
	Choice    string // ChoiceAccept or ChoiceReject
	Responder string // human-readable responder handle
}

// ErrAwaitTimeout is returned by Channel.AwaitResponse when no qualifying
// response arrives within the wait window. It is a terminal outcome for the
// caller, not a transport failure.
var ErrAwaitTimeout = errors.New("response wait timed out")

// Channel is the human-facing notification and approval surface.
type Channel interface {
	// Post publishes a message and returns a reference to it.
	Post(ctx context.Context, text string) (MessageRef, error)

	// AttachOptions adds two mutually exclusive response affordances
	// (accept / reject) to a previously posted message.
	AttachOptions(ctx context.Context, ref MessageRef, accept, reject string) error

	// AwaitResponse blocks until the first qualifying response to ref from a
	// non-automated responder arrives, or timeout elapses (ErrAwaitTimeout).
	// Responses arriving after the first are ignored.
	AwaitResponse(ctx context.Context, ref MessageRef, timeout time.Duration) (Response, error)

	// Reply posts text as a reply to ref.
	Reply(ctx context.Context, ref MessageRef, text string) error
}

// Command is a textual control command received from the channel.
type Command struct {
	Name string     // "start", "stop", "status"
	Msg  MessageRef // the message carrying the command, for replies
}
