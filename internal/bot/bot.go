// Package bot runs the market monitoring loop and dispatches the
// start/stop/status control commands received from the notification channel.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"dexwatch/internal/approval"
	"dexwatch/internal/events"
	"dexwatch/internal/execution"
	"dexwatch/internal/history"
	"dexwatch/internal/indicator"
	"dexwatch/internal/metrics"
	"dexwatch/internal/model"
	"dexwatch/internal/strategy"
)

// Options collects the Bot's collaborators and loop parameters.
type Options struct {
	Venue    model.Venue
	Channel  model.Channel
	Commands <-chan model.Command

	History  *history.Store
	Approval *approval.Workflow
	Executor *execution.Executor
	Events   *events.Publisher // nil disables event publishing
	Metrics  *metrics.Metrics
	Health   *metrics.Health // nil disables liveness reporting

	Tokens     map[string]string // name → address, includes the quote token
	QuoteToken string

	PollInterval time.Duration
	ErrorBackoff time.Duration

	Log *slog.Logger
}

// Bot owns the monitoring state machine: IDLE until a start command, then
// MONITORING until stop. The running flag is the only state shared between
// the command dispatcher and the monitor goroutine.
type Bot struct {
	venue model.Venue
	ch    model.Channel
	cmds  <-chan model.Command

	hist     *history.Store
	approval *approval.Workflow
	exec     *execution.Executor
	events   *events.Publisher
	metrics  *metrics.Metrics
	health   *metrics.Health

	tokens     map[string]string
	watched    []string // sorted token names excluding the quote token
	quoteToken string

	pollInterval time.Duration
	errorBackoff time.Duration

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	log *slog.Logger
}

// New creates a Bot in the IDLE state.
func New(o Options) *Bot {
	watched := make([]string, 0, len(o.Tokens))
	for name := range o.Tokens {
		if name == o.QuoteToken {
			continue
		}
		watched = append(watched, name)
	}
	sort.Strings(watched)

	return &Bot{
		venue:        o.Venue,
		ch:           o.Channel,
		cmds:         o.Commands,
		hist:         o.History,
		approval:     o.Approval,
		exec:         o.Executor,
		events:       o.Events,
		metrics:      o.Metrics,
		health:       o.Health,
		tokens:       o.Tokens,
		watched:      watched,
		quoteToken:   o.QuoteToken,
		pollInterval: o.PollInterval,
		errorBackoff: o.ErrorBackoff,
		log:          o.Log,
	}
}

// Running reports whether the monitoring loop is active.
func (b *Bot) Running() bool {
	return b.running.Load()
}

// Run dispatches control commands until ctx is cancelled. It blocks; callers
// run it as the main loop. On exit any active monitor goroutine is stopped
// and waited for.
func (b *Bot) Run(ctx context.Context) {
	b.log.Info("bot ready", slog.Int("tokens", len(b.watched)))

	for {
		select {
		case <-ctx.Done():
			b.stopMonitor()
			b.wg.Wait()
			b.log.Info("bot shut down")
			return
		case cmd, ok := <-b.cmds:
			if !ok {
				b.stopMonitor()
				b.wg.Wait()
				return
			}
			b.dispatch(ctx, cmd)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, cmd model.Command) {
	b.log.Info("command received", slog.String("command", cmd.Name))

	switch cmd.Name {
	case "start":
		b.handleStart(ctx, cmd)
	case "stop":
		b.handleStop(ctx, cmd)
	case "status":
		b.handleStatus(ctx, cmd)
	default:
		b.log.Warn("unknown command", slog.String("command", cmd.Name))
	}
}

// handleStart transitions IDLE → MONITORING. The monitor loop runs in its
// own goroutine so command dispatch stays responsive while monitoring.
func (b *Bot) handleStart(ctx context.Context, cmd model.Command) {
	if !b.running.CompareAndSwap(false, true) {
		b.reply(ctx, cmd.Msg, "Already monitoring markets!")
		return
	}

	b.stopCh = make(chan struct{})
	b.setMonitoring(true)
	b.reply(ctx, cmd.Msg, "Started monitoring markets. Use /stop to halt.")

	stopCh := b.stopCh
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.monitor(ctx, stopCh)
	}()
}

// handleStop acknowledges immediately; the in-flight cycle finishes its
// current iteration and the loop then exits to IDLE.
func (b *Bot) handleStop(ctx context.Context, cmd model.Command) {
	b.stopMonitor()
	b.reply(ctx, cmd.Msg, "Stopping market monitoring...")
}

func (b *Bot) stopMonitor() {
	if b.running.CompareAndSwap(true, false) {
		b.setMonitoring(false)
		close(b.stopCh)
	}
}

// handleStatus reports inactivity, or quotes every watched token in order.
func (b *Bot) handleStatus(ctx context.Context, cmd model.Command) {
	if !b.running.Load() {
		b.reply(ctx, cmd.Msg, "Bot is inactive. Use /start to begin monitoring.")
		return
	}

	report := "Current Market Status:\n"
	for _, name := range b.watched {
		price, err := b.venue.Quote(ctx, b.tokens[name], b.tokens[b.quoteToken])
		if err != nil {
			b.log.Warn("status quote failed", slog.String("token", name), slog.Any("err", err))
			report += fmt.Sprintf("%s: unavailable\n", name)
			continue
		}
		report += fmt.Sprintf("%s: $%.4f\n", name, price)
	}
	b.reply(ctx, cmd.Msg, report)
}

// monitor runs cycles until the running flag drops. Any cycle error triggers
// the error backoff before the next attempt; a clean cycle sleeps the poll
// interval. Stop wakes both sleeps, but never interrupts cycle work: cycle
// operations take ctx, not a per-run context.
func (b *Bot) monitor(ctx context.Context, stopCh <-chan struct{}) {
	b.log.Info("monitoring started",
		slog.Duration("interval", b.pollInterval),
		slog.Duration("backoff", b.errorBackoff))

	for b.running.Load() {
		wait := b.pollInterval
		if err := b.cycle(ctx); err != nil {
			b.metrics.CycleErrors.Inc()
			b.log.Error("monitoring cycle failed", slog.Any("err", err))
			wait = b.errorBackoff
		} else {
			b.metrics.CyclesTotal.Inc()
		}

		select {
		case <-stopCh:
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
	b.log.Info("monitoring stopped")
}

// cycle runs one pass over the watched tokens: quote, record, compute
// indicators, evaluate, and walk any signal through approval and execution.
func (b *Bot) cycle(ctx context.Context) error {
	for _, name := range b.watched {
		price := b.quote(ctx, name)
		b.hist.Add(name, price)
		b.events.Quote(ctx, name, price)

		ind := indicator.Calculate(b.hist.Get(name))
		if ind == nil {
			b.log.Debug("insufficient history", slog.String("token", name),
				slog.Int("samples", b.hist.Len(name)))
			continue
		}
		b.log.Debug("indicators computed",
			slog.String("token", name),
			slog.Float64("price", price),
			slog.Float64("rsi", ind.RSI),
			slog.Float64("ema12", ind.EMA12),
			slog.Float64("ema26", ind.EMA26))

		sig := strategy.Evaluate(name, *ind)
		if sig == nil {
			continue
		}
		b.metrics.SignalsTotal.WithLabelValues(string(sig.Action)).Inc()
		b.events.Signal(ctx, name, string(sig.Action), sig.Reason)
		b.log.Info("signal fired",
			slog.String("token", name),
			slog.String("action", string(sig.Action)),
			slog.String("reason", sig.Reason))

		if err := b.propose(ctx, *sig, price); err != nil {
			return err
		}
	}
	return nil
}

// quote fetches a price, degrading a venue failure to a recorded zero so the
// history window keeps advancing.
func (b *Bot) quote(ctx context.Context, name string) float64 {
	start := time.Now()
	price, err := b.venue.Quote(ctx, b.tokens[name], b.tokens[b.quoteToken])
	b.metrics.QuoteDur.Observe(time.Since(start).Seconds())
	b.metrics.QuotesTotal.Inc()
	if err != nil {
		b.metrics.QuoteErrors.Inc()
		b.log.Warn("quote failed, recording zero price",
			slog.String("token", name), slog.Any("err", err))
		return 0
	}
	return price
}

// propose builds the trade for a fired signal, requests approval, and
// executes on approval. A gas price failure fails the whole cycle; an
// execution failure is reported by the executor and the cycle continues.
func (b *Bot) propose(ctx context.Context, sig strategy.Signal, price float64) error {
	gas, err := b.venue.GasPrice(ctx)
	if err != nil {
		return fmt.Errorf("gas price for %s signal on %s: %w", sig.Action, sig.Token, err)
	}

	trade := model.Trade{
		Type:       sig.Action,
		Token:      sig.Token,
		Address:    b.tokens[sig.Token],
		Amount:     sig.Amount,
		Price:      price,
		TotalValue: sig.Amount * price,
		GasPrice:   gas,
	}

	start := time.Now()
	outcome, err := b.approval.Request(ctx, trade)
	b.metrics.ApprovalDur.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	b.metrics.ApprovalsTotal.WithLabelValues(outcome.String()).Inc()

	if outcome != approval.Approved {
		b.log.Info("trade not approved",
			slog.String("token", trade.Token),
			slog.String("outcome", outcome.String()))
		return nil
	}

	txID, err := b.exec.Execute(ctx, trade)
	if err != nil {
		b.metrics.TradeErrors.Inc()
		return nil // reported to the channel by the executor
	}
	b.metrics.TradesTotal.Inc()
	b.events.Trade(ctx, trade, txID)
	return nil
}

func (b *Bot) setMonitoring(v bool) {
	if v {
		b.metrics.MonitoringActive.Set(1)
	} else {
		b.metrics.MonitoringActive.Set(0)
	}
	if b.health != nil {
		b.health.SetMonitoring(v)
	}
}

func (b *Bot) reply(ctx context.Context, ref model.MessageRef, text string) {
	if err := b.ch.Reply(ctx, ref, text); err != nil {
		b.log.Warn("command reply failed", slog.Any("err", err))
	}
}
