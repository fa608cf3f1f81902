// Package events publishes bot activity to Redis PubSub so external
// consumers (dashboards, the WS gateway) can observe quotes, signals and
// executed trades without touching the monitoring loop.
//
// Channel layout:
//
//	pub:quote:<token>  — every fetched price
//	pub:signal         — fired trade intents
//	pub:trade          — executed trades with tx id
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"dexwatch/internal/model"
)

// Publisher writes bot events to Redis PubSub. A nil *Publisher is valid and
// drops all events, so callers never need to branch on whether Redis is
// configured.
type Publisher struct {
	rdb *goredis.Client
}

// New connects to Redis and returns a Publisher.
func New(addr, password string) (*Publisher, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	log.Printf("[events] redis publisher connected to %s", addr)
	return &Publisher{rdb: rdb}, nil
}

type quoteEvent struct {
	Token string    `json:"token"`
	Price float64   `json:"price"`
	TS    time.Time `json:"ts"`
}

type signalEvent struct {
	Token  string    `json:"token"`
	Action string    `json:"action"`
	Reason string    `json:"reason"`
	TS     time.Time `json:"ts"`
}

type tradeEvent struct {
	Token  string    `json:"token"`
	Action string    `json:"action"`
	Amount float64   `json:"amount"`
	Price  float64   `json:"price"`
	TxHash string    `json:"tx_hash"`
	TS     time.Time `json:"ts"`
}

// Quote publishes a fetched price.
func (p *Publisher) Quote(ctx context.Context, token string, price float64) {
	p.publish(ctx, "pub:quote:"+token, quoteEvent{Token: token, Price: price, TS: time.Now().UTC()})
}

// Signal publishes a fired trade intent.
func (p *Publisher) Signal(ctx context.Context, token, action, reason string) {
	p.publish(ctx, "pub:signal", signalEvent{Token: token, Action: action, Reason: reason, TS: time.Now().UTC()})
}

// Trade publishes an executed trade.
func (p *Publisher) Trade(ctx context.Context, trade model.Trade, txHash string) {
	p.publish(ctx, "pub:trade", tradeEvent{
		Token:  trade.Token,
		Action: string(trade.Type),
		Amount: trade.Amount,
		Price:  trade.Price,
		TxHash: txHash,
		TS:     time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, channel string, payload any) {
	if p == nil {
		return
	}
	if err := p.rdb.Publish(ctx, channel, mustJSON(payload)).Err(); err != nil {
		// Observability must never break the loop; drop and note it.
		log.Printf("[events] publish %s failed: %v", channel, err)
	}
}

// mustJSON encodes a payload, ignoring errors: event structs contain only
// marshalable fields.
func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}
