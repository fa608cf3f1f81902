// Package strategy turns indicator snapshots into trade intents.
package strategy

import "dexwatch/internal/model"

// UnitAmount is the fixed trade size in token units. Position sizing is out
// of scope: every proposal trades exactly one unit.
const UnitAmount = 1.0

// Signal is a trade intent emitted for one token in one cycle.
type Signal struct {
	Action model.Action
	Token  string
	Amount float64
	Reason string
}

// Evaluate applies the trading rules to a fresh indicator snapshot:
//
//	RSI < 30                      → BUY  (oversold)
//	EMA12 < EMA26 and RSI > 70    → SELL (overbought in a downtrend)
//
// Comparisons are strict, so RSI of exactly 30 or 70 produces no signal.
// The BUY rule is checked first and is exclusive with SELL: a token can emit
// at most one intent per cycle. Returns nil when neither rule fires.
func Evaluate(token string, ind model.Indicators) *Signal {
	if ind.RSI < 30 {
		return &Signal{
			Action: model.ActionBuy,
			Token:  token,
			Amount: UnitAmount,
			Reason: "RSI oversold",
		}
	}
	if ind.EMA12 < ind.EMA26 && ind.RSI > 70 {
		return &Signal{
			Action: model.ActionSell,
			Token:  token,
			Amount: UnitAmount,
			Reason: "RSI overbought, short mean below long mean",
		}
	}
	return nil
}
