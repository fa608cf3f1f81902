// Package indicator derives technical indicator snapshots from a rolling
// price window.
//
// Calculate is a pure function over the window: no state is carried between
// calls and no rounding is applied (presentation concerns stay with callers).
package indicator

import "dexwatch/internal/model"

// MinSamples is the minimum window length required before indicators can be
// computed. Shorter windows yield no result rather than an error.
const MinSamples = 30

// Calculate derives an indicator snapshot from an oldest-first price window.
// Returns nil when fewer than MinSamples prices are available.
func Calculate(prices []float64) *model.Indicators {
	if len(prices) < MinSamples {
		return nil
	}

	return &model.Indicators{
		RSI:          rsi(prices),
		EMA12:        meanLast(prices, 12),
		EMA26:        meanLast(prices, 26),
		CurrentPrice: prices[len(prices)-1],
	}
}

// rsi computes the Relative Strength Index over the whole window: average
// gain vs average loss across successive deltas. Zero-delta samples count as
// gains. With no losses RSI is exactly 100 — including the degenerate flat
// window where there are no gains either.
func rsi(prices []float64) float64 {
	var gainSum, lossSum float64
	var gains, losses int

	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta >= 0 {
			gainSum += delta
			gains++
		} else {
			lossSum += -delta
			losses++
		}
	}

	var avgGain, avgLoss float64
	if gains > 0 {
		avgGain = gainSum / float64(gains)
	}
	if losses > 0 {
		avgLoss = lossSum / float64(losses)
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// meanLast returns the arithmetic mean of the final n elements.
func meanLast(prices []float64, n int) float64 {
	tail := prices[len(prices)-n:]
	var sum float64
	for _, p := range tail {
		sum += p
	}
	return sum / float64(n)
}
