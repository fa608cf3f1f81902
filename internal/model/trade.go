package model

// Action represents a trade direction.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Trade is a proposed (and, once approved, executable) trade.
// Amount is in token units; Price and TotalValue are quoted in the
// configured quote token (e.g. BUSD).
type Trade struct {
	Type       Action  `json:"type"`
	Token      string  `json:"token"`    // token name, e.g. "CAKE"
	Address    string  `json:"address"`  // on-chain token address
	Amount     float64 `json:"amount"`   // token units
	Price      float64 `json:"price"`    // quote-token per unit
	TotalValue float64 `json:"total_value"`
	GasPrice   string  `json:"gas_price"` // opaque venue-reported gas price
}

// Indicators is an immutable snapshot of derived technical values for one
// token at one point in time.
//
// EMA12 and EMA26 are plain arithmetic means of the last 12 and 26 samples,
// not exponentially smoothed averages. The names are kept as-is because the
// signal thresholds were tuned against these values; renaming or "fixing"
// them would change trading behavior.
type Indicators struct {
	RSI          float64 `json:"rsi"` // [0,100]
	EMA12        float64 `json:"ema12"`
	EMA26        float64 `json:"ema26"`
	CurrentPrice float64 `json:"current_price"`
}
