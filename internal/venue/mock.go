package venue

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
)

// Simulated price volatility: max ±2% movement per quote.
const mockVolatility = 0.02

// defaultMockPrices seeds the random walk for known BSC tokens (by address).
var defaultMockPrices = map[string]float64{
	"0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c": 300, // WBNB
	"0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56": 1,   // BUSD
	"0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82": 4,   // CAKE
}

// Mock is a simulated venue: quotes follow a random walk and orders return
// synthetic transaction hashes. Used for development and paper runs.
type Mock struct {
	mu     sync.Mutex
	prices map[string]float64
	rng    *rand.Rand
	log    *slog.Logger
}

// NewMock creates a simulated venue seeded for reproducible runs.
func NewMock(seed int64, log *slog.Logger) *Mock {
	prices := make(map[string]float64, len(defaultMockPrices))
	for addr, p := range defaultMockPrices {
		prices[addr] = p
	}
	return &Mock{
		prices: prices,
		rng:    rand.New(rand.NewSource(seed)),
		log:    log,
	}
}

// Quote walks the token's simulated price and returns it. Unknown tokens
// start at a default price of 10.
func (m *Mock) Quote(ctx context.Context, token, quoteToken string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.prices[token]
	if !ok {
		price = 10
	}
	maxChange := price * mockVolatility
	price += (m.rng.Float64() - 0.5) * 2 * maxChange
	m.prices[token] = price

	m.log.Debug("mock quote", slog.String("token", token), slog.Float64("price", price))
	return price, nil
}

// Buy returns a synthetic transaction hash.
func (m *Mock) Buy(ctx context.Context, token string, amount float64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("mock: invalid buy amount %v", amount)
	}
	tx := m.txHash()
	m.log.Info("mock buy order",
		slog.String("token", token), slog.Float64("amount", amount), slog.String("tx", tx))
	return tx, nil
}

// Sell returns a synthetic transaction hash.
func (m *Mock) Sell(ctx context.Context, token string, amount float64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("mock: invalid sell amount %v", amount)
	}
	tx := m.txHash()
	m.log.Info("mock sell order",
		slog.String("token", token), slog.Float64("amount", amount), slog.String("tx", tx))
	return tx, nil
}

// GasPrice returns a random 5–15 gwei gas price in wei.
func (m *Mock) GasPrice(ctx context.Context) (string, error) {
	m.mu.Lock()
	gwei := m.rng.Intn(10) + 5
	m.mu.Unlock()
	return fmt.Sprintf("%d000000000", gwei), nil
}

// txHash builds a 0x-prefixed 64-hex-digit synthetic hash.
func (m *Mock) txHash() string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 66)
	buf[0], buf[1] = '0', 'x'
	m.mu.Lock()
	for i := 2; i < len(buf); i++ {
		buf[i] = hex[m.rng.Intn(16)]
	}
	m.mu.Unlock()
	return string(buf)
}
