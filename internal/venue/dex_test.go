package venue

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// newTestGateway spins up a minimal DEX gateway: one login endpoint issuing
// tokens and authenticated quote/order/gas endpoints.
func newTestGateway(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var logins atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/session", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKey string `json:"api_key"`
			TOTP   string `json:"totp"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" || req.TOTP == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		logins.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	})

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("/v1/quote", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") == "" || r.URL.Query().Get("quote") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]float64{"price": 4.25})
	}))
	mux.HandleFunc("/v1/orders", authed(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Side   string  `json:"side"`
			Token  string  `json:"token"`
			Amount float64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"tx_hash": "0x" + strings.ToLower(req.Side)})
	}))
	mux.HandleFunc("/v1/gas", authed(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"gas_price": "9000000000"})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &logins
}

// testTOTPSecret is a valid base32 secret for code generation in tests.
const testTOTPSecret = "JBSWY3DPEHPK3PXP"

func newTestDex(srv *httptest.Server) *Dex {
	return NewDex(DexConfig{
		BaseURL:    srv.URL,
		APIKey:     "key",
		TOTPSecret: testTOTPSecret,
	})
}

func TestDex_QuoteLogsInOnFirstUse(t *testing.T) {
	srv, logins := newTestGateway(t)
	d := newTestDex(srv)

	price, err := d.Quote(context.Background(), "0xcake", "0xbusd")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if price != 4.25 {
		t.Errorf("price: got %v, want 4.25", price)
	}
	if logins.Load() != 1 {
		t.Errorf("logins: got %d, want 1", logins.Load())
	}

	// Second call reuses the session.
	if _, err := d.GasPrice(context.Background()); err != nil {
		t.Fatalf("gas: %v", err)
	}
	if logins.Load() != 1 {
		t.Errorf("logins after reuse: got %d, want 1", logins.Load())
	}
}

func TestDex_Orders(t *testing.T) {
	srv, _ := newTestGateway(t)
	d := newTestDex(srv)

	tx, err := d.Buy(context.Background(), "0xcake", 1.0)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if tx != "0xbuy" {
		t.Errorf("buy tx: got %q", tx)
	}

	tx, err = d.Sell(context.Background(), "0xcake", 1.0)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if tx != "0xsell" {
		t.Errorf("sell tx: got %q", tx)
	}
}

func TestDex_ReloginOn401(t *testing.T) {
	srv, logins := newTestGateway(t)
	d := newTestDex(srv)

	if _, err := d.Quote(context.Background(), "0xcake", "0xbusd"); err != nil {
		t.Fatalf("quote: %v", err)
	}

	// Invalidate the session; the next call must renew it and succeed.
	d.mu.Lock()
	d.accessToken = "stale"
	d.mu.Unlock()

	if _, err := d.Quote(context.Background(), "0xcake", "0xbusd"); err != nil {
		t.Fatalf("quote after expiry: %v", err)
	}
	if logins.Load() != 2 {
		t.Errorf("logins: got %d, want 2", logins.Load())
	}
}

func TestMock_QuoteWalksWithinVolatility(t *testing.T) {
	m := NewMock(1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	const cake = "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82"

	prev := 4.0
	for i := 0; i < 50; i++ {
		price, err := m.Quote(context.Background(), cake, "busd")
		if err != nil {
			t.Fatalf("quote %d: %v", i, err)
		}
		maxChange := prev * mockVolatility
		if price < prev-maxChange-1e-9 || price > prev+maxChange+1e-9 {
			t.Fatalf("quote %d: %v stepped more than ±%v from %v", i, price, maxChange, prev)
		}
		prev = price
	}
}

func TestMock_TxHashShape(t *testing.T) {
	m := NewMock(1, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tx, err := m.Buy(context.Background(), "0xcake", 1.0)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if len(tx) != 66 || !strings.HasPrefix(tx, "0x") {
		t.Errorf("tx hash shape: %q", tx)
	}

	if _, err := m.Buy(context.Background(), "0xcake", 0); err == nil {
		t.Error("zero amount should be rejected")
	}
}
