// cmd/venuesim — Demo DEX gateway server.
// Serves the REST API the bot's DEX venue client speaks, with simulated
// random-walk prices, so the full approval-and-execution path can be run
// without real venue credentials.
//
// Endpoints:
//
//	POST /auth/session  {"api_key":"…","totp":"123456"} → {"access_token":"…"}
//	GET  /v1/quote?token=0x…&quote=0x…                  → {"price":4.01}
//	POST /v1/orders     {"side":"BUY","token":"0x…","amount":1} → {"tx_hash":"0x…"}
//	GET  /v1/gas                                        → {"gas_price":"7 gwei"}
//
// Config (env vars):
//
//	VENUESIM_ADDR         — listen address        (default: ":9100")
//	VENUESIM_API_KEY      — accepted API key      (default: "demo-key")
//	VENUESIM_TOTP_SECRET  — base32 TOTP secret    (default: "JBSWY3DPEHPK3PXP")
//	VENUESIM_SESSION_TTL  — session lifetime      (default: "10m")
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math"
	mrand "math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
)

// basePrices seeds the random walk per token address; unknown tokens start
// at 10. Keys are lowercased addresses.
var basePrices = map[string]float64{
	"0x0e09fabb73bd3ade0a17ecc321fd13a19e81ce82": 4,   // CAKE
	"0xe9e7cea3dedca5984780bafc599bd69add087d56": 1,   // BUSD
	"0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c": 300, // WBNB
}

type server struct {
	apiKey     string
	totpSecret string
	sessionTTL time.Duration

	mu       sync.Mutex
	rng      *mrand.Rand
	prices   map[string]float64
	sessions map[string]time.Time // token → expiry
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	addr := getEnv("VENUESIM_ADDR", ":9100")
	s := &server{
		apiKey:     getEnv("VENUESIM_API_KEY", "demo-key"),
		totpSecret: getEnv("VENUESIM_TOTP_SECRET", "JBSWY3DPEHPK3PXP"),
		sessionTTL: getEnvDuration("VENUESIM_SESSION_TTL", 10*time.Minute),
		rng:        mrand.New(mrand.NewSource(time.Now().UnixNano())),
		prices:     make(map[string]float64),
		sessions:   make(map[string]time.Time),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/session", s.handleLogin)
	mux.HandleFunc("/v1/quote", s.auth(s.handleQuote))
	mux.HandleFunc("/v1/orders", s.auth(s.handleOrder))
	mux.HandleFunc("/v1/gas", s.auth(s.handleGas))

	log.Printf("[venuesim] listening on %s (session ttl %s)", addr, s.sessionTTL)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("[venuesim] server failed: %v", err)
	}
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		APIKey string `json:"api_key"`
		TOTP   string `json:"totp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.APIKey != s.apiKey || !totp.Validate(req.TOTP, s.totpSecret) {
		log.Printf("[venuesim] login rejected for api key %q", req.APIKey)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token := randomHex(24)
	s.mu.Lock()
	s.sessions[token] = time.Now().Add(s.sessionTTL)
	s.mu.Unlock()

	log.Println("[venuesim] session issued")
	writeJSON(w, map[string]string{"access_token": token})
}

// auth wraps a handler with Bearer session validation. Expired sessions get
// 401 so clients exercise their relogin path.
func (s *server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		expiry, ok := s.sessions[token]
		if ok && time.Now().After(expiry) {
			delete(s.sessions, token)
			ok = false
		}
		s.mu.Unlock()
		if token == "" || !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// ─── Market simulation ────────────────────────────────────────────────────────

func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) {
	token := strings.ToLower(r.URL.Query().Get("token"))
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]float64{"price": s.nextPrice(token)})
}

// nextPrice advances a ±2% random walk from the token's last price.
func (s *server) nextPrice(token string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[token]
	if !ok {
		price = basePrices[token]
		if price == 0 {
			price = 10
		}
	}
	price *= 1 + (s.rng.Float64()*2-1)*0.02
	price = math.Max(price, 0.0001)
	s.prices[token] = price
	return price
}

func (s *server) handleOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Side   string  `json:"side"`
		Token  string  `json:"token"`
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Side != "BUY" && req.Side != "SELL" {
		http.Error(w, "invalid side", http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	txHash := "0x" + randomHex(32)
	log.Printf("[venuesim] %s %.4f of %s → %s", req.Side, req.Amount, req.Token, txHash)
	writeJSON(w, map[string]string{"tx_hash": txHash})
}

func (s *server) handleGas(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gwei := 5 + s.rng.Intn(11)
	s.mu.Unlock()
	writeJSON(w, map[string]string{"gas_price": fmt.Sprintf("%d gwei", gwei)})
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[venuesim] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return d
}
