// Package venue provides execution-venue implementations behind the
// model.Venue port: a REST client for a DEX trading gateway and a simulated
// venue for development and paper runs.
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
)

// DexConfig configures the REST DEX client.
type DexConfig struct {
	BaseURL    string
	APIKey     string
	TOTPSecret string        // shared secret for session login codes
	Timeout    time.Duration // default: 10s
}

// Dex is an HTTP client for a DEX trading gateway. Sessions are established
// with the API key plus a TOTP code and renewed transparently on 401.
type Dex struct {
	cfg    DexConfig
	client *http.Client

	mu          sync.Mutex
	accessToken string
}

// NewDex creates a DEX REST client. No network calls happen here; the first
// request performs the session login.
func NewDex(cfg DexConfig) *Dex {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dex{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Quote returns the price of one token unit in quoteToken.
func (d *Dex) Quote(ctx context.Context, token, quoteToken string) (float64, error) {
	q := url.Values{}
	q.Set("token", token)
	q.Set("quote", quoteToken)

	var out struct {
		Price float64 `json:"price"`
	}
	if err := d.do(ctx, http.MethodGet, "/v1/quote?"+q.Encode(), nil, &out); err != nil {
		return 0, fmt.Errorf("dex: quote %s: %w", token, err)
	}
	return out.Price, nil
}

// Buy submits a market buy order.
func (d *Dex) Buy(ctx context.Context, token string, amount float64) (string, error) {
	return d.order(ctx, "BUY", token, amount)
}

// Sell submits a market sell order.
func (d *Dex) Sell(ctx context.Context, token string, amount float64) (string, error) {
	return d.order(ctx, "SELL", token, amount)
}

// GasPrice reports the gateway's current gas price.
func (d *Dex) GasPrice(ctx context.Context) (string, error) {
	var out struct {
		GasPrice string `json:"gas_price"`
	}
	if err := d.do(ctx, http.MethodGet, "/v1/gas", nil, &out); err != nil {
		return "", fmt.Errorf("dex: gas price: %w", err)
	}
	return out.GasPrice, nil
}

func (d *Dex) order(ctx context.Context, side, token string, amount float64) (string, error) {
	body := map[string]any{
		"side":   side,
		"token":  token,
		"amount": amount,
	}
	var out struct {
		TxHash string `json:"tx_hash"`
	}
	if err := d.do(ctx, http.MethodPost, "/v1/orders", body, &out); err != nil {
		return "", fmt.Errorf("dex: %s %s: %w", side, token, err)
	}
	return out.TxHash, nil
}

// login exchanges the API key and a fresh TOTP code for an access token.
func (d *Dex) login(ctx context.Context) error {
	code, err := totp.GenerateCode(d.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("dex: totp generation: %w", err)
	}

	payload, _ := json.Marshal(map[string]string{
		"api_key": d.cfg.APIKey,
		"totp":    code,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.BaseURL+"/auth/session", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dex: login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dex: login: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("dex: login decode: %w", err)
	}
	if out.AccessToken == "" {
		return fmt.Errorf("dex: login returned empty access token")
	}

	d.mu.Lock()
	d.accessToken = out.AccessToken
	d.mu.Unlock()

	log.Println("[dex] session established")
	return nil
}

// do issues an authenticated request, logging in first if needed and retrying
// once after a 401 with a fresh session.
func (d *Dex) do(ctx context.Context, method, path string, body any, out any) error {
	d.mu.Lock()
	token := d.accessToken
	d.mu.Unlock()

	if token == "" {
		if err := d.login(ctx); err != nil {
			return err
		}
	}

	status, err := d.doOnce(ctx, method, path, body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		// Session expired — renew once and retry.
		if err := d.login(ctx); err != nil {
			return err
		}
		status, err = d.doOnce(ctx, method, path, body, out)
		if err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status %d", status)
	}
	return nil
}

func (d *Dex) doOnce(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	d.mu.Lock()
	req.Header.Set("Authorization", "Bearer "+d.accessToken)
	d.mu.Unlock()

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}
