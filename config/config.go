package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Logging
	LogLevel string

	// Telegram approval channel
	TelegramToken  string
	TelegramChatID int64

	// Watched tokens: name → on-chain address. The quote token is the
	// pricing denominator and is never traded.
	Tokens     map[string]string
	QuoteToken string // must be a key of Tokens

	// Venue selection: "dex" (REST client) or "mock"
	Venue string

	// DEX REST venue credentials (required when Venue == "dex")
	DexBaseURL    string
	DexAPIKey     string
	DexTOTPSecret string

	// Loop timing
	PollInterval    time.Duration
	ErrorBackoff    time.Duration
	ApprovalTimeout time.Duration

	// Infrastructure
	SQLitePath  string
	MetricsAddr string
	RedisAddr   string // empty disables event publishing
	RedisPass   string
	GatewayAddr string // empty disables the WS gateway
}

// Default token addresses (BSC mainnet): CAKE watched, BUSD as quote.
const (
	defaultTokens = "CAKE:0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82," +
		"BUSD:0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56"
)

// Load reads configuration from environment variables with sensible defaults.
// Missing required values are fatal: a bot without its approval channel or
// venue credentials must not start.
func Load() *Config {
	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),

		TelegramToken:  mustEnv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: mustEnvInt64("TELEGRAM_CHAT_ID"),

		Tokens:     ParseTokens(getEnv("TOKENS", defaultTokens)),
		QuoteToken: getEnv("QUOTE_TOKEN", "BUSD"),

		Venue: getEnv("VENUE", "mock"),

		DexBaseURL:    getEnv("DEX_BASE_URL", ""),
		DexAPIKey:     getEnv("DEX_API_KEY", ""),
		DexTOTPSecret: getEnv("DEX_TOTP_SECRET", ""),

		PollInterval:    getEnvDuration("POLL_INTERVAL", 300*time.Second),
		ErrorBackoff:    getEnvDuration("ERROR_BACKOFF", 60*time.Second),
		ApprovalTimeout: getEnvDuration("APPROVAL_TIMEOUT", 300*time.Second),

		SQLitePath:  getEnv("SQLITE_PATH", "data/trades.db"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		RedisPass:   getEnv("REDIS_PASSWORD", ""),
		GatewayAddr: getEnv("GATEWAY_ADDR", ""),
	}

	if _, ok := cfg.Tokens[cfg.QuoteToken]; !ok {
		log.Fatalf("[config] quote token %q is not in TOKENS", cfg.QuoteToken)
	}
	if cfg.Venue == "dex" {
		if cfg.DexBaseURL == "" || cfg.DexAPIKey == "" || cfg.DexTOTPSecret == "" {
			log.Fatal("[config] VENUE=dex requires DEX_BASE_URL, DEX_API_KEY and DEX_TOTP_SECRET")
		}
	}
	return cfg
}

// ParseTokens parses a comma-separated NAME:ADDRESS list into a map.
// Malformed entries are skipped with a warning.
func ParseTokens(s string) map[string]string {
	tokens := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, addr, ok := strings.Cut(part, ":")
		if !ok || name == "" || addr == "" {
			log.Printf("[config] skipping invalid token entry: %q", part)
			continue
		}
		tokens[strings.TrimSpace(name)] = strings.TrimSpace(addr)
	}
	return tokens
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func mustEnvInt64(key string) int64 {
	n, err := strconv.ParseInt(mustEnv(key), 10, 64)
	if err != nil {
		log.Fatalf("[config] env var %s is not an integer: %v", key, err)
	}
	return n
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] ignoring invalid duration %s=%q", key, v)
		return fallback
	}
	return d
}
