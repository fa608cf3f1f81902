// cmd/bot — DEX monitoring and trade approval bot.
//
// Watches configured token prices, computes RSI/EMA indicators over a rolling
// window, and walks every fired signal through a Telegram approval before
// placing the order. Optional Redis event publishing feeds the WebSocket
// gateway for dashboards.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"dexwatch/config"
	"dexwatch/internal/approval"
	"dexwatch/internal/bot"
	"dexwatch/internal/events"
	"dexwatch/internal/execution"
	"dexwatch/internal/gateway"
	"dexwatch/internal/history"
	"dexwatch/internal/logger"
	"dexwatch/internal/metrics"
	"dexwatch/internal/model"
	"dexwatch/internal/notify"
	"dexwatch/internal/venue"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logg := logger.Init("bot", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logg.Info("shutdown signal received")
		cancel()
	}()

	m := metrics.New()
	health := metrics.NewHealth()
	msrv := metrics.NewServer(cfg.MetricsAddr, health)
	msrv.Start()

	journal, err := execution.NewJournal(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[bot] open trade journal: %v", err)
	}
	defer journal.Close()

	var vn model.Venue
	switch cfg.Venue {
	case "dex":
		vn = venue.NewDex(venue.DexConfig{
			BaseURL:    cfg.DexBaseURL,
			APIKey:     cfg.DexAPIKey,
			TOTPSecret: cfg.DexTOTPSecret,
		})
		logg.Info("using DEX REST venue", slog.String("base_url", cfg.DexBaseURL))
	default:
		vn = venue.NewMock(time.Now().UnixNano(), logg)
		logg.Warn("using mock venue, orders are simulated")
	}

	tg := notify.NewTelegram(notify.TelegramConfig{
		Token:  cfg.TelegramToken,
		ChatID: cfg.TelegramChatID,
	}, logg)
	go tg.Run(ctx)

	var pub *events.Publisher
	if cfg.RedisAddr != "" {
		pub, err = events.New(cfg.RedisAddr, cfg.RedisPass)
		if err != nil {
			log.Fatalf("[bot] connect redis: %v", err)
		}
		defer pub.Close()
	}

	if cfg.GatewayAddr != "" {
		if cfg.RedisAddr == "" {
			log.Fatal("[bot] GATEWAY_ADDR requires REDIS_ADDR")
		}
		startGateway(ctx, cfg, logg)
	}

	b := bot.New(bot.Options{
		Venue:        vn,
		Channel:      tg,
		Commands:     tg.Commands(),
		History:      history.New(history.Window),
		Approval:     approval.New(tg, cfg.ApprovalTimeout, logg),
		Executor:     execution.New(vn, tg, journal, logg),
		Events:       pub,
		Metrics:      m,
		Health:       health,
		Tokens:       cfg.Tokens,
		QuoteToken:   cfg.QuoteToken,
		PollInterval: cfg.PollInterval,
		ErrorBackoff: cfg.ErrorBackoff,
		Log:          logg,
	})

	logg.Info("dexwatch bot starting",
		slog.String("venue", cfg.Venue),
		slog.Int("tokens", len(cfg.Tokens)),
		slog.Duration("poll_interval", cfg.PollInterval))

	b.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	msrv.Stop(shutdownCtx)
}

// startGateway serves the WebSocket event fan-out on its own listener.
func startGateway(ctx context.Context, cfg *config.Config, logg *slog.Logger) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	})
	hub := gateway.NewHub(rdb)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	go func() {
		logg.Info("gateway listening", slog.String("addr", cfg.GatewayAddr))
		if err := http.ListenAndServe(cfg.GatewayAddr, mux); err != nil {
			logg.Error("gateway server stopped", slog.Any("err", err))
		}
	}()
}
