package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pitstop/internal/bot"
	"pitstop/internal/config"
	"pitstop/internal/live"
	"pitstop/internal/metrics"
	"pitstop/internal/notify"
	"pitstop/internal/session"
	"pitstop/internal/shopapi"
	"pitstop/internal/wizard"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("PITSTOP_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}

	sessions, err := session.Open(cfg.Session.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open session db error")
	}
	defer sessions.Close()

	client := shopapi.NewClient(cfg.API.BaseURL, cfg.APITimeout())

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if cfg.API.CacheTTLSeconds > 0 {
			client.UseRedisCache(rdb, time.Duration(cfg.API.CacheTTLSeconds)*time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Live updates come over redis pub/sub when configured; otherwise the
	// in-process bus still serves local publishers.
	var liveCh live.Subscriber
	if rdb != nil {
		ch := live.NewRedisChannel(rdb, logger)
		go func() {
			if err := ch.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("live channel error")
			}
		}()
		liveCh = ch
	} else {
		logger.Warn().Msg("redis not configured, live slot updates disabled")
		liveCh = live.NewBus()
	}

	wizards := wizard.NewSessionStore(cfg.WizardSessionTimeout())

	b, err := bot.New(cfg.Telegram.BotToken, client, sessions, wizards, liveCh, cfg.BookingMaxAdvance(), &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}

	notifyCfg := notify.DefaultConfig()
	if cfg.Notify.RatePerSecond > 0 {
		notifyCfg.RatePerSecond = cfg.Notify.RatePerSecond
	}
	if cfg.Notify.Burst > 0 {
		notifyCfg.Burst = cfg.Notify.Burst
	}
	worker := notify.NewWorker(liveCh, sessions, b, notifyCfg, logger)
	go worker.Run(ctx)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, sessions, rdb, client, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Msg("booking bot started")
	b.Start(ctx)
}

func startHealthServer(ctx context.Context, port int, sessions *session.Store, rdb *redis.Client, client *shopapi.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := sessions.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if err := client.HealthCheck(ctxPing); err != nil {
			http.Error(w, "backend not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
