package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	actorcache "support-relay-backend/internal/cache/redis"
	"support-relay-backend/internal/common/config"
	"support-relay-backend/internal/common/logger"
	"support-relay-backend/internal/domain/chat"
	convservice "support-relay-backend/internal/features/conversation/service"
	identity "support-relay-backend/internal/features/identity/service"
	relay "support-relay-backend/internal/features/relay/service"
	tgservice "support-relay-backend/internal/features/telegram/service"
	apphttp "support-relay-backend/internal/http"
	"support-relay-backend/internal/platform/postgres"
	"support-relay-backend/internal/platform/redis"
	"support-relay-backend/internal/platform/telegram"
	"support-relay-backend/internal/realtime"
	pgstore "support-relay-backend/internal/repository/postgres"
	"support-relay-backend/internal/repository/sqlite"
	"support-relay-backend/internal/workers"
)

// @title           Support Relay API
// @version         1.0
// @description     Customer support chat relay between guests, Telegram users and admins.

// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session token as "Bearer {token}"

// @securityDefinitions.apikey TelegramInitData
// @in header
// @name X-Telegram-Init-Data
// @description Telegram Mini App init data

// @tag.name auth
// @tag.description Guest, admin and Telegram sign-in

// @tag.name conversations
// @tag.description Conversation lists and history

// @tag.name messages
// @tag.description Message submission

// @tag.name admin
// @tag.description Operator-only routes

// @tag.name telegram
// @tag.description Bot API webhook

const serviceName = "support-relay-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(serviceName, cfg.Debug)
	logger.Info().Bool("debug", cfg.Debug).Str("db_driver", cfg.Database.Driver).Msg("Starting support relay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	probes := map[string]apphttp.Pinger{}
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = redis.Open(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		store = actorcache.NewCachedStore(store, rdb, cfg.Redis.ActorCacheTTL)
		probes["redis"] = apphttp.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		logger.Info().Dur("ttl", cfg.Redis.ActorCacheTTL).Msg("Actor cache enabled")
	}

	ids := identity.NewService(store, identity.NewTokenSigner(cfg.Auth.JWTSecret, time.Now), identity.Options{
		GuestTTL:    cfg.Auth.GuestSessionTTL,
		SessionTTL:  cfg.Auth.SessionTTL,
		OneTimeTTL:  cfg.Auth.OneTimeTokenTTL,
		BotToken:    cfg.Telegram.BotToken,
		InitDataTTL: cfg.Telegram.InitDataTTL,
	})
	if cfg.Admin.Username != "" {
		created, err := ids.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.Email)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to bootstrap admin")
		}
		if created {
			logger.Info().Str("username", cfg.Admin.Username).Msg("Admin credential created")
		}
	}

	convs := convservice.NewService(store)
	rooms := realtime.NewRooms()

	var (
		tg     *telegram.Client
		egress relay.Egress = tgservice.NoopDispatcher{}
		inline *tgservice.InlineDispatcher
		queued *tgservice.StreamDispatcher
	)
	if cfg.TelegramEnabled() {
		tg = telegram.NewClient(nil, cfg.Telegram.APIURL, cfg.Telegram.BotToken)
		switch cfg.Telegram.Egress {
		case config.EgressStream:
			queued = tgservice.NewStreamDispatcher(rdb)
			egress = queued
			worker := workers.NewEgressStreamWorker(rdb, tg, "", cfg.Telegram.SendTimeout)
			go worker.Start(ctx)
		default:
			inline = tgservice.NewInlineDispatcher(tg, cfg.Telegram.SendTimeout)
			egress = inline
		}
	} else {
		logger.Warn().Msg("BOT_TOKEN not set, Telegram channel disabled")
	}

	relaySvc := relay.NewService(store, convs, rooms, egress)

	deps := apphttp.Deps{
		Config:        cfg,
		Store:         store,
		Identity:      ids,
		Conversations: convs,
		Relay:         relaySvc,
		Rooms:         rooms,
		Probes:        probes,
	}

	if tg != nil {
		bot := tgservice.NewBot(tg, ids, convs, relaySvc, tgservice.AuthURL(cfg.PublicBaseURL()))
		if err := startTelegram(ctx, cfg, tg, bot); err != nil {
			logger.Error().Err(err).Msg("Telegram setup failed")
		}
		if cfg.Telegram.Mode == config.TelegramModeWebhook {
			deps.Bot = bot
		}
	}

	go sweepTokens(ctx, store, time.Hour)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      apphttp.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if inline != nil {
		inline.Wait()
	}
	if queued != nil {
		queued.Wait()
	}

	logger.Info().Msg("Server exited")
}

func openStore(ctx context.Context, cfg *config.Config) (chat.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		s := pgstore.NewStore(pool)
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return s, nil
	default:
		if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		s, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// startTelegram registers the webhook, or clears it and starts long polling.
func startTelegram(ctx context.Context, cfg *config.Config, tg *telegram.Client, bot *tgservice.Bot) error {
	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("getMe: %w", err)
	}
	log := logger.Component("telegram")

	if cfg.Telegram.Mode == config.TelegramModePolling {
		if err := tg.DeleteWebhook(ctx); err != nil {
			return fmt.Errorf("deleteWebhook: %w", err)
		}
		go tgservice.NewPoller(tg, bot).Run(ctx)
		log.Info().Str("bot", me.Username).Msg("Telegram bot polling")
		return nil
	}

	if err := tg.SetWebhook(ctx, cfg.WebhookURL(), cfg.Telegram.WebhookSecret); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	log.Info().Str("bot", me.Username).Str("url", cfg.WebhookURL()).Msg("Telegram webhook registered")
	return nil
}

// sweepTokens purges expired one-time tokens until ctx ends.
func sweepTokens(ctx context.Context, store chat.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpiredTokens(ctx, time.Now())
			if err != nil {
				logger.Warn().Err(err).Msg("Token sweep failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("deleted", n).Msg("Expired tokens purged")
			}
		}
	}
}
