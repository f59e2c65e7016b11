package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"sns-ingest/internal/adapters/bot"
	"sns-ingest/internal/app"
	"sns-ingest/internal/infra/config"
	httpinfra "sns-ingest/internal/infra/http"
	"sns-ingest/internal/infra/log"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("bot-gateway: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: не удалось создать бота")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}
	var closers []func() error
	jobs, err := app.OpenQueue(cfg, redisClient, &closers)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: очередь команд недоступна")
	}
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	h := bot.NewHandler(botAPI, jobs, cfg.Telegram.AllowedChats, logger.With().Str("component", "bot").Logger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telegram.Polling {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updates := botAPI.GetUpdatesChan(u)
		logger.Info().Msg("bot-gateway: запущен в режиме long polling")
		for {
			select {
			case <-ctx.Done():
				botAPI.StopReceivingUpdates()
				logger.Info().Msg("bot-gateway: остановка")
				return
			case upd := <-updates:
				h.HandleUpdate(ctx, upd)
			}
		}
	}

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger(), 30*time.Second)
	srv.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := srv.Start(cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Msg("bot-gateway: HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("bot-gateway: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
