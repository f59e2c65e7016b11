package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sns-ingest/internal/adapters/httpapi"
	"sns-ingest/internal/app"
	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/config"
	httpinfra "sns-ingest/internal/infra/http"
	applog "sns-ingest/internal/infra/log"
	"sns-ingest/internal/infra/metrics"
	"sns-ingest/internal/usecase/commands"
	"sns-ingest/internal/usecase/schedule"
)

// syncRequestTimeout ограничивает синхронные команды через HTTP.
const syncRequestTimeout = 10 * time.Minute

func main() {
	cfg := config.Load()
	pipeline, err := config.LoadPipeline(cfg.PipelineConfig)
	logger := applog.NewDebugLogger(cfg.AppEnv, pipeline.Debug.Enabled)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.PipelineConfig).Msg("collector: не удалось прочитать настройки конвейера")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	application, err := app.Build(ctx, cfg, pipeline, app.Options{WithQueue: cfg.RedisAddr != "" || cfg.Queue.RabbitURL != "", WithNotifier: true}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: не удалось собрать конвейер")
	}
	defer application.Close()

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger(), syncRequestTimeout)
	httpapi.NewHandler(application.Dispatcher, application.Collector, application.Queue, logger.With().Str("component", "api").Logger()).
		Mount(srv.Router, cfg.APIToken)
	go func() {
		if err := srv.Start(cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Msg("collector: HTTP сервер остановлен с ошибкой")
		}
	}()

	if pipeline.Scheduler.Enabled {
		scheduler, err := schedule.NewService(pipeline.Scheduler, pipeline.SchedulerTasks(domain.DefaultProvider), application.Collector, logger.With().Str("component", "scheduler").Logger())
		if err != nil {
			logger.Fatal().Err(err).Msg("collector: неверное расписание")
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	} else {
		logger.Info().Msg("collector: планировщик выключен")
	}

	if application.Queue != nil {
		worker := commands.NewWorker(application.Queue, application.Dispatcher, application.Notifier, logger.With().Str("component", "worker").Logger())
		go worker.Run(ctx)
		logger.Info().Str("driver", cfg.Queue.Driver).Str("queue", cfg.Queue.Key).Msg("collector: запуск обработки очереди")
	}

	<-ctx.Done()
	logger.Info().Msg("collector: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("collector: HTTP сервер завершился с ошибкой")
	}
}
