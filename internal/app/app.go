package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sns-ingest/internal/adapters/bridge"
	"sns-ingest/internal/adapters/llm"
	"sns-ingest/internal/adapters/provider"
	"sns-ingest/internal/adapters/repo"
	"sns-ingest/internal/adapters/telegram"
	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/cache"
	"sns-ingest/internal/infra/config"
	"sns-ingest/internal/infra/db"
	"sns-ingest/internal/infra/openai"
	"sns-ingest/internal/infra/queue"
	"sns-ingest/internal/usecase/commands"
	"sns-ingest/internal/usecase/ingest"
	"sns-ingest/internal/usecase/preview"
)

// App — собранный конвейер со всеми зависимостями процесса.
type App struct {
	Config     config.AppConfig
	Pipeline   config.Pipeline
	Collector  *ingest.Collector
	Previews   *preview.Service
	Dispatcher *commands.Dispatcher
	Queue      domain.CommandQueue
	Notifier   domain.Notifier
	Redis      *redis.Client

	closers []func() error
	log     zerolog.Logger
}

// Options управляет тем, какие внешние части подключать.
type Options struct {
	// WithQueue подключает очередь команд.
	WithQueue bool
	// WithNotifier подключает отправку ответов в Telegram.
	WithNotifier bool
}

// Build поднимает хранилище, мост, LLM и сборщик по конфигурации.
func Build(ctx context.Context, cfg config.AppConfig, pipeline config.Pipeline, opts Options, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Pipeline: pipeline, log: logger}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, a.Redis.Close)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("app: Redis недоступен")
		}
	}

	deps := ingest.Deps{
		Adapters: provider.NewRegistry(ProviderOptions(pipeline)),
		Store:    store,
		DataDir:  cfg.DataDir,
	}
	if a.Redis != nil {
		deps.Mirror = cache.NewRedisSeen(a.Redis, cfg.RedisSeenKey)
	}
	if target := strings.TrimSpace(cfg.Bridge); target != "" {
		b, err := bridge.Connect(ctx, target, logger.With().Str("component", "bridge").Logger())
		if err != nil {
			logger.Error().Err(err).Msg("app: мост провайдеров недоступен, сбор будет возвращать ошибки")
		} else {
			deps.Bridge = b
			a.closers = append(a.closers, b.Close)
		}
	} else {
		logger.Warn().Msg("app: не указан мост провайдеров (MCP_BRIDGE)")
	}
	if cfg.OpenAI.APIKey != "" {
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		deps.Generator = llm.NewGenerator(client, cfg.OpenAI.UtilsModel, cfg.OpenAI.ReplyerModel, cfg.OpenAI.Timeout)
		if cfg.OpenAI.VisionModel != "" {
			deps.Images = llm.NewVisionDescriber(client, cfg.OpenAI.VisionModel)
		}
	} else {
		logger.Info().Msg("app: ключ OpenAI не задан, сводки и проверка интересов работают без модели")
	}

	a.Collector = ingest.NewCollector(pipeline, deps, logger.With().Str("component", "collector").Logger())
	a.Previews = preview.NewService(cfg.DataDir, a.Collector, logger.With().Str("component", "preview").Logger())
	a.Dispatcher = commands.NewDispatcher(a.Collector, a.Previews, logger.With().Str("component", "commands").Logger())

	if opts.WithQueue {
		q, err := a.openQueue()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Queue = q
	}
	if opts.WithNotifier && cfg.Telegram.Token != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Error().Err(err).Msg("app: не удалось создать бота, ответы в чат отключены")
		} else {
			a.Notifier = telegram.NewNotifier(bot)
		}
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) (domain.RecordStore, error) {
	switch strings.ToLower(a.Config.Store.Driver) {
	case "postgres", "pg":
		if a.Config.Store.PGDSN == "" {
			return nil, errors.New("PG_DSN is required for postgres store")
		}
		pool, err := db.Connect(ctx, a.Config.Store.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		pg := repo.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return pg, nil
	case "sqlite", "":
		s, err := repo.OpenSQLite(a.Config.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
	}
}

func (a *App) openQueue() (domain.CommandQueue, error) {
	return OpenQueue(a.Config, a.Redis, &a.closers)
}

// OpenQueue создаёт очередь команд. closers пополняется функцией закрытия.
func OpenQueue(cfg config.AppConfig, client *redis.Client, closers *[]func() error) (domain.CommandQueue, error) {
	switch strings.ToLower(cfg.Queue.Driver) {
	case "rabbitmq", "amqp":
		if cfg.Queue.RabbitURL == "" {
			return nil, errors.New("RABBITMQ_URL is required for rabbitmq queue")
		}
		q, err := queue.NewRabbitCommandQueue(cfg.Queue.RabbitURL, cfg.Queue.Key)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		*closers = append(*closers, q.Close)
		return q, nil
	case "redis", "":
		if client == nil {
			return nil, errors.New("REDIS_ADDR is required for redis queue")
		}
		return queue.NewRedisCommandQueue(client, cfg.Queue.Key), nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
	}
}

// Close освобождает ресурсы в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("app: ошибка при закрытии ресурса")
		}
	}
	a.closers = nil
}

// ProviderOptions переводит настройки провайдеров в параметры адаптеров.
func ProviderOptions(p config.Pipeline) map[string]provider.Options {
	out := make(map[string]provider.Options, len(p.Providers))
	for name, pc := range p.Providers {
		out[name] = provider.Options{
			BridgePrefix: pc.BridgePrefix,
			Tools:        pc.Tools,
			FieldMapping: pc.FieldMapping,
		}
	}
	return out
}
