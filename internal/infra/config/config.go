package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию процессов.
type AppConfig struct {
	AppEnv         string `envconfig:"APP_ENV" default:"dev"`
	DataDir        string `envconfig:"DATA_DIR" default:"data/sns"`
	PipelineConfig string `envconfig:"PIPELINE_CONFIG" default:"config/pipeline.yaml"`
	HTTPAddr       string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr    string `envconfig:"METRICS_ADDR" default:":9090"`
	// APIToken защищает /api/v1; пусто — без проверки.
	APIToken string `envconfig:"API_TOKEN"`

	Store struct {
		Driver     string `envconfig:"STORE_DRIVER" default:"sqlite"`
		PGDSN      string `envconfig:"PG_DSN"`
		SQLitePath string `envconfig:"SQLITE_PATH" default:"data/sns/records.db"`
	} `envconfig:""`

	RedisAddr    string `envconfig:"REDIS_ADDR"`
	RedisSeenKey string `envconfig:"REDIS_SEEN_KEY" default:"sns:seen"`

	Queue struct {
		Driver    string `envconfig:"QUEUE_DRIVER" default:"redis"`
		RabbitURL string `envconfig:"RABBITMQ_URL"`
		Key       string `envconfig:"COMMAND_QUEUE_KEY" default:"sns_commands"`
	} `envconfig:""`

	// Bridge — адрес MCP-моста: URL или команда stdio.
	Bridge string `envconfig:"MCP_BRIDGE"`

	OpenAI struct {
		APIKey       string        `envconfig:"OPENAI_API_KEY"`
		BaseURL      string        `envconfig:"OPENAI_BASE_URL"`
		UtilsModel   string        `envconfig:"OPENAI_UTILS_MODEL" default:"gpt-4o-mini"`
		ReplyerModel string        `envconfig:"OPENAI_REPLYER_MODEL"`
		VisionModel  string        `envconfig:"OPENAI_VISION_MODEL" default:"gpt-4o-mini"`
		Timeout      time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Telegram struct {
		Token string `envconfig:"TG_BOT_TOKEN"`
		// AllowedChats — чаты, которым разрешены команды; пусто — всем.
		AllowedChats []int64 `envconfig:"TG_ALLOWED_CHATS"`
		Polling      bool    `envconfig:"TG_POLLING" default:"false"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
