package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Pipeline — настройки конвейера сбора из YAML-файла.
type Pipeline struct {
	Providers  map[string]ProviderConfig `yaml:"provider"`
	Filter     FilterConfig              `yaml:"filter"`
	Processing ProcessingConfig          `yaml:"processing"`
	Memory     MemoryConfig              `yaml:"memory"`
	Scheduler  SchedulerConfig           `yaml:"scheduler"`
	Debug      struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"debug"`
}

// ProviderConfig — настройки одного провайдера.
type ProviderConfig struct {
	Enabled      *bool               `yaml:"enabled"`
	BridgePrefix string              `yaml:"bridge_prefix"`
	FetchDetail  *bool               `yaml:"fetch_detail"`
	Tools        map[string]string   `yaml:"tools"`
	FieldMapping map[string][]string `yaml:"field_mapping"`
}

// IsEnabled возвращает true, если провайдер не отключён явно.
func (p ProviderConfig) IsEnabled() bool { return p.Enabled == nil || *p.Enabled }

// DetailEnabled возвращает true, если загрузка карточек не отключена явно.
func (p ProviderConfig) DetailEnabled() bool { return p.FetchDetail == nil || *p.FetchDetail }

// FilterConfig — пороги и списки ключевых слов.
type FilterConfig struct {
	MinLikeCount int64    `yaml:"min_like_count"`
	Whitelist    []string `yaml:"keyword_whitelist"`
	Blacklist    []string `yaml:"keyword_blacklist"`
}

// InterestProfile описывает интересы, по которым отбирается контент.
type InterestProfile struct {
	Persona  string `yaml:"persona"`
	Interest string `yaml:"interest"`
	Nickname string `yaml:"nickname"`
}

// ProcessingConfig — обработка перед сохранением.
type ProcessingConfig struct {
	EnableInterestMatch    bool            `yaml:"enable_interest_match"`
	Interest               InterestProfile `yaml:"interest"`
	EnableSummary          *bool           `yaml:"enable_summary"`
	SummaryThreshold       int             `yaml:"summary_threshold"`
	EnableImageRecognition bool            `yaml:"enable_image_recognition"`
	ImageTimeout           time.Duration   `yaml:"image_timeout"`
}

// SummaryEnabled возвращает true, если LLM-сводки не отключены явно.
func (p ProcessingConfig) SummaryEnabled() bool { return p.EnableSummary == nil || *p.EnableSummary }

// MemoryConfig — ограничения хранения.
type MemoryConfig struct {
	MaxRecords      int `yaml:"max_records"`
	AutoCleanupDays int `yaml:"auto_cleanup_days"`
}

// SchedulerConfig — периодический сбор.
type SchedulerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	FirstDelay time.Duration `yaml:"first_delay"`
	// Cron — выражение расписания; если задано, заменяет Interval.
	Cron  string `yaml:"cron"`
	Tasks []Task `yaml:"tasks"`
}

// Task — одна задача планировщика.
type Task struct {
	Provider string `yaml:"platform"`
	Keyword  string `yaml:"keyword"`
	Count    int    `yaml:"count"`
	Enabled  *bool  `yaml:"enabled"`
}

// IsEnabled возвращает true, если задача не отключена явно.
func (t Task) IsEnabled() bool { return t.Enabled == nil || *t.Enabled }

// DefaultPipeline возвращает настройки по умолчанию.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Providers: map[string]ProviderConfig{},
		Filter:    FilterConfig{MinLikeCount: 100},
		Processing: ProcessingConfig{
			SummaryThreshold: 200,
			ImageTimeout:     30 * time.Second,
		},
		Memory: MemoryConfig{MaxRecords: 1000, AutoCleanupDays: 30},
		Scheduler: SchedulerConfig{
			Interval:   60 * time.Minute,
			FirstDelay: 5 * time.Minute,
		},
	}
}

// LoadPipeline читает YAML поверх значений по умолчанию. Отсутствующий файл не ошибка.
func LoadPipeline(path string) (Pipeline, error) {
	cfg := DefaultPipeline()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultPipeline(), fmt.Errorf("parse pipeline config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (p *Pipeline) normalize() {
	if p.Providers == nil {
		p.Providers = map[string]ProviderConfig{}
	}
	if p.Filter.MinLikeCount < 0 {
		p.Filter.MinLikeCount = 0
	}
	if p.Processing.SummaryThreshold <= 0 {
		p.Processing.SummaryThreshold = 200
	}
	if p.Processing.ImageTimeout <= 0 {
		p.Processing.ImageTimeout = 30 * time.Second
	}
	if p.Memory.MaxRecords < 0 {
		p.Memory.MaxRecords = 0
	}
	for i := range p.Scheduler.Tasks {
		t := &p.Scheduler.Tasks[i]
		t.Provider = strings.ToLower(strings.TrimSpace(t.Provider))
		if t.Count <= 0 {
			t.Count = 10
		}
	}
}

// Provider возвращает настройки провайдера (пустые, если не заданы).
func (p Pipeline) Provider(name string) ProviderConfig {
	return p.Providers[name]
}

// ProviderEnabled сообщает, разрешён ли провайдер.
func (p Pipeline) ProviderEnabled(name string) bool {
	return p.Providers[name].IsEnabled()
}

// EnabledProviders возвращает включённые провайдеры в алфавитном порядке.
// Без настроенных провайдеров возвращает провайдер по умолчанию.
func (p Pipeline) EnabledProviders(fallback string) []string {
	out := make([]string, 0, len(p.Providers))
	for name, pc := range p.Providers {
		if pc.IsEnabled() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	if len(out) == 0 {
		out = append(out, fallback)
	}
	return out
}

// SchedulerTasks возвращает задачи планировщика или задачу по умолчанию.
func (p Pipeline) SchedulerTasks(fallback string) []Task {
	if len(p.Scheduler.Tasks) > 0 {
		return p.Scheduler.Tasks
	}
	return []Task{{Provider: fallback, Count: 10}}
}
