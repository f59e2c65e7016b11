package domain

import "context"

// Operation — операция провайдера, выполняемая через мост.
type Operation string

const (
	// OpList запрашивает ленту.
	OpList Operation = "list"
	// OpSearch ищет по ключевому слову.
	OpSearch Operation = "search"
	// OpDetail загружает полную карточку.
	OpDetail Operation = "detail"
)

// ProviderAdapter переводит ответы моста в Content.
type ProviderAdapter interface {
	Name() string
	ToolName(op Operation) string
	ParseList(raw string) []Content
	ParseDetail(raw string, c Content) Content
	ContentURL(c Content) string
	DetailParams(c Content) map[string]any
}

// Bridge вызывает инструменты провайдера.
type Bridge interface {
	// Invoke вызывает инструмент и возвращает его текстовый ответ.
	// Для отсутствующего инструмента возвращает ErrToolNotFound.
	Invoke(ctx context.Context, tool string, params map[string]any) (string, error)
	HasTool(ctx context.Context, tool string) bool
}

// ModelConfig описывает модель генерации текста.
type ModelConfig struct {
	Name        string
	Temperature float64
	MaxTokens   int
}

// TextGenerator генерирует текст по промпту.
type TextGenerator interface {
	// Models возвращает модели по ролям (utils, replyer, ...).
	Models() map[string]ModelConfig
	Generate(ctx context.Context, prompt string, model ModelConfig, requestType string) (string, error)
}

// ImageDescriber описывает изображение по URL.
type ImageDescriber interface {
	Describe(ctx context.Context, url string) (string, error)
}

// Query описывает выборку из хранилища записей.
type Query struct {
	Filters map[string]any
	// OrderBy — имя колонки, префикс "-" означает убывание.
	OrderBy string
	Limit   int
}

// RecordStore — постоянное хранилище записей.
type RecordStore interface {
	Query(ctx context.Context, q Query) ([]Record, error)
	Create(ctx context.Context, r Record) (int64, error)
	Delete(ctx context.Context, filters map[string]any) (int, error)
	Search(ctx context.Context, scopes []string, keywords []string, limit int) ([]Record, error)
	Count(ctx context.Context, scope string) (int, error)
}

// SeenMirror — внешнее зеркало кэша дедупликации.
type SeenMirror interface {
	Members(ctx context.Context) ([]string, error)
	Add(ctx context.Context, keys ...string) error
}

// Notifier отправляет текстовый ответ в чат.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Роли моделей генерации.
const (
	ModelRoleUtils   = "utils"
	ModelRoleReplyer = "replyer"
)

// PickModel возвращает модель utils, иначе replyer.
func PickModel(models map[string]ModelConfig) (ModelConfig, bool) {
	if m, ok := models[ModelRoleUtils]; ok && m.Name != "" {
		return m, true
	}
	if m, ok := models[ModelRoleReplyer]; ok && m.Name != "" {
		return m, true
	}
	return ModelConfig{}, false
}
