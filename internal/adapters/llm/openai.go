package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sns-ingest/internal/domain"
	openai "sns-ingest/internal/infra/openai"
)

type chatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator реализует domain.TextGenerator поверх Chat Completions.
type Generator struct {
	client  chatCompletionClient
	models  map[string]domain.ModelConfig
	timeout time.Duration
}

var _ domain.TextGenerator = (*Generator)(nil)

// NewGenerator создаёт генератор. Пустые имена моделей не регистрируются.
func NewGenerator(client chatCompletionClient, utilsModel, replyerModel string, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	models := make(map[string]domain.ModelConfig)
	if m := strings.TrimSpace(utilsModel); m != "" {
		models[domain.ModelRoleUtils] = domain.ModelConfig{Name: m, Temperature: 0.2, MaxTokens: 512}
	}
	if m := strings.TrimSpace(replyerModel); m != "" {
		models[domain.ModelRoleReplyer] = domain.ModelConfig{Name: m, Temperature: 0.7, MaxTokens: 512}
	}
	return &Generator{client: client, models: models, timeout: timeout}
}

// Models возвращает доступные модели по ролям.
func (g *Generator) Models() map[string]domain.ModelConfig {
	out := make(map[string]domain.ModelConfig, len(g.models))
	for k, v := range g.models {
		out[k] = v
	}
	return out
}

// Generate выполняет один запрос к модели.
func (g *Generator) Generate(ctx context.Context, prompt string, model domain.ModelConfig, requestType string) (string, error) {
	if model.Name == "" {
		return "", domain.ErrNoModel
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model.Name,
		Temperature: model.Temperature,
		MaxTokens:   model.MaxTokens,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", requestType, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(requestType + ": empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
