package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/metrics"
	openai "sns-ingest/internal/infra/openai"
)

const (
	maxImageBytes   = 8 << 20
	downloadTimeout = 15 * time.Second
	describePrompt  = "用一两句话客观描述这张图片的主要内容。"
)

// VisionDescriber скачивает изображение и описывает его vision-моделью.
type VisionDescriber struct {
	client chatCompletionClient
	http   *http.Client
	model  string
}

var _ domain.ImageDescriber = (*VisionDescriber)(nil)

// NewVisionDescriber создаёт описатель изображений.
func NewVisionDescriber(client chatCompletionClient, model string) *VisionDescriber {
	return &VisionDescriber{
		client: client,
		http:   &http.Client{Timeout: downloadTimeout},
		model:  model,
	}
}

// Describe возвращает описание изображения по URL.
func (v *VisionDescriber) Describe(ctx context.Context, url string) (string, error) {
	if v.model == "" {
		return "", domain.ErrNoModel
	}
	dataURI, err := v.download(ctx, url)
	if err != nil {
		return "", err
	}
	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     v.model,
		MaxTokens: 200,
		Messages: []openai.ChatMessage{{
			Role: openai.RoleUser,
			Parts: []openai.ContentPart{
				{Type: openai.PartTypeText, Text: describePrompt},
				{Type: openai.PartTypeImageURL, ImageURL: &openai.ImageURL{URL: dataURI}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("describe image: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (v *VisionDescriber) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	start := time.Now()
	resp, err := v.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("image", "download", "", start, err)
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("download image: status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("image", "download", "", start, err)
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	metrics.ObserveNetworkRequest("image", "download", "", start, err)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
