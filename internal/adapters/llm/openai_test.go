package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sns-ingest/internal/domain"
	openai "sns-ingest/internal/infra/openai"
)

type stubClient struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (s *stubClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.req = req
	return s.resp, s.err
}

func reply(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Role: "assistant", Content: text}}}}
}

func TestGeneratorModelsAndGenerate(t *testing.T) {
	client := &stubClient{resp: reply("  1,3 ")}
	g := NewGenerator(client, "mini", "", time.Second)

	models := g.Models()
	if _, ok := models[domain.ModelRoleReplyer]; ok {
		t.Fatal("пустая модель replyer не должна регистрироваться")
	}
	model, ok := domain.PickModel(models)
	if !ok || model.Name != "mini" {
		t.Fatalf("ожидали модель mini, получили %+v", model)
	}
	out, err := g.Generate(context.Background(), "prompt", model, "test")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if out != "1,3" {
		t.Fatalf("ожидали обрезанный ответ, получили %q", out)
	}
	if client.req.Model != "mini" || client.req.Messages[0].Content != "prompt" {
		t.Fatalf("неожиданный запрос: %+v", client.req)
	}
}

func TestGeneratorErrors(t *testing.T) {
	g := NewGenerator(&stubClient{err: errors.New("boom")}, "mini", "", time.Second)
	if _, err := g.Generate(context.Background(), "p", domain.ModelConfig{}, "test"); !errors.Is(err, domain.ErrNoModel) {
		t.Fatalf("ожидали ErrNoModel, получили %v", err)
	}
	if _, err := g.Generate(context.Background(), "p", domain.ModelConfig{Name: "mini"}, "test"); err == nil {
		t.Fatal("ожидали ошибку клиента")
	}
	if _, ok := domain.PickModel(nil); ok {
		t.Fatal("без моделей выбор невозможен")
	}
}

func TestVisionDescriberSendsImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	client := &stubClient{resp: reply("a cat")}
	v := NewVisionDescriber(client, "vision")
	desc, err := v.Describe(context.Background(), srv.URL+"/cat.png")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if desc != "a cat" {
		t.Fatalf("ожидали описание, получили %q", desc)
	}
	payload, err := json.Marshal(client.req.Messages[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), "data:image/png;base64,") {
		t.Fatalf("ожидали data URI в запросе: %s", payload)
	}
}

func TestVisionDescriberDownloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	v := NewVisionDescriber(&stubClient{resp: reply("x")}, "vision")
	if _, err := v.Describe(context.Background(), srv.URL); err == nil {
		t.Fatal("ожидали ошибку загрузки")
	}
}
