package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestChatMessageMarshalParts(t *testing.T) {
	plain, _ := json.Marshal(ChatMessage{Role: RoleUser, Content: "привет"})
	if string(plain) != `{"role":"user","content":"привет"}` {
		t.Fatalf("неожиданная строковая форма: %s", plain)
	}
	parts, _ := json.Marshal(ChatMessage{Role: RoleUser, Parts: []ContentPart{
		{Type: PartTypeText, Text: "опиши"},
		{Type: PartTypeImageURL, ImageURL: &ImageURL{URL: "data:image/png;base64,AA=="}},
	}})
	if !strings.Contains(string(parts), `"content":[{"type":"text","text":"опиши"}`) ||
		!strings.Contains(string(parts), `"image_url":{"url":"data:image/png;base64,AA=="}`) {
		t.Fatalf("неожиданная составная форма: %s", parts)
	}
}

func TestCreateChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("неожиданный запрос: %s %s", r.URL.Path, r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"model":"m"`) {
			t.Errorf("нет модели в теле: %s", body)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"1,3"}}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	client := NewClient("key", srv.URL+"/", time.Second)
	resp, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m", Messages: []ChatMessage{{Role: RoleUser, Content: "q"}}})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != "1,3" {
		t.Fatalf("неожиданный ответ: %+v", resp)
	}
}

func TestCreateChatCompletionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	_, err := NewClient("key", srv.URL, time.Second).CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("ожидали ошибку API, получили %v", err)
	}
	if _, err := NewClient("", srv.URL, time.Second).CreateChatCompletion(context.Background(), ChatCompletionRequest{}); err == nil {
		t.Fatal("пустой ключ должен давать ошибку")
	}
}
