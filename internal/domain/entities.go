package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultProvider используется, если провайдер не указан явно.
const DefaultProvider = "xiaohongshu"

// PreviewBodyLimit ограничивает длину текста в предпросмотре.
const PreviewBodyLimit = 200

// Content описывает единицу контента от провайдера.
type Content struct {
	ID           string         `json:"feed_id"`
	Provider     string         `json:"platform"`
	Title        string         `json:"title"`
	Body         string         `json:"content"`
	Author       string         `json:"author"`
	LikeCount    int64          `json:"like_count"`
	CommentCount int64          `json:"comment_count"`
	ImageURLs    []string       `json:"image_urls,omitempty"`
	SourceURL    string         `json:"url,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Key возвращает ключ дедупликации provider:id.
func (c Content) Key() string {
	return SeenKey(c.Provider, c.ID)
}

// MatchText возвращает текст для проверки ключевых слов.
func (c Content) MatchText() string {
	return c.Title + " " + c.Body
}

// Preview формирует краткое представление для предпросмотра.
func (c Content) Preview() PreviewItem {
	return PreviewItem{
		ID:        c.ID,
		Title:     c.Title,
		Body:      TruncateRunes(c.Body, PreviewBodyLimit),
		Author:    c.Author,
		LikeCount: c.LikeCount,
		SourceURL: c.SourceURL,
	}
}

// SeenKey формирует ключ кэша дедупликации.
func SeenKey(provider, id string) string {
	return provider + ":" + id
}

// Scope возвращает область хранения записей провайдера.
func Scope(provider string) string {
	return "sns_" + provider
}

// PreviewItem — упрощённая карточка для предпросмотра.
type PreviewItem struct {
	ID        string `json:"feed_id"`
	Title     string `json:"title"`
	Body      string `json:"content"`
	Author    string `json:"author"`
	LikeCount int64  `json:"like_count"`
	SourceURL string `json:"url,omitempty"`
}

// CollectionResult — итог одного прогона сбора.
type CollectionResult struct {
	Success   bool          `json:"success"`
	Fetched   int           `json:"fetched"`
	Written   int           `json:"written"`
	Filtered  int           `json:"filtered"`
	Duplicate int           `json:"duplicate"`
	Errors    []string      `json:"errors,omitempty"`
	Items     []Content     `json:"-"`
	Previews  []PreviewItem `json:"previews,omitempty"`
}

// AddError добавляет сообщение об ошибке в результат.
func (r *CollectionResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Busy сообщает, что прогон отклонён из-за уже идущего сбора.
func (r CollectionResult) Busy() bool {
	for _, e := range r.Errors {
		if e == ErrAlreadyRunning.Error() {
			return true
		}
	}
	return false
}

// Summary возвращает однострочный отчёт.
func (r CollectionResult) Summary() string {
	status := "✅"
	if !r.Success {
		status = "❌"
	}
	return fmt.Sprintf("%s fetched:%d written:%d filtered:%d duplicate:%d", status, r.Fetched, r.Written, r.Filtered, r.Duplicate)
}

// Record — строка хранилища записей.
type Record struct {
	ID           int64   `json:"id,omitempty"`
	Scope        string  `json:"chat_id"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	OriginalText string  `json:"original_text"`
	Participants string  `json:"participants"`
	Theme        string  `json:"theme"`
	Keywords     string  `json:"keywords"`
	Summary      string  `json:"summary"`
	KeyPoint     string  `json:"key_point"`
}

// FailedWrite — запись, которую не удалось сохранить.
type FailedWrite struct {
	Data Record  `json:"data"`
	Time float64 `json:"time"`
}

// PreviewSession хранит результат предпросмотра до подтверждения.
type PreviewSession struct {
	CreatedAt float64   `json:"ts"`
	Provider  string    `json:"platform"`
	Keyword   string    `json:"keyword,omitempty"`
	Items     []Content `json:"items"`
}

// Expired сообщает, истекла ли сессия к моменту now.
func (s PreviewSession) Expired(now time.Time, ttl time.Duration) bool {
	created := time.Unix(0, int64(s.CreatedAt*float64(time.Second)))
	return now.Sub(created) > ttl
}

// Activity — недавно сохранённый элемент.
type Activity struct {
	Time     time.Time `json:"time"`
	Provider string    `json:"platform"`
	FeedID   string    `json:"feed_id"`
	Title    string    `json:"title"`
}

// EpochSeconds переводит время в секунды эпохи с дробной частью.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// TruncateRunes обрезает строку до limit символов.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// NormalizeProvider приводит имя провайдера к каноничному виду.
func NormalizeProvider(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return DefaultProvider
	}
	return p
}
