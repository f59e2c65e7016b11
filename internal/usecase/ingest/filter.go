package ingest

import (
	"strings"

	"sns-ingest/internal/domain"
)

// Filter отбрасывает элементы по лайкам и спискам ключевых слов.
type Filter struct {
	MinLikes  int64
	Whitelist []string
	Blacklist []string
}

// Keep сообщает, проходит ли элемент фильтр. Совпадение с белым списком
// оставляет элемент независимо от лайков и чёрного списка.
func (f Filter) Keep(c domain.Content) bool {
	text := c.MatchText()
	if containsAny(text, f.Whitelist) {
		return true
	}
	if c.LikeCount < f.MinLikes {
		return false
	}
	return !containsAny(text, f.Blacklist)
}

// Apply возвращает прошедшие фильтр элементы в исходном порядке.
func (f Filter) Apply(items []domain.Content) []domain.Content {
	out := make([]domain.Content, 0, len(items))
	for _, c := range items {
		if f.Keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.TrimSpace(w) != "" && strings.Contains(text, w) {
			return true
		}
	}
	return false
}
