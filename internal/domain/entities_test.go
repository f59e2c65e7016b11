package domain

import (
	"strings"
	"testing"
	"time"
)

func TestCollectionResultSummary(t *testing.T) {
	res := CollectionResult{Success: true, Fetched: 5, Written: 2, Filtered: 2, Duplicate: 1}
	if got := res.Summary(); got != "✅ fetched:5 written:2 filtered:2 duplicate:1" {
		t.Fatalf("неожиданная сводка: %q", got)
	}
	res.Success = false
	if !strings.HasPrefix(res.Summary(), "❌") {
		t.Fatalf("неуспешный прогон должен помечаться ❌: %q", res.Summary())
	}
}

func TestCollectionResultBusy(t *testing.T) {
	var res CollectionResult
	res.AddError("bridge: %s", "timeout")
	if res.Busy() {
		t.Fatal("обычная ошибка не означает занятость")
	}
	res.AddError("%s", ErrAlreadyRunning.Error())
	if !res.Busy() {
		t.Fatal("ожидали признак занятости")
	}
}

func TestPreviewSessionExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := PreviewSession{CreatedAt: EpochSeconds(now.Add(-10 * time.Minute))}
	if s.Expired(now, 15*time.Minute) {
		t.Fatal("сессия 10 минут не должна истечь")
	}
	if !s.Expired(now.Add(6*time.Minute), 15*time.Minute) {
		t.Fatal("сессия 16 минут должна истечь")
	}
}

func TestTruncateRunes(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"abc", 5, "abc"},
		{"周末去露营", 2, "周末"},
		{"abc", 0, ""},
	}
	for _, tc := range cases {
		if got := TruncateRunes(tc.in, tc.limit); got != tc.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestContentPreviewAndKeys(t *testing.T) {
	c := Content{ID: "f1", Provider: "weibo", Body: strings.Repeat("字", 300)}
	if c.Key() != "weibo:f1" {
		t.Fatalf("неожиданный ключ: %s", c.Key())
	}
	if Scope("weibo") != "sns_weibo" {
		t.Fatalf("неожиданная область: %s", Scope("weibo"))
	}
	if n := len([]rune(c.Preview().Body)); n != PreviewBodyLimit {
		t.Fatalf("предпросмотр должен быть обрезан до %d, получили %d", PreviewBodyLimit, n)
	}
	if NormalizeProvider("  WeiBo ") != "weibo" || NormalizeProvider("") != DefaultProvider {
		t.Fatal("неверная нормализация провайдера")
	}
}
