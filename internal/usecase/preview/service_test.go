package preview

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/usecase/ingest"
)

type stubCollector struct {
	requests []ingest.Request
	items    []domain.Content
	busy     bool
}

func (s *stubCollector) Collect(_ context.Context, req ingest.Request) domain.CollectionResult {
	s.requests = append(s.requests, req)
	if s.busy {
		return domain.CollectionResult{Errors: []string{domain.ErrAlreadyRunning.Error()}}
	}
	res := domain.CollectionResult{Success: true}
	if req.Preview {
		res.Items = s.items
		res.Fetched = len(s.items)
		res.Written = len(s.items)
		return res
	}
	res.Fetched = len(req.Items)
	res.Written = len(req.Items)
	return res
}

func newTestService(t *testing.T, collector Collector) (*Service, *time.Time) {
	t.Helper()
	now := time.Unix(1700000000, 0)
	svc := NewService(t.TempDir(), collector, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestPreviewThenConfirm(t *testing.T) {
	collector := &stubCollector{items: []domain.Content{{ID: "1", Provider: "weibo"}, {ID: "2", Provider: "weibo"}}}
	svc, _ := newTestService(t, collector)

	res := svc.Preview(context.Background(), "chat:1", "weibo", "猫", 5)
	if !res.Success || res.Written != 2 {
		t.Fatalf("предпросмотр: %+v", res)
	}
	p, ok := svc.Pending("chat:1")
	if !ok || len(p.Items) != 2 || p.Provider != "weibo" || p.Keyword != "猫" {
		t.Fatalf("ожидали сохранённый предпросмотр, получили %+v", p)
	}

	res, confirmed := svc.Confirm(context.Background(), "chat:1")
	if !confirmed || res.Written != 2 {
		t.Fatalf("подтверждение: %+v, %v", res, confirmed)
	}
	last := collector.requests[len(collector.requests)-1]
	if last.Preview || len(last.Items) != 2 || last.Provider != "weibo" {
		t.Fatalf("подтверждение должно передавать готовые элементы: %+v", last)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(svc.file.Path()), StateFile)); !os.IsNotExist(err) {
		t.Fatal("пустое состояние должно удалять файл")
	}

	if _, confirmed := svc.Confirm(context.Background(), "chat:1"); confirmed {
		t.Fatal("повторное подтверждение не должно находить предпросмотр")
	}
	last = collector.requests[len(collector.requests)-1]
	if last.Items != nil || last.Count != FallbackCount || last.Keyword != "" {
		t.Fatalf("без предпросмотра ожидали обычный сбор: %+v", last)
	}
}

func TestConfirmExpiredFallsBackToCollect(t *testing.T) {
	collector := &stubCollector{items: []domain.Content{{ID: "1", Provider: "weibo"}}}
	svc, now := newTestService(t, collector)
	svc.Preview(context.Background(), "", "weibo", "猫", 5)

	*now = now.Add(20 * time.Minute)
	if _, ok := svc.Pending(""); ok {
		t.Fatal("через 20 минут предпросмотр должен истечь")
	}
	if _, confirmed := svc.Confirm(context.Background(), ""); confirmed {
		t.Fatal("истёкший предпросмотр нельзя подтвердить")
	}
	last := collector.requests[len(collector.requests)-1]
	if last.Items != nil || last.Provider != domain.DefaultProvider || last.Keyword != "" {
		t.Fatalf("ожидали обычный сбор по умолчанию: %+v", last)
	}
	if len(svc.file.Load().Preview) != 0 {
		t.Fatal("истёкший предпросмотр должен удаляться")
	}
}

func TestConfirmDropsPreviewWhenBusy(t *testing.T) {
	collector := &stubCollector{items: []domain.Content{{ID: "1", Provider: "weibo"}}}
	svc, _ := newTestService(t, collector)
	svc.Preview(context.Background(), "s", "weibo", "", 5)

	collector.busy = true
	res, confirmed := svc.Confirm(context.Background(), "s")
	if !confirmed || !res.Busy() {
		t.Fatalf("ожидали отказ занятого сборщика: %+v, %v", res, confirmed)
	}
	if _, ok := svc.Pending("s"); ok {
		t.Fatal("предпросмотр удаляется независимо от исхода")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	collector := &stubCollector{items: []domain.Content{{ID: "1", Provider: "weibo"}}}
	svc, _ := newTestService(t, collector)
	svc.Preview(context.Background(), "a", "weibo", "", 5)

	if _, ok := svc.Pending("b"); ok {
		t.Fatal("сессии не должны пересекаться")
	}
	collector.items = nil
	svc.Preview(context.Background(), "a", "weibo", "", 5)
	if _, ok := svc.Pending("a"); ok {
		t.Fatal("пустой предпросмотр должен удалять прежний")
	}
}
