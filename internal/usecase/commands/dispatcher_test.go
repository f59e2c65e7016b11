package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/config"
	"sns-ingest/internal/usecase/ingest"
)

type stubCollector struct {
	requests []ingest.Request
	result   domain.CollectionResult
	cleanup  int
	recall   []domain.Record
	details  []int64
}

func (s *stubCollector) Collect(_ context.Context, req ingest.Request) domain.CollectionResult {
	s.requests = append(s.requests, req)
	return s.result
}

func (s *stubCollector) Cleanup(_ context.Context, days int) (int, int) {
	s.cleanup = days
	return 10, 2
}

func (s *stubCollector) Stats() ingest.Snapshot {
	return ingest.Snapshot{
		LastCollect:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		TotalWritten: 7,
		CacheSize:    9,
		Recent: []domain.Activity{
			{Title: "a1"}, {Title: "a2"}, {Title: "a3"}, {Title: "a4"}, {Title: "a5"}, {Title: "a6"},
		},
	}
}

func (s *stubCollector) Status(context.Context) ([]ingest.ProviderCount, error) {
	return []ingest.ProviderCount{{Provider: "weibo", Records: 3}, {Provider: "xiaohongshu", Records: 4}}, nil
}

func (s *stubCollector) Recall(_ context.Context, _ string, limit int) ([]domain.Record, error) {
	if limit > len(s.recall) {
		limit = len(s.recall)
	}
	return s.recall[:limit], nil
}

func (s *stubCollector) Details(_ context.Context, ids []int64) ([]domain.Record, error) {
	s.details = ids
	return []domain.Record{{ID: ids[0], Theme: "主题", Summary: "全文"}}, nil
}

func (s *stubCollector) Config() config.Pipeline { return config.DefaultPipeline() }

type stubPreviews struct {
	pending   bool
	confirmed int
	missing   bool
	result    domain.CollectionResult
}

func (s *stubPreviews) Preview(context.Context, string, string, string, int) domain.CollectionResult {
	return s.result
}

func (s *stubPreviews) Pending(string) (domain.PreviewSession, bool) {
	return domain.PreviewSession{}, s.pending
}

func (s *stubPreviews) Confirm(context.Context, string) (domain.CollectionResult, bool) {
	s.confirmed++
	return domain.CollectionResult{Success: true, Written: 2}, !s.missing
}

func run(d *Dispatcher, action, arg string) string {
	return d.Execute(context.Background(), domain.CommandJob{ID: "j", Action: action, Arg: arg, Source: domain.SourceCLI})
}

func TestCollectUsesPendingPreview(t *testing.T) {
	collector := &stubCollector{result: domain.CollectionResult{Success: true}}
	previews := &stubPreviews{pending: true}
	d := NewDispatcher(collector, previews, zerolog.Nop())

	out := run(d, ActionCollect, "")
	if previews.confirmed != 1 || len(collector.requests) != 0 {
		t.Fatal("collect без аргумента при живом предпросмотре должен подтверждать его")
	}
	if !strings.Contains(out, "写入: 2") {
		t.Fatalf("неожиданный ответ: %q", out)
	}

	run(d, ActionCollect, "@weibo 猫")
	req := collector.requests[0]
	if req.Provider != "weibo" || req.Keyword != "猫" || req.Count != defaultCount {
		t.Fatalf("неожиданный запрос: %+v", req)
	}
}

func TestCollectWithoutPreviewRunsFresh(t *testing.T) {
	collector := &stubCollector{result: domain.CollectionResult{Success: true, Fetched: 3, Written: 1}}
	d := NewDispatcher(collector, &stubPreviews{}, zerolog.Nop())
	out := run(d, ActionCollect, "")
	if len(collector.requests) != 1 || !strings.Contains(out, "获取: 3") {
		t.Fatalf("ожидали новый прогон, ответ %q", out)
	}
}

func TestBusyReply(t *testing.T) {
	collector := &stubCollector{result: domain.CollectionResult{Errors: []string{domain.ErrAlreadyRunning.Error()}}}
	d := NewDispatcher(collector, &stubPreviews{}, zerolog.Nop())
	if out := run(d, ActionSearch, "猫"); !strings.Contains(out, "正在采集中") {
		t.Fatalf("ожидали сообщение о занятости, получили %q", out)
	}
}

func TestSearchRequiresKeyword(t *testing.T) {
	collector := &stubCollector{}
	d := NewDispatcher(collector, &stubPreviews{}, zerolog.Nop())
	if out := run(d, ActionSearch, " "); out != "请提供搜索关键词" {
		t.Fatalf("получили %q", out)
	}
	if len(collector.requests) != 0 {
		t.Fatal("без ключевого слова сбор не запускается")
	}
}

func TestPreviewReply(t *testing.T) {
	previews := &stubPreviews{result: domain.CollectionResult{Success: true, Previews: []domain.PreviewItem{
		{Title: "t1"}, {Title: "t2"}, {Title: "t3"}, {Title: "t4"}, {Title: "t5"}, {Title: "t6"},
	}}}
	d := NewDispatcher(&stubCollector{}, previews, zerolog.Nop())
	out := run(d, ActionPreview, "")
	if !strings.Contains(out, "5. 【t5】") || strings.Contains(out, "【t6】") {
		t.Fatalf("ожидали первые 5 элементов: %q", out)
	}
	if !strings.Contains(out, "使用 /sns collect 确认写入") {
		t.Fatalf("нет подсказки подтверждения: %q", out)
	}
}

func TestConfirmWithoutPreview(t *testing.T) {
	previews := &stubPreviews{missing: true}
	d := NewDispatcher(&stubCollector{}, previews, zerolog.Nop())
	out := run(d, ActionConfirm, "")
	if !strings.HasPrefix(out, "✅") || !strings.Contains(out, "常规采集") {
		t.Fatalf("получили %q", out)
	}
}

func TestCleanupDays(t *testing.T) {
	collector := &stubCollector{}
	d := NewDispatcher(collector, &stubPreviews{}, zerolog.Nop())
	run(d, ActionCleanup, "")
	if collector.cleanup != defaultCleanupDays {
		t.Fatalf("ожидали %d дней по умолчанию, получили %d", defaultCleanupDays, collector.cleanup)
	}
	out := run(d, ActionCleanup, "7")
	if collector.cleanup != 7 || !strings.Contains(out, "删除 2 条") {
		t.Fatalf("получили %d, %q", collector.cleanup, out)
	}
	if out := run(d, ActionCleanup, "-1"); out != "天数必须是正整数" {
		t.Fatalf("получили %q", out)
	}
}

func TestStatusStatsConfig(t *testing.T) {
	d := NewDispatcher(&stubCollector{}, &stubPreviews{}, zerolog.Nop())
	if out := run(d, ActionStatus, ""); !strings.Contains(out, "合计: 7") {
		t.Fatalf("status: %q", out)
	}
	out := run(d, ActionStats, "")
	if !strings.Contains(out, "a6") || strings.Contains(out, "a1") {
		t.Fatalf("stats должен показывать последние 5 записей: %q", out)
	}
	out = run(d, ActionConfig, "")
	if !strings.Contains(out, "最低点赞: 100") || !strings.Contains(out, "最大记录数: 1000") {
		t.Fatalf("config: %q", out)
	}
}

func TestDreamForcesInterest(t *testing.T) {
	collector := &stubCollector{result: domain.CollectionResult{Success: true}}
	d := NewDispatcher(collector, &stubPreviews{}, zerolog.Nop())
	run(d, ActionDream, "")
	if req := collector.requests[0]; !req.ForceInterest || req.Count != dreamCount {
		t.Fatalf("неожиданный запрос: %+v", req)
	}
}

func TestRecallAndDetail(t *testing.T) {
	collector := &stubCollector{}
	for i := 1; i <= 12; i++ {
		collector.recall = append(collector.recall, domain.Record{ID: int64(i), Theme: "露营", Summary: "s"})
	}
	d := NewDispatcher(collector, &stubPreviews{}, zerolog.Nop())
	out := run(d, ActionRecall, "露营")
	if !strings.Contains(out, "#10 ") || strings.Contains(out, "#11 ") || !strings.Contains(out, "另有 2 条") {
		t.Fatalf("recall: %q", out)
	}
	if out := run(d, ActionRecall, ""); out != "请提供回忆关键词" {
		t.Fatalf("получили %q", out)
	}

	out = run(d, ActionDetail, "5,6")
	if len(collector.details) != 2 || !strings.Contains(out, "#5 主题") {
		t.Fatalf("detail: %v %q", collector.details, out)
	}
}

func TestUnknownAction(t *testing.T) {
	d := NewDispatcher(&stubCollector{}, &stubPreviews{}, zerolog.Nop())
	if out := run(d, "fly", ""); !strings.HasPrefix(out, "未知命令: fly") {
		t.Fatalf("получили %q", out)
	}
	if out := run(d, "", ""); !strings.HasPrefix(out, "📖") {
		t.Fatalf("пустое действие должно давать помощь: %q", out)
	}
}
