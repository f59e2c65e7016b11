package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/config"
	"sns-ingest/internal/usecase/ingest"
)

type stubCollector struct {
	mu       sync.Mutex
	requests []ingest.Request
	retries  int
	block    chan struct{}
	started  chan struct{}
	ctxErr   error
	panics   bool
}

func (s *stubCollector) Collect(ctx context.Context, req ingest.Request) domain.CollectionResult {
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.ctxErr = ctx.Err()
	s.mu.Unlock()
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return domain.CollectionResult{Success: true}
}

func (s *stubCollector) RetryBuffered(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries++
	return 0, nil
}

func (s *stubCollector) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests), s.retries
}

func TestRunOnceSkipsDisabledTasks(t *testing.T) {
	off := false
	tasks := []config.Task{
		{Provider: "xiaohongshu", Count: 10},
		{Provider: "weibo", Keyword: "猫", Count: 5, Enabled: &off},
		{Provider: "weibo", Keyword: "狗", Count: 3},
	}
	collector := &stubCollector{}
	svc, err := NewService(config.SchedulerConfig{}, tasks, collector, zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	svc.RunOnce(context.Background())

	if len(collector.requests) != 2 || collector.retries != 1 {
		t.Fatalf("ожидали 2 задачи и 1 повтор, получили %d/%d", len(collector.requests), collector.retries)
	}
	if collector.requests[1].Keyword != "狗" || collector.requests[1].Count != 3 {
		t.Fatalf("неожиданный запрос: %+v", collector.requests[1])
	}
}

func TestStartRunsAfterDelayAndStops(t *testing.T) {
	collector := &stubCollector{}
	cfg := config.SchedulerConfig{FirstDelay: 10 * time.Millisecond, Interval: 20 * time.Millisecond}
	svc, err := NewService(cfg, []config.Task{{Provider: "xiaohongshu", Count: 1}}, collector, zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	svc.Start(context.Background())
	svc.Start(context.Background())
	if !svc.Running() {
		t.Fatal("планировщик должен быть запущен")
	}
	time.Sleep(120 * time.Millisecond)
	svc.Stop()
	svc.Stop()

	runs, retries := collector.counts()
	if runs < 2 || retries != runs {
		t.Fatalf("ожидали несколько циклов с повтором перед каждым, получили %d/%d", runs, retries)
	}
	time.Sleep(40 * time.Millisecond)
	if after, _ := collector.counts(); after != runs {
		t.Fatal("после остановки прогонов быть не должно")
	}
	if svc.Running() {
		t.Fatal("планировщик должен быть остановлен")
	}
}

func TestStopBeforeFirstDelay(t *testing.T) {
	collector := &stubCollector{}
	svc, _ := NewService(config.SchedulerConfig{FirstDelay: time.Hour, Interval: time.Hour}, []config.Task{{Provider: "x", Count: 1}}, collector, zerolog.Nop())
	svc.Start(context.Background())
	svc.Stop()
	if runs, _ := collector.counts(); runs != 0 {
		t.Fatal("до первой задержки прогонов быть не должно")
	}
}

func TestOverlappingCycleSkipped(t *testing.T) {
	collector := &stubCollector{block: make(chan struct{})}
	svc, _ := NewService(config.SchedulerConfig{}, []config.Task{{Provider: "x", Count: 1}}, collector, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		svc.RunOnce(context.Background())
		close(done)
	}()
	deadline := time.Now().Add(time.Second)
	for {
		if _, retries := collector.counts(); retries == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("первый цикл не стартовал")
		}
		time.Sleep(time.Millisecond)
	}
	svc.RunOnce(context.Background())
	close(collector.block)
	<-done

	if runs, retries := collector.counts(); runs != 1 || retries != 1 {
		t.Fatalf("второй цикл должен быть пропущен, получили %d/%d", runs, retries)
	}
}

func TestCronSchedule(t *testing.T) {
	svc, err := NewService(config.SchedulerConfig{Cron: "*/5 * * * *"}, nil, &stubCollector{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	now := time.Date(2024, 1, 1, 10, 2, 0, 0, time.UTC)
	if d := svc.next(now); d != 3*time.Minute {
		t.Fatalf("ожидали 3 минуты до следующего запуска, получили %v", d)
	}

	if _, err := NewService(config.SchedulerConfig{Cron: "not a cron"}, nil, &stubCollector{}, zerolog.Nop()); !errors.Is(err, ErrInvalidCron) {
		t.Fatalf("ожидали ErrInvalidCron, получили %v", err)
	}
	plain, _ := NewService(config.SchedulerConfig{Interval: time.Minute}, nil, &stubCollector{}, zerolog.Nop())
	if plain.next(now) != time.Minute {
		t.Fatal("без cron используется интервал")
	}
}

func TestStartWithoutIntervalStaysStopped(t *testing.T) {
	svc, _ := NewService(config.SchedulerConfig{}, []config.Task{{Provider: "x", Count: 1}}, &stubCollector{}, zerolog.Nop())
	svc.Start(context.Background())
	if svc.Running() {
		t.Fatal("без интервала планировщик не должен запускаться")
	}
}

func TestRunOnceRecoversPanic(t *testing.T) {
	collector := &stubCollector{panics: true}
	svc, _ := NewService(config.SchedulerConfig{}, []config.Task{{Provider: "x", Count: 1}}, collector, zerolog.Nop())
	svc.RunOnce(context.Background())
	collector.panics = false
	svc.RunOnce(context.Background())
	if runs, retries := collector.counts(); runs != 1 || retries != 2 {
		t.Fatalf("после сбоя цикл должен продолжать работу, получили %d/%d", runs, retries)
	}
}

func TestStopDoesNotCancelRunningCollection(t *testing.T) {
	collector := &stubCollector{block: make(chan struct{}), started: make(chan struct{}, 1)}
	cfg := config.SchedulerConfig{FirstDelay: time.Millisecond, Interval: time.Hour}
	svc, _ := NewService(cfg, []config.Task{{Provider: "x", Count: 1}, {Provider: "y", Count: 1}}, collector, zerolog.Nop())
	svc.Start(context.Background())

	select {
	case <-collector.started:
	case <-time.After(time.Second):
		t.Fatal("цикл не стартовал")
	}
	stopped := make(chan struct{})
	go func() {
		svc.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop должен ждать завершения идущего прогона")
	case <-time.After(30 * time.Millisecond):
	}
	close(collector.block)
	<-stopped

	collector.mu.Lock()
	defer collector.mu.Unlock()
	if collector.ctxErr != nil {
		t.Fatalf("остановка не должна отменять идущий прогон, получили %v", collector.ctxErr)
	}
	if len(collector.requests) != 1 {
		t.Fatalf("после остановки следующая задача не запускается, прогонов %d", len(collector.requests))
	}
}
