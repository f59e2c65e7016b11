package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/config"
	"sns-ingest/internal/usecase/ingest"
)

// ErrInvalidCron возвращается, если выражение расписания не разбирается.
var ErrInvalidCron = errors.New("invalid cron expression")

// Collector — то, что планировщик запускает по расписанию.
type Collector interface {
	Collect(ctx context.Context, req ingest.Request) domain.CollectionResult
	RetryBuffered(ctx context.Context) (int, error)
}

// Service периодически запускает задачи сбора.
type Service struct {
	collector Collector
	tasks     []config.Task
	interval  time.Duration
	delay     time.Duration
	schedule  cron.Schedule
	log       zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	cycle  sync.Mutex
	now    func() time.Time
}

// NewService создаёт планировщик. Cron, если задан, заменяет интервал.
func NewService(cfg config.SchedulerConfig, tasks []config.Task, collector Collector, logger zerolog.Logger) (*Service, error) {
	s := &Service{
		collector: collector,
		tasks:     tasks,
		interval:  cfg.Interval,
		delay:     cfg.FirstDelay,
		log:       logger,
		now:       time.Now,
	}
	if expr := strings.TrimSpace(cfg.Cron); expr != "" {
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCron, expr, err)
		}
		s.schedule = sched
	}
	return s, nil
}

// Start запускает цикл в фоне. Повторный вызов ничего не делает.
// Без интервала и cron планировщик остаётся остановленным.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	if s.interval <= 0 && s.schedule == nil {
		s.log.Warn().Msg("scheduler: интервал не задан, запуск пропущен")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.log.Info().Dur("first_delay", s.delay).Dur("interval", s.interval).Bool("cron", s.schedule != nil).Int("tasks", len(s.tasks)).Msg("scheduler: запущен")
}

// Stop останавливает цикл и ждёт завершения текущего прогона.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info().Msg("scheduler: остановлен")
}

// Running сообщает, запущен ли цикл.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// RunOnce выполняет один цикл: повтор отложенных записей, затем все включённые задачи.
// Если предыдущий цикл ещё идёт, новый пропускается.
func (s *Service) RunOnce(ctx context.Context) {
	s.runCycle(ctx, ctx)
}

// runCycle проверяет stop только между задачами. Начатый прогон работает
// на work и не прерывается остановкой планировщика.
func (s *Service) runCycle(stop, work context.Context) {
	if !s.cycle.TryLock() {
		s.log.Warn().Msg("scheduler: предыдущий цикл ещё выполняется")
		return
	}
	defer s.cycle.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("scheduler: сбой цикла")
		}
	}()

	if n, err := s.collector.RetryBuffered(work); err != nil {
		s.log.Warn().Err(err).Msg("scheduler: повтор отложенных записей не удался")
	} else if n > 0 {
		s.log.Info().Int("retried", n).Msg("scheduler: отложенные записи сохранены")
	}
	for _, task := range s.tasks {
		if !task.IsEnabled() {
			continue
		}
		if stop.Err() != nil {
			return
		}
		res := s.collector.Collect(work, ingest.Request{Provider: task.Provider, Keyword: task.Keyword, Count: task.Count})
		ev := s.log.Info()
		if !res.Success {
			ev = s.log.Warn().Strs("errors", res.Errors)
		}
		ev.Str("provider", task.Provider).Str("keyword", task.Keyword).Msg("scheduler: " + res.Summary())
	}
}

func (s *Service) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	wait := s.delay
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.runCycle(ctx, context.WithoutCancel(ctx))
		wait = s.next(s.now())
	}
}

func (s *Service) next(now time.Time) time.Duration {
	if s.schedule == nil {
		return s.interval
	}
	d := s.schedule.Next(now).Sub(now)
	if d <= 0 {
		return time.Second
	}
	return d
}
