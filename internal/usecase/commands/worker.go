package commands

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
)

// Executor выполняет команду и возвращает ответ.
type Executor interface {
	Execute(ctx context.Context, job domain.CommandJob) string
}

// Worker читает команды из очереди и отправляет ответы в чат.
type Worker struct {
	queue    domain.CommandQueue
	executor Executor
	notifier domain.Notifier
	log      zerolog.Logger
	backoff  time.Duration
}

// NewWorker создаёт обработчик очереди. notifier может быть nil.
func NewWorker(queue domain.CommandQueue, executor Executor, notifier domain.Notifier, logger zerolog.Logger) *Worker {
	return &Worker{queue: queue, executor: executor, notifier: notifier, log: logger, backoff: time.Second}
}

// Run обрабатывает задачи до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("worker: ошибка чтения очереди")
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff):
			}
			continue
		}
		w.handle(ctx, job, ack)
	}
}

func (w *Worker) handle(ctx context.Context, job domain.CommandJob, ack domain.AckFunc) {
	jobLog := w.log.With().Str("job_id", job.ID).Str("action", job.Action).Int64("chat", job.ChatID).Logger()
	if job.ID == "" {
		jobLog.Error().Msg("worker: получена задача без идентификатора, подтверждаем и пропускаем")
		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("worker: не удалось подтвердить задачу без идентификатора")
		}
		return
	}

	reply := w.executor.Execute(ctx, job)
	if job.ChatID != 0 && w.notifier != nil {
		if err := w.notifier.Notify(ctx, job.ChatID, reply); err != nil {
			jobLog.Error().Err(err).Msg("worker: не удалось отправить ответ")
		}
	}
	if err := ack(true); err != nil {
		jobLog.Error().Err(err).Msg("worker: не удалось подтвердить задачу")
	}
	jobLog.Info().Msg("worker: задача выполнена")
}
