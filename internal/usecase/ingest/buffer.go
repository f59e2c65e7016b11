package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/metrics"
	"sns-ingest/internal/infra/statefile"
)

// FailedBufferFile — имя файла буфера неудачных записей.
const FailedBufferFile = "failed_writes.json"

// FailedBuffer хранит записи, которые не удалось сохранить, до следующей попытки.
type FailedBuffer struct {
	file  *statefile.File[[]domain.FailedWrite]
	store domain.RecordStore
	seen  *SeenCache
	log   zerolog.Logger
}

// NewFailedBuffer создаёт буфер поверх файла path.
func NewFailedBuffer(path string, store domain.RecordStore, seen *SeenCache, logger zerolog.Logger) *FailedBuffer {
	return &FailedBuffer{file: statefile.New[[]domain.FailedWrite](path), store: store, seen: seen, log: logger}
}

// Append добавляет запись в конец буфера.
func (b *FailedBuffer) Append(rec domain.Record, at time.Time) error {
	return b.file.Update(func(v *[]domain.FailedWrite) (bool, error) {
		*v = append(*v, domain.FailedWrite{Data: rec, Time: domain.EpochSeconds(at)})
		metrics.FailedWrites.Set(float64(len(*v)))
		return false, nil
	})
}

// Len возвращает число записей в буфере.
func (b *FailedBuffer) Len() int {
	return len(b.file.Load())
}

// Retry повторяет сохранение всех записей. Успешные убираются из буфера,
// порядок оставшихся сохраняется. Пустой буфер удаляет файл.
func (b *FailedBuffer) Retry(ctx context.Context) (int, error) {
	retried := 0
	err := b.file.Update(func(v *[]domain.FailedWrite) (bool, error) {
		if len(*v) == 0 {
			return true, nil
		}
		remaining := make([]domain.FailedWrite, 0, len(*v))
		for _, fw := range *v {
			if _, err := b.store.Create(ctx, fw.Data); err != nil {
				remaining = append(remaining, fw)
				continue
			}
			retried++
			b.remember(ctx, fw.Data)
		}
		*v = remaining
		metrics.FailedWrites.Set(float64(len(remaining)))
		return len(remaining) == 0, nil
	})
	if retried > 0 {
		b.log.Info().Int("retried", retried).Msg("buffer: отложенные записи сохранены")
	}
	return retried, err
}

func (b *FailedBuffer) remember(ctx context.Context, rec domain.Record) {
	if b.seen == nil {
		return
	}
	p, ok := strings.CutPrefix(rec.Scope, "sns_")
	if !ok {
		return
	}
	if id, ok := ExtractFeedID(rec.KeyPoint); ok {
		b.seen.Add(ctx, domain.SeenKey(p, id))
	}
}
