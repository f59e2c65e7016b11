package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
)

const (
	retentionExtra       = 500
	defaultRetentionDays = 36500
	defaultMaxRecords    = 1000
	secondsPerDay        = 86400
)

// Retention удаляет устаревшие и лишние записи провайдеров.
type Retention struct {
	store domain.RecordStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewRetention создаёт очистку.
func NewRetention(store domain.RecordStore, logger zerolog.Logger) *Retention {
	return &Retention{store: store, log: logger, now: time.Now}
}

// Cleanup удаляет записи старше days дней и всё сверх maxRecords новейших.
// Возвращает число просмотренных и удалённых записей.
func (r *Retention) Cleanup(ctx context.Context, providers []string, days, maxRecords int) (checked, deleted int) {
	if days <= 0 {
		days = defaultRetentionDays
	}
	if maxRecords <= 0 {
		maxRecords = defaultMaxRecords
	}
	cutoff := domain.EpochSeconds(r.now()) - float64(days*secondsPerDay)

	for _, p := range providers {
		recs, err := r.store.Query(ctx, domain.Query{
			Filters: map[string]any{"chat_id": domain.Scope(p)},
			OrderBy: "-start_time",
			Limit:   maxRecords + retentionExtra,
		})
		if err != nil {
			r.log.Warn().Err(err).Str("provider", p).Msg("retention: не удалось получить записи")
			continue
		}
		checked += len(recs)

		seen := map[int64]struct{}{}
		var ids []int64
		for i, rec := range recs {
			if rec.StartTime < cutoff || i >= maxRecords {
				if _, dup := seen[rec.ID]; dup {
					continue
				}
				seen[rec.ID] = struct{}{}
				ids = append(ids, rec.ID)
			}
		}
		if len(ids) == 0 {
			continue
		}
		n, err := r.store.Delete(ctx, map[string]any{"id": ids})
		if err != nil {
			r.log.Warn().Err(err).Str("provider", p).Msg("retention: не удалось удалить записи")
			continue
		}
		deleted += n
	}
	if deleted > 0 {
		r.log.Info().Int("checked", checked).Int("deleted", deleted).Msg("retention: очистка завершена")
	}
	return checked, deleted
}
