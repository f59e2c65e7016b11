package ingest

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sns-ingest/internal/adapters/provider"
	"sns-ingest/internal/domain"
)

// DetailConcurrency — предел одновременных запросов карточек.
const DetailConcurrency = 3

// Enricher догружает полные карточки элементов.
type Enricher struct {
	bridge domain.Bridge
	limit  int
	log    zerolog.Logger
}

// NewEnricher создаёт загрузчик карточек.
func NewEnricher(bridge domain.Bridge, logger zerolog.Logger) *Enricher {
	return &Enricher{bridge: bridge, limit: DetailConcurrency, log: logger}
}

// Enrich возвращает элементы в исходном порядке; неудачная загрузка оставляет элемент как есть.
func (e *Enricher) Enrich(ctx context.Context, adapter domain.ProviderAdapter, items []domain.Content) []domain.Content {
	out := make([]domain.Content, len(items))
	copy(out, items)
	if e.bridge == nil || len(items) == 0 {
		return out
	}
	tool := adapter.ToolName(domain.OpDetail)
	if !e.bridge.HasTool(ctx, tool) {
		e.log.Debug().Str("tool", tool).Msg("enrich: инструмент карточек недоступен")
		return out
	}

	var g errgroup.Group
	g.SetLimit(e.limit)
	for i := range out {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					e.log.Error().Interface("panic", r).Str("feed_id", out[i].ID).Msg("enrich: паника при загрузке карточки")
				}
			}()
			raw, err := e.bridge.Invoke(ctx, tool, adapter.DetailParams(out[i]))
			if err != nil {
				e.log.Warn().Err(err).Str("feed_id", out[i].ID).Msg("enrich: не удалось загрузить карточку")
				return nil
			}
			if provider.IsErrorPayload(raw) {
				e.log.Debug().Str("feed_id", out[i].ID).Msg("enrich: мост вернул ошибку")
				return nil
			}
			out[i] = adapter.ParseDetail(raw, out[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}
