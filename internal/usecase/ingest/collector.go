package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sns-ingest/internal/adapters/provider"
	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/config"
	"sns-ingest/internal/infra/metrics"
)

// Adapters выдаёт адаптер провайдера по имени.
type Adapters interface {
	Get(name string) domain.ProviderAdapter
}

// Request — параметры одного прогона сбора.
type Request struct {
	Provider string
	Keyword  string
	Count    int
	// Preview отключает сохранение: элементы возвращаются в результате.
	Preview bool
	// Items — готовые элементы; если не nil, загрузка, фильтр и карточки пропускаются.
	Items []domain.Content
	// ForceInterest включает проверку интересов независимо от настроек.
	ForceInterest bool
}

// Deps — зависимости сборщика. Generator, Images и Mirror могут быть nil.
type Deps struct {
	Bridge    domain.Bridge
	Adapters  Adapters
	Store     domain.RecordStore
	Mirror    domain.SeenMirror
	Generator domain.TextGenerator
	Images    domain.ImageDescriber
	DataDir   string
}

// Collector выполняет прогоны сбора. Одновременно идёт не больше одного прогона.
type Collector struct {
	cfg       config.Pipeline
	bridge    domain.Bridge
	adapters  Adapters
	store     domain.RecordStore
	seen      *SeenCache
	stats     *Stats
	buffer    *FailedBuffer
	matcher   *InterestMatcher
	enricher  *Enricher
	committer *Committer
	retention *Retention
	log       zerolog.Logger

	run sync.Mutex
	now func() time.Time
}

// NewCollector собирает сборщик из зависимостей.
func NewCollector(cfg config.Pipeline, deps Deps, logger zerolog.Logger) *Collector {
	stats := NewStats()
	seen := NewSeenCache(deps.Store, deps.Mirror, logger)
	buffer := NewFailedBuffer(filepath.Join(deps.DataDir, FailedBufferFile), deps.Store, seen, logger)
	return &Collector{
		cfg:       cfg,
		bridge:    deps.Bridge,
		adapters:  deps.Adapters,
		store:     deps.Store,
		seen:      seen,
		stats:     stats,
		buffer:    buffer,
		matcher:   NewInterestMatcher(deps.Generator, logger),
		enricher:  NewEnricher(deps.Bridge, logger),
		committer: NewCommitter(deps.Store, buffer, seen, stats, deps.Generator, deps.Images, cfg.Processing, logger),
		retention: NewRetention(deps.Store, logger),
		log:       logger,
		now:       time.Now,
	}
}

// Config возвращает настройки конвейера.
func (c *Collector) Config() config.Pipeline { return c.cfg }

// Collect выполняет один прогон. Ошибки не возвращаются, а попадают в результат.
func (c *Collector) Collect(ctx context.Context, req Request) (res domain.CollectionResult) {
	name := domain.NormalizeProvider(req.Provider)
	keyword := strings.TrimSpace(req.Keyword)
	if req.Items == nil && req.Count <= 0 {
		res.AddError("count must be positive, got %d", req.Count)
		return res
	}
	if !c.cfg.ProviderEnabled(name) {
		res.AddError("%v: %s", domain.ErrProviderDisabled, name)
		return res
	}
	if !c.run.TryLock() {
		res.Errors = append(res.Errors, domain.ErrAlreadyRunning.Error())
		return res
	}
	defer c.run.Unlock()

	start := c.now()
	c.stats.setRunning(true)
	defer c.stats.setRunning(false)
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("provider", name).Msg("collector: паника в прогоне")
			res.Success = false
			res.AddError("internal error: %v", r)
		}
		c.stats.record(c.now(), res)
		metrics.ObserveCollect(name, res.Success, start, res.Fetched, res.Written, res.Filtered, res.Duplicate)
	}()

	log := c.log.With().Str("provider", name).Str("keyword", keyword).Bool("preview", req.Preview).Logger()
	c.seen.Hydrate(ctx, c.cfg.EnabledProviders(domain.DefaultProvider), c.cfg.Memory.MaxRecords)
	adapter := c.adapters.Get(name)

	items := req.Items
	if items != nil {
		res.Fetched = len(items)
	} else {
		fetched, err := c.fetch(ctx, adapter, keyword, req.Count)
		if err != nil {
			res.AddError("%v", err)
			return res
		}
		res.Fetched = len(fetched)
		if len(fetched) == 0 {
			res.Success = true
			return res
		}
		kept := c.filter().Apply(fetched)
		res.Filtered = len(fetched) - len(kept)

		profile := c.cfg.Processing.Interest
		if (c.cfg.Processing.EnableInterestMatch || req.ForceInterest) && strings.TrimSpace(profile.Interest) != "" {
			match := c.matcher.Match(ctx, profile, kept)
			log.Debug().Str("outcome", match.Outcome.String()).Int("matched", len(match.Items)).Msg("collector: проверка интересов")
			res.Filtered += len(kept) - len(match.Items)
			kept = match.Items
		}
		if len(kept) == 0 {
			res.Success = true
			return res
		}
		if c.cfg.Provider(name).DetailEnabled() {
			kept = c.enricher.Enrich(ctx, adapter, kept)
		}
		items = kept
	}

	pending := map[string]struct{}{}
	for _, item := range items {
		if item.Provider == "" {
			item.Provider = name
		}
		key := item.Key()
		if c.seen.Has(key) {
			res.Duplicate++
			continue
		}
		if _, dup := pending[key]; dup {
			res.Duplicate++
			continue
		}
		pending[key] = struct{}{}
		if req.Preview {
			res.Items = append(res.Items, item)
			res.Previews = append(res.Previews, item.Preview())
			res.Written++
			continue
		}
		if err := c.committer.Commit(ctx, c.adapters.Get(item.Provider), item); err != nil {
			log.Warn().Err(err).Str("feed_id", item.ID).Msg("collector: запись отложена в буфер")
			res.AddError("write %s: %v", item.ID, err)
			continue
		}
		res.Written++
	}
	res.Success = true

	if !req.Preview && res.Written > 0 {
		c.autoCleanup(ctx)
	}
	log.Info().Int("fetched", res.Fetched).Int("written", res.Written).Int("filtered", res.Filtered).Int("duplicate", res.Duplicate).Msg("collector: прогон завершён")
	return res
}

func (c *Collector) fetch(ctx context.Context, adapter domain.ProviderAdapter, keyword string, count int) ([]domain.Content, error) {
	op, params := domain.OpList, map[string]any{}
	if keyword != "" {
		op = domain.OpSearch
		params["keyword"] = keyword
	}
	tool := adapter.ToolName(op)
	if c.bridge == nil {
		return nil, fmt.Errorf("%s: %w", tool, domain.ErrToolNotFound)
	}
	raw, err := c.bridge.Invoke(ctx, tool, params)
	if err != nil {
		if errors.Is(err, domain.ErrToolNotFound) {
			return nil, err
		}
		c.log.Warn().Err(err).Str("tool", tool).Msg("collector: вызов моста не удался")
		return nil, nil
	}
	if provider.IsErrorPayload(raw) {
		c.log.Warn().Str("tool", tool).Str("payload", domain.TruncateRunes(raw, 200)).Msg("collector: мост вернул ошибку")
		return nil, nil
	}
	items := adapter.ParseList(raw)
	for i := range items {
		items[i].Provider = adapter.Name()
	}
	if len(items) > count {
		items = items[:count]
	}
	return items, nil
}

func (c *Collector) filter() Filter {
	return Filter{
		MinLikes:  c.cfg.Filter.MinLikeCount,
		Whitelist: c.cfg.Filter.Whitelist,
		Blacklist: c.cfg.Filter.Blacklist,
	}
}

func (c *Collector) autoCleanup(ctx context.Context) {
	days, maxRecords := c.cfg.Memory.AutoCleanupDays, c.cfg.Memory.MaxRecords
	if days <= 0 && maxRecords <= 0 {
		return
	}
	c.retention.Cleanup(ctx, c.cfg.EnabledProviders(domain.DefaultProvider), days, maxRecords)
}

// Cleanup выполняет очистку по запросу пользователя.
func (c *Collector) Cleanup(ctx context.Context, days int) (checked, deleted int) {
	return c.retention.Cleanup(ctx, c.cfg.EnabledProviders(domain.DefaultProvider), days, c.cfg.Memory.MaxRecords)
}

// RetryBuffered повторяет сохранение отложенных записей.
func (c *Collector) RetryBuffered(ctx context.Context) (int, error) {
	return c.buffer.Retry(ctx)
}

// Stats возвращает снимок статистики.
func (c *Collector) Stats() Snapshot {
	s := c.stats.Snapshot()
	s.CacheSize = c.seen.Len()
	s.FailedWrites = c.buffer.Len()
	return s
}

// ProviderCount — число записей провайдера.
type ProviderCount struct {
	Provider string `json:"platform"`
	Records  int    `json:"records"`
}

// Status возвращает число записей по включённым провайдерам.
func (c *Collector) Status(ctx context.Context) ([]ProviderCount, error) {
	providers := c.cfg.EnabledProviders(domain.DefaultProvider)
	out := make([]ProviderCount, 0, len(providers))
	for _, p := range providers {
		n, err := c.store.Count(ctx, domain.Scope(p))
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", p, err)
		}
		out = append(out, ProviderCount{Provider: p, Records: n})
	}
	return out, nil
}

// Recall ищет сохранённые записи по ключевому слову, новые первыми.
func (c *Collector) Recall(ctx context.Context, keyword string, limit int) ([]domain.Record, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, errors.New("empty keyword")
	}
	scopes := make([]string, 0)
	for _, p := range c.cfg.EnabledProviders(domain.DefaultProvider) {
		scopes = append(scopes, domain.Scope(p))
	}
	return c.store.Search(ctx, scopes, []string{keyword}, limit)
}

// Details возвращает записи по идентификаторам, только из областей провайдеров.
func (c *Collector) Details(ctx context.Context, ids []int64) ([]domain.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	recs, err := c.store.Query(ctx, domain.Query{Filters: map[string]any{"id": ids}, OrderBy: "-start_time"})
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if strings.HasPrefix(r.Scope, "sns_") {
			out = append(out, r)
		}
	}
	return out, nil
}
