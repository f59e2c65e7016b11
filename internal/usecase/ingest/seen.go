package ingest

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/metrics"
)

// hydrateExtra — запас сверх max_records при восстановлении кэша.
const hydrateExtra = 300

var feedIDPattern = regexp.MustCompile(`(?:^|[^A-Za-z0-9])(?:feed_)?id:([A-Za-z0-9_-]+)`)

// SeenCache — множество ключей provider:id уже сохранённых элементов.
type SeenCache struct {
	mu       sync.RWMutex
	keys     map[string]struct{}
	hydrated bool

	store  domain.RecordStore
	mirror domain.SeenMirror
	log    zerolog.Logger
}

// NewSeenCache создаёт пустой кэш. mirror может быть nil.
func NewSeenCache(store domain.RecordStore, mirror domain.SeenMirror, logger zerolog.Logger) *SeenCache {
	return &SeenCache{keys: map[string]struct{}{}, store: store, mirror: mirror, log: logger}
}

// Hydrate один раз за процесс заполняет кэш из хранилища и зеркала.
// Ошибки отдельных источников только логируются.
func (s *SeenCache) Hydrate(ctx context.Context, providers []string, maxRecords int) {
	s.mu.Lock()
	if s.hydrated {
		s.mu.Unlock()
		return
	}
	s.hydrated = true
	s.mu.Unlock()

	loaded := 0
	if s.store != nil {
		for _, p := range providers {
			recs, err := s.store.Query(ctx, domain.Query{
				Filters: map[string]any{"chat_id": domain.Scope(p)},
				OrderBy: "-start_time",
				Limit:   maxRecords + hydrateExtra,
			})
			if err != nil {
				s.log.Warn().Err(err).Str("provider", p).Msg("seen: не удалось загрузить записи")
				continue
			}
			for _, r := range recs {
				if id, ok := ExtractFeedID(r.KeyPoint); ok {
					s.put(domain.SeenKey(p, id))
					loaded++
				}
			}
		}
	}
	if s.mirror != nil {
		keys, err := s.mirror.Members(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("seen: зеркало недоступно")
		}
		for _, k := range keys {
			s.put(k)
		}
		loaded += len(keys)
	}
	s.log.Info().Int("loaded", loaded).Int("size", s.Len()).Msg("seen: кэш восстановлен")
}

// Has сообщает, встречался ли ключ.
func (s *SeenCache) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// Add запоминает ключ и дублирует его в зеркало.
func (s *SeenCache) Add(ctx context.Context, key string) {
	s.put(key)
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Add(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("seen: не удалось обновить зеркало")
	}
}

// Len возвращает размер кэша.
func (s *SeenCache) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

func (s *SeenCache) put(key string) {
	s.mu.Lock()
	s.keys[key] = struct{}{}
	n := len(s.keys)
	s.mu.Unlock()
	metrics.SeenCacheSize.Set(float64(n))
}

// ExtractFeedID достаёт идентификатор элемента из поля key_point.
// Поддерживает токены "id:<x>" и устаревшие "feed_id:<x>".
func ExtractFeedID(keyPoint string) (string, bool) {
	var tokens []string
	if err := json.Unmarshal([]byte(keyPoint), &tokens); err == nil {
		for _, t := range tokens {
			t = strings.TrimSpace(t)
			for _, prefix := range []string{"id:", "feed_id:"} {
				if id, ok := strings.CutPrefix(t, prefix); ok && id != "" {
					return id, true
				}
			}
		}
		return "", false
	}
	if m := feedIDPattern.FindStringSubmatch(keyPoint); m != nil {
		return m[1], true
	}
	return "", false
}
