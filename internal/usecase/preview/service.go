package preview

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/statefile"
	"sns-ingest/internal/usecase/ingest"
)

const (
	// TTL — время жизни предпросмотра.
	TTL = 15 * time.Minute
	// StateFile — имя файла состояния предпросмотров.
	StateFile = "collector_state.json"
	// DefaultSession используется, если сессия не указана.
	DefaultSession = "default"
	// FallbackCount — размер обычного сбора, если подтверждать нечего.
	FallbackCount = 10
)

type state struct {
	Preview map[string]domain.PreviewSession `json:"preview"`
}

// Collector выполняет прогон сбора.
type Collector interface {
	Collect(ctx context.Context, req ingest.Request) domain.CollectionResult
}

// Service хранит предпросмотры по сессиям и подтверждает их.
type Service struct {
	file      *statefile.File[state]
	collector Collector
	ttl       time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewService создаёт сервис с файлом состояния в dataDir.
func NewService(dataDir string, collector Collector, logger zerolog.Logger) *Service {
	return &Service{
		file:      statefile.New[state](filepath.Join(dataDir, StateFile)),
		collector: collector,
		ttl:       TTL,
		now:       time.Now,
		log:       logger,
	}
}

// Preview собирает элементы без записи и сохраняет их для сессии.
// Пустой предпросмотр удаляет прежний.
func (s *Service) Preview(ctx context.Context, session, provider, keyword string, count int) domain.CollectionResult {
	session = sessionKey(session)
	provider = domain.NormalizeProvider(provider)
	res := s.collector.Collect(ctx, ingest.Request{Provider: provider, Keyword: keyword, Count: count, Preview: true})
	if !res.Success {
		return res
	}
	err := s.file.Update(func(st *state) (bool, error) {
		if st.Preview == nil {
			st.Preview = map[string]domain.PreviewSession{}
		}
		if len(res.Items) == 0 {
			delete(st.Preview, session)
		} else {
			st.Preview[session] = domain.PreviewSession{
				CreatedAt: domain.EpochSeconds(s.now()),
				Provider:  provider,
				Keyword:   strings.TrimSpace(keyword),
				Items:     res.Items,
			}
		}
		return len(st.Preview) == 0, nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("session", session).Msg("preview: не удалось сохранить состояние")
		res.AddError("save preview: %v", err)
	}
	return res
}

// Pending возвращает живой предпросмотр сессии.
func (s *Service) Pending(session string) (domain.PreviewSession, bool) {
	st := s.file.Load()
	p, ok := st.Preview[sessionKey(session)]
	if !ok || p.Expired(s.now(), s.ttl) {
		return domain.PreviewSession{}, false
	}
	return p, true
}

// Confirm записывает элементы живого предпросмотра и удаляет сессию при любом
// исходе. Если предпросмотра нет или он истёк, выполняется обычный сбор;
// confirmed=false сообщает об этом.
func (s *Service) Confirm(ctx context.Context, session string) (res domain.CollectionResult, confirmed bool) {
	session = sessionKey(session)
	st := s.file.Load()
	p, ok := st.Preview[session]
	if ok {
		s.drop(session)
	}
	if !ok || p.Expired(s.now(), s.ttl) {
		if ok {
			s.log.Info().Str("session", session).Msg("preview: предпросмотр истёк, выполняем обычный сбор")
		}
		return s.collector.Collect(ctx, ingest.Request{Provider: domain.DefaultProvider, Count: FallbackCount}), false
	}
	items := p.Items
	if items == nil {
		items = []domain.Content{}
	}
	return s.collector.Collect(ctx, ingest.Request{Provider: p.Provider, Keyword: p.Keyword, Items: items}), true
}

func (s *Service) drop(session string) {
	err := s.file.Update(func(st *state) (bool, error) {
		delete(st.Preview, session)
		return len(st.Preview) == 0, nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("session", session).Msg("preview: не удалось удалить предпросмотр")
	}
}

func sessionKey(session string) string {
	session = strings.TrimSpace(session)
	if session == "" {
		return DefaultSession
	}
	return session
}
