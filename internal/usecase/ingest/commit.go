package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/config"
)

const (
	summaryRequestType = "sns_summary"
	summaryMaxLen      = 200
	summaryInputLimit  = 1500
	originalTextLimit  = 500
	themeFallbackLen   = 50
	maxKeywords        = 8
	titleKeywords      = 3
	imageCandidates    = 3
	imageDescribed     = 2
)

const summaryPrompt = "请用一两句话概括以下内容的核心信息，避免无关寒暄，不要超过 120 字：\n\n"

var titleSplit = regexp.MustCompile(`[\s,，。！？!?、]+`)

// Committer превращает элементы в записи и сохраняет их.
type Committer struct {
	store  domain.RecordStore
	buffer *FailedBuffer
	seen   *SeenCache
	stats  *Stats
	gen    domain.TextGenerator
	images domain.ImageDescriber
	cfg    config.ProcessingConfig
	log    zerolog.Logger
	now    func() time.Time
}

// NewCommitter создаёт сохранение записей. gen и images могут быть nil.
func NewCommitter(store domain.RecordStore, buffer *FailedBuffer, seen *SeenCache, stats *Stats, gen domain.TextGenerator, images domain.ImageDescriber, cfg config.ProcessingConfig, logger zerolog.Logger) *Committer {
	return &Committer{store: store, buffer: buffer, seen: seen, stats: stats, gen: gen, images: images, cfg: cfg, log: logger, now: time.Now}
}

// Commit сохраняет элемент. При ошибке хранилища запись уходит в буфер,
// а ключ в кэш не добавляется.
func (c *Committer) Commit(ctx context.Context, adapter domain.ProviderAdapter, item domain.Content) error {
	now := c.now()
	rec := c.BuildRecord(ctx, adapter, item, now)
	if _, err := c.store.Create(ctx, rec); err != nil {
		if bufErr := c.buffer.Append(rec, now); bufErr != nil {
			c.log.Error().Err(bufErr).Str("feed_id", item.ID).Msg("commit: не удалось записать в буфер")
		}
		return fmt.Errorf("create record: %w", err)
	}
	c.seen.Add(ctx, item.Key())
	c.stats.addActivity(domain.Activity{Time: now, Provider: item.Provider, FeedID: item.ID, Title: item.Title})
	return nil
}

// BuildRecord формирует запись хранилища из элемента.
func (c *Committer) BuildRecord(ctx context.Context, adapter domain.ProviderAdapter, item domain.Content, now time.Time) domain.Record {
	summary := c.summarize(ctx, item)
	images := c.describeImages(ctx, item.ImageURLs)

	var full strings.Builder
	fmt.Fprintf(&full, "[from %s] %s", item.Provider, summary)
	if images != "" {
		fmt.Fprintf(&full, "\n[images] %s", images)
	}
	fmt.Fprintf(&full, "\nauthor: @%s\nsource: %s", item.Author, adapter.ContentURL(item))

	theme := item.Title
	if theme == "" {
		theme = domain.TruncateRunes(summary, themeFallbackLen)
	}
	ts := domain.EpochSeconds(now)
	return domain.Record{
		Scope:        domain.Scope(item.Provider),
		StartTime:    ts,
		EndTime:      ts,
		OriginalText: domain.TruncateRunes(item.Body, originalTextLimit),
		Participants: mustJSON([]string{item.Author}),
		Theme:        theme,
		Keywords:     mustJSON(ExtractKeywords(item)),
		Summary:      full.String(),
		KeyPoint:     mustJSON([]string{"id:" + item.ID, fmt.Sprintf("likes:%d", item.LikeCount)}),
	}
}

func (c *Committer) summarize(ctx context.Context, item domain.Content) string {
	text := item.Title + "\n" + item.Body
	if utf8.RuneCountInString(text) <= c.cfg.SummaryThreshold {
		return text
	}
	fallback := truncateEllipsis(text, summaryMaxLen)
	if !c.cfg.SummaryEnabled() || c.gen == nil {
		return fallback
	}
	model, ok := domain.PickModel(c.gen.Models())
	if !ok {
		return fallback
	}
	out, err := c.gen.Generate(ctx, summaryPrompt+domain.TruncateRunes(text, summaryInputLimit), model, summaryRequestType)
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		if err != nil {
			c.log.Warn().Err(err).Str("feed_id", item.ID).Msg("commit: сводка не получена")
		}
		return fallback
	}
	return domain.TruncateRunes(out, summaryMaxLen)
}

func (c *Committer) describeImages(ctx context.Context, urls []string) string {
	if !c.cfg.EnableImageRecognition || c.images == nil || len(urls) == 0 {
		return ""
	}
	candidates := urls[:min(imageCandidates, len(urls))]
	candidates = candidates[:min(imageDescribed, len(candidates))]
	descs := make([]string, len(candidates))

	var g errgroup.Group
	for i, u := range candidates {
		g.Go(func() error {
			ictx, cancel := context.WithTimeout(ctx, c.cfg.ImageTimeout)
			defer cancel()
			d, err := c.images.Describe(ictx, u)
			if err != nil {
				c.log.Debug().Err(err).Str("url", u).Msg("commit: изображение не распознано")
				return nil
			}
			descs[i] = strings.TrimSpace(d)
			return nil
		})
	}
	_ = g.Wait()

	out := descs[:0]
	for _, d := range descs {
		if d != "" {
			out = append(out, d)
		}
	}
	return strings.Join(out, "; ")
}

// ExtractKeywords собирает до восьми ключевых слов: слова заголовка, автор, провайдер.
func ExtractKeywords(item domain.Content) []string {
	var words []string
	for _, w := range titleSplit.Split(item.Title, -1) {
		if utf8.RuneCountInString(w) >= 2 {
			words = append(words, w)
			if len(words) == titleKeywords {
				break
			}
		}
	}
	if item.Author != "" {
		words = append(words, item.Author)
	}
	if item.Provider != "" {
		words = append(words, item.Provider)
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

func truncateEllipsis(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return domain.TruncateRunes(s, limit) + "..."
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}
