package ingest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/width"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/config"
)

// MatchOutcome — исход проверки интересов.
type MatchOutcome int

const (
	// MatchAccepted — модель выбрала подмножество (возможно пустое).
	MatchAccepted MatchOutcome = iota
	// MatchRejectAll — модель явно ответила, что ничего не подходит.
	MatchRejectAll
	// MatchDegraded — модель недоступна или ответила пусто, элементы пропускаются без проверки.
	MatchDegraded
)

func (o MatchOutcome) String() string {
	switch o {
	case MatchAccepted:
		return "accepted"
	case MatchRejectAll:
		return "reject_all"
	default:
		return "degraded"
	}
}

// MatchResult — результат проверки интересов.
type MatchResult struct {
	Outcome MatchOutcome
	Items   []domain.Content
}

const (
	interestRequestType = "sns_personality_match"
	interestBodyLimit   = 100
)

var (
	indexSplit  = regexp.MustCompile(`[,\s、;]+`)
	noneAnswers = map[string]struct{}{"无": {}, "none": {}, "нет": {}}
)

// InterestMatcher отбирает элементы, подходящие под интересы профиля.
type InterestMatcher struct {
	gen domain.TextGenerator
	log zerolog.Logger
}

// NewInterestMatcher создаёт проверку. gen может быть nil.
func NewInterestMatcher(gen domain.TextGenerator, logger zerolog.Logger) *InterestMatcher {
	return &InterestMatcher{gen: gen, log: logger}
}

// Match спрашивает модель, какие элементы подходят профилю.
func (m *InterestMatcher) Match(ctx context.Context, profile config.InterestProfile, items []domain.Content) MatchResult {
	if len(items) == 0 {
		return MatchResult{Outcome: MatchAccepted}
	}
	if m.gen == nil {
		return MatchResult{Outcome: MatchDegraded, Items: items}
	}
	model, ok := domain.PickModel(m.gen.Models())
	if !ok {
		m.log.Warn().Msg("interest: нет модели, элементы пропускаются без проверки")
		return MatchResult{Outcome: MatchDegraded, Items: items}
	}
	resp, err := m.gen.Generate(ctx, buildInterestPrompt(profile, items), model, interestRequestType)
	if err != nil {
		m.log.Warn().Err(err).Msg("interest: ошибка генерации, элементы пропускаются без проверки")
		return MatchResult{Outcome: MatchDegraded, Items: items}
	}
	resp = strings.TrimSpace(resp)
	if resp == "" {
		m.log.Warn().Msg("interest: пустой ответ модели, пропускаем все элементы")
		return MatchResult{Outcome: MatchDegraded, Items: items}
	}
	if _, none := noneAnswers[strings.ToLower(resp)]; none {
		return MatchResult{Outcome: MatchRejectAll}
	}
	idx := ParseIndices(resp, len(items))
	out := make([]domain.Content, 0, len(idx))
	for _, i := range idx {
		out = append(out, items[i])
	}
	m.log.Debug().Int("total", len(items)).Int("matched", len(out)).Msg("interest: отбор завершён")
	return MatchResult{Outcome: MatchAccepted, Items: out}
}

// ParseIndices разбирает ответ вида "1,3,5" в отсортированные индексы с нуля.
// Номера вне 1..n и нечисловые токены пропускаются, повторы убираются.
func ParseIndices(resp string, n int) []int {
	folded := width.Fold.String(resp)
	seen := map[int]struct{}{}
	var out []int
	for _, tok := range indexSplit.Split(folded, -1) {
		tok = strings.Trim(tok, ".。")
		if tok == "" {
			continue
		}
		v, err := strconv.Atoi(tok)
		if err != nil || v < 1 || v > n {
			continue
		}
		if _, dup := seen[v-1]; dup {
			continue
		}
		seen[v-1] = struct{}{}
		out = append(out, v-1)
	}
	sort.Ints(out)
	return out
}

func buildInterestPrompt(profile config.InterestProfile, items []domain.Content) string {
	var b strings.Builder
	if profile.Nickname != "" {
		fmt.Fprintf(&b, "你是%s。", profile.Nickname)
	}
	if profile.Persona != "" {
		fmt.Fprintf(&b, "%s\n", profile.Persona)
	}
	fmt.Fprintf(&b, "你的兴趣：%s\n\n以下是一些内容：\n", profile.Interest)
	for i, c := range items {
		fmt.Fprintf(&b, "%d. 【%s】%s\n", i+1, c.Title, domain.TruncateRunes(c.Body, interestBodyLimit))
	}
	b.WriteString("\n请选出你感兴趣的内容编号，用逗号分隔（例如 1,3,5）。如果都不感兴趣，请只回复\"无\"。")
	return b.String()
}
