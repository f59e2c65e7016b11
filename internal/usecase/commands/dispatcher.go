package commands

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/config"
	"sns-ingest/internal/infra/metrics"
	"sns-ingest/internal/usecase/ingest"
)

const (
	defaultCount       = 10
	dreamCount         = 15
	defaultCleanupDays = 30
	recallLimit        = 50
	recallShown        = 10
	previewShown       = 5
	recentShown        = 5
	maxDetailIDs       = 20
)

// Collector — операции сборщика, доступные командам.
type Collector interface {
	Collect(ctx context.Context, req ingest.Request) domain.CollectionResult
	Cleanup(ctx context.Context, days int) (checked, deleted int)
	Stats() ingest.Snapshot
	Status(ctx context.Context) ([]ingest.ProviderCount, error)
	Recall(ctx context.Context, keyword string, limit int) ([]domain.Record, error)
	Details(ctx context.Context, ids []int64) ([]domain.Record, error)
	Config() config.Pipeline
}

// Previews — предпросмотр и подтверждение.
type Previews interface {
	Preview(ctx context.Context, session, provider, keyword string, count int) domain.CollectionResult
	Pending(session string) (domain.PreviewSession, bool)
	Confirm(ctx context.Context, session string) (res domain.CollectionResult, confirmed bool)
}

// Dispatcher выполняет команды и возвращает текст ответа.
type Dispatcher struct {
	collector Collector
	previews  Previews
	log       zerolog.Logger
}

// NewDispatcher создаёт исполнитель команд.
func NewDispatcher(collector Collector, previews Previews, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{collector: collector, previews: previews, log: logger}
}

// Execute выполняет задачу. Ошибки превращаются в текст ответа.
func (d *Dispatcher) Execute(ctx context.Context, job domain.CommandJob) string {
	action := strings.ToLower(strings.TrimSpace(job.Action))
	if action == "" {
		action = ActionHelp
	}
	source := string(job.Source)
	if source == "" {
		source = string(domain.SourceCLI)
	}
	if IsKnown(action) {
		metrics.CommandsTotal.WithLabelValues(action, source).Inc()
	}
	d.log.Info().Str("job_id", job.ID).Str("action", action).Str("arg", job.Arg).Str("source", source).Msg("commands: выполнение")

	switch action {
	case ActionCollect:
		return d.collect(ctx, job.Session, job.Arg)
	case ActionPreview:
		return d.preview(ctx, job.Session, job.Arg)
	case ActionConfirm:
		return d.confirm(ctx, job.Session)
	case ActionSearch:
		provider, keyword := splitProvider(job.Arg)
		if keyword == "" {
			return "请提供搜索关键词"
		}
		return formatResult(d.collector.Collect(ctx, ingest.Request{Provider: provider, Keyword: keyword, Count: defaultCount}))
	case ActionCleanup:
		return d.cleanup(ctx, job.Arg)
	case ActionStatus:
		return d.status(ctx)
	case ActionStats:
		return formatStats(d.collector.Stats())
	case ActionConfig:
		return formatConfig(d.collector.Config())
	case ActionDream:
		provider, keyword := splitProvider(job.Arg)
		return formatResult(d.collector.Collect(ctx, ingest.Request{Provider: provider, Keyword: keyword, Count: dreamCount, ForceInterest: true}))
	case ActionRecall:
		return d.recall(ctx, job.Arg)
	case ActionDetail:
		return d.detail(ctx, job.Arg)
	case ActionHelp:
		return HelpText()
	default:
		return "未知命令: " + action + "\n\n" + HelpText()
	}
}

func (d *Dispatcher) collect(ctx context.Context, session, arg string) string {
	provider, keyword := splitProvider(arg)
	if keyword == "" && provider == "" {
		if _, ok := d.previews.Pending(session); ok {
			return d.confirm(ctx, session)
		}
	}
	return formatResult(d.collector.Collect(ctx, ingest.Request{Provider: provider, Keyword: keyword, Count: defaultCount}))
}

func (d *Dispatcher) preview(ctx context.Context, session, arg string) string {
	provider, keyword := splitProvider(arg)
	res := d.previews.Preview(ctx, session, provider, keyword, defaultCount)
	return formatPreview(res)
}

func (d *Dispatcher) confirm(ctx context.Context, session string) string {
	res, confirmed := d.previews.Confirm(ctx, session)
	if !confirmed {
		return formatResult(res) + "\n\n没有有效的预览，已执行一次常规采集"
	}
	return formatResult(res)
}

func (d *Dispatcher) cleanup(ctx context.Context, arg string) string {
	days := defaultCleanupDays
	if arg = strings.TrimSpace(arg); arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v <= 0 {
			return "天数必须是正整数"
		}
		days = v
	}
	checked, deleted := d.collector.Cleanup(ctx, days)
	return formatCleanup(days, checked, deleted)
}

func (d *Dispatcher) status(ctx context.Context) string {
	counts, err := d.collector.Status(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("commands: не удалось получить число записей")
		return "获取状态失败: " + err.Error()
	}
	return formatStatus(counts, d.collector.Stats())
}

func (d *Dispatcher) recall(ctx context.Context, arg string) string {
	keyword := strings.TrimSpace(arg)
	if keyword == "" {
		return "请提供回忆关键词"
	}
	recs, err := d.collector.Recall(ctx, keyword, recallLimit)
	if err != nil {
		d.log.Error().Err(err).Str("keyword", keyword).Msg("commands: поиск по записям не удался")
		return "检索失败: " + err.Error()
	}
	return formatRecall(keyword, recs)
}

func (d *Dispatcher) detail(ctx context.Context, arg string) string {
	ids, err := ParseIDs(arg)
	if err != nil {
		return err.Error()
	}
	recs, err := d.collector.Details(ctx, ids)
	if err != nil {
		d.log.Error().Err(err).Msg("commands: не удалось получить записи")
		return "查询失败: " + err.Error()
	}
	return formatDetails(recs)
}

// ParseIDs разбирает список идентификаторов через запятую или пробел.
func ParseIDs(arg string) ([]int64, error) {
	fields := strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == '，' || r == ' ' || r == '#' })
	if len(fields) == 0 {
		return nil, errors.New("请提供记录编号，例如 /sns detail 12,15")
	}
	if len(fields) > maxDetailIDs {
		fields = fields[:maxDetailIDs]
	}
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil || id <= 0 {
			return nil, errors.New("无效的记录编号: " + f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
