package commands

import (
	"fmt"
	"strings"
	"time"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/config"
	"sns-ingest/internal/usecase/ingest"
	"sns-ingest/internal/usecase/preview"
)

const (
	errorsShown     = 3
	recallSummary   = 80
	previewBodyText = 60
)

func formatResult(res domain.CollectionResult) string {
	if res.Busy() {
		return "⏳ 正在采集中，请稍后再试"
	}
	var b strings.Builder
	if res.Success {
		b.WriteString("✅ 采集完成\n")
	} else {
		b.WriteString("❌ 采集失败\n")
	}
	fmt.Fprintf(&b, "获取: %d  写入: %d  过滤: %d  重复: %d", res.Fetched, res.Written, res.Filtered, res.Duplicate)
	writeErrors(&b, res.Errors)
	return b.String()
}

func writeErrors(b *strings.Builder, errs []string) {
	if len(errs) == 0 {
		return
	}
	b.WriteString("\n错误:")
	for i, e := range errs {
		if i == errorsShown {
			fmt.Fprintf(b, "\n… 另有 %d 条", len(errs)-errorsShown)
			break
		}
		fmt.Fprintf(b, "\n- %s", e)
	}
}

func formatPreview(res domain.CollectionResult) string {
	if !res.Success {
		return formatResult(res)
	}
	if len(res.Previews) == 0 {
		return fmt.Sprintf("🔍 没有可写入的新内容（获取 %d，过滤 %d，重复 %d）", res.Fetched, res.Filtered, res.Duplicate)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 预览 %d 条新内容:\n", len(res.Previews))
	for i, p := range res.Previews {
		if i == previewShown {
			fmt.Fprintf(&b, "… 另有 %d 条\n", len(res.Previews)-previewShown)
			break
		}
		fmt.Fprintf(&b, "%d. 【%s】@%s ❤%d\n", i+1, p.Title, p.Author, p.LikeCount)
		if body := domain.TruncateRunes(strings.TrimSpace(p.Body), previewBodyText); body != "" {
			fmt.Fprintf(&b, "   %s\n", strings.ReplaceAll(body, "\n", " "))
		}
	}
	fmt.Fprintf(&b, "\n使用 /sns collect 确认写入（%d 分钟内有效）", int(preview.TTL/time.Minute))
	return b.String()
}

func formatCleanup(days, checked, deleted int) string {
	return fmt.Sprintf("🧹 清理完成（保留 %d 天）：检查 %d 条，删除 %d 条", days, checked, deleted)
}

func formatStatus(counts []ingest.ProviderCount, snap ingest.Snapshot) string {
	var b strings.Builder
	b.WriteString("📊 记录状态\n")
	total := 0
	for _, c := range counts {
		fmt.Fprintf(&b, "- %s: %d\n", c.Provider, c.Records)
		total += c.Records
	}
	fmt.Fprintf(&b, "合计: %d\n", total)
	state := "空闲"
	if snap.Running {
		state = "采集中"
	}
	fmt.Fprintf(&b, "采集器: %s  缓存: %d", state, snap.CacheSize)
	if snap.FailedWrites > 0 {
		fmt.Fprintf(&b, "  待重试: %d", snap.FailedWrites)
	}
	return b.String()
}

func formatStats(snap ingest.Snapshot) string {
	var b strings.Builder
	b.WriteString("📈 采集统计\n")
	last := "从未"
	if !snap.LastCollect.IsZero() {
		last = snap.LastCollect.Format("2006-01-02 15:04:05")
	}
	fmt.Fprintf(&b, "上次采集: %s\n", last)
	fmt.Fprintf(&b, "累计获取: %d  写入: %d  过滤: %d  重复: %d\n", snap.TotalCollected, snap.TotalWritten, snap.TotalFiltered, snap.TotalDuplicate)
	fmt.Fprintf(&b, "运行中: %v  缓存: %d  待重试: %d", snap.Running, snap.CacheSize, snap.FailedWrites)
	if snap.LastResult != "" {
		fmt.Fprintf(&b, "\n上次结果: %s", snap.LastResult)
	}
	recent := snap.Recent
	if len(recent) > recentShown {
		recent = recent[len(recent)-recentShown:]
	}
	if len(recent) > 0 {
		b.WriteString("\n最近写入:")
		for i := len(recent) - 1; i >= 0; i-- {
			a := recent[i]
			fmt.Fprintf(&b, "\n- [%s] %s %s", a.Time.Format("01-02 15:04"), a.Provider, a.Title)
		}
	}
	return b.String()
}

func formatConfig(cfg config.Pipeline) string {
	var b strings.Builder
	b.WriteString("⚙️ 当前配置\n")
	fmt.Fprintf(&b, "启用平台: %s\n", strings.Join(cfg.EnabledProviders(domain.DefaultProvider), ", "))
	fmt.Fprintf(&b, "最低点赞: %d\n", cfg.Filter.MinLikeCount)
	fmt.Fprintf(&b, "最大记录数: %d\n", cfg.Memory.MaxRecords)
	fmt.Fprintf(&b, "自动清理天数: %d\n", cfg.Memory.AutoCleanupDays)
	fmt.Fprintf(&b, "图片识别: %s\n", onOff(cfg.Processing.EnableImageRecognition))
	fmt.Fprintf(&b, "兴趣匹配: %s\n", onOff(cfg.Processing.EnableInterestMatch))
	fmt.Fprintf(&b, "内容摘要: %s\n", onOff(cfg.Processing.SummaryEnabled()))
	sched := "关闭"
	if cfg.Scheduler.Enabled {
		sched = "每 " + cfg.Scheduler.Interval.String()
		if cfg.Scheduler.Cron != "" {
			sched = "cron " + cfg.Scheduler.Cron
		}
	}
	fmt.Fprintf(&b, "定时采集: %s", sched)
	return b.String()
}

func formatRecall(keyword string, recs []domain.Record) string {
	if len(recs) == 0 {
		return fmt.Sprintf("没有找到与「%s」相关的记录", keyword)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🧠 找到 %d 条与「%s」相关的记录:", len(recs), keyword)
	for i, r := range recs {
		if i == recallShown {
			fmt.Fprintf(&b, "\n… 另有 %d 条", len(recs)-recallShown)
			break
		}
		summary := strings.ReplaceAll(domain.TruncateRunes(r.Summary, recallSummary), "\n", " ")
		fmt.Fprintf(&b, "\n#%d %s\n   %s", r.ID, r.Theme, summary)
	}
	b.WriteString("\n\n使用 /sns detail <编号> 查看全文")
	return b.String()
}

func formatDetails(recs []domain.Record) string {
	if len(recs) == 0 {
		return "没有找到对应的记录"
	}
	parts := make([]string, 0, len(recs))
	for _, r := range recs {
		at := time.Unix(int64(r.StartTime), 0).Format("2006-01-02 15:04")
		parts = append(parts, fmt.Sprintf("#%d %s (%s)\n%s", r.ID, r.Theme, at, r.Summary))
	}
	return strings.Join(parts, "\n\n")
}

func onOff(v bool) string {
	if v {
		return "开启"
	}
	return "关闭"
}

// HelpText возвращает справку по командам.
func HelpText() string {
	return strings.Join([]string{
		"📖 /sns 命令",
		"/sns collect [@平台] [关键词] 采集并写入；有待确认预览时直接确认",
		"/sns preview [@平台] [关键词] 预览，不写入",
		"/sns confirm 确认写入上次预览",
		"/sns search [@平台] <关键词> 按关键词采集",
		"/sns cleanup [天数] 清理旧记录（默认 30 天）",
		"/sns status 记录数量",
		"/sns stats 采集统计",
		"/sns config 当前配置",
		"/sns dream [关键词] 按兴趣筛选采集",
		"/sns recall <关键词> 检索已保存的记录",
		"/sns detail <编号> 查看记录全文",
		"/sns help 帮助",
	}, "\n")
}
