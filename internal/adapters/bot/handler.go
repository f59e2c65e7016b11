package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"sns-ingest/internal/adapters/telegram"
	"sns-ingest/internal/domain"
	"sns-ingest/internal/usecase/commands"
)

// slowActions — команды, на которые сразу отвечаем подтверждением приёма.
var slowActions = map[string]struct{}{
	commands.ActionCollect: {},
	commands.ActionPreview: {},
	commands.ActionConfirm: {},
	commands.ActionSearch:  {},
	commands.ActionDream:   {},
	commands.ActionCleanup: {},
}

// Handler принимает апдейты бота и ставит команды /sns в очередь.
type Handler struct {
	notifier domain.Notifier
	jobs     domain.CommandQueue
	allowed  map[int64]struct{}
	log      zerolog.Logger
}

// NewHandler создаёт обработчик. Пустой allowed разрешает все чаты.
func NewHandler(sender telegram.Sender, jobs domain.CommandQueue, allowed []int64, log zerolog.Logger) *Handler {
	set := make(map[int64]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	return &Handler{notifier: telegram.NewNotifier(sender), jobs: jobs, allowed: set, log: log}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	h.handleMessage(ctx, upd.Message)
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/start") || strings.HasPrefix(text, "/help") {
		h.reply(ctx, chatID, commands.HelpText())
		return
	}
	cmd, ok := commands.Parse(text)
	if !ok {
		return
	}
	if !h.isAllowed(chatID) {
		h.log.Warn().Int64("chat", chatID).Msg("bot: команда из неразрешённого чата")
		h.reply(ctx, chatID, "⛔ 此聊天无权使用 /sns 命令")
		return
	}
	if !commands.IsKnown(cmd.Action) {
		h.reply(ctx, chatID, fmt.Sprintf("未知命令: %s\n\n%s", cmd.Action, commands.HelpText()))
		return
	}
	if cmd.Action == commands.ActionHelp {
		h.reply(ctx, chatID, commands.HelpText())
		return
	}

	job := commands.NewJob(cmd, SessionKey(chatID), chatID, domain.SourceChat)
	if err := h.jobs.Enqueue(ctx, job); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Str("action", cmd.Action).Msg("bot: не удалось поставить команду в очередь")
		h.reply(ctx, chatID, "命令排队失败，请稍后再试")
		return
	}
	if _, slow := slowActions[cmd.Action]; slow {
		h.reply(ctx, chatID, "⏳ 已收到命令，处理中…")
	}
}

func (h *Handler) isAllowed(chatID int64) bool {
	if len(h.allowed) == 0 {
		return true
	}
	_, ok := h.allowed[chatID]
	return ok
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.notifier.Notify(ctx, chatID, text); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("bot: не удалось отправить сообщение")
	}
}

// SessionKey возвращает ключ сессии предпросмотра для чата.
func SessionKey(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}
