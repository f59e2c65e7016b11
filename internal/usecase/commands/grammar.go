package commands

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"sns-ingest/internal/domain"
)

// Prefix — префикс команд в чате.
const Prefix = "/sns"

// Действия команд.
const (
	ActionCollect = "collect"
	ActionPreview = "preview"
	ActionConfirm = "confirm"
	ActionSearch  = "search"
	ActionCleanup = "cleanup"
	ActionStatus  = "status"
	ActionStats   = "stats"
	ActionConfig  = "config"
	ActionDream   = "dream"
	ActionRecall  = "recall"
	ActionDetail  = "detail"
	ActionHelp    = "help"
)

// Actions перечисляет известные действия.
var Actions = []string{
	ActionCollect, ActionPreview, ActionConfirm, ActionSearch, ActionCleanup, ActionStatus,
	ActionStats, ActionConfig, ActionDream, ActionRecall, ActionDetail, ActionHelp,
}

// Command — разобранная команда.
type Command struct {
	Action string
	Arg    string
}

// Parse разбирает текст "/sns <action> [arg]". Для чужих команд ok=false.
// Пустое действие означает help.
func Parse(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	head, rest, _ := strings.Cut(text, " ")
	head, _, _ = strings.Cut(head, "@")
	if !strings.EqualFold(head, Prefix) {
		return Command{}, false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return Command{Action: ActionHelp}, true
	}
	action, arg, _ := strings.Cut(rest, " ")
	return Command{Action: strings.ToLower(action), Arg: strings.TrimSpace(arg)}, true
}

// IsKnown сообщает, известно ли действие.
func IsKnown(action string) bool {
	for _, a := range Actions {
		if a == action {
			return true
		}
	}
	return false
}

// NewJob создаёт задачу с новым идентификатором.
func NewJob(cmd Command, session string, chatID int64, source domain.CommandSource) domain.CommandJob {
	return domain.CommandJob{
		ID:          uuid.NewString(),
		Action:      cmd.Action,
		Arg:         cmd.Arg,
		Session:     session,
		ChatID:      chatID,
		RequestedAt: time.Now().UTC(),
		Source:      source,
	}
}

// splitProvider отделяет необязательный первый токен "@provider".
func splitProvider(arg string) (string, string) {
	arg = strings.TrimSpace(arg)
	if !strings.HasPrefix(arg, "@") {
		return "", arg
	}
	head, rest, _ := strings.Cut(arg, " ")
	return strings.TrimPrefix(head, "@"), strings.TrimSpace(rest)
}
