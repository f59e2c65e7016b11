package provider

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"sns-ingest/internal/domain"
)

// XiaohongshuName — имя провайдера Xiaohongshu.
const XiaohongshuName = "xiaohongshu"

const xiaohongshuExploreURL = "https://xiaohongshu.com/explore/"

// Xiaohongshu разбирает карточки noteCard и сохраняет xsec_token для запроса деталей.
type Xiaohongshu struct {
	*Generic
}

var _ domain.ProviderAdapter = (*Xiaohongshu)(nil)

// XiaohongshuMapping возвращает таблицу полей Xiaohongshu.
func XiaohongshuMapping() Mapping {
	return Mapping{
		FieldID:       {"id", "note_id"},
		FieldTitle:    {"noteCard.displayTitle", "displayTitle", "title"},
		FieldBody:     {"noteCard.desc", "desc", "content"},
		FieldAuthor:   {"noteCard.user.nickname", "user.nickname", "nickname"},
		FieldLikes:    {"noteCard.interactInfo.likedCount", "interactInfo.likedCount", "likedCount"},
		FieldComments: {"noteCard.interactInfo.commentCount", "interactInfo.commentCount", "commentCount"},
		FieldImages:   {"noteCard.cover", "cover", "imageList", "images"},
		FieldURL:      {},
	}
}

// NewXiaohongshu создаёт адаптер.
func NewXiaohongshu(opts Options) *Xiaohongshu {
	return &Xiaohongshu{Generic: newGeneric(XiaohongshuName, XiaohongshuMapping(), opts)}
}

// ParseList разбирает ленту, поднимая поля noteCard на верхний уровень.
func (x *Xiaohongshu) ParseList(raw string) []domain.Content {
	items := parseList(raw, x.name, x.mapping, mergeNoteCard)
	for i := range items {
		token := ""
		if v, ok := items[i].Extra["xsecToken"].(string); ok {
			token = v
		}
		items[i].Extra["xsec_token"] = token
		items[i].SourceURL = x.ContentURL(items[i])
	}
	return items
}

// ContentURL строит ссылку на заметку.
func (x *Xiaohongshu) ContentURL(c domain.Content) string {
	return xiaohongshuExploreURL + c.ID
}

// DetailParams добавляет xsec_token, если он известен.
func (x *Xiaohongshu) DetailParams(c domain.Content) map[string]any {
	params := map[string]any{"feed_id": c.ID}
	if token, ok := c.Extra["xsec_token"].(string); ok && token != "" {
		params["xsec_token"] = token
	}
	return params
}

// mergeNoteCard копирует поля noteCard в элемент, значения noteCard приоритетнее.
func mergeNoteCard(item gjson.Result) gjson.Result {
	card := item.Get("noteCard")
	if !card.IsObject() {
		return item
	}
	merged := item.Raw
	card.ForEach(func(key, value gjson.Result) bool {
		if key.Str == "noteCard" {
			return true
		}
		next, err := sjson.SetRaw(merged, escapePathKey(key.Str), value.Raw)
		if err == nil {
			merged = next
		}
		return true
	})
	return gjson.Parse(merged)
}

var pathEscaper = strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`, ":", `\:`)

func escapePathKey(key string) string {
	return pathEscaper.Replace(key)
}
