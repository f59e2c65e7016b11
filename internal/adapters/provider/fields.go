package provider

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Field — логическое поле Content.
type Field string

const (
	FieldID       Field = "feed_id"
	FieldTitle    Field = "title"
	FieldBody     Field = "content"
	FieldAuthor   Field = "author"
	FieldLikes    Field = "like_count"
	FieldComments Field = "comment_count"
	FieldImages   Field = "images"
	FieldURL      Field = "url"
)

// Mapping задаёт пути-кандидаты для каждого поля, в порядке приоритета.
type Mapping map[Field][]string

// DefaultMapping возвращает таблицу полей для произвольного провайдера.
func DefaultMapping() Mapping {
	return Mapping{
		FieldID:       {"id", "note_id", "feed_id", "item_id"},
		FieldTitle:    {"title", "displayTitle", "name", "headline"},
		FieldBody:     {"content", "desc", "description", "text", "body"},
		FieldAuthor:   {"author", "nickname", "user.nickname", "user.name", "creator"},
		FieldLikes:    {"likedCount", "like_count", "likes", "interactInfo.likedCount"},
		FieldComments: {"commentCount", "comment_count", "comments", "interactInfo.commentCount"},
		FieldImages:   {"images", "imageList", "image_list", "cover", "pics"},
		FieldURL:      {"url", "link", "webUrl", "share_url"},
	}
}

// WithOverrides возвращает копию таблицы, где поля из overrides заменены.
// Неизвестные имена полей игнорируются.
func (m Mapping) WithOverrides(overrides map[string][]string) Mapping {
	out := make(Mapping, len(m))
	for f, paths := range m {
		out[f] = append([]string(nil), paths...)
	}
	for name, paths := range overrides {
		f := Field(strings.TrimSpace(name))
		if _, ok := m[f]; !ok || len(paths) == 0 {
			continue
		}
		out[f] = append([]string(nil), paths...)
	}
	return out
}

// Lookup возвращает первое найденное непустое значение поля.
func (m Mapping) Lookup(item gjson.Result, f Field) gjson.Result {
	for _, path := range m[f] {
		res := item.Get(path)
		if res.Exists() && res.Type != gjson.Null {
			return res
		}
	}
	return gjson.Result{}
}

// String возвращает поле как строку.
func (m Mapping) String(item gjson.Result, f Field) string {
	res := m.Lookup(item, f)
	if !res.Exists() {
		return ""
	}
	if res.IsObject() || res.IsArray() {
		return ""
	}
	return strings.TrimSpace(res.String())
}
