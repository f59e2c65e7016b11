package provider

import (
	"strings"

	"github.com/tidwall/gjson"

	"sns-ingest/internal/domain"
)

var (
	listContainerKeys   = []string{"items", "feeds", "notes", "data", "list", "results"}
	detailContainerKeys = []string{"data", "note", "detail", "item"}
	errorPayloadPrefix  = []string{"❌", "⚠️", "⛔"}
)

var defaultToolSuffixes = map[domain.Operation]string{
	domain.OpList:   "list_feeds",
	domain.OpSearch: "search_feeds",
	domain.OpDetail: "get_feed_detail",
}

// Options — настройки адаптера из конфигурации провайдера.
type Options struct {
	// BridgePrefix — префикс имён инструментов моста, по умолчанию имя провайдера.
	BridgePrefix string
	// Tools переопределяет суффиксы инструментов: list, search, detail.
	Tools map[string]string
	// FieldMapping переопределяет пути полей.
	FieldMapping map[string][]string
}

// Generic — адаптер для провайдеров без собственных особенностей.
type Generic struct {
	name    string
	prefix  string
	tools   map[domain.Operation]string
	mapping Mapping
}

var _ domain.ProviderAdapter = (*Generic)(nil)

// NewGeneric создаёт адаптер с таблицей полей по умолчанию.
func NewGeneric(name string, opts Options) *Generic {
	return newGeneric(name, DefaultMapping(), opts)
}

func newGeneric(name string, base Mapping, opts Options) *Generic {
	prefix := strings.TrimSpace(opts.BridgePrefix)
	if prefix == "" {
		prefix = name
	}
	tools := make(map[domain.Operation]string, len(defaultToolSuffixes))
	for op, suffix := range defaultToolSuffixes {
		tools[op] = suffix
		if custom := strings.TrimSpace(opts.Tools[string(op)]); custom != "" {
			tools[op] = custom
		}
	}
	return &Generic{
		name:    name,
		prefix:  prefix,
		tools:   tools,
		mapping: base.WithOverrides(opts.FieldMapping),
	}
}

// Name возвращает имя провайдера.
func (g *Generic) Name() string { return g.name }

// ToolName возвращает полное имя инструмента моста.
func (g *Generic) ToolName(op domain.Operation) string {
	return g.prefix + "_" + g.tools[op]
}

// ParseList разбирает ответ списка. Невалидный JSON даёт пустой список.
func (g *Generic) ParseList(raw string) []domain.Content {
	return parseList(raw, g.name, g.mapping, nil)
}

// ParseDetail дополняет c данными карточки. При ошибке c возвращается без изменений.
func (g *Generic) ParseDetail(raw string, c domain.Content) domain.Content {
	return parseDetail(raw, c, g.mapping)
}

// ContentURL возвращает ссылку на оригинал.
func (g *Generic) ContentURL(c domain.Content) string { return c.SourceURL }

// DetailParams возвращает параметры вызова инструмента карточки.
func (g *Generic) DetailParams(c domain.Content) map[string]any {
	return map[string]any{"feed_id": c.ID}
}

// IsErrorPayload сообщает, что мост вернул текст ошибки вместо данных.
func IsErrorPayload(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	for _, p := range errorPayloadPrefix {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

func listItems(raw string) []gjson.Result {
	raw = strings.TrimSpace(raw)
	if raw == "" || !gjson.Valid(raw) {
		return nil
	}
	root := gjson.Parse(raw)
	switch {
	case root.IsArray():
		return root.Array()
	case root.IsObject():
		for _, key := range listContainerKeys {
			if v := root.Get(key); v.IsArray() {
				return v.Array()
			}
		}
		return []gjson.Result{root}
	}
	return nil
}

func parseList(raw, provider string, m Mapping, prepare func(gjson.Result) gjson.Result) []domain.Content {
	items := listItems(raw)
	out := make([]domain.Content, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		if prepare != nil {
			item = prepare(item)
		}
		c, ok := extract(item, provider, m)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

func extract(item gjson.Result, provider string, m Mapping) (domain.Content, bool) {
	id := m.String(item, FieldID)
	if id == "" {
		return domain.Content{}, false
	}
	c := domain.Content{
		ID:           id,
		Provider:     provider,
		Title:        m.String(item, FieldTitle),
		Body:         m.String(item, FieldBody),
		Author:       m.String(item, FieldAuthor),
		LikeCount:    ParseCount(m.Lookup(item, FieldLikes)),
		CommentCount: ParseCount(m.Lookup(item, FieldComments)),
		ImageURLs:    extractImages(m.Lookup(item, FieldImages)),
		SourceURL:    m.String(item, FieldURL),
		Extra:        map[string]any{},
	}
	if raw, ok := item.Value().(map[string]any); ok {
		c.Extra = raw
	}
	return c, true
}

func detailObject(root gjson.Result) gjson.Result {
	for _, key := range detailContainerKeys {
		v := root.Get(key)
		if !v.Exists() {
			continue
		}
		if v.IsObject() {
			if note := v.Get("note"); note.IsObject() {
				return note
			}
			return v
		}
		break
	}
	return root
}

func parseDetail(raw string, c domain.Content, m Mapping) domain.Content {
	raw = strings.TrimSpace(raw)
	if raw == "" || !gjson.Valid(raw) {
		return c
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return c
	}
	detail := detailObject(root)
	if body := m.String(detail, FieldBody); body != "" {
		c.Body = body
	}
	if images := extractImages(m.Lookup(detail, FieldImages)); len(images) > 0 {
		c.ImageURLs = images
	}
	if fields, ok := detail.Value().(map[string]any); ok {
		extra := make(map[string]any, len(c.Extra)+len(fields))
		for k, v := range c.Extra {
			extra[k] = v
		}
		for k, v := range fields {
			extra[k] = v
		}
		c.Extra = extra
	}
	return c
}
