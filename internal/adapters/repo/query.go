package repo

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"sns-ingest/internal/domain"
)

const recordsTable = "sns_records"

var recordColumns = []string{
	"id", "chat_id", "start_time", "end_time", "original_text",
	"participants", "theme", "keywords", "summary", "key_point",
}

var filterColumns = map[string]struct{}{
	"id":         {},
	"chat_id":    {},
	"start_time": {},
	"end_time":   {},
	"theme":      {},
}

// builder собирает SQL для конкретного диалекта.
type builder struct {
	sb sq.StatementBuilderType
}

func newBuilder(ph sq.PlaceholderFormat) builder {
	return builder{sb: sq.StatementBuilder.PlaceholderFormat(ph)}
}

func (b builder) filters(filters map[string]any) (sq.Eq, error) {
	eq := sq.Eq{}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := filterColumns[k]; !ok {
			return nil, fmt.Errorf("unsupported filter %q", k)
		}
		eq[k] = filters[k]
	}
	return eq, nil
}

func orderClause(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "", nil
	}
	dir := "ASC"
	if strings.HasPrefix(orderBy, "-") {
		dir = "DESC"
		orderBy = orderBy[1:]
	}
	for _, c := range recordColumns {
		if c == orderBy {
			return c + " " + dir, nil
		}
	}
	return "", fmt.Errorf("unsupported order %q", orderBy)
}

func (b builder) selectQuery(q domain.Query) (string, []any, error) {
	eq, err := b.filters(q.Filters)
	if err != nil {
		return "", nil, err
	}
	sel := b.sb.Select(recordColumns...).From(recordsTable)
	if len(eq) > 0 {
		sel = sel.Where(eq)
	}
	order, err := orderClause(q.OrderBy)
	if err != nil {
		return "", nil, err
	}
	if order != "" {
		sel = sel.OrderBy(order, "id DESC")
	}
	if q.Limit > 0 {
		sel = sel.Limit(uint64(q.Limit))
	}
	return sel.ToSql()
}

func (b builder) insertQuery(r domain.Record, returning bool) (string, []any, error) {
	ins := b.sb.Insert(recordsTable).
		Columns(recordColumns[1:]...).
		Values(r.Scope, r.StartTime, r.EndTime, r.OriginalText, r.Participants, r.Theme, r.Keywords, r.Summary, r.KeyPoint)
	if returning {
		ins = ins.Suffix("RETURNING id")
	}
	return ins.ToSql()
}

func (b builder) deleteQuery(filters map[string]any) (string, []any, error) {
	eq, err := b.filters(filters)
	if err != nil {
		return "", nil, err
	}
	if len(eq) == 0 {
		return "", nil, fmt.Errorf("delete without filters")
	}
	return b.sb.Delete(recordsTable).Where(eq).ToSql()
}

func (b builder) searchQuery(scopes, keywords []string, limit int) (string, []any, error) {
	sel := b.sb.Select(recordColumns...).From(recordsTable).Where(sq.Eq{"chat_id": scopes})
	match := sq.Or{}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		pattern := "%" + kw + "%"
		match = append(match,
			sq.Like{"theme": pattern},
			sq.Like{"summary": pattern},
			sq.Like{"keywords": pattern},
			sq.Like{"original_text": pattern},
		)
	}
	if len(match) > 0 {
		sel = sel.Where(match)
	}
	sel = sel.OrderBy("start_time DESC", "id DESC")
	if limit > 0 {
		sel = sel.Limit(uint64(limit))
	}
	return sel.ToSql()
}

func (b builder) countQuery(scope string) (string, []any, error) {
	return b.sb.Select("COUNT(*)").From(recordsTable).Where(sq.Eq{"chat_id": scope}).ToSql()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.Record, error) {
	var r domain.Record
	err := row.Scan(&r.ID, &r.Scope, &r.StartTime, &r.EndTime, &r.OriginalText,
		&r.Participants, &r.Theme, &r.Keywords, &r.Summary, &r.KeyPoint)
	return r, err
}
