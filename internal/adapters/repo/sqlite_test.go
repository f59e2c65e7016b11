package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sns-ingest/internal/domain"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteCreateQueryDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i, theme := range []string{"old", "mid", "new"} {
		_, err := s.Create(ctx, domain.Record{
			Scope:     "sns_xiaohongshu",
			StartTime: float64(100 + i),
			EndTime:   float64(100 + i),
			Theme:     theme,
			KeyPoint:  `["id:` + theme + `"]`,
		})
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, domain.Record{Scope: "sns_weibo", StartTime: 500, Theme: "other"})
	require.NoError(t, err)

	records, err := s.Query(ctx, domain.Query{
		Filters: map[string]any{"chat_id": "sns_xiaohongshu"},
		OrderBy: "-start_time",
		Limit:   2,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "new", records[0].Theme)
	require.Equal(t, "mid", records[1].Theme)

	n, err := s.Count(ctx, "sns_xiaohongshu")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	deleted, err := s.Delete(ctx, map[string]any{"id": []int64{records[0].ID, records[1].ID}})
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	n, err = s.Count(ctx, "sns_xiaohongshu")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSQLiteSearch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Create(ctx, domain.Record{Scope: "sns_xiaohongshu", StartTime: 1, Theme: "咖啡探店", Keywords: `["咖啡"]`})
	require.NoError(t, err)
	_, err = s.Create(ctx, domain.Record{Scope: "sns_xiaohongshu", StartTime: 2, Summary: "新款相机评测"})
	require.NoError(t, err)
	_, err = s.Create(ctx, domain.Record{Scope: "chat_other", StartTime: 3, Theme: "咖啡"})
	require.NoError(t, err)

	found, err := s.Search(ctx, []string{"sns_xiaohongshu"}, []string{"咖啡", "相机"}, 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, "新款相机评测", found[0].Summary)
}

func TestQueryRejectsUnknownColumns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Query(ctx, domain.Query{Filters: map[string]any{"summary; DROP": 1}})
	require.Error(t, err)
	_, err = s.Query(ctx, domain.Query{OrderBy: "-nope"})
	require.Error(t, err)
	_, err = s.Delete(ctx, nil)
	require.Error(t, err)
}

func TestPostgresBuilderPlaceholders(t *testing.T) {
	b := NewPostgres(nil).b
	query, args, err := b.insertQuery(domain.Record{Scope: "sns_x"}, true)
	require.NoError(t, err)
	require.Contains(t, query, "$1")
	require.Contains(t, query, "RETURNING id")
	require.Len(t, args, 9)
}
