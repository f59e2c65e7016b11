package repo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sns_records (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id       TEXT NOT NULL,
	start_time    REAL NOT NULL,
	end_time      REAL NOT NULL,
	original_text TEXT NOT NULL DEFAULT '',
	participants  TEXT NOT NULL DEFAULT '[]',
	theme         TEXT NOT NULL DEFAULT '',
	keywords      TEXT NOT NULL DEFAULT '[]',
	summary       TEXT NOT NULL DEFAULT '',
	key_point     TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS sns_records_scope_time ON sns_records (chat_id, start_time DESC);
`

// SQLite реализует domain.RecordStore во встроенной базе.
type SQLite struct {
	db *sql.DB
	b  builder
}

var _ domain.RecordStore = (*SQLite)(nil)

// OpenSQLite открывает файл базы и создаёт схему.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db, b: newBuilder(sq.Question)}, nil
}

// Close закрывает базу.
func (s *SQLite) Close() error { return s.db.Close() }

// Query выбирает записи.
func (s *SQLite) Query(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	query, args, err := s.b.selectQuery(q)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "query", query, args)
}

// Search ищет записи по ключевым словам.
func (s *SQLite) Search(ctx context.Context, scopes, keywords []string, limit int) ([]domain.Record, error) {
	query, args, err := s.b.searchQuery(scopes, keywords, limit)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "search", query, args)
}

func (s *SQLite) list(ctx context.Context, op, query string, args []any) ([]domain.Record, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	metrics.ObserveNetworkRequest("sqlite", op, recordsTable, start, err)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()
	var out []domain.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Create сохраняет запись и возвращает её id.
func (s *SQLite) Create(ctx context.Context, r domain.Record) (int64, error) {
	query, args, err := s.b.insertQuery(r, false)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	res, err := s.db.ExecContext(ctx, query, args...)
	metrics.ObserveNetworkRequest("sqlite", "insert", recordsTable, start, err)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	return res.LastInsertId()
}

// Delete удаляет записи по фильтрам.
func (s *SQLite) Delete(ctx context.Context, filters map[string]any) (int, error) {
	query, args, err := s.b.deleteQuery(filters)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	res, err := s.db.ExecContext(ctx, query, args...)
	metrics.ObserveNetworkRequest("sqlite", "delete", recordsTable, start, err)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Count возвращает число записей в области.
func (s *SQLite) Count(ctx context.Context, scope string) (int, error) {
	query, args, err := s.b.countQuery(scope)
	if err != nil {
		return 0, err
	}
	var n int
	start := time.Now()
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	metrics.ObserveNetworkRequest("sqlite", "count", recordsTable, start, err)
	return n, err
}
