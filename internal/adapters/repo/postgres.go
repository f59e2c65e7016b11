package repo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/metrics"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sns_records (
	id            BIGSERIAL PRIMARY KEY,
	chat_id       TEXT NOT NULL,
	start_time    DOUBLE PRECISION NOT NULL,
	end_time      DOUBLE PRECISION NOT NULL,
	original_text TEXT NOT NULL DEFAULT '',
	participants  TEXT NOT NULL DEFAULT '[]',
	theme         TEXT NOT NULL DEFAULT '',
	keywords      TEXT NOT NULL DEFAULT '[]',
	summary       TEXT NOT NULL DEFAULT '',
	key_point     TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS sns_records_scope_time ON sns_records (chat_id, start_time DESC);
`

// Postgres реализует domain.RecordStore на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
	b    builder
}

var _ domain.RecordStore = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, b: newBuilder(sq.Dollar)}
}

// EnsureSchema создаёт таблицу записей, если её нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, postgresSchema)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", recordsTable, start, err)
	return err
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Query выбирает записи.
func (p *Postgres) Query(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	query, args, err := p.b.selectQuery(q)
	if err != nil {
		return nil, err
	}
	return p.list(ctx, "query", query, args)
}

// Search ищет записи по ключевым словам.
func (p *Postgres) Search(ctx context.Context, scopes, keywords []string, limit int) ([]domain.Record, error) {
	query, args, err := p.b.searchQuery(scopes, keywords, limit)
	if err != nil {
		return nil, err
	}
	return p.list(ctx, "search", query, args)
}

func (p *Postgres) list(ctx context.Context, op, query string, args []any) ([]domain.Record, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", op, recordsTable, start, err)
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
func (p *Postgres) Create(ctx context.Context, r domain.Record) (int64, error) {
	query, args, err := p.b.insertQuery(r, true)
	if err != nil {
		return 0, err
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	var id int64
	start := time.Now()
	err = p.pool.QueryRow(ctx, query, args...).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "insert", recordsTable, start, err)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// Delete удаляет записи по фильтрам и возвращает их число.
func (p *Postgres) Delete(ctx context.Context, filters map[string]any) (int, error) {
	query, args, err := p.b.deleteQuery(filters)
	if err != nil {
		return 0, err
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	start := time.Now()
	tag, err := p.pool.Exec(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "delete", recordsTable, start, err)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Count возвращает число записей в области.
func (p *Postgres) Count(ctx context.Context, scope string) (int, error) {
	query, args, err := p.b.countQuery(scope)
	if err != nil {
		return 0, err
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	var n int
	start := time.Now()
	err = p.pool.QueryRow(ctx, query, args...).Scan(&n)
	metrics.ObserveNetworkRequest("postgres", "count", recordsTable, start, err)
	return n, err
}
