// server/store/postgres/postgres.go
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/vinizap/memo/server/domain"
	"github.com/vinizap/memo/server/livequery"
	"github.com/vinizap/memo/server/store"
)

// columns maps document fields to table columns. Only these fields can be
// filtered or ordered on.
var columns = map[string]string{
	domain.FieldText:      "text",
	domain.FieldPriority:  "priority",
	domain.FieldCreatedAt: "created_at",
	domain.FieldUpdatedAt: "updated_at",
}

type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

var _ store.MemoStore = (*Store)(nil)

func New(pool *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{pool: pool, log: log.With().Str("component", "memo_store").Logger()}
}

// Open connects a pool and checks it with a ping.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func (s *Store) Create(ctx context.Context, memo *domain.Memo) error {
	now := time.Now().UTC()
	if memo.CreatedAt.IsZero() {
		memo.CreatedAt = now
	}
	memo.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO memos (id, text, priority, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		memo.ID, memo.Text, memo.Priority, memo.CreatedAt, memo.UpdatedAt)
	if err != nil {
		s.log.Error().Err(err).Str("memo_id", memo.ID).Msg("failed to create memo")
		return mapError(err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Memo, error) {
	var m domain.Memo
	err := s.pool.QueryRow(ctx,
		`SELECT id, text, priority, created_at, updated_at FROM memos WHERE id = $1`, id).
		Scan(&m.ID, &m.Text, &m.Priority, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &m, nil
}

func (s *Store) Update(ctx context.Context, memo *domain.Memo) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE memos SET text = $2, priority = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		memo.ID, memo.Text, memo.Priority).
		Scan(&memo.CreatedAt, &memo.UpdatedAt)
	if err != nil {
		s.log.Error().Err(err).Str("memo_id", memo.ID).Msg("failed to update memo")
		return mapError(err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM memos WHERE id = $1`, id)
	if err != nil {
		s.log.Error().Err(err).Str("memo_id", id).Msg("failed to delete memo")
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

func (s *Store) List(ctx context.Context, q livequery.Query) ([]*livequery.DocumentSnapshot, error) {
	sql, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	memos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*livequery.DocumentSnapshot, error) {
		var m domain.Memo
		if err := row.Scan(&m.ID, &m.Text, &m.Priority, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		return store.Snapshot(&m), nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return memos, nil
}

// buildSelect renders q as a SELECT over the memos table.
func buildSelect(q livequery.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.Collection != store.MemoCollection {
		return "", nil, fmt.Errorf("%w: unknown collection %q", livequery.ErrInvalidQuery, q.Collection)
	}

	var b strings.Builder
	var args []any
	b.WriteString("SELECT id, text, priority, created_at, updated_at FROM memos")

	for i, f := range q.Filters {
		col, ok := columns[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: cannot filter on %q", livequery.ErrInvalidQuery, f.Field)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		op := string(f.Op)
		switch f.Op {
		case livequery.OpEqual:
			op = "="
		case livequery.OpNotEqual:
			op = "<>"
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "%s %s $%d", col, op, len(args))
	}

	b.WriteString(" ORDER BY ")
	for _, o := range q.OrderBy {
		col, ok := columns[o.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: cannot order by %q", livequery.ErrInvalidQuery, o.Field)
		}
		dir := "ASC NULLS FIRST"
		if o.Desc {
			dir = "DESC NULLS LAST"
		}
		fmt.Fprintf(&b, "%s %s, ", col, dir)
	}
	b.WriteString(`id COLLATE "C" ASC`)

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args, nil
}
