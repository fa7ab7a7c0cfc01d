package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/rowsource"
)

// SavedQueryRepository implements rowsource.QueryStore using PostgreSQL.
type SavedQueryRepository struct {
	pool *pgxpool.Pool
}

func NewSavedQueryRepository(pool *pgxpool.Pool) *SavedQueryRepository {
	return &SavedQueryRepository{pool: pool}
}

func (r *SavedQueryRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *SavedQueryRepository) Save(ctx context.Context, q *rowsource.SavedQuery) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO saved_queries (id, name, query_text, created_at)
		 VALUES ($1, $2, $3, $4)`,
		q.ID, q.Name, q.QueryText, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("save query: %w", err)
	}
	return nil
}

func (r *SavedQueryRepository) List(ctx context.Context) ([]*rowsource.SavedQuery, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, name, query_text, created_at
		 FROM saved_queries ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var queries []*rowsource.SavedQuery
	for rows.Next() {
		q := &rowsource.SavedQuery{}
		if err := rows.Scan(&q.ID, &q.Name, &q.QueryText, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// Latest returns the most recently saved query; the generator uses it as the
// base when no explicit query is given.
func (r *SavedQueryRepository) Latest(ctx context.Context) (*rowsource.SavedQuery, error) {
	q := &rowsource.SavedQuery{}
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, name, query_text, created_at
		 FROM saved_queries ORDER BY created_at DESC LIMIT 1`).Scan(
		&q.ID, &q.Name, &q.QueryText, &q.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrItemNotFound
		}
		return nil, fmt.Errorf("latest query: %w", err)
	}
	return q, nil
}

func (r *SavedQueryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM saved_queries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrItemNotFound
	}
	return nil
}
