package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
)

// BlockRepository implements queue.BlockRepository using PostgreSQL.
type BlockRepository struct {
	pool *pgxpool.Pool
}

func NewBlockRepository(pool *pgxpool.Pool) *BlockRepository {
	return &BlockRepository{pool: pool}
}

func (r *BlockRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Add stores a block entry.
func (r *BlockRepository) Add(ctx context.Context, entry *queue.BlockedEntry) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO blocked_entries (id, client_code, client_name, installment_id, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.ClientCode, entry.ClientName, entry.InstallmentID, entry.Reason, entry.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateItem
		}
		return fmt.Errorf("insert block entry: %w", err)
	}
	return nil
}

// Remove deletes a block entry by id.
func (r *BlockRepository) Remove(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM blocked_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete block entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrBlockedEntryNotFound
	}
	return nil
}

// List returns all block entries, newest first.
func (r *BlockRepository) List(ctx context.Context) ([]*queue.BlockedEntry, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, client_code, client_name, installment_id, reason, created_at
		 FROM blocked_entries ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list block entries: %w", err)
	}
	defer rows.Close()

	var entries []*queue.BlockedEntry
	for rows.Next() {
		e := &queue.BlockedEntry{}
		if err := rows.Scan(&e.ID, &e.ClientCode, &e.ClientName, &e.InstallmentID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan block entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// IsBlocked checks the pair against client-wide and per-installment entries.
func (r *BlockRepository) IsBlocked(ctx context.Context, clientCode, installmentID string) (bool, error) {
	var blocked bool
	err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM blocked_entries
		   WHERE client_code = $1 AND (installment_id = '' OR installment_id = $2)
		 )`, clientCode, installmentID).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return blocked, nil
}
