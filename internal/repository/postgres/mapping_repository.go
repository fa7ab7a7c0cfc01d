package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaelcosta/dunning/internal/domain/message"
)

// MappingRepository implements message.MappingRepository using PostgreSQL.
type MappingRepository struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

func NewMappingRepository(pool *pgxpool.Pool) *MappingRepository {
	return &MappingRepository{pool: pool, tx: NewTxManager(pool)}
}

func (r *MappingRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *MappingRepository) List(ctx context.Context) ([]message.FieldMapping, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT variable, source_column FROM field_mappings ORDER BY variable`)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []message.FieldMapping
	for rows.Next() {
		var m message.FieldMapping
		if err := rows.Scan(&m.Variable, &m.SourceColumn); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// Replace swaps the whole mapping set in one transaction, so readers never
// see a half-applied set.
func (r *MappingRepository) Replace(ctx context.Context, mappings []message.FieldMapping) error {
	return r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := r.db(txCtx).Exec(txCtx, `DELETE FROM field_mappings`); err != nil {
			return fmt.Errorf("clear mappings: %w", err)
		}
		for _, m := range mappings {
			if _, err := r.db(txCtx).Exec(txCtx,
				`INSERT INTO field_mappings (variable, source_column) VALUES ($1, $2)`,
				m.Variable, m.SourceColumn); err != nil {
				return fmt.Errorf("insert mapping %s: %w", m.Variable, err)
			}
		}
		return nil
	})
}
