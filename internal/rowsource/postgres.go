package rowsource

import (
	"context"
	"fmt"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource runs user-supplied queries against the accounts-receivable
// database over its own pool, kept separate from the metadata store.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a PostgresSource.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Query executes sqlText and materializes every row as a Row keyed by the
// column names the driver reports. Values keep their driver types; callers
// resolve and coerce them.
func (s *PostgresSource) Query(ctx context.Context, sqlText string, args ...any) ([]Row, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("%w: no source connection", domainErrors.ErrSourceUnavailable)
	}
	rows, err := s.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read source row: %w", err)
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrSourceUnavailable, err)
	}
	return out, nil
}
