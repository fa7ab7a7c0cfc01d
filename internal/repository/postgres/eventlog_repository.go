package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaelcosta/dunning/internal/domain/eventlog"
)

// EventLogRepository implements eventlog.Repository using PostgreSQL.
type EventLogRepository struct {
	pool *pgxpool.Pool
}

func NewEventLogRepository(pool *pgxpool.Pool) *EventLogRepository {
	return &EventLogRepository{pool: pool}
}

func (r *EventLogRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *EventLogRepository) Add(ctx context.Context, entry *eventlog.Entry) error {
	var detail []byte
	if entry.Detail != nil {
		var err error
		detail, err = json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("marshal event detail: %w", err)
		}
	}
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO event_log (id, kind, message, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, string(entry.Kind), entry.Message, detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *EventLogRepository) List(ctx context.Context, kind *eventlog.Kind, limit int) ([]*eventlog.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, kind, message, detail, created_at FROM event_log`
	args := []any{}
	if kind != nil {
		query += ` WHERE kind = $1`
		args = append(args, string(*kind))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var entries []*eventlog.Entry
	for rows.Next() {
		e := &eventlog.Entry{}
		var kindStr string
		var detail []byte
		if err := rows.Scan(&e.ID, &kindStr, &e.Message, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = eventlog.Kind(kindStr)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal event detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *EventLogRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM event_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("trim event log: %w", err)
	}
	return tag.RowsAffected(), nil
}
