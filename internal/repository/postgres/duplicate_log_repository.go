package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
)

// DuplicateLogRepository implements queue.DuplicateLogRepository using
// PostgreSQL.
type DuplicateLogRepository struct {
	pool *pgxpool.Pool
}

func NewDuplicateLogRepository(pool *pgxpool.Pool) *DuplicateLogRepository {
	return &DuplicateLogRepository{pool: pool}
}

func (r *DuplicateLogRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *DuplicateLogRepository) Add(ctx context.Context, entry *queue.DuplicateLogEntry) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO duplicate_log
		 (id, candidate_item_id, message_type, client_code, client_name,
		  installment_id, due_date, installment_value, existing_queue_id, observed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.CandidateItemID, string(entry.Type), entry.ClientCode, entry.ClientName,
		entry.InstallmentID, entry.DueDate, centsToNumericString(entry.InstallmentValue),
		entry.ExistingQueueItemID, entry.ObservedAt)
	if err != nil {
		return fmt.Errorf("insert duplicate log: %w", err)
	}
	return nil
}

func (r *DuplicateLogRepository) List(ctx context.Context, limit int) ([]*queue.DuplicateLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, candidate_item_id, message_type, client_code, client_name,
		        installment_id, due_date, installment_value, existing_queue_id, observed_at
		 FROM duplicate_log ORDER BY observed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list duplicate log: %w", err)
	}
	defer rows.Close()

	var entries []*queue.DuplicateLogEntry
	for rows.Next() {
		e := &queue.DuplicateLogEntry{}
		var (
			msgType  string
			valueStr string
		)
		err := rows.Scan(&e.ID, &e.CandidateItemID, &msgType, &e.ClientCode, &e.ClientName,
			&e.InstallmentID, &e.DueDate, &valueStr, &e.ExistingQueueItemID, &e.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("scan duplicate log: %w", err)
		}
		e.Type = message.MessageType(msgType)
		if e.InstallmentValue, err = numericStringToCents(valueStr); err != nil {
			return nil, fmt.Errorf("scan duplicate log value: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *DuplicateLogRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM duplicate_log WHERE observed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("trim duplicate log: %w", err)
	}
	return tag.RowsAffected(), nil
}
