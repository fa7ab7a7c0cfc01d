package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
)

// allowedSortColumns is a whitelist of columns valid for ORDER BY.
var allowedSortColumns = map[string]string{
	"created_at":   "created_at",
	"client_name":  "client_name",
	"due_date":     "due_date",
	"total_value":  "total_value",
	"days_overdue": "days_overdue",
	"updated_at":   "updated_at",
}

// deleteChunkSize bounds the id list passed to a single DELETE.
const deleteChunkSize = 1000

const itemColumns = `q.id, q.message_type, q.client_code, q.client_name, q.cpf, q.phone,
	q.installment_id, q.description, q.due_date, q.emission_date,
	q.base_value, q.interest, q.penalty, q.total_value, q.days_overdue,
	q.body, q.status, q.selected, q.send_mode, q.error_detail,
	q.created_at, q.updated_at, q.sent_at`

// blockedExpr computes the overlay from the block list at read time. An
// entry with an empty installment_id covers the whole client.
const blockedExpr = `EXISTS (
	SELECT 1 FROM blocked_entries b
	WHERE b.client_code = q.client_code
	  AND (b.installment_id = '' OR b.installment_id = q.installment_id)
)`

// ItemRepository implements queue.ItemRepository using PostgreSQL.
type ItemRepository struct {
	pool *pgxpool.Pool
}

func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

func (r *ItemRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Insert inserts a new pending item. The partial unique index on
// (client_code, installment_id, message_type) WHERE status='PENDING' is the
// authority on duplicates; a violation surfaces as ErrDuplicateItem.
func (r *ItemRepository) Insert(ctx context.Context, item *queue.Item) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO queue_items
		 (id, message_type, client_code, client_name, cpf, phone, installment_id,
		  description, due_date, emission_date, base_value, interest, penalty,
		  total_value, days_overdue, body, status, selected, send_mode,
		  error_detail, created_at, updated_at, sent_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		item.ID, string(item.Type), item.ClientCode, item.ClientName, item.CPF, item.Phone, item.InstallmentID,
		item.Description, item.DueDate, item.EmissionDate,
		centsToNumericString(item.BaseValue), centsToNumericString(item.Interest),
		centsToNumericString(item.Penalty), centsToNumericString(item.TotalValue),
		item.DaysOverdue, item.Body, string(item.Status), item.Selected, string(item.SendMode), item.ErrorDetail,
		item.CreatedAt, item.UpdatedAt, item.SentAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateItem
		}
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

// GetByID retrieves an item with its block overlay applied.
func (r *ItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*queue.Item, error) {
	return r.scanItem(r.db(ctx).QueryRow(ctx,
		`SELECT `+itemColumns+`, `+blockedExpr+` AS blocked
		 FROM queue_items q WHERE q.id = $1`, id))
}

// FindPending returns the pending item for the triple, if any.
func (r *ItemRepository) FindPending(ctx context.Context, clientCode, installmentID string, t message.MessageType) (*queue.Item, error) {
	return r.scanItem(r.db(ctx).QueryRow(ctx,
		`SELECT `+itemColumns+`, `+blockedExpr+` AS blocked
		 FROM queue_items q
		 WHERE q.client_code = $1 AND q.installment_id = $2 AND q.message_type = $3
		   AND q.status = 'PENDING'`,
		clientCode, installmentID, string(t)))
}

// List lists items with filters, block overlay applied.
func (r *ItemRepository) List(ctx context.Context, f queue.ListFilter) ([]*queue.Item, error) {
	query := `SELECT ` + itemColumns + `, ` + blockedExpr + ` AS blocked
		 FROM queue_items q WHERE 1=1`
	where, args := buildItemFilter(f)
	query += where

	sortBy := "created_at"
	if col, ok := allowedSortColumns[f.SortBy]; ok {
		sortBy = col
	}
	sortOrder := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY q.%s %s", sortBy, sortOrder)

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, f.Offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*queue.Item
	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Count counts items matching the filter.
func (r *ItemRepository) Count(ctx context.Context, f queue.ListFilter) (int64, error) {
	query := `SELECT COUNT(*) FROM queue_items q WHERE 1=1`
	where, args := buildItemFilter(f)
	query += where

	var n int64
	if err := r.db(ctx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queue items: %w", err)
	}
	return n, nil
}

// buildItemFilter renders the WHERE fragment shared by List and Count.
// Status filters match the effective status: a block masks any stored
// status, so BLOCKED selects every blocked row and the stored statuses only
// match unblocked rows.
func buildItemFilter(f queue.ListFilter) (string, []any) {
	var sb strings.Builder
	args := []any{}
	argIdx := 1

	if f.Status != nil {
		switch *f.Status {
		case queue.StatusBlocked:
			sb.WriteString(" AND " + blockedExpr)
		default:
			sb.WriteString(fmt.Sprintf(" AND q.status = $%d AND NOT ", argIdx) + blockedExpr)
			args = append(args, string(*f.Status))
			argIdx++
		}
	}
	if f.Type != nil {
		sb.WriteString(fmt.Sprintf(" AND q.message_type = $%d", argIdx))
		args = append(args, string(*f.Type))
		argIdx++
	}
	if f.ClientCode != nil {
		sb.WriteString(fmt.Sprintf(" AND q.client_code = $%d", argIdx))
		args = append(args, *f.ClientCode)
		argIdx++
	}
	if f.Search != nil && *f.Search != "" {
		sb.WriteString(fmt.Sprintf(" AND (q.client_name ILIKE $%d OR q.installment_id ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+*f.Search+"%")
		argIdx++
	}
	return sb.String(), args
}

// ListSendable returns selected pending items that are not blocked, oldest
// first.
func (r *ItemRepository) ListSendable(ctx context.Context, t *message.MessageType) ([]*queue.Item, error) {
	query := `SELECT ` + itemColumns + `, FALSE AS blocked
		 FROM queue_items q
		 WHERE q.status = 'PENDING' AND q.selected AND NOT ` + blockedExpr
	args := []any{}
	if t != nil {
		query += ` AND q.message_type = $1`
		args = append(args, string(*t))
	}
	query += ` ORDER BY q.created_at ASC`

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sendable items: %w", err)
	}
	defer rows.Close()

	var items []*queue.Item
	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetSelected flags or unflags items for dispatch.
func (r *ItemRepository) SetSelected(ctx context.Context, ids []uuid.UUID, selected bool) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE queue_items SET selected = $1, updated_at = NOW() WHERE id = ANY($2)`,
		selected, ids)
	if err != nil {
		return fmt.Errorf("set selected: %w", err)
	}
	return nil
}

// TransitionToSent marks a pending item sent. The status guard in the WHERE
// clause makes the transition atomic under concurrent dispatchers.
func (r *ItemRepository) TransitionToSent(ctx context.Context, id uuid.UUID, mode queue.SendMode, sentAt time.Time) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE queue_items
		 SET status = 'SENT', send_mode = $1, sent_at = $2, error_detail = NULL, updated_at = NOW()
		 WHERE id = $3 AND status = 'PENDING'`,
		string(mode), sentAt, id)
	if err != nil {
		return fmt.Errorf("transition to sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionConflict(ctx, id)
	}
	return nil
}

// TransitionToError marks a pending item errored with detail.
func (r *ItemRepository) TransitionToError(ctx context.Context, id uuid.UUID, detail string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE queue_items
		 SET status = 'ERROR', error_detail = $1, updated_at = NOW()
		 WHERE id = $2 AND status = 'PENDING'`,
		detail, id)
	if err != nil {
		return fmt.Errorf("transition to error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionConflict(ctx, id)
	}
	return nil
}

// transitionConflict distinguishes a missing row from one already past
// PENDING.
func (r *ItemRepository) transitionConflict(ctx context.Context, id uuid.UUID) error {
	var status string
	err := r.db(ctx).QueryRow(ctx,
		`SELECT status FROM queue_items WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domainErrors.ErrItemNotFound
		}
		return fmt.Errorf("check item status: %w", err)
	}
	return domainErrors.NewDomainError(
		"invalid_transition",
		"item is already "+status,
		domainErrors.ErrInvalidStateTransition,
	)
}

// DeleteByIDs removes items regardless of status, chunking the id list.
func (r *ItemRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	var total int64
	for start := 0; start < len(ids); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		tag, err := r.db(ctx).Exec(ctx,
			`DELETE FROM queue_items WHERE id = ANY($1)`, ids[start:end])
		if err != nil {
			return total, fmt.Errorf("delete queue items: %w", err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// DeleteByStatus clears every item in the given stored status.
func (r *ItemRepository) DeleteByStatus(ctx context.Context, status queue.Status) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM queue_items WHERE status = $1`, string(status))
	if err != nil {
		return 0, fmt.Errorf("delete by status: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountSentSince counts SENT items for the triple on or after since.
func (r *ItemRepository) CountSentSince(ctx context.Context, clientCode, installmentID string, t message.MessageType, since time.Time) (int64, error) {
	var n int64
	err := r.db(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM queue_items
		 WHERE client_code = $1 AND installment_id = $2 AND message_type = $3
		   AND status = 'SENT' AND sent_at >= $4`,
		clientCode, installmentID, string(t), since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sent since: %w", err)
	}
	return n, nil
}

// --- scanning helpers ---

func (r *ItemRepository) scanItem(s scanner) (*queue.Item, error) {
	item := &queue.Item{}
	var (
		msgType  string
		baseStr  string
		intStr   string
		penStr   string
		totalStr string
		status   string
		sendMode string
	)
	err := s.Scan(
		&item.ID, &msgType, &item.ClientCode, &item.ClientName, &item.CPF, &item.Phone,
		&item.InstallmentID, &item.Description, &item.DueDate, &item.EmissionDate,
		&baseStr, &intStr, &penStr, &totalStr, &item.DaysOverdue,
		&item.Body, &status, &item.Selected, &sendMode, &item.ErrorDetail,
		&item.CreatedAt, &item.UpdatedAt, &item.SentAt,
		&item.Blocked,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrItemNotFound
		}
		return nil, fmt.Errorf("scan queue item: %w", err)
	}

	for _, conv := range []struct {
		src string
		dst *int64
	}{
		{baseStr, &item.BaseValue},
		{intStr, &item.Interest},
		{penStr, &item.Penalty},
		{totalStr, &item.TotalValue},
	} {
		cents, err := numericStringToCents(conv.src)
		if err != nil {
			return nil, fmt.Errorf("parse value: %w", err)
		}
		*conv.dst = cents
	}

	item.Type = message.MessageType(msgType)
	item.Status = queue.Status(status)
	item.SendMode = queue.SendMode(sendMode)
	return item, nil
}
