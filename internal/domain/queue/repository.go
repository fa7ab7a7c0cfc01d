package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelcosta/dunning/internal/domain/message"
)

// ItemRepository defines the interface for queue item persistence
type ItemRepository interface {
	// Insert stores a new pending item. A pending item already covering the
	// same (client, installment, type) triple fails with ErrDuplicateItem.
	Insert(ctx context.Context, item *Item) error

	// GetByID retrieves an item with its block overlay applied
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)

	// List lists items with filters, block overlay applied
	List(ctx context.Context, filter ListFilter) ([]*Item, error)

	// Count counts items matching the filter
	Count(ctx context.Context, filter ListFilter) (int64, error)

	// FindPending returns the pending item for the triple, if any
	FindPending(ctx context.Context, clientCode, installmentID string, t message.MessageType) (*Item, error)

	// ListSendable returns selected pending items that are not blocked,
	// oldest first
	ListSendable(ctx context.Context, t *message.MessageType) ([]*Item, error)

	// SetSelected flags or unflags items for dispatch
	SetSelected(ctx context.Context, ids []uuid.UUID, selected bool) error

	// TransitionToSent marks a pending item sent. Returns
	// ErrInvalidStateTransition when the row is no longer pending.
	TransitionToSent(ctx context.Context, id uuid.UUID, mode SendMode, sentAt time.Time) error

	// TransitionToError marks a pending item errored with detail
	TransitionToError(ctx context.Context, id uuid.UUID, detail string) error

	// DeleteByIDs removes items regardless of status
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)

	// DeleteByStatus clears every item in the given stored status
	DeleteByStatus(ctx context.Context, status Status) (int64, error)

	// CountSentSince counts SENT items for the triple on or after since.
	// The resend scheduler uses it to honor the repeat interval.
	CountSentSince(ctx context.Context, clientCode, installmentID string, t message.MessageType, since time.Time) (int64, error)
}

// ListFilter defines filters for listing queue items
type ListFilter struct {
	Status     *Status // effective status; BLOCKED selects overlaid pendings
	Type       *message.MessageType
	ClientCode *string
	Search     *string // matches client name or installment id
	Limit      int
	Offset     int
	SortBy     string
	SortOrder  string
}

// BlockRepository defines the interface for block list persistence
type BlockRepository interface {
	// Add stores a block entry. Duplicate (client, installment) pairs fail
	// with ErrDuplicateItem.
	Add(ctx context.Context, entry *BlockedEntry) error

	// Remove deletes a block entry by id
	Remove(ctx context.Context, id uuid.UUID) error

	// List returns all block entries, newest first
	List(ctx context.Context) ([]*BlockedEntry, error)

	// IsBlocked checks the pair against client-wide and per-installment
	// entries
	IsBlocked(ctx context.Context, clientCode, installmentID string) (bool, error)
}

// DuplicateLogRepository records suppressed duplicate generation attempts
type DuplicateLogRepository interface {
	Add(ctx context.Context, entry *DuplicateLogEntry) error
	List(ctx context.Context, limit int) ([]*DuplicateLogEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
