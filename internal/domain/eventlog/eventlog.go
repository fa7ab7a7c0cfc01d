package eventlog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an operational event
type Kind string

const (
	KindInfo     Kind = "INFO"
	KindError    Kind = "ERROR"
	KindSchedule Kind = "SCHEDULE"
)

// Entry is one operational event kept for the activity feed
type Entry struct {
	ID        uuid.UUID
	Kind      Kind
	Message   string
	Detail    map[string]any
	CreatedAt time.Time
}

func New(kind Kind, msg string, detail map[string]any) *Entry {
	return &Entry{
		ID:        uuid.New(),
		Kind:      kind,
		Message:   msg,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
}

// Repository defines the interface for event persistence
type Repository interface {
	Add(ctx context.Context, entry *Entry) error
	List(ctx context.Context, kind *Kind, limit int) ([]*Entry, error)

	// DeleteBefore trims the feed; the janitor calls it on a schedule
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
