package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/eventlog"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
	"github.com/rafaelcosta/dunning/internal/infrastructure/observability"
)

// QueueService owns the queue lifecycle: admission through the duplicate
// gate, listing with the block overlay, selection and removal.
type QueueService struct {
	itemRepo  queue.ItemRepository
	blockRepo queue.BlockRepository
	dupRepo   queue.DuplicateLogRepository
	events    eventlog.Repository
	metrics   *observability.Metrics
	logger    zerolog.Logger

	// mu serializes admissions from this process. The partial unique index
	// remains the authority across processes.
	mu sync.Mutex
}

func NewQueueService(
	itemRepo queue.ItemRepository,
	blockRepo queue.BlockRepository,
	dupRepo queue.DuplicateLogRepository,
	events eventlog.Repository,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *QueueService {
	return &QueueService{
		itemRepo:  itemRepo,
		blockRepo: blockRepo,
		dupRepo:   dupRepo,
		events:    events,
		metrics:   metrics,
		logger:    logger.With().Str("component", "queue").Logger(),
	}
}

// Enqueue admits a generated candidate into the queue. A pending item for
// the same installment and type wins over the newcomer: the attempt is
// logged and ErrDuplicateItem returned.
func (s *QueueService) Enqueue(ctx context.Context, g *message.GeneratedItem) (*queue.Item, error) {
	item, err := queue.NewItem(g)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.itemRepo.Insert(ctx, item)
	if err != nil {
		if errors.Is(err, domainErrors.ErrDuplicateItem) {
			s.recordDuplicate(ctx, g)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ItemsGenerated.WithLabelValues(string(g.Type), "inserted").Inc()
	}
	return item, nil
}

func (s *QueueService) recordDuplicate(ctx context.Context, g *message.GeneratedItem) {
	var existingID *uuid.UUID
	if existing, err := s.itemRepo.FindPending(ctx, g.ClientCode, g.InstallmentID, g.Type); err == nil && existing != nil {
		existingID = &existing.ID
	}
	entry := queue.NewDuplicateLogEntry(g, existingID)
	if err := s.dupRepo.Add(ctx, entry); err != nil {
		s.logger.Warn().Err(err).
			Str("installment_id", g.InstallmentID).
			Msg("failed to record duplicate attempt")
	}
	if s.metrics != nil {
		s.metrics.DuplicatesSuppressed.WithLabelValues(string(g.Type)).Inc()
	}
}

// Get returns one item with its block overlay.
func (s *QueueService) Get(ctx context.Context, id uuid.UUID) (*queue.Item, error) {
	return s.itemRepo.GetByID(ctx, id)
}

// List returns items with the block overlay applied, plus a total for
// pagination.
func (s *QueueService) List(ctx context.Context, filter queue.ListFilter) ([]*queue.Item, int64, error) {
	items, err := s.itemRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.itemRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SetSelected flags or unflags items for dispatch.
func (s *QueueService) SetSelected(ctx context.Context, ids []uuid.UUID, selected bool) error {
	if len(ids) == 0 {
		return domainErrors.NewValidationError("ids", "at least one id is required")
	}
	return s.itemRepo.SetSelected(ctx, ids, selected)
}

// Delete removes items by id.
func (s *QueueService) Delete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, domainErrors.NewValidationError("ids", "at least one id is required")
	}
	removed, err := s.itemRepo.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.logRemoval(ctx, "queue items removed", map[string]any{
		"requested": len(ids),
		"removed":   removed,
	})
	return removed, nil
}

// Clear removes every item in the given stored status.
func (s *QueueService) Clear(ctx context.Context, status queue.Status) (int64, error) {
	switch status {
	case queue.StatusPending, queue.StatusSent, queue.StatusError:
	default:
		return 0, domainErrors.NewValidationError("status", "cannot clear status "+string(status))
	}
	removed, err := s.itemRepo.DeleteByStatus(ctx, status)
	if err != nil {
		return 0, err
	}
	s.logRemoval(ctx, "queue cleared", map[string]any{
		"status":  string(status),
		"removed": removed,
	})
	return removed, nil
}

func (s *QueueService) logRemoval(ctx context.Context, msg string, detail map[string]any) {
	if s.events == nil {
		return
	}
	if err := s.events.Add(ctx, eventlog.New(eventlog.KindInfo, msg, detail)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record removal event")
	}
}

// Block adds a block entry for a client, optionally narrowed to one
// installment. Queue items are untouched; the overlay takes effect on the
// next read.
func (s *QueueService) Block(ctx context.Context, clientCode, clientName, installmentID, reason string) (*queue.BlockedEntry, error) {
	entry, err := queue.NewBlockedEntry(clientCode, clientName, installmentID, reason)
	if err != nil {
		return nil, err
	}
	if err := s.blockRepo.Add(ctx, entry); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("client_code", clientCode).
		Str("installment_id", installmentID).
		Msg("block entry added")
	return entry, nil
}

// Unblock removes a block entry. Pending items masked by it become visible
// again with their stored status.
func (s *QueueService) Unblock(ctx context.Context, id uuid.UUID) error {
	return s.blockRepo.Remove(ctx, id)
}

// ListBlocks returns the block list, newest first.
func (s *QueueService) ListBlocks(ctx context.Context) ([]*queue.BlockedEntry, error) {
	return s.blockRepo.List(ctx)
}

// DuplicateLog returns recently suppressed generation attempts.
func (s *QueueService) DuplicateLog(ctx context.Context, limit int) ([]*queue.DuplicateLogEntry, error) {
	return s.dupRepo.List(ctx, limit)
}

// CountSentSince exposes send history for the resend scheduler.
func (s *QueueService) CountSentSince(ctx context.Context, clientCode, installmentID string, t message.MessageType, since time.Time) (int64, error) {
	return s.itemRepo.CountSentSince(ctx, clientCode, installmentID, t, since)
}
