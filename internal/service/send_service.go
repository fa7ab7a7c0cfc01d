package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/eventlog"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
	"github.com/rafaelcosta/dunning/internal/infrastructure/observability"
	"github.com/rafaelcosta/dunning/internal/transport"
)

// SendService dispatches pending queue items through the message transport.
type SendService struct {
	itemRepo   queue.ItemRepository
	configRepo message.ConfigRepository
	transport  transport.Transport
	events     eventlog.Repository
	metrics    *observability.Metrics
	logger     zerolog.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewSendService(
	itemRepo queue.ItemRepository,
	configRepo message.ConfigRepository,
	tr transport.Transport,
	events eventlog.Repository,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *SendService {
	return &SendService{
		itemRepo:   itemRepo,
		configRepo: configRepo,
		transport:  tr,
		events:     events,
		metrics:    metrics,
		logger:     logger.With().Str("component", "sender").Logger(),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DispatchResult tallies one dispatch run.
type DispatchResult struct {
	Attempted int
	Sent      int
	Failed    int
	Errors    []string
}

// DispatchAll sends every sendable item, optionally narrowed to one type.
// One failing item marks itself ERROR and the batch moves on.
func (s *SendService) DispatchAll(ctx context.Context, mode queue.SendMode, t *message.MessageType) (*DispatchResult, error) {
	items, err := s.itemRepo.ListSendable(ctx, t)
	if err != nil {
		return nil, err
	}
	return s.dispatch(ctx, mode, items)
}

// DispatchByIDs sends the given items. Items that are not sendable any more
// are counted as failures without touching their stored status.
func (s *SendService) DispatchByIDs(ctx context.Context, mode queue.SendMode, ids []uuid.UUID) (*DispatchResult, error) {
	if len(ids) == 0 {
		return nil, domainErrors.NewValidationError("ids", "at least one id is required")
	}
	var items []*queue.Item
	result := &DispatchResult{}
	for _, id := range ids {
		item, err := s.itemRepo.GetByID(ctx, id)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		if !item.Sendable() {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: not sendable (%s)", id, item.EffectiveStatus()))
			continue
		}
		items = append(items, item)
	}

	batch, err := s.dispatch(ctx, mode, items)
	if err != nil {
		return nil, err
	}
	batch.Failed += result.Failed
	batch.Errors = append(batch.Errors, result.Errors...)
	return batch, nil
}

func (s *SendService) dispatch(ctx context.Context, mode queue.SendMode, items []*queue.Item) (*DispatchResult, error) {
	delay := s.sendDelay(ctx)
	result := &DispatchResult{}

	for i, item := range items {
		if i > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				return result, err
			}
		}
		result.Attempted++
		if err := s.sendOne(ctx, mode, item); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.ID, err))
			continue
		}
		result.Sent++
	}

	s.logDispatch(ctx, mode, result)
	return result, nil
}

func (s *SendService) sendOne(ctx context.Context, mode queue.SendMode, item *queue.Item) error {
	start := s.now()

	if item.Phone == "" {
		detail := domainErrors.ErrMissingPhone.Error()
		if err := s.itemRepo.TransitionToError(ctx, item.ID, detail); err != nil {
			return err
		}
		s.countSend(item, mode, "error", start)
		return domainErrors.ErrMissingPhone
	}

	_, err := s.transport.SendText(ctx, item.Phone, item.Body)
	if err != nil {
		if trErr := s.itemRepo.TransitionToError(ctx, item.ID, err.Error()); trErr != nil {
			s.logger.Error().Err(trErr).
				Str("item_id", item.ID.String()).
				Msg("failed to mark item errored")
		}
		s.countSend(item, mode, "error", start)
		return err
	}

	if err := s.itemRepo.TransitionToSent(ctx, item.ID, mode, s.now()); err != nil {
		// The message left the gateway; losing the transition would resend
		// it on the next run, so this is worth an ERROR event.
		s.logger.Error().Err(err).
			Str("item_id", item.ID.String()).
			Msg("message delivered but status update failed")
		return err
	}

	s.countSend(item, mode, "sent", start)
	return nil
}

func (s *SendService) countSend(item *queue.Item, mode queue.SendMode, status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.MessagesSent.WithLabelValues(string(item.Type), string(mode), status).Inc()
	s.metrics.SendDuration.WithLabelValues(string(item.Type)).Observe(s.now().Sub(start).Seconds())
}

func (s *SendService) sendDelay(ctx context.Context) time.Duration {
	cfg, err := s.configRepo.Get(ctx)
	if err != nil {
		return message.DefaultConfig().SendDelay
	}
	return cfg.SendDelay
}

func (s *SendService) logDispatch(ctx context.Context, mode queue.SendMode, result *DispatchResult) {
	if result.Attempted == 0 {
		return
	}
	kind := eventlog.KindInfo
	if result.Failed > 0 {
		kind = eventlog.KindError
	}
	entry := eventlog.New(kind,
		fmt.Sprintf("dispatch finished: %d sent, %d failed", result.Sent, result.Failed),
		map[string]any{
			"mode":      string(mode),
			"attempted": result.Attempted,
			"sent":      result.Sent,
			"failed":    result.Failed,
		})
	if err := s.events.Add(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record dispatch event")
	}
	s.logger.Info().
		Str("mode", string(mode)).
		Int("attempted", result.Attempted).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("dispatch finished")
}
