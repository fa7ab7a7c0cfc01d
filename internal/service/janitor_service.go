package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rafaelcosta/dunning/internal/domain/eventlog"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
)

// JanitorService trims the event feed and the duplicate log so the metadata
// store does not grow without bound.
type JanitorService struct {
	events         eventlog.Repository
	dupRepo        queue.DuplicateLogRepository
	eventRetention time.Duration
	dupRetention   time.Duration
	logger         zerolog.Logger
	now            func() time.Time
}

func NewJanitorService(
	events eventlog.Repository,
	dupRepo queue.DuplicateLogRepository,
	eventRetention, dupRetention time.Duration,
	logger zerolog.Logger,
) *JanitorService {
	if eventRetention <= 0 {
		eventRetention = 30 * 24 * time.Hour
	}
	if dupRetention <= 0 {
		dupRetention = 30 * 24 * time.Hour
	}
	return &JanitorService{
		events:         events,
		dupRepo:        dupRepo,
		eventRetention: eventRetention,
		dupRetention:   dupRetention,
		logger:         logger.With().Str("component", "janitor").Logger(),
		now:            time.Now,
	}
}

// Run sweeps on the given interval until ctx is cancelled. One sweep runs
// immediately on start.
func (s *JanitorService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	s.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single retention sweep.
func (s *JanitorService) RunOnce(ctx context.Context) {
	now := s.now()

	events, err := s.events.DeleteBefore(ctx, now.Add(-s.eventRetention))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to trim event log")
	}

	dups, err := s.dupRepo.DeleteBefore(ctx, now.Add(-s.dupRetention))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to trim duplicate log")
	}

	if events > 0 || dups > 0 {
		s.logger.Info().
			Int64("events_removed", events).
			Int64("duplicates_removed", dups).
			Msg("retention sweep finished")
	}
}
