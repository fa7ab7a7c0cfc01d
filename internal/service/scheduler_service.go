package service

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rafaelcosta/dunning/internal/domain/eventlog"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
	"github.com/rafaelcosta/dunning/internal/infrastructure/observability"
	"github.com/rafaelcosta/dunning/internal/infrastructure/redis"
)

const schedulerLockKey = "scheduler:daily-run"

// runLock is the slice of redis.DistributedLock the scheduler needs.
type runLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// SchedulerService runs the automatic daily generation and dispatch. Each
// tick re-evaluates the gate: automation enabled, not yet run today, send
// time reached. A Redis lock keeps concurrent workers from running the same
// day twice.
type SchedulerService struct {
	configRepo message.ConfigRepository
	generator  *GeneratorService
	sender     *SendService
	redis      *goredis.Client
	events     eventlog.Repository
	metrics    *observability.Metrics
	logger     zerolog.Logger
	lockTTL    time.Duration
	now        func() time.Time
	newLock    func() runLock
}

func NewSchedulerService(
	configRepo message.ConfigRepository,
	generator *GeneratorService,
	sender *SendService,
	redisClient *goredis.Client,
	events eventlog.Repository,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	lockTTL time.Duration,
) *SchedulerService {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	s := &SchedulerService{
		configRepo: configRepo,
		generator:  generator,
		sender:     sender,
		redis:      redisClient,
		events:     events,
		metrics:    metrics,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		lockTTL:    lockTTL,
		now:        time.Now,
	}
	s.newLock = func() runLock {
		return redis.NewDistributedLock(s.redis, schedulerLockKey, s.lockTTL)
	}
	return s
}

// Run ticks until ctx is cancelled.
func (s *SchedulerService) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error().Err(err).Msg("scheduler tick failed")
			}
		}
	}
}

// Tick evaluates the gate and, when it opens, performs the daily run.
func (s *SchedulerService) Tick(ctx context.Context) error {
	cfg, err := s.configRepo.Get(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	switch {
	case !cfg.AutoSendEnabled:
		s.skip("disabled")
		return nil
	case cfg.RanToday(now):
		s.skip("already_ran")
		return nil
	case !cfg.SendTimeReached(now):
		s.skip("before_send_time")
		return nil
	}

	lock := s.newLock()
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		s.skip("lock_held")
		return nil
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release scheduler lock")
		}
	}()

	// Another worker may have finished the run between our gate check and
	// the lock grant.
	cfg, err = s.configRepo.Get(ctx)
	if err != nil {
		return err
	}
	if cfg.RanToday(s.now()) {
		s.skip("already_ran")
		return nil
	}

	return s.runOnce(ctx, cfg)
}

func (s *SchedulerService) runOnce(ctx context.Context, cfg *message.Config) error {
	started := s.now()
	s.logger.Info().Msg("automatic run started")

	detail := map[string]any{}
	var runErr error
	for _, t := range []message.MessageType{message.TypeReminder, message.TypeOverdue} {
		if !cfg.Settings(t).Enabled {
			continue
		}
		result, err := s.generator.Generate(ctx, t, "")
		if err != nil {
			runErr = err
			detail[string(t)+"_error"] = err.Error()
			continue
		}
		detail[string(t)+"_inserted"] = result.Inserted
		detail[string(t)+"_skipped"] = result.Skipped
	}

	dispatch, err := s.sender.DispatchAll(ctx, queue.SendModeAutomatic, nil)
	if err != nil {
		runErr = err
		detail["dispatch_error"] = err.Error()
	} else {
		detail["sent"] = dispatch.Sent
		detail["failed"] = dispatch.Failed
	}

	// Stamp even on partial failure so a broken run does not retry all day
	// and hammer clients with half-duplicated batches.
	if err := s.configRepo.StampAutoRun(ctx, started); err != nil {
		return fmt.Errorf("stamp auto run: %w", err)
	}

	outcome := "ok"
	if runErr != nil {
		outcome = "partial"
	}
	if s.metrics != nil {
		s.metrics.SchedulerRuns.WithLabelValues(outcome).Inc()
	}

	entry := eventlog.New(eventlog.KindSchedule, "automatic run finished", detail)
	if err := s.events.Add(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record scheduler event")
	}
	s.logger.Info().Str("outcome", outcome).Msg("automatic run finished")
	return runErr
}

func (s *SchedulerService) skip(reason string) {
	if s.metrics != nil {
		s.metrics.SchedulerSkips.WithLabelValues(reason).Inc()
	}
	s.logger.Debug().Str("reason", reason).Msg("scheduler tick skipped")
}
