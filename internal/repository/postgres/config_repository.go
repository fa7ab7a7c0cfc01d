package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/message"
)

// ConfigRepository implements message.ConfigRepository using PostgreSQL.
// The configuration lives in a single-row table keyed on id=1.
type ConfigRepository struct {
	pool *pgxpool.Pool
}

func NewConfigRepository(pool *pgxpool.Pool) *ConfigRepository {
	return &ConfigRepository{pool: pool}
}

func (r *ConfigRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Get returns the active configuration.
func (r *ConfigRepository) Get(ctx context.Context) (*message.Config, error) {
	cfg := &message.Config{}
	var sendDelayMS int
	err := r.db(ctx).QueryRow(ctx,
		`SELECT send_time, auto_send_enabled,
		        reminder_enabled, reminder_window_days, reminder_template,
		        reminder_repeat_times, reminder_repeat_interval_days,
		        overdue_enabled, overdue_window_days, overdue_template,
		        overdue_repeat_times, overdue_repeat_interval_days,
		        interest_rate_pct, penalty_rate_pct, base_value_field,
		        max_recovery_days, send_delay_ms, last_auto_run
		 FROM message_config WHERE id = 1`).Scan(
		&cfg.SendTime, &cfg.AutoSendEnabled,
		&cfg.Reminder.Enabled, &cfg.Reminder.WindowDays, &cfg.Reminder.Template,
		&cfg.Reminder.RepeatTimes, &cfg.Reminder.RepeatIntervalDays,
		&cfg.Overdue.Enabled, &cfg.Overdue.WindowDays, &cfg.Overdue.Template,
		&cfg.Overdue.RepeatTimes, &cfg.Overdue.RepeatIntervalDays,
		&cfg.InterestRatePct, &cfg.PenaltyRatePct, &cfg.BaseValueField,
		&cfg.MaxRecoveryDays, &sendDelayMS, &cfg.LastAutoRun,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrConfigNotFound
		}
		return nil, fmt.Errorf("get config: %w", err)
	}
	cfg.SendDelay = time.Duration(sendDelayMS) * time.Millisecond
	return cfg, nil
}

// Save upserts the configuration.
func (r *ConfigRepository) Save(ctx context.Context, cfg *message.Config) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO message_config
		 (id, send_time, auto_send_enabled,
		  reminder_enabled, reminder_window_days, reminder_template,
		  reminder_repeat_times, reminder_repeat_interval_days,
		  overdue_enabled, overdue_window_days, overdue_template,
		  overdue_repeat_times, overdue_repeat_interval_days,
		  interest_rate_pct, penalty_rate_pct, base_value_field,
		  max_recovery_days, send_delay_ms, last_auto_run)
		 VALUES (1,$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		 ON CONFLICT (id) DO UPDATE SET
		  send_time = EXCLUDED.send_time,
		  auto_send_enabled = EXCLUDED.auto_send_enabled,
		  reminder_enabled = EXCLUDED.reminder_enabled,
		  reminder_window_days = EXCLUDED.reminder_window_days,
		  reminder_template = EXCLUDED.reminder_template,
		  reminder_repeat_times = EXCLUDED.reminder_repeat_times,
		  reminder_repeat_interval_days = EXCLUDED.reminder_repeat_interval_days,
		  overdue_enabled = EXCLUDED.overdue_enabled,
		  overdue_window_days = EXCLUDED.overdue_window_days,
		  overdue_template = EXCLUDED.overdue_template,
		  overdue_repeat_times = EXCLUDED.overdue_repeat_times,
		  overdue_repeat_interval_days = EXCLUDED.overdue_repeat_interval_days,
		  interest_rate_pct = EXCLUDED.interest_rate_pct,
		  penalty_rate_pct = EXCLUDED.penalty_rate_pct,
		  base_value_field = EXCLUDED.base_value_field,
		  max_recovery_days = EXCLUDED.max_recovery_days,
		  send_delay_ms = EXCLUDED.send_delay_ms,
		  last_auto_run = EXCLUDED.last_auto_run`,
		cfg.SendTime, cfg.AutoSendEnabled,
		cfg.Reminder.Enabled, cfg.Reminder.WindowDays, cfg.Reminder.Template,
		cfg.Reminder.RepeatTimes, cfg.Reminder.RepeatIntervalDays,
		cfg.Overdue.Enabled, cfg.Overdue.WindowDays, cfg.Overdue.Template,
		cfg.Overdue.RepeatTimes, cfg.Overdue.RepeatIntervalDays,
		cfg.InterestRatePct, cfg.PenaltyRatePct, cfg.BaseValueField,
		cfg.MaxRecoveryDays, int(cfg.SendDelay/time.Millisecond), cfg.LastAutoRun,
	)
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// StampAutoRun records the moment of the latest automatic run.
func (r *ConfigRepository) StampAutoRun(ctx context.Context, at time.Time) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE message_config SET last_auto_run = $1 WHERE id = 1`, at)
	if err != nil {
		return fmt.Errorf("stamp auto run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrConfigNotFound
	}
	return nil
}
