package message

import (
	"time"

	"github.com/rafaelcosta/dunning/internal/domain/errors"
)

// MessageType distinguishes pre-due-date reminders from overdue notices.
type MessageType string

const (
	TypeReminder MessageType = "reminder"
	TypeOverdue  MessageType = "overdue"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	return t == TypeReminder || t == TypeOverdue
}

// TypeSettings holds the per-type generation knobs.
type TypeSettings struct {
	Enabled            bool
	WindowDays         int // lookahead (reminder) or lookback threshold (overdue)
	Template           string
	RepeatTimes        int
	RepeatIntervalDays int
}

// Config is the singleton message configuration. Exactly one active instance
// exists; it is read by the generator and the scheduler gate and mutated only
// through the configuration API.
type Config struct {
	SendTime        string // "HH:MM", local time
	AutoSendEnabled bool
	Reminder        TypeSettings
	Overdue         TypeSettings
	InterestRatePct float64 // monthly rate, prorated per day when applied
	PenaltyRatePct  float64 // flat rate
	BaseValueField  string  // source column used as the late-fee principal
	MaxRecoveryDays int     // lower bound of the overdue window
	SendDelay       time.Duration
	LastAutoRun     *time.Time
}

const (
	defaultReminderTemplate = "Olá, @nomecliente! Passando para lembrar que sua fatura no valor de R$ @valorfinalparcela vence em @vencimentoparcela. 😊"
	defaultOverdueTemplate  = "Olá, @nomecliente. Identificamos que sua fatura de R$ @valorfinalparcela, vencida em @vencimentoparcela, ainda está em aberto. Por favor, regularize sua situação. O valor total devido é R$ @valortotaldevido."
)

// DefaultConfig returns the configuration used before an operator saves one.
func DefaultConfig() *Config {
	return &Config{
		SendTime: "09:00",
		Reminder: TypeSettings{
			Enabled:            true,
			WindowDays:         5,
			Template:           defaultReminderTemplate,
			RepeatIntervalDays: 3,
		},
		Overdue: TypeSettings{
			Enabled:            true,
			WindowDays:         3,
			Template:           defaultOverdueTemplate,
			RepeatIntervalDays: 7,
		},
		BaseValueField:  "valorbrutoparcela",
		MaxRecoveryDays: 90,
		SendDelay:       3 * time.Second,
	}
}

// Settings returns the per-type settings for t.
func (c *Config) Settings(t MessageType) TypeSettings {
	if t == TypeOverdue {
		return c.Overdue
	}
	return c.Reminder
}

// RanToday reports whether the automatic run already happened on the day of now.
func (c *Config) RanToday(now time.Time) bool {
	if c.LastAutoRun == nil {
		return false
	}
	ly, lm, ld := c.LastAutoRun.Local().Date()
	ny, nm, nd := now.Local().Date()
	return ly == ny && lm == nm && ld == nd
}

// SendTimeReached reports whether now's time-of-day is at or past the
// configured send time. A malformed send time never gates sends off.
func (c *Config) SendTimeReached(now time.Time) bool {
	t, err := time.Parse("15:04", c.SendTime)
	if err != nil {
		return true
	}
	nowMinutes := now.Hour()*60 + now.Minute()
	cfgMinutes := t.Hour()*60 + t.Minute()
	return nowMinutes >= cfgMinutes
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if _, err := time.Parse("15:04", c.SendTime); err != nil {
		return errors.NewValidationError("send_time", "must be HH:MM")
	}
	if c.Reminder.WindowDays < 0 || c.Overdue.WindowDays < 0 {
		return errors.NewValidationError("window_days", "cannot be negative")
	}
	if c.InterestRatePct < 0 || c.PenaltyRatePct < 0 {
		return errors.NewValidationError("rates", "cannot be negative")
	}
	if c.MaxRecoveryDays < c.Overdue.WindowDays {
		return errors.NewValidationError("max_recovery_days", "must be at least the overdue threshold")
	}
	return nil
}
