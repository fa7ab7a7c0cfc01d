package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageTypeValid(t *testing.T) {
	assert.True(t, TypeReminder.Valid())
	assert.True(t, TypeOverdue.Valid())
	assert.False(t, MessageType("spam").Valid())
	assert.False(t, MessageType("").Valid())
}

func TestConfigRanToday(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.Local)

	t.Run("never ran", func(t *testing.T) {
		c := DefaultConfig()
		assert.False(t, c.RanToday(now))
	})

	t.Run("ran earlier today", func(t *testing.T) {
		c := DefaultConfig()
		ran := time.Date(2024, 3, 15, 9, 0, 0, 0, time.Local)
		c.LastAutoRun = &ran
		assert.True(t, c.RanToday(now))
	})

	t.Run("ran yesterday", func(t *testing.T) {
		c := DefaultConfig()
		ran := time.Date(2024, 3, 14, 23, 59, 0, 0, time.Local)
		c.LastAutoRun = &ran
		assert.False(t, c.RanToday(now))
	})
}

func TestConfigSendTimeReached(t *testing.T) {
	c := DefaultConfig()
	c.SendTime = "09:00"

	assert.False(t, c.SendTimeReached(time.Date(2024, 3, 15, 8, 59, 0, 0, time.Local)))
	assert.True(t, c.SendTimeReached(time.Date(2024, 3, 15, 9, 0, 0, 0, time.Local)))
	assert.True(t, c.SendTimeReached(time.Date(2024, 3, 15, 16, 30, 0, 0, time.Local)))

	t.Run("malformed time never gates", func(t *testing.T) {
		c := DefaultConfig()
		c.SendTime = "whenever"
		assert.True(t, c.SendTimeReached(time.Date(2024, 3, 15, 0, 0, 0, 0, time.Local)))
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	t.Run("bad send time", func(t *testing.T) {
		c := DefaultConfig()
		c.SendTime = "25:99"
		require.Error(t, c.Validate())
	})

	t.Run("negative window", func(t *testing.T) {
		c := DefaultConfig()
		c.Reminder.WindowDays = -1
		require.Error(t, c.Validate())
	})

	t.Run("negative rate", func(t *testing.T) {
		c := DefaultConfig()
		c.InterestRatePct = -3
		require.Error(t, c.Validate())
	})

	t.Run("recovery window shorter than threshold", func(t *testing.T) {
		c := DefaultConfig()
		c.MaxRecoveryDays = 2
		require.Error(t, c.Validate())
	})
}

func TestConfigSettings(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, c.Reminder, c.Settings(TypeReminder))
	assert.Equal(t, c.Overdue, c.Settings(TypeOverdue))
}
