package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysOverdue(t *testing.T) {
	now := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		want int
	}{
		{name: "ten days late", due: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), want: 10},
		{name: "due today", due: time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC), want: 0},
		{name: "due tomorrow", due: time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), want: 0},
		{name: "one day ignores clock time", due: time.Date(2024, 3, 14, 23, 0, 0, 0, time.UTC), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysOverdue(tt.due, now))
		})
	}
}

func TestComputeLateFee(t *testing.T) {
	t.Run("ten days on a thousand", func(t *testing.T) {
		fee := ComputeLateFee(100000, 3, 2, 10)
		assert.Equal(t, int64(1000), fee.Interest)
		assert.Equal(t, int64(2000), fee.Penalty)
		assert.Equal(t, int64(103000), fee.Total)
	})

	t.Run("no delay charges nothing", func(t *testing.T) {
		fee := ComputeLateFee(100000, 3, 2, 0)
		assert.Equal(t, int64(0), fee.Interest)
		assert.Equal(t, int64(0), fee.Penalty)
		assert.Equal(t, int64(100000), fee.Total)
	})

	t.Run("one day late triggers the flat penalty", func(t *testing.T) {
		fee := ComputeLateFee(100000, 3, 2, 1)
		assert.Equal(t, int64(100), fee.Interest)
		assert.Equal(t, int64(2000), fee.Penalty)
	})

	t.Run("zero rates", func(t *testing.T) {
		fee := ComputeLateFee(100000, 0, 0, 30)
		assert.Equal(t, int64(100000), fee.Total)
	})

	t.Run("negative days clamped", func(t *testing.T) {
		fee := ComputeLateFee(100000, 3, 2, -5)
		assert.Equal(t, int64(0), fee.Interest)
		assert.Equal(t, int64(0), fee.Penalty)
	})

	t.Run("fractional cents rounded", func(t *testing.T) {
		// 333.33 * 1%/30 * 7 days = 0.7778 -> 0.78
		fee := ComputeLateFee(33333, 1, 0, 7)
		assert.Equal(t, int64(78), fee.Interest)
	})
}
