package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/message"
)

func validGenerated() *message.GeneratedItem {
	return &message.GeneratedItem{
		Type:          message.TypeOverdue,
		ClientCode:    "778",
		ClientName:    "Ana Souza",
		CPF:           "123.456.789-09",
		Phone1:        "(11) 98765-4321",
		InstallmentID: "1042-3-778",
		DueDate:       "05/01/2024",
		EmissionDate:  "01/12/2023",
		BaseValue:     100000,
		Interest:      1000,
		Penalty:       2000,
		TotalValue:    103000,
		DaysOverdue:   10,
		Body:          "Olá Ana Souza, sua parcela está vencida.",
	}
}

func TestNewItem(t *testing.T) {
	t.Run("valid candidate", func(t *testing.T) {
		item, err := NewItem(validGenerated())
		require.NoError(t, err)
		assert.Equal(t, StatusPending, item.Status)
		assert.True(t, item.Selected)
		assert.Equal(t, "11987654321", item.Phone)
		assert.Equal(t, "1042-3-778", item.InstallmentID)
		assert.Equal(t, "123.456.789-09", item.CPF)
		assert.Equal(t, "01/12/2023", item.EmissionDate)
		assert.Nil(t, item.SentAt)
		assert.NotEqual(t, item.ID.String(), "00000000-0000-0000-0000-000000000000")
	})

	t.Run("invalid candidate rejected", func(t *testing.T) {
		g := validGenerated()
		g.ClientName = ""
		_, err := NewItem(g)
		require.Error(t, err)
	})
}

func TestItemTransitions(t *testing.T) {
	t.Run("pending to sent", func(t *testing.T) {
		item, _ := NewItem(validGenerated())
		require.NoError(t, item.MarkSent(SendModeAutomatic))
		assert.Equal(t, StatusSent, item.Status)
		assert.Equal(t, SendModeAutomatic, item.SendMode)
		require.NotNil(t, item.SentAt)
	})

	t.Run("pending to error", func(t *testing.T) {
		item, _ := NewItem(validGenerated())
		require.NoError(t, item.MarkError("transport refused"))
		assert.Equal(t, StatusError, item.Status)
		require.NotNil(t, item.ErrorDetail)
		assert.Equal(t, "transport refused", *item.ErrorDetail)
	})

	t.Run("sent is terminal", func(t *testing.T) {
		item, _ := NewItem(validGenerated())
		require.NoError(t, item.MarkSent(SendModeManual))
		err := item.MarkError("late failure")
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
	})

	t.Run("error is terminal", func(t *testing.T) {
		item, _ := NewItem(validGenerated())
		require.NoError(t, item.MarkError("boom"))
		assert.ErrorIs(t, item.MarkSent(SendModeManual), errors.ErrInvalidStateTransition)
	})
}

func TestItemEffectiveStatus(t *testing.T) {
	t.Run("pending shows blocked overlay", func(t *testing.T) {
		item, _ := NewItem(validGenerated())
		item.Blocked = true
		assert.Equal(t, StatusBlocked, item.EffectiveStatus())
		// stored status untouched
		assert.Equal(t, StatusPending, item.Status)
	})

	t.Run("overlay lifts when block removed", func(t *testing.T) {
		item, _ := NewItem(validGenerated())
		item.Blocked = true
		item.Blocked = false
		assert.Equal(t, StatusPending, item.EffectiveStatus())
	})

	t.Run("block masks sent items", func(t *testing.T) {
		item, _ := NewItem(validGenerated())
		require.NoError(t, item.MarkSent(SendModeManual))
		item.Blocked = true
		assert.Equal(t, StatusBlocked, item.EffectiveStatus())
		assert.Equal(t, StatusSent, item.Status)
	})

	t.Run("block masks errored items", func(t *testing.T) {
		item, _ := NewItem(validGenerated())
		require.NoError(t, item.MarkError("transport refused"))
		item.Blocked = true
		assert.Equal(t, StatusBlocked, item.EffectiveStatus())

		// Removing the block brings the stored status back.
		item.Blocked = false
		assert.Equal(t, StatusError, item.EffectiveStatus())
	})
}

func TestItemSendable(t *testing.T) {
	item, _ := NewItem(validGenerated())
	assert.True(t, item.Sendable())

	item.Blocked = true
	assert.False(t, item.Sendable())

	item.Blocked = false
	item.Selected = false
	assert.False(t, item.Sendable())

	item.Selected = true
	require.NoError(t, item.MarkSent(SendModeManual))
	assert.False(t, item.Sendable())
}

func TestBlockedEntryMatches(t *testing.T) {
	t.Run("client wide blocks all installments", func(t *testing.T) {
		b, err := NewBlockedEntry("778", "Ana Souza", "", "asked to stop")
		require.NoError(t, err)
		assert.True(t, b.Matches("778", "1042-3-778"))
		assert.True(t, b.Matches("778", "9999-1-778"))
		assert.False(t, b.Matches("779", "1042-3-778"))
	})

	t.Run("installment scoped", func(t *testing.T) {
		b, err := NewBlockedEntry("778", "Ana Souza", "1042-3-778", "")
		require.NoError(t, err)
		assert.True(t, b.Matches("778", "1042-3-778"))
		assert.False(t, b.Matches("778", "9999-1-778"))
	})

	t.Run("client code required", func(t *testing.T) {
		_, err := NewBlockedEntry("", "Ana Souza", "1042-3-778", "")
		require.Error(t, err)
	})
}
