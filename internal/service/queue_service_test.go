package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
	"github.com/rafaelcosta/dunning/internal/testutil"
)

// --- Test Helpers ---

func setupQueueService() (*QueueService, *testutil.MockItemRepository, *testutil.MockDuplicateLogRepository) {
	itemRepo := testutil.NewMockItemRepository()
	dupRepo := testutil.NewMockDuplicateLogRepository()
	svc := NewQueueService(itemRepo, itemRepo.Blocks, dupRepo, nil, nil, zerolog.Nop())
	return svc, itemRepo, dupRepo
}

func testCandidate(clientCode, installmentID string) *message.GeneratedItem {
	return &message.GeneratedItem{
		Type:          message.TypeOverdue,
		ClientCode:    clientCode,
		ClientName:    "Ana Souza",
		Phone1:        "(11) 98765-4321",
		InstallmentID: installmentID,
		DueDate:       "05/01/2024",
		BaseValue:     100000,
		TotalValue:    103000,
		Body:          "mensagem",
	}
}

// --- Enqueue Tests ---

func TestEnqueue_Success(t *testing.T) {
	svc, _, _ := setupQueueService()
	ctx := context.Background()

	item, err := svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, item.Status)
	assert.True(t, item.Selected)
}

func TestEnqueue_DuplicatePendingRejected(t *testing.T) {
	svc, _, dupRepo := setupQueueService()
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.NoError(t, err)

	_, err = svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrDuplicateItem)

	// The suppressed attempt is logged for audit.
	require.Len(t, dupRepo.Entries, 1)
	assert.Equal(t, "1042-1-778", dupRepo.Entries[0].InstallmentID)
}

func TestEnqueue_DuplicateLogPointsAtWinningItem(t *testing.T) {
	svc, _, dupRepo := setupQueueService()
	ctx := context.Background()

	winner, err := svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.NoError(t, err)

	_, err = svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.ErrorIs(t, err, domainErrors.ErrDuplicateItem)

	require.Len(t, dupRepo.Entries, 1)
	logged := dupRepo.Entries[0]
	assert.Equal(t, "overdue-1042-1-778", logged.CandidateItemID)
	assert.Equal(t, "05/01/2024", logged.DueDate)
	assert.Equal(t, int64(100000), logged.InstallmentValue)
	require.NotNil(t, logged.ExistingQueueItemID)
	assert.Equal(t, winner.ID, *logged.ExistingQueueItemID)
}

func TestEnqueue_SameInstallmentDifferentTypeAllowed(t *testing.T) {
	svc, _, _ := setupQueueService()
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.NoError(t, err)

	reminder := testCandidate("778", "1042-1-778")
	reminder.Type = message.TypeReminder
	_, err = svc.Enqueue(ctx, reminder)
	require.NoError(t, err)
}

func TestEnqueue_RegenerationAfterSend(t *testing.T) {
	svc, itemRepo, _ := setupQueueService()
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.NoError(t, err)

	// Once the pending item is sent, the same installment may be queued
	// again: uniqueness covers waiting items only.
	require.NoError(t, itemRepo.TransitionToSent(ctx, first.ID, queue.SendModeManual, first.CreatedAt))

	_, err = svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.NoError(t, err)
}

// --- Block Overlay Tests ---

func TestBlock_OverlayIsNonDestructive(t *testing.T) {
	svc, _, _ := setupQueueService()
	ctx := context.Background()

	item, err := svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.NoError(t, err)

	entry, err := svc.Block(ctx, "778", "Ana Souza", "1042-1-778", "negotiating")
	require.NoError(t, err)

	got, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusBlocked, got.EffectiveStatus())
	// Stored status stays PENDING underneath.
	assert.Equal(t, queue.StatusPending, got.Status)

	require.NoError(t, svc.Unblock(ctx, entry.ID))
	got, err = svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, got.EffectiveStatus())
}

func TestBlock_MasksSentItemsToo(t *testing.T) {
	svc, itemRepo, _ := setupQueueService()
	ctx := context.Background()

	item, err := svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.NoError(t, err)
	require.NoError(t, itemRepo.TransitionToSent(ctx, item.ID, queue.SendModeManual, item.CreatedAt))

	entry, err := svc.Block(ctx, "778", "Ana Souza", "", "asked to stop")
	require.NoError(t, err)

	// The mask does not care about the stored status.
	got, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusBlocked, got.EffectiveStatus())
	assert.Equal(t, queue.StatusSent, got.Status)

	require.NoError(t, svc.Unblock(ctx, entry.ID))
	got, err = svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusSent, got.EffectiveStatus())
}

func TestBlock_ClientWideCoversEveryInstallment(t *testing.T) {
	svc, _, _ := setupQueueService()
	ctx := context.Background()

	a, err := svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.NoError(t, err)
	b, err := svc.Enqueue(ctx, testCandidate("778", "1042-2-778"))
	require.NoError(t, err)
	other, err := svc.Enqueue(ctx, testCandidate("779", "2000-1-779"))
	require.NoError(t, err)

	_, err = svc.Block(ctx, "778", "Ana Souza", "", "asked to stop")
	require.NoError(t, err)

	for _, id := range []struct {
		item    *queue.Item
		blocked bool
	}{{a, true}, {b, true}, {other, false}} {
		got, err := svc.Get(ctx, id.item.ID)
		require.NoError(t, err)
		assert.Equal(t, id.blocked, got.Blocked)
	}
}

func TestBlock_RequiresClientCode(t *testing.T) {
	svc, _, _ := setupQueueService()
	_, err := svc.Block(context.Background(), "", "Ana Souza", "1042-1-778", "")
	require.Error(t, err)
}

// --- Selection and Removal Tests ---

func TestSetSelected(t *testing.T) {
	svc, _, _ := setupQueueService()
	ctx := context.Background()

	item, err := svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.NoError(t, err)

	require.Error(t, svc.SetSelected(ctx, nil, false))
	require.NoError(t, svc.SetSelected(ctx, []uuid.UUID{item.ID}, false))

	got, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, got.Selected)
}

func TestDelete(t *testing.T) {
	svc, _, _ := setupQueueService()
	ctx := context.Background()

	item, err := svc.Enqueue(ctx, testCandidate("778", "1042-1-778"))
	require.NoError(t, err)

	n, err := svc.Delete(ctx, []uuid.UUID{item.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.Get(ctx, item.ID)
	assert.ErrorIs(t, err, domainErrors.ErrItemNotFound)
}

func TestClear_RejectsComputedStatus(t *testing.T) {
	svc, _, _ := setupQueueService()
	_, err := svc.Clear(context.Background(), queue.StatusBlocked)
	require.Error(t, err)
}
