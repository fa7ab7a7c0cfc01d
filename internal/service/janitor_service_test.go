package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelcosta/dunning/internal/domain/eventlog"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
	"github.com/rafaelcosta/dunning/internal/testutil"
)

func TestJanitor_RemovesOnlyExpiredEntries(t *testing.T) {
	events := testutil.NewMockEventLogRepository()
	dups := testutil.NewMockDuplicateLogRepository()
	ctx := context.Background()

	now := time.Now()
	old := eventlog.New(eventlog.KindInfo, "old", nil)
	old.CreatedAt = now.AddDate(0, 0, -40)
	fresh := eventlog.New(eventlog.KindInfo, "fresh", nil)
	require.NoError(t, events.Add(ctx, old))
	require.NoError(t, events.Add(ctx, fresh))

	oldDup := queue.NewDuplicateLogEntry(&message.GeneratedItem{
		Type: message.TypeOverdue, ClientCode: "100", ClientName: "Ana", InstallmentID: "1-1-100",
	}, nil)
	oldDup.ObservedAt = now.AddDate(0, 0, -40)
	freshDup := queue.NewDuplicateLogEntry(&message.GeneratedItem{
		Type: message.TypeOverdue, ClientCode: "200", ClientName: "Rui", InstallmentID: "1-1-200",
	}, nil)
	require.NoError(t, dups.Add(ctx, oldDup))
	require.NoError(t, dups.Add(ctx, freshDup))

	janitor := NewJanitorService(events, dups, 30*24*time.Hour, 30*24*time.Hour, zerolog.Nop())
	janitor.RunOnce(ctx)

	remaining, err := events.List(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fresh", remaining[0].Message)

	require.Len(t, dups.Entries, 1)
	assert.Equal(t, "200", dups.Entries[0].ClientCode)
}

func TestJanitor_DefaultsRetentionWhenUnset(t *testing.T) {
	janitor := NewJanitorService(testutil.NewMockEventLogRepository(),
		testutil.NewMockDuplicateLogRepository(), 0, 0, zerolog.Nop())

	assert.Equal(t, 30*24*time.Hour, janitor.eventRetention)
	assert.Equal(t, 30*24*time.Hour, janitor.dupRetention)
}
