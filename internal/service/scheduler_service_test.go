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
	"github.com/rafaelcosta/dunning/internal/rowsource"
	"github.com/rafaelcosta/dunning/internal/testutil"
	"github.com/rafaelcosta/dunning/internal/transport"
)

type stubLock struct {
	acquired  bool
	acquires  int
	releases  int
	available bool
}

func (l *stubLock) Acquire(ctx context.Context) (bool, error) {
	l.acquires++
	if !l.available {
		return false, nil
	}
	l.acquired = true
	return true, nil
}

func (l *stubLock) Release(ctx context.Context) error {
	l.releases++
	l.acquired = false
	return nil
}

type schedulerFixture struct {
	svc    *SchedulerService
	config *testutil.MockConfigRepository
	items  *testutil.MockItemRepository
	source *testutil.MockSource
	events *testutil.MockEventLogRepository
	lock   *stubLock
}

func setupScheduler(cfg *message.Config, rows ...rowsource.Row) *schedulerFixture {
	source := &testutil.MockSource{Rows: rows}

	items := testutil.NewMockItemRepository()
	dups := testutil.NewMockDuplicateLogRepository()
	events := testutil.NewMockEventLogRepository()
	config := testutil.NewMockConfigRepository(cfg)
	queueSvc := NewQueueService(items, items.Blocks, dups, events, nil, zerolog.Nop())

	queries := testutil.NewMockQueryStore()
	settings := NewSettingsService(config, testutil.NewMockMappingRepository(nil),
		queries, events, zerolog.Nop())
	if _, err := settings.SaveQuery(context.Background(), "abertas", baseQuery); err != nil {
		panic(err)
	}

	generator := NewGeneratorService(source, queries, config,
		testutil.NewMockMappingRepository(message.DefaultMappings()),
		queueSvc, events, nil, zerolog.Nop())
	sender := NewSendService(items, config, transport.NewMockTransport(transport.WithLatency(0)),
		events, nil, zerolog.Nop())

	svc := NewSchedulerService(config, generator, sender, nil, events, nil,
		zerolog.Nop(), time.Minute)

	lock := &stubLock{available: true}
	svc.newLock = func() runLock { return lock }

	return &schedulerFixture{
		svc: svc, config: config, items: items,
		source: source, events: events, lock: lock,
	}
}

func autoConfig() *message.Config {
	cfg := testutil.NewTestConfig()
	cfg.Reminder.Enabled = false
	return cfg
}

func TestTick_RunsGenerationAndDispatch(t *testing.T) {
	now := time.Now()
	cfg := autoConfig()
	f := setupScheduler(cfg, testutil.NewTestRow("778", "Ana Souza", now.AddDate(0, 0, -10), 100000))
	ctx := context.Background()

	require.NoError(t, f.svc.Tick(ctx))

	sent := queue.StatusSent
	items, err := f.items.List(ctx, queue.ListFilter{Status: &sent})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, queue.SendModeAutomatic, items[0].SendMode)

	// The run is stamped so the rest of the day is quiet.
	stored, err := f.config.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored.LastAutoRun)
	assert.True(t, stored.RanToday(time.Now()))

	assert.Equal(t, 1, f.lock.acquires)
	assert.Equal(t, 1, f.lock.releases)

	kind := eventlog.KindSchedule
	scheduleEvents, err := f.events.List(ctx, &kind, 0)
	require.NoError(t, err)
	assert.Len(t, scheduleEvents, 1)
}

func TestTick_SecondTickSameDayIsNoop(t *testing.T) {
	now := time.Now()
	cfg := autoConfig()
	f := setupScheduler(cfg, testutil.NewTestRow("778", "Ana Souza", now.AddDate(0, 0, -10), 100000))
	ctx := context.Background()

	require.NoError(t, f.svc.Tick(ctx))
	require.NoError(t, f.svc.Tick(ctx))

	// The gate stops the second tick before the lock.
	assert.Equal(t, 1, f.lock.acquires)
}

func TestTick_SkipsWhenAutomationDisabled(t *testing.T) {
	cfg := autoConfig()
	cfg.AutoSendEnabled = false
	f := setupScheduler(cfg)

	require.NoError(t, f.svc.Tick(context.Background()))
	assert.Equal(t, 0, f.lock.acquires)
	assert.Empty(t, f.source.Queries)
}

func TestTick_SkipsBeforeSendTime(t *testing.T) {
	cfg := autoConfig()
	cfg.SendTime = "23:59"
	f := setupScheduler(cfg)
	f.svc.now = func() time.Time {
		return time.Date(2024, 3, 5, 8, 0, 0, 0, time.Local)
	}

	require.NoError(t, f.svc.Tick(context.Background()))
	assert.Equal(t, 0, f.lock.acquires)
}

func TestTick_SkipsWhenLockHeldElsewhere(t *testing.T) {
	f := setupScheduler(autoConfig())
	f.lock.available = false

	require.NoError(t, f.svc.Tick(context.Background()))
	assert.Equal(t, 1, f.lock.acquires)
	assert.Empty(t, f.source.Queries)

	stored, err := f.config.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored.LastAutoRun)
}

func TestTick_RechecksAfterAcquiringLock(t *testing.T) {
	f := setupScheduler(autoConfig())
	ctx := context.Background()

	// Simulate another worker finishing the run while this one waited for
	// the lock: the stamp lands between the gate check and the re-check.
	calls := 0
	f.config.GetFunc = func(ctx context.Context) (*message.Config, error) {
		calls++
		cfg := autoConfig()
		if calls > 1 {
			now := time.Now()
			cfg.LastAutoRun = &now
		}
		return cfg, nil
	}

	require.NoError(t, f.svc.Tick(ctx))
	assert.Equal(t, 1, f.lock.acquires)
	assert.Equal(t, 1, f.lock.releases)
	assert.Empty(t, f.source.Queries)
}

func TestTick_StampsEvenWhenGenerationFails(t *testing.T) {
	f := setupScheduler(autoConfig())
	f.source.Err = context.DeadlineExceeded

	err := f.svc.Tick(context.Background())
	require.Error(t, err)

	stored, getErr := f.config.Get(context.Background())
	require.NoError(t, getErr)
	assert.NotNil(t, stored.LastAutoRun)
	// The lock is released even on a failed run.
	assert.Equal(t, 1, f.lock.releases)
}
