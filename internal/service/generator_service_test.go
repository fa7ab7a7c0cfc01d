package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
	"github.com/rafaelcosta/dunning/internal/rowsource"
	"github.com/rafaelcosta/dunning/internal/testutil"
)

// --- Test Helpers ---

type generatorFixture struct {
	svc      *GeneratorService
	source   *testutil.MockSource
	items    *testutil.MockItemRepository
	dups     *testutil.MockDuplicateLogRepository
	events   *testutil.MockEventLogRepository
	config   *testutil.MockConfigRepository
	queueSvc *QueueService
}

func setupGenerator(rows ...rowsource.Row) *generatorFixture {
	source := &testutil.MockSource{Rows: rows}

	items := testutil.NewMockItemRepository()
	dups := testutil.NewMockDuplicateLogRepository()
	events := testutil.NewMockEventLogRepository()
	config := testutil.NewMockConfigRepository(testutil.NewTestConfig())
	queueSvc := NewQueueService(items, items.Blocks, dups, events, nil, zerolog.Nop())

	svc := NewGeneratorService(
		source,
		testutil.NewMockQueryStore(),
		config,
		testutil.NewMockMappingRepository(message.DefaultMappings()),
		queueSvc,
		events,
		nil,
		zerolog.Nop(),
	)
	return &generatorFixture{
		svc: svc, source: source, items: items,
		dups: dups, events: events, config: config, queueSvc: queueSvc,
	}
}

const baseQuery = "SELECT * FROM parcelas WHERE situacao = 'ABERTA'"

// --- Generate Tests ---

func TestGenerate_InsertsItemsFromRows(t *testing.T) {
	now := time.Now()
	f := setupGenerator(
		testutil.NewTestRow("778", "Ana Souza", now.AddDate(0, 0, -10), 100000),
	)
	ctx := context.Background()

	result, err := f.svc.Generate(ctx, message.TypeOverdue, baseQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 0, result.Skipped)
	assert.Empty(t, result.Errors)

	items, err := f.items.List(ctx, queue.ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "778", item.ClientCode)
	assert.Equal(t, "1042-1-778", item.InstallmentID)
	assert.Equal(t, "123.456.789-00", item.CPF)
	assert.Equal(t, "11987654321", item.Phone)
	assert.Equal(t, now.AddDate(0, 0, -10).AddDate(0, -1, 0).Format("02/01/2006"), item.EmissionDate)
	assert.Equal(t, 10, item.DaysOverdue)
	// 3% monthly on 1000.00 for 10 days plus 2% flat penalty.
	assert.Equal(t, int64(1000), item.Interest)
	assert.Equal(t, int64(2000), item.Penalty)
	assert.Equal(t, int64(103000), item.TotalValue)
}

func TestGenerate_RendersTemplateVariables(t *testing.T) {
	now := time.Now()
	f := setupGenerator(testutil.NewTestRow("778", "Ana Souza", now.AddDate(0, 0, -10), 100000))

	cfg := testutil.NewTestConfig()
	cfg.Overdue.Template = "Olá @nomecliente, total hoje: @valortotalhoje"
	require.NoError(t, f.config.Save(context.Background(), cfg))

	_, err := f.svc.Generate(context.Background(), message.TypeOverdue, baseQuery)
	require.NoError(t, err)

	items, _ := f.items.List(context.Background(), queue.ListFilter{})
	require.Len(t, items, 1)
	assert.Equal(t, "Olá Ana Souza, total hoje: 1.030,00", items[0].Body)
}

func TestGenerate_SecondRunIsIdempotent(t *testing.T) {
	now := time.Now()
	f := setupGenerator(testutil.NewTestRow("778", "Ana Souza", now.AddDate(0, 0, -10), 100000))
	ctx := context.Background()

	first, err := f.svc.Generate(ctx, message.TypeOverdue, baseQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Inserted)

	second, err := f.svc.Generate(ctx, message.TypeOverdue, baseQuery)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Skipped)

	// Exactly one pending item survives both runs.
	items, _ := f.items.List(ctx, queue.ListFilter{})
	assert.Len(t, items, 1)
	assert.Len(t, f.dups.Entries, 1)
}

func TestGenerate_BadRowDoesNotAbortRun(t *testing.T) {
	now := time.Now()
	bad := testutil.NewTestRow("779", "Rui Costa", now, 50000)
	bad["vencimento"] = "not-a-date"

	good2 := testutil.NewTestRow("780", "Bia Lima", now.AddDate(0, 0, -5), 75000)
	good2["numeroparcela"] = "2"

	f := setupGenerator(
		bad,
		testutil.NewTestRow("778", "Ana Souza", now.AddDate(0, 0, -10), 100000),
		good2,
	)

	result, err := f.svc.Generate(context.Background(), message.TypeOverdue, baseQuery)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	// The rejected row counts as skipped alongside its error entry.
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "1042-1-779")
}

// --- Preview Tests ---

func TestPreview_BuildsCandidatesWithoutEnqueueing(t *testing.T) {
	now := time.Now()
	f := setupGenerator(testutil.NewTestRow("778", "Ana Souza", now.AddDate(0, 0, -10), 100000))
	ctx := context.Background()

	result, err := f.svc.Preview(ctx, message.TypeOverdue, baseQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
	require.Len(t, result.Items, 1)

	candidate := result.Items[0]
	assert.Equal(t, "778", candidate.ClientCode)
	assert.Equal(t, "1042-1-778", candidate.InstallmentID)
	assert.Equal(t, int64(103000), candidate.TotalValue)
	assert.NotEmpty(t, candidate.Body)

	items, err := f.items.List(ctx, queue.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, f.dups.Entries)
}

func TestPreview_SkipsUnparseableRows(t *testing.T) {
	now := time.Now()
	bad := testutil.NewTestRow("779", "Rui Costa", now, 50000)
	bad["vencimento"] = "not-a-date"
	f := setupGenerator(bad, testutil.NewTestRow("778", "Ana Souza", now.AddDate(0, 0, -10), 100000))

	result, err := f.svc.Preview(context.Background(), message.TypeOverdue, baseQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "778", result.Items[0].ClientCode)
}

func TestPreview_IgnoresExistingPendingItems(t *testing.T) {
	now := time.Now()
	f := setupGenerator(testutil.NewTestRow("778", "Ana Souza", now.AddDate(0, 0, -10), 100000))
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, message.TypeOverdue, baseQuery)
	require.NoError(t, err)

	// A dry run reports the candidate again; only Generate consults the
	// duplicate gate.
	result, err := f.svc.Preview(ctx, message.TypeOverdue, baseQuery)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Len(t, f.dups.Entries, 0)
}

func TestGenerate_UsesLatestSavedQueryWhenNoOverride(t *testing.T) {
	f := setupGenerator()
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, message.TypeOverdue, "")
	assert.ErrorIs(t, err, domainErrors.ErrEmptyQuery)

	settings := NewSettingsService(f.config, testutil.NewMockMappingRepository(nil),
		f.svcQueryStore(), f.events, zerolog.Nop())
	_, err = settings.SaveQuery(ctx, "abertas", baseQuery+";")
	require.NoError(t, err)

	_, err = f.svc.Generate(ctx, message.TypeOverdue, "")
	require.NoError(t, err)

	require.NotEmpty(t, f.source.Queries)
	sent := f.source.Queries[len(f.source.Queries)-1]
	assert.Contains(t, sent, "WITH base_data AS")
	assert.NotContains(t, sent, ";")
}

func TestGenerate_WrapsQueryWithDueDateWindow(t *testing.T) {
	f := setupGenerator()
	_, err := f.svc.Generate(context.Background(), message.TypeReminder, baseQuery)
	require.NoError(t, err)

	require.Len(t, f.source.Queries, 1)
	q := f.source.Queries[0]
	assert.Contains(t, q, "WITH base_data AS")
	assert.Contains(t, q, "vencimento::date >= $1")
	assert.Contains(t, q, "vencimento::date <= $2")
	assert.True(t, strings.Contains(q, "ORDER BY vencimento::date ASC"))
}

func TestGenerate_InvalidType(t *testing.T) {
	f := setupGenerator()
	_, err := f.svc.Generate(context.Background(), message.MessageType("spam"), baseQuery)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidMessageType)
}

// --- Repeat Policy Tests ---

func TestGenerate_RepeatPolicy(t *testing.T) {
	now := time.Now()
	row := testutil.NewTestRow("778", "Ana Souza", now.AddDate(0, 0, -10), 100000)

	t.Run("no repeats after first send", func(t *testing.T) {
		f := setupGenerator(row)
		ctx := context.Background()

		cfg := testutil.NewTestConfig()
		cfg.Overdue.RepeatTimes = 0
		require.NoError(t, f.config.Save(ctx, cfg))

		first, err := f.svc.Generate(ctx, message.TypeOverdue, baseQuery)
		require.NoError(t, err)
		require.Equal(t, 1, first.Inserted)

		markAllSent(t, f.items)

		second, err := f.svc.Generate(ctx, message.TypeOverdue, baseQuery)
		require.NoError(t, err)
		assert.Equal(t, 0, second.Inserted)
		assert.Equal(t, 1, second.Skipped)
	})

	t.Run("repeat allowed after interval", func(t *testing.T) {
		f := setupGenerator(row)
		ctx := context.Background()

		cfg := testutil.NewTestConfig()
		cfg.Overdue.RepeatTimes = 1
		cfg.Overdue.RepeatIntervalDays = 7
		require.NoError(t, f.config.Save(ctx, cfg))

		_, err := f.svc.Generate(ctx, message.TypeOverdue, baseQuery)
		require.NoError(t, err)
		markAllSentAt(t, f.items, now.AddDate(0, 0, -8))

		second, err := f.svc.Generate(ctx, message.TypeOverdue, baseQuery)
		require.NoError(t, err)
		assert.Equal(t, 1, second.Inserted)
	})

	t.Run("repeat suppressed inside interval", func(t *testing.T) {
		f := setupGenerator(row)
		ctx := context.Background()

		cfg := testutil.NewTestConfig()
		cfg.Overdue.RepeatTimes = 1
		cfg.Overdue.RepeatIntervalDays = 7
		require.NoError(t, f.config.Save(ctx, cfg))

		_, err := f.svc.Generate(ctx, message.TypeOverdue, baseQuery)
		require.NoError(t, err)
		markAllSentAt(t, f.items, now.AddDate(0, 0, -2))

		second, err := f.svc.Generate(ctx, message.TypeOverdue, baseQuery)
		require.NoError(t, err)
		assert.Equal(t, 0, second.Inserted)
		assert.Equal(t, 1, second.Skipped)
	})
}

// --- helpers ---

func (f *generatorFixture) svcQueryStore() *testutil.MockQueryStore {
	return f.svc.queryStore.(*testutil.MockQueryStore)
}

func markAllSent(t *testing.T, items *testutil.MockItemRepository) {
	t.Helper()
	markAllSentAt(t, items, time.Now())
}

func markAllSentAt(t *testing.T, items *testutil.MockItemRepository, at time.Time) {
	t.Helper()
	ctx := context.Background()
	pending, err := items.ListSendable(ctx, nil)
	require.NoError(t, err)
	for _, item := range pending {
		require.NoError(t, items.TransitionToSent(ctx, item.ID, queue.SendModeManual, at))
	}
}
