package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/testutil"
)

func setupSettings(cfg *message.Config) (*SettingsService, *testutil.MockConfigRepository, *testutil.MockMappingRepository, *testutil.MockQueryStore) {
	config := testutil.NewMockConfigRepository(cfg)
	mappings := testutil.NewMockMappingRepository(nil)
	queries := testutil.NewMockQueryStore()
	svc := NewSettingsService(config, mappings, queries,
		testutil.NewMockEventLogRepository(), zerolog.Nop())
	return svc, config, mappings, queries
}

func TestGetConfig_FallsBackToDefaults(t *testing.T) {
	svc, _, _, _ := setupSettings(nil)

	cfg, err := svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, message.DefaultConfig().SendTime, cfg.SendTime)
	assert.False(t, cfg.AutoSendEnabled)
}

func TestSaveConfig_PreservesLastAutoRun(t *testing.T) {
	stored := testutil.NewTestConfig()
	ran := time.Now().Add(-2 * time.Hour)
	stored.LastAutoRun = &ran
	svc, config, _, _ := setupSettings(stored)
	ctx := context.Background()

	incoming := testutil.NewTestConfig()
	incoming.SendTime = "14:30"
	incoming.LastAutoRun = nil
	require.NoError(t, svc.SaveConfig(ctx, incoming))

	got, err := config.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "14:30", got.SendTime)
	require.NotNil(t, got.LastAutoRun)
	assert.True(t, got.LastAutoRun.Equal(ran))
}

func TestSaveConfig_RejectsInvalidConfig(t *testing.T) {
	svc, _, _, _ := setupSettings(testutil.NewTestConfig())

	bad := testutil.NewTestConfig()
	bad.SendTime = "25:99"
	err := svc.SaveConfig(context.Background(), bad)

	var vErr *domainErrors.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestListMappings_DefaultsWhenTableEmpty(t *testing.T) {
	svc, _, _, _ := setupSettings(nil)

	mappings, err := svc.ListMappings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, message.DefaultMappings(), mappings)
}

func TestReplaceMappings(t *testing.T) {
	tests := []struct {
		name     string
		mappings []message.FieldMapping
		wantErr  bool
	}{
		{
			name: "valid set",
			mappings: []message.FieldMapping{
				{Variable: "@nomecliente", SourceColumn: "nome"},
				{Variable: "@vencimentoparcela", SourceColumn: "dt_venc"},
			},
		},
		{
			name:     "missing @ prefix",
			mappings: []message.FieldMapping{{Variable: "nomecliente", SourceColumn: "nome"}},
			wantErr:  true,
		},
		{
			name:     "empty column",
			mappings: []message.FieldMapping{{Variable: "@nomecliente", SourceColumn: "  "}},
			wantErr:  true,
		},
		{
			name: "duplicate variable",
			mappings: []message.FieldMapping{
				{Variable: "@nomecliente", SourceColumn: "nome"},
				{Variable: "@nomecliente", SourceColumn: "outro"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, repo, _ := setupSettings(nil)
			err := svc.ReplaceMappings(context.Background(), tt.mappings)
			if tt.wantErr {
				var vErr *domainErrors.ValidationError
				assert.True(t, errors.As(err, &vErr))
				assert.Empty(t, repo.Mappings)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mappings, repo.Mappings)
		})
	}
}

func TestSaveQuery_CleansQueryText(t *testing.T) {
	svc, _, _, queries := setupSettings(nil)
	ctx := context.Background()

	saved, err := svc.SaveQuery(ctx, "abertas", "SELECT * FROM parcelas ORDER BY vencimento;")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM parcelas", saved.QueryText)

	latest, err := queries.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, latest.ID)
}

func TestSaveQuery_RequiresName(t *testing.T) {
	svc, _, _, _ := setupSettings(nil)

	_, err := svc.SaveQuery(context.Background(), "  ", "SELECT 1")
	var vErr *domainErrors.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestSaveQuery_RejectsEmptyQuery(t *testing.T) {
	svc, _, _, _ := setupSettings(nil)

	_, err := svc.SaveQuery(context.Background(), "vazia", "   ;")
	assert.ErrorIs(t, err, domainErrors.ErrEmptyQuery)
}
