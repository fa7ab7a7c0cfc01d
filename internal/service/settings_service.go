package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/eventlog"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/rowsource"
)

// SettingsService manages the message configuration, field mappings and
// saved queries.
type SettingsService struct {
	configRepo  message.ConfigRepository
	mappingRepo message.MappingRepository
	queryStore  rowsource.QueryStore
	events      eventlog.Repository
	logger      zerolog.Logger
}

func NewSettingsService(
	configRepo message.ConfigRepository,
	mappingRepo message.MappingRepository,
	queryStore rowsource.QueryStore,
	events eventlog.Repository,
	logger zerolog.Logger,
) *SettingsService {
	return &SettingsService{
		configRepo:  configRepo,
		mappingRepo: mappingRepo,
		queryStore:  queryStore,
		events:      events,
		logger:      logger.With().Str("component", "settings").Logger(),
	}
}

// GetConfig returns the active configuration, falling back to defaults when
// none was saved yet.
func (s *SettingsService) GetConfig(ctx context.Context) (*message.Config, error) {
	cfg, err := s.configRepo.Get(ctx)
	if err != nil {
		if errors.Is(err, domainErrors.ErrConfigNotFound) {
			return message.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// SaveConfig validates and persists the configuration. LastAutoRun is kept
// from the stored row; only the scheduler stamps it.
func (s *SettingsService) SaveConfig(ctx context.Context, cfg *message.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	current, err := s.configRepo.Get(ctx)
	if err == nil {
		cfg.LastAutoRun = current.LastAutoRun
	} else if !errors.Is(err, domainErrors.ErrConfigNotFound) {
		return err
	}
	if err := s.configRepo.Save(ctx, cfg); err != nil {
		return err
	}
	s.logger.Info().Msg("configuration saved")
	return nil
}

// ListMappings returns the configured mappings, or the defaults when the
// table is empty.
func (s *SettingsService) ListMappings(ctx context.Context) ([]message.FieldMapping, error) {
	mappings, err := s.mappingRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return message.DefaultMappings(), nil
	}
	return mappings, nil
}

// ReplaceMappings swaps the mapping set. Variables must be unique and
// @-prefixed.
func (s *SettingsService) ReplaceMappings(ctx context.Context, mappings []message.FieldMapping) error {
	seen := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		v := strings.TrimSpace(m.Variable)
		if !strings.HasPrefix(v, "@") || len(v) < 2 {
			return domainErrors.NewValidationError("variable", "must start with @")
		}
		if strings.TrimSpace(m.SourceColumn) == "" {
			return domainErrors.NewValidationError("source_column", "is required")
		}
		if seen[v] {
			return domainErrors.NewValidationError("variable", "duplicate variable "+v)
		}
		seen[v] = true
	}
	return s.mappingRepo.Replace(ctx, mappings)
}

// SaveQuery cleans and stores a base query for the generator.
func (s *SettingsService) SaveQuery(ctx context.Context, name, queryText string) (*rowsource.SavedQuery, error) {
	clean, err := rowsource.CleanQuery(queryText)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, domainErrors.NewValidationError("name", "is required")
	}
	q := &rowsource.SavedQuery{
		ID:        uuid.New(),
		Name:      name,
		QueryText: clean,
		CreatedAt: time.Now(),
	}
	if err := s.queryStore.Save(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// ListQueries returns saved queries, newest first.
func (s *SettingsService) ListQueries(ctx context.Context) ([]*rowsource.SavedQuery, error) {
	return s.queryStore.List(ctx)
}

// DeleteQuery removes a saved query.
func (s *SettingsService) DeleteQuery(ctx context.Context, id uuid.UUID) error {
	return s.queryStore.Delete(ctx, id)
}

// Events returns the activity feed.
func (s *SettingsService) Events(ctx context.Context, kind *eventlog.Kind, limit int) ([]*eventlog.Entry, error) {
	return s.events.List(ctx, kind, limit)
}
