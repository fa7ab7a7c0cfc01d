package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/eventlog"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/infrastructure/observability"
	"github.com/rafaelcosta/dunning/internal/rowsource"
)

// GeneratorService turns accounts receivable rows into queue items.
type GeneratorService struct {
	source      rowsource.Source
	queryStore  rowsource.QueryStore
	configRepo  message.ConfigRepository
	mappingRepo message.MappingRepository
	queue       *QueueService
	events      eventlog.Repository
	metrics     *observability.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

func NewGeneratorService(
	source rowsource.Source,
	queryStore rowsource.QueryStore,
	configRepo message.ConfigRepository,
	mappingRepo message.MappingRepository,
	queueSvc *QueueService,
	events eventlog.Repository,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *GeneratorService {
	return &GeneratorService{
		source:      source,
		queryStore:  queryStore,
		configRepo:  configRepo,
		mappingRepo: mappingRepo,
		queue:       queueSvc,
		events:      events,
		metrics:     metrics,
		logger:      logger.With().Str("component", "generator").Logger(),
		now:         time.Now,
	}
}

// GenerateResult tallies one generation run. A run only fails as a whole
// when the source or configuration is unreachable; per-row problems land in
// Errors and the run continues.
type GenerateResult struct {
	Type     message.MessageType
	Rows     int
	Inserted int
	Skipped  int
	Errors   []string
}

// generationPlan carries the resolved configuration and source rows shared
// by the preview and insertion passes.
type generationPlan struct {
	cfg      *message.Config
	settings message.TypeSettings
	renderer *message.Renderer
	rows     []rowsource.Row
}

func (s *GeneratorService) plan(ctx context.Context, t message.MessageType, overrideQuery string) (*generationPlan, error) {
	if !t.Valid() {
		return nil, domainErrors.ErrInvalidMessageType
	}

	cfg, err := s.configRepo.Get(ctx)
	if err != nil {
		if !errors.Is(err, domainErrors.ErrConfigNotFound) {
			return nil, err
		}
		cfg = message.DefaultConfig()
	}
	settings := cfg.Settings(t)

	baseQuery, err := s.resolveBaseQuery(ctx, overrideQuery)
	if err != nil {
		return nil, err
	}

	mappings, err := s.mappingRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	window := s.window(t, cfg, settings)
	wrapped, err := rowsource.WrapWithWindow(baseQuery, dueDateColumn(mappings), t == message.TypeOverdue)
	if err != nil {
		return nil, err
	}

	rows, err := s.source.Query(ctx, wrapped, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("query source rows: %w", err)
	}

	return &generationPlan{
		cfg:      cfg,
		settings: settings,
		renderer: message.NewRenderer(mappings),
		rows:     rows,
	}, nil
}

// PreviewResult carries the candidates a dry run would have enqueued.
type PreviewResult struct {
	Type    message.MessageType
	Rows    int
	Items   []*message.GeneratedItem
	Skipped int
	Errors  []string
}

// Preview runs the generation pipeline without touching the queue: rows are
// resolved and rendered exactly as Generate would, but nothing is enqueued
// and the dedup and repeat gates are not consulted.
func (s *GeneratorService) Preview(ctx context.Context, t message.MessageType, overrideQuery string) (*PreviewResult, error) {
	plan, err := s.plan(ctx, t, overrideQuery)
	if err != nil {
		return nil, err
	}

	result := &PreviewResult{Type: t, Rows: len(plan.rows)}
	for _, row := range plan.rows {
		candidate, err := s.buildCandidate(t, plan, row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Items = append(result.Items, candidate)
	}
	return result, nil
}

// Generate runs one generation pass for the given type. When overrideQuery
// is empty the most recently saved query is used as the base.
func (s *GeneratorService) Generate(ctx context.Context, t message.MessageType, overrideQuery string) (*GenerateResult, error) {
	start := s.now()
	plan, err := s.plan(ctx, t, overrideQuery)
	if err != nil {
		return nil, err
	}

	result := &GenerateResult{Type: t, Rows: len(plan.rows)}
	for _, row := range plan.rows {
		if err := s.generateOne(ctx, t, plan, row, result); err != nil {
			// A row rejected by validation or parsing is still a skipped
			// row from the caller's point of view.
			result.Skipped++
			result.Errors = append(result.Errors, err.Error())
			if s.metrics != nil {
				s.metrics.ItemsGenerated.WithLabelValues(string(t), "error").Inc()
			}
		}
	}

	if s.metrics != nil {
		s.metrics.GenerationDuration.WithLabelValues(string(t)).Observe(s.now().Sub(start).Seconds())
	}
	s.logEvent(ctx, result)
	return result, nil
}

func (s *GeneratorService) resolveBaseQuery(ctx context.Context, override string) (string, error) {
	if override != "" {
		return rowsource.CleanQuery(override)
	}
	saved, err := s.queryStore.Latest(ctx)
	if err != nil {
		if errors.Is(err, domainErrors.ErrItemNotFound) {
			return "", domainErrors.ErrEmptyQuery
		}
		return "", err
	}
	return rowsource.CleanQuery(saved.QueryText)
}

// dueDateColumn picks the column the due-date window filters on, following
// the @vencimentoparcela mapping when one is configured.
func dueDateColumn(mappings []message.FieldMapping) string {
	for _, m := range mappings {
		if m.Variable == "@vencimentoparcela" && m.SourceColumn != "" {
			return m.SourceColumn
		}
	}
	return "vencimento"
}

func (s *GeneratorService) window(t message.MessageType, cfg *message.Config, settings message.TypeSettings) rowsource.Window {
	if t == message.TypeOverdue {
		return rowsource.OverdueWindow(s.now(), settings.WindowDays, cfg.MaxRecoveryDays)
	}
	return rowsource.ReminderWindow(s.now(), settings.WindowDays)
}

// buildCandidate resolves one source row into a queue candidate. It touches
// nothing but the row and the plan, so the preview pass can share it.
func (s *GeneratorService) buildCandidate(
	t message.MessageType,
	plan *generationPlan,
	row rowsource.Row,
) (*message.GeneratedItem, error) {
	identity := message.BuildIdentity(row)

	dueRaw := message.ResolveString(row, "vencimento")
	dueDate, err := message.ParseDueDate(dueRaw)
	if err != nil {
		return nil, fmt.Errorf("row %s: %w", identity, err)
	}

	base := message.CentsFromAny(func() any {
		v, _ := message.Resolve(row, plan.cfg.BaseValueField)
		return v
	}())

	days := 0
	fee := message.LateFee{Total: base}
	if t == message.TypeOverdue {
		days = message.DaysOverdue(dueDate, s.now())
		fee = message.ComputeLateFee(base, plan.cfg.InterestRatePct, plan.cfg.PenaltyRatePct, days)
	}

	computed := map[string]string{
		message.TokenTotalToday: message.FormatBRL(fee.Total),
		message.TokenInterest:   message.FormatBRL(fee.Interest),
		message.TokenPenalty:    message.FormatBRL(fee.Penalty),
	}
	body, err := plan.renderer.Render(plan.settings.Template, row, computed)
	if err != nil {
		return nil, fmt.Errorf("row %s: %w", identity, err)
	}

	return &message.GeneratedItem{
		Type:          t,
		ClientCode:    message.ResolveFirst(row, "codigocliente", "codcliente"),
		ClientName:    message.ResolveString(row, "nomecliente"),
		CPF:           message.ResolveFirst(row, "cpfcliente", "cpf"),
		Phone1:        message.ResolveString(row, "fone1"),
		Phone2:        message.ResolveString(row, "fone2"),
		InstallmentID: identity,
		Description:   message.ResolveString(row, "descricaoparcela"),
		DueDate:       message.FormatDateBR(dueDate),
		EmissionDate:  message.ReformatDateValue(message.ResolveString(row, "emissao")),
		BaseValue:     base,
		Interest:      fee.Interest,
		Penalty:       fee.Penalty,
		TotalValue:    fee.Total,
		DaysOverdue:   days,
		Body:          body,
	}, nil
}

func (s *GeneratorService) generateOne(
	ctx context.Context,
	t message.MessageType,
	plan *generationPlan,
	row rowsource.Row,
	result *GenerateResult,
) error {
	candidate, err := s.buildCandidate(t, plan, row)
	if err != nil {
		return err
	}

	skip, err := s.repeatExhausted(ctx, t, plan.settings, candidate.ClientCode, candidate.InstallmentID)
	if err != nil {
		return fmt.Errorf("row %s: %w", candidate.InstallmentID, err)
	}
	if skip {
		result.Skipped++
		return nil
	}

	_, err = s.queue.Enqueue(ctx, candidate)
	if err != nil {
		if errors.Is(err, domainErrors.ErrDuplicateItem) {
			result.Skipped++
			return nil
		}
		return fmt.Errorf("row %s: %w", candidate.InstallmentID, err)
	}
	result.Inserted++
	return nil
}

// repeatExhausted applies the resend policy: an installment already messaged
// waits out the repeat interval, and stops entirely after the initial send
// plus RepeatTimes repeats.
func (s *GeneratorService) repeatExhausted(
	ctx context.Context,
	t message.MessageType,
	settings message.TypeSettings,
	clientCode, identity string,
) (bool, error) {
	total, err := s.queue.CountSentSince(ctx, clientCode, identity, t, time.Time{})
	if err != nil {
		return false, err
	}
	if total == 0 {
		return false, nil
	}
	if total >= int64(settings.RepeatTimes)+1 {
		return true, nil
	}

	interval := settings.RepeatIntervalDays
	if interval <= 0 {
		interval = 1
	}
	since := s.now().AddDate(0, 0, -interval)
	recent, err := s.queue.CountSentSince(ctx, clientCode, identity, t, since)
	if err != nil {
		return false, err
	}
	return recent > 0, nil
}

func (s *GeneratorService) logEvent(ctx context.Context, result *GenerateResult) {
	entry := eventlog.New(eventlog.KindInfo,
		fmt.Sprintf("generation finished: %d inserted, %d skipped", result.Inserted, result.Skipped),
		map[string]any{
			"type":     string(result.Type),
			"rows":     result.Rows,
			"inserted": result.Inserted,
			"skipped":  result.Skipped,
			"errors":   len(result.Errors),
		})
	if err := s.events.Add(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record generation event")
	}
	s.logger.Info().
		Str("type", string(result.Type)).
		Int("rows", result.Rows).
		Int("inserted", result.Inserted).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("generation finished")
}
