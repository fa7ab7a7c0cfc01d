package controller

import (
	"time"

	"github.com/google/uuid"

	"github.com/rafaelcosta/dunning/internal/domain/eventlog"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
	"github.com/rafaelcosta/dunning/internal/rowsource"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (float64 for money, string for IDs,
// validation tags). Controllers convert them to domain types before calling
// into services.

// GenerateRequest triggers one generation run.
type GenerateRequest struct {
	Type  string `json:"type" validate:"required,oneof=reminder overdue"`
	Query string `json:"query,omitempty"`
}

// SendRequest dispatches pending items. Without IDs every sendable item goes
// out, optionally narrowed to one type.
type SendRequest struct {
	IDs  []string `json:"ids,omitempty" validate:"omitempty,dive,uuid"`
	Type string   `json:"type,omitempty" validate:"omitempty,oneof=reminder overdue"`
}

// SelectionRequest toggles the selected flag on queue items.
type SelectionRequest struct {
	IDs      []string `json:"ids" validate:"required,min=1,dive,uuid"`
	Selected bool     `json:"selected"`
}

// DeleteItemsRequest names the items to remove.
type DeleteItemsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

// BlockRequest adds a block list entry. An empty installment_id blocks the
// whole client.
type BlockRequest struct {
	ClientCode    string `json:"client_code" validate:"required"`
	ClientName    string `json:"client_name,omitempty"`
	InstallmentID string `json:"installment_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// PreviewRequest runs the generation pipeline without writing anything.
type PreviewRequest struct {
	Type  string `json:"type" validate:"required,oneof=reminder overdue"`
	Query string `json:"query,omitempty"`
}

// TypeSettingsDTO carries the per-type generation knobs.
type TypeSettingsDTO struct {
	Enabled            bool   `json:"enabled"`
	WindowDays         int    `json:"window_days" validate:"gte=0"`
	Template           string `json:"template" validate:"required"`
	RepeatTimes        int    `json:"repeat_times" validate:"gte=0"`
	RepeatIntervalDays int    `json:"repeat_interval_days" validate:"gte=0"`
}

// ConfigRequest replaces the message configuration.
type ConfigRequest struct {
	SendTime        string          `json:"send_time" validate:"required"`
	AutoSendEnabled bool            `json:"auto_send_enabled"`
	Reminder        TypeSettingsDTO `json:"reminder"`
	Overdue         TypeSettingsDTO `json:"overdue"`
	InterestRatePct float64         `json:"interest_rate_pct" validate:"gte=0"`
	PenaltyRatePct  float64         `json:"penalty_rate_pct" validate:"gte=0"`
	BaseValueField  string          `json:"base_value_field" validate:"required"`
	MaxRecoveryDays int             `json:"max_recovery_days" validate:"gte=0"`
	SendDelayMs     int             `json:"send_delay_ms" validate:"gte=0"`
}

// MappingDTO is one template variable to source column pair.
type MappingDTO struct {
	Variable     string `json:"variable" validate:"required"`
	SourceColumn string `json:"source_column" validate:"required"`
}

// ReplaceMappingsRequest swaps the whole mapping set.
type ReplaceMappingsRequest struct {
	Mappings []MappingDTO `json:"mappings" validate:"required,min=1,dive"`
}

// SaveQueryRequest stores a base query for the generator.
type SaveQueryRequest struct {
	Name  string `json:"name" validate:"required"`
	Query string `json:"query" validate:"required"`
}

// --- Response DTOs ---

// ItemResponse represents a queue item in API responses.
type ItemResponse struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	ClientCode    string     `json:"client_code"`
	ClientName    string     `json:"client_name"`
	CPF           string     `json:"cpf,omitempty"`
	Phone         string     `json:"phone"`
	InstallmentID string     `json:"installment_id"`
	Description   string     `json:"description,omitempty"`
	DueDate       string     `json:"due_date"`
	EmissionDate  string     `json:"emission_date,omitempty"`
	BaseValue     float64    `json:"base_value"`
	Interest      float64    `json:"interest"`
	Penalty       float64    `json:"penalty"`
	TotalValue    float64    `json:"total_value"`
	DaysOverdue   int        `json:"days_overdue"`
	Body          string     `json:"body"`
	Status        string     `json:"status"`
	Selected      bool       `json:"selected"`
	SendMode      string     `json:"send_mode,omitempty"`
	ErrorDetail   *string    `json:"error_detail,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// ItemListResponse pages through queue items.
type ItemListResponse struct {
	Items  []*ItemResponse `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// GenerateResponse reports one generation run.
type GenerateResponse struct {
	Type     string   `json:"type"`
	Rows     int      `json:"rows"`
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// DispatchResponse reports one synchronous dispatch run.
type DispatchResponse struct {
	Attempted int      `json:"attempted"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// DispatchAcceptedResponse acknowledges an asynchronous dispatch request.
type DispatchAcceptedResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// BlockedEntryResponse represents a block list entry.
type BlockedEntryResponse struct {
	ID            string    `json:"id"`
	ClientCode    string    `json:"client_code"`
	ClientName    string    `json:"client_name,omitempty"`
	InstallmentID string    `json:"installment_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DuplicateResponse represents one suppressed duplicate.
type DuplicateResponse struct {
	ID               string    `json:"id"`
	CandidateItemID  string    `json:"candidate_item_id"`
	Type             string    `json:"type"`
	ClientCode       string    `json:"client_code"`
	ClientName       string    `json:"client_name"`
	InstallmentID    string    `json:"installment_id"`
	DueDate          string    `json:"due_date,omitempty"`
	InstallmentValue float64   `json:"installment_value"`
	ExistingQueueID  *string   `json:"existing_queue_id,omitempty"`
	ObservedAt       time.Time `json:"observed_at"`
}

// PreviewItemResponse is one candidate from a dry run. Nothing is stored,
// so there is no id; the status is always PREVIEW.
type PreviewItemResponse struct {
	Type          string  `json:"type"`
	ClientCode    string  `json:"client_code"`
	ClientName    string  `json:"client_name"`
	CPF           string  `json:"cpf,omitempty"`
	Phone         string  `json:"phone"`
	InstallmentID string  `json:"installment_id"`
	Description   string  `json:"description,omitempty"`
	DueDate       string  `json:"due_date"`
	EmissionDate  string  `json:"emission_date,omitempty"`
	BaseValue     float64 `json:"base_value"`
	Interest      float64 `json:"interest"`
	Penalty       float64 `json:"penalty"`
	TotalValue    float64 `json:"total_value"`
	DaysOverdue   int     `json:"days_overdue"`
	Body          string  `json:"body"`
	Status        string  `json:"status"`
}

// PreviewResponse reports one dry run.
type PreviewResponse struct {
	Type    string                 `json:"type"`
	Rows    int                    `json:"rows"`
	Skipped int                    `json:"skipped"`
	Items   []*PreviewItemResponse `json:"items"`
	Errors  []string               `json:"errors,omitempty"`
}

// ConfigResponse mirrors ConfigRequest plus the scheduler stamp.
type ConfigResponse struct {
	SendTime        string          `json:"send_time"`
	AutoSendEnabled bool            `json:"auto_send_enabled"`
	Reminder        TypeSettingsDTO `json:"reminder"`
	Overdue         TypeSettingsDTO `json:"overdue"`
	InterestRatePct float64         `json:"interest_rate_pct"`
	PenaltyRatePct  float64         `json:"penalty_rate_pct"`
	BaseValueField  string          `json:"base_value_field"`
	MaxRecoveryDays int             `json:"max_recovery_days"`
	SendDelayMs     int             `json:"send_delay_ms"`
	LastAutoRun     *time.Time      `json:"last_auto_run,omitempty"`
}

// SavedQueryResponse represents a stored base query.
type SavedQueryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
}

// EventResponse represents one activity feed entry.
type EventResponse struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromItem converts a queue item to its API shape. Status is the effective
// status, with the block overlay applied.
func FromItem(i *queue.Item) *ItemResponse {
	return &ItemResponse{
		ID:            i.ID.String(),
		Type:          string(i.Type),
		ClientCode:    i.ClientCode,
		ClientName:    i.ClientName,
		CPF:           i.CPF,
		Phone:         message.FormatPhoneDisplay(i.Phone),
		InstallmentID: i.InstallmentID,
		Description:   i.Description,
		DueDate:       i.DueDate,
		EmissionDate:  i.EmissionDate,
		BaseValue:     centsToFloat(i.BaseValue),
		Interest:      centsToFloat(i.Interest),
		Penalty:       centsToFloat(i.Penalty),
		TotalValue:    centsToFloat(i.TotalValue),
		DaysOverdue:   i.DaysOverdue,
		Body:          i.Body,
		Status:        string(i.EffectiveStatus()),
		Selected:      i.Selected,
		SendMode:      string(i.SendMode),
		ErrorDetail:   i.ErrorDetail,
		CreatedAt:     i.CreatedAt,
		SentAt:        i.SentAt,
	}
}

// FromBlockedEntry converts a block list entry to its API shape.
func FromBlockedEntry(e *queue.BlockedEntry) *BlockedEntryResponse {
	return &BlockedEntryResponse{
		ID:            e.ID.String(),
		ClientCode:    e.ClientCode,
		ClientName:    e.ClientName,
		InstallmentID: e.InstallmentID,
		Reason:        e.Reason,
		CreatedAt:     e.CreatedAt,
	}
}

// FromDuplicate converts a duplicate log entry to its API shape.
func FromDuplicate(e *queue.DuplicateLogEntry) *DuplicateResponse {
	var existing *string
	if e.ExistingQueueItemID != nil {
		s := e.ExistingQueueItemID.String()
		existing = &s
	}
	return &DuplicateResponse{
		ID:               e.ID.String(),
		CandidateItemID:  e.CandidateItemID,
		Type:             string(e.Type),
		ClientCode:       e.ClientCode,
		ClientName:       e.ClientName,
		InstallmentID:    e.InstallmentID,
		DueDate:          e.DueDate,
		InstallmentValue: centsToFloat(e.InstallmentValue),
		ExistingQueueID:  existing,
		ObservedAt:       e.ObservedAt,
	}
}

// FromPreviewItem converts a dry-run candidate to its API shape.
func FromPreviewItem(g *message.GeneratedItem) *PreviewItemResponse {
	return &PreviewItemResponse{
		Type:          string(g.Type),
		ClientCode:    g.ClientCode,
		ClientName:    g.ClientName,
		CPF:           g.CPF,
		Phone:         message.FormatPhoneDisplay(g.BestPhone()),
		InstallmentID: g.InstallmentID,
		Description:   g.Description,
		DueDate:       g.DueDate,
		EmissionDate:  g.EmissionDate,
		BaseValue:     centsToFloat(g.BaseValue),
		Interest:      centsToFloat(g.Interest),
		Penalty:       centsToFloat(g.Penalty),
		TotalValue:    centsToFloat(g.TotalValue),
		DaysOverdue:   g.DaysOverdue,
		Body:          g.Body,
		Status:        "PREVIEW",
	}
}

// FromConfig converts the domain configuration to its API shape.
func FromConfig(c *message.Config) *ConfigResponse {
	return &ConfigResponse{
		SendTime:        c.SendTime,
		AutoSendEnabled: c.AutoSendEnabled,
		Reminder:        fromTypeSettings(c.Reminder),
		Overdue:         fromTypeSettings(c.Overdue),
		InterestRatePct: c.InterestRatePct,
		PenaltyRatePct:  c.PenaltyRatePct,
		BaseValueField:  c.BaseValueField,
		MaxRecoveryDays: c.MaxRecoveryDays,
		SendDelayMs:     int(c.SendDelay / time.Millisecond),
		LastAutoRun:     c.LastAutoRun,
	}
}

func fromTypeSettings(s message.TypeSettings) TypeSettingsDTO {
	return TypeSettingsDTO{
		Enabled:            s.Enabled,
		WindowDays:         s.WindowDays,
		Template:           s.Template,
		RepeatTimes:        s.RepeatTimes,
		RepeatIntervalDays: s.RepeatIntervalDays,
	}
}

// ToConfig converts the request into the domain configuration.
func (r *ConfigRequest) ToConfig() *message.Config {
	return &message.Config{
		SendTime:        r.SendTime,
		AutoSendEnabled: r.AutoSendEnabled,
		Reminder:        r.Reminder.toTypeSettings(),
		Overdue:         r.Overdue.toTypeSettings(),
		InterestRatePct: r.InterestRatePct,
		PenaltyRatePct:  r.PenaltyRatePct,
		BaseValueField:  r.BaseValueField,
		MaxRecoveryDays: r.MaxRecoveryDays,
		SendDelay:       time.Duration(r.SendDelayMs) * time.Millisecond,
	}
}

func (d TypeSettingsDTO) toTypeSettings() message.TypeSettings {
	return message.TypeSettings{
		Enabled:            d.Enabled,
		WindowDays:         d.WindowDays,
		Template:           d.Template,
		RepeatTimes:        d.RepeatTimes,
		RepeatIntervalDays: d.RepeatIntervalDays,
	}
}

// FromSavedQuery converts a saved query to its API shape.
func FromSavedQuery(q *rowsource.SavedQuery) *SavedQueryResponse {
	return &SavedQueryResponse{
		ID:        q.ID.String(),
		Name:      q.Name,
		Query:     q.QueryText,
		CreatedAt: q.CreatedAt,
	}
}

// FromEvent converts an event log entry to its API shape.
func FromEvent(e *eventlog.Entry) *EventResponse {
	return &EventResponse{
		ID:        e.ID.String(),
		Kind:      string(e.Kind),
		Message:   e.Message,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	}
}

// centsToFloat converts cents to a float currency amount.
func centsToFloat(cents int64) float64 {
	return float64(cents) / 100.0
}

// parseUUIDs parses a list of UUID strings, dropping invalid entries.
func parseUUIDs(raw []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}
