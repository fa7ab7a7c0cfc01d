package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/message"
)

// Status represents the stored lifecycle state of a queue item
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusError   Status = "ERROR"

	// StatusBlocked is computed at read time from the block list. It is
	// never persisted on the item row.
	StatusBlocked Status = "BLOCKED"
)

// SendMode records which path dispatched the item
type SendMode string

const (
	SendModeManual    SendMode = "manual"
	SendModeAutomatic SendMode = "automatic"
)

// Item represents one queued collection message
type Item struct {
	ID            uuid.UUID
	Type          message.MessageType
	ClientCode    string
	ClientName    string
	CPF           string
	Phone         string
	InstallmentID string
	Description   string
	DueDate       string // DD/MM/YYYY display form
	EmissionDate  string
	BaseValue     int64 // cents
	Interest      int64
	Penalty       int64
	TotalValue    int64
	DaysOverdue   int
	Body          string
	Status        Status
	Selected      bool
	SendMode      SendMode
	ErrorDetail   *string
	Blocked       bool // overlay, filled by reads that join the block list
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SentAt        *time.Time
}

// NewItem builds a pending queue item from a generated candidate.
func NewItem(g *message.GeneratedItem) (*Item, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Item{
		ID:            uuid.New(),
		Type:          g.Type,
		ClientCode:    g.ClientCode,
		ClientName:    g.ClientName,
		CPF:           g.CPF,
		Phone:         g.BestPhone(),
		InstallmentID: g.InstallmentID,
		Description:   g.Description,
		DueDate:       g.DueDate,
		EmissionDate:  g.EmissionDate,
		BaseValue:     g.BaseValue,
		Interest:      g.Interest,
		Penalty:       g.Penalty,
		TotalValue:    g.TotalValue,
		DaysOverdue:   g.DaysOverdue,
		Body:          g.Body,
		Status:        StatusPending,
		Selected:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// EffectiveStatus resolves the status shown to operators. A block masks the
// stored status whatever it is; the stored value stays untouched, so removing
// the block restores it on the next read.
func (i *Item) EffectiveStatus() Status {
	if i.Blocked {
		return StatusBlocked
	}
	return i.Status
}

// CanTransitionTo checks whether the item may move to newStatus. Only pending
// items move; SENT and ERROR are terminal.
func (i *Item) CanTransitionTo(newStatus Status) bool {
	if i.Status != StatusPending {
		return false
	}
	return newStatus == StatusSent || newStatus == StatusError
}

// MarkSent transitions the item to SENT via mode.
func (i *Item) MarkSent(mode SendMode) error {
	if !i.CanTransitionTo(StatusSent) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(i.Status)+" to "+string(StatusSent),
			errors.ErrInvalidStateTransition,
		)
	}
	now := time.Now()
	i.Status = StatusSent
	i.SendMode = mode
	i.SentAt = &now
	i.UpdatedAt = now
	i.ErrorDetail = nil
	return nil
}

// MarkError transitions the item to ERROR, recording what went wrong.
func (i *Item) MarkError(detail string) error {
	if !i.CanTransitionTo(StatusError) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(i.Status)+" to "+string(StatusError),
			errors.ErrInvalidStateTransition,
		)
	}
	i.Status = StatusError
	i.ErrorDetail = &detail
	i.UpdatedAt = time.Now()
	return nil
}

// Sendable reports whether the dispatcher may pick this item up.
func (i *Item) Sendable() bool {
	return i.Status == StatusPending && !i.Blocked && i.Selected
}

// BlockedEntry suppresses sending for a client or a single installment.
// An empty InstallmentID blocks every installment of the client.
type BlockedEntry struct {
	ID            uuid.UUID
	ClientCode    string
	ClientName    string
	InstallmentID string
	Reason        string
	CreatedAt     time.Time
}

// NewBlockedEntry creates a block for a client, optionally narrowed to one
// installment.
func NewBlockedEntry(clientCode, clientName, installmentID, reason string) (*BlockedEntry, error) {
	if clientCode == "" {
		return nil, errors.NewValidationError("client_code", "client code is required")
	}
	return &BlockedEntry{
		ID:            uuid.New(),
		ClientCode:    clientCode,
		ClientName:    clientName,
		InstallmentID: installmentID,
		Reason:        reason,
		CreatedAt:     time.Now(),
	}, nil
}

// Matches reports whether this entry blocks the given client/installment
// pair. Client-wide entries match regardless of installment.
func (b *BlockedEntry) Matches(clientCode, installmentID string) bool {
	if b.ClientCode != clientCode {
		return false
	}
	if b.InstallmentID == "" {
		return true
	}
	return b.InstallmentID == installmentID
}

// DuplicateLogEntry records a generation attempt rejected by the
// one-pending-per-installment rule. ExistingQueueItemID points at the
// pending row that won, when it could be resolved.
type DuplicateLogEntry struct {
	ID                  uuid.UUID
	CandidateItemID     string
	Type                message.MessageType
	ClientCode          string
	ClientName          string
	InstallmentID       string
	DueDate             string
	InstallmentValue    int64 // cents
	ExistingQueueItemID *uuid.UUID
	ObservedAt          time.Time
}

func NewDuplicateLogEntry(g *message.GeneratedItem, existingID *uuid.UUID) *DuplicateLogEntry {
	return &DuplicateLogEntry{
		ID:                  uuid.New(),
		CandidateItemID:     string(g.Type) + "-" + g.InstallmentID,
		Type:                g.Type,
		ClientCode:          g.ClientCode,
		ClientName:          g.ClientName,
		InstallmentID:       g.InstallmentID,
		DueDate:             g.DueDate,
		InstallmentValue:    g.BaseValue,
		ExistingQueueItemID: existingID,
		ObservedAt:          time.Now(),
	}
}
