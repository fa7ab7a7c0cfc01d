package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/eventlog"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
	"github.com/rafaelcosta/dunning/internal/rowsource"
)

// --- Queue Item Repository Mock ---

// MockItemRepository is an in-memory implementation of queue.ItemRepository.
// It enforces the one-pending-per-installment rule the way the partial
// unique index does.
type MockItemRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]*queue.Item

	// blocked mirrors the block list used for the read-time overlay.
	Blocks *MockBlockRepository

	InsertFunc           func(ctx context.Context, item *queue.Item) error
	GetByIDFunc          func(ctx context.Context, id uuid.UUID) (*queue.Item, error)
	ListFunc             func(ctx context.Context, filter queue.ListFilter) ([]*queue.Item, error)
	ListSendableFunc     func(ctx context.Context, t *message.MessageType) ([]*queue.Item, error)
	TransitionToSentFunc func(ctx context.Context, id uuid.UUID, mode queue.SendMode, sentAt time.Time) error
}

func NewMockItemRepository() *MockItemRepository {
	return &MockItemRepository{
		items:  make(map[uuid.UUID]*queue.Item),
		Blocks: NewMockBlockRepository(),
	}
}

func (m *MockItemRepository) overlay(item *queue.Item) *queue.Item {
	clone := *item
	clone.Blocked = m.Blocks.matches(clone.ClientCode, clone.InstallmentID)
	return &clone
}

func (m *MockItemRepository) Insert(ctx context.Context, item *queue.Item) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, item)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.Status == queue.StatusPending {
		for _, existing := range m.items {
			if existing.Status == queue.StatusPending &&
				existing.ClientCode == item.ClientCode &&
				existing.InstallmentID == item.InstallmentID &&
				existing.Type == item.Type {
				return domainErrors.ErrDuplicateItem
			}
		}
	}
	clone := *item
	m.items[item.ID] = &clone
	return nil
}

func (m *MockItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*queue.Item, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, domainErrors.ErrItemNotFound
	}
	return m.overlay(item), nil
}

func (m *MockItemRepository) List(ctx context.Context, filter queue.ListFilter) ([]*queue.Item, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*queue.Item
	for _, item := range m.items {
		candidate := m.overlay(item)
		if filter.Status != nil && candidate.EffectiveStatus() != *filter.Status {
			continue
		}
		if filter.Type != nil && candidate.Type != *filter.Type {
			continue
		}
		if filter.ClientCode != nil && candidate.ClientCode != *filter.ClientCode {
			continue
		}
		out = append(out, candidate)
	}
	return out, nil
}

func (m *MockItemRepository) Count(ctx context.Context, filter queue.ListFilter) (int64, error) {
	items, err := m.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

func (m *MockItemRepository) FindPending(ctx context.Context, clientCode, installmentID string, t message.MessageType) (*queue.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.Status == queue.StatusPending &&
			item.ClientCode == clientCode &&
			item.InstallmentID == installmentID &&
			item.Type == t {
			return m.overlay(item), nil
		}
	}
	return nil, domainErrors.ErrItemNotFound
}

func (m *MockItemRepository) ListSendable(ctx context.Context, t *message.MessageType) ([]*queue.Item, error) {
	if m.ListSendableFunc != nil {
		return m.ListSendableFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*queue.Item
	for _, item := range m.items {
		candidate := m.overlay(item)
		if !candidate.Sendable() {
			continue
		}
		if t != nil && candidate.Type != *t {
			continue
		}
		out = append(out, candidate)
	}
	return out, nil
}

func (m *MockItemRepository) SetSelected(ctx context.Context, ids []uuid.UUID, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			item.Selected = selected
		}
	}
	return nil
}

func (m *MockItemRepository) TransitionToSent(ctx context.Context, id uuid.UUID, mode queue.SendMode, sentAt time.Time) error {
	if m.TransitionToSentFunc != nil {
		return m.TransitionToSentFunc(ctx, id, mode, sentAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return domainErrors.ErrItemNotFound
	}
	if item.Status != queue.StatusPending {
		return domainErrors.ErrInvalidStateTransition
	}
	item.Status = queue.StatusSent
	item.SendMode = mode
	item.SentAt = &sentAt
	return nil
}

func (m *MockItemRepository) TransitionToError(ctx context.Context, id uuid.UUID, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return domainErrors.ErrItemNotFound
	}
	if item.Status != queue.StatusPending {
		return domainErrors.ErrInvalidStateTransition
	}
	item.Status = queue.StatusError
	item.ErrorDetail = &detail
	return nil
}

func (m *MockItemRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.items[id]; ok {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

func (m *MockItemRepository) DeleteByStatus(ctx context.Context, status queue.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, item := range m.items {
		if item.Status == status {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

func (m *MockItemRepository) CountSentSince(ctx context.Context, clientCode, installmentID string, t message.MessageType, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, item := range m.items {
		if item.Status == queue.StatusSent &&
			item.ClientCode == clientCode &&
			item.InstallmentID == installmentID &&
			item.Type == t &&
			item.SentAt != nil && !item.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// --- Block Repository Mock ---

type MockBlockRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*queue.BlockedEntry

	AddFunc func(ctx context.Context, entry *queue.BlockedEntry) error
}

func NewMockBlockRepository() *MockBlockRepository {
	return &MockBlockRepository{entries: make(map[uuid.UUID]*queue.BlockedEntry)}
}

func (m *MockBlockRepository) matches(clientCode, installmentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Matches(clientCode, installmentID) {
			return true
		}
	}
	return false
}

func (m *MockBlockRepository) Add(ctx context.Context, entry *queue.BlockedEntry) error {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ClientCode == entry.ClientCode && e.InstallmentID == entry.InstallmentID {
			return domainErrors.ErrDuplicateItem
		}
	}
	m.entries[entry.ID] = entry
	return nil
}

func (m *MockBlockRepository) Remove(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return domainErrors.ErrBlockedEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *MockBlockRepository) List(ctx context.Context) ([]*queue.BlockedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*queue.BlockedEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *MockBlockRepository) IsBlocked(ctx context.Context, clientCode, installmentID string) (bool, error) {
	return m.matches(clientCode, installmentID), nil
}

// --- Duplicate Log Repository Mock ---

type MockDuplicateLogRepository struct {
	mu      sync.Mutex
	Entries []*queue.DuplicateLogEntry
}

func NewMockDuplicateLogRepository() *MockDuplicateLogRepository {
	return &MockDuplicateLogRepository{}
}

func (m *MockDuplicateLogRepository) Add(ctx context.Context, entry *queue.DuplicateLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockDuplicateLogRepository) List(ctx context.Context, limit int) ([]*queue.DuplicateLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*queue.DuplicateLogEntry, len(m.Entries))
	copy(out, m.Entries)
	return out, nil
}

func (m *MockDuplicateLogRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*queue.DuplicateLogEntry
	var removed int64
	for _, e := range m.Entries {
		if e.ObservedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.Entries = kept
	return removed, nil
}

// --- Config Repository Mock ---

type MockConfigRepository struct {
	mu  sync.Mutex
	cfg *message.Config

	GetFunc func(ctx context.Context) (*message.Config, error)
}

func NewMockConfigRepository(cfg *message.Config) *MockConfigRepository {
	return &MockConfigRepository{cfg: cfg}
}

func (m *MockConfigRepository) Get(ctx context.Context) (*message.Config, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		return nil, domainErrors.ErrConfigNotFound
	}
	clone := *m.cfg
	return &clone, nil
}

func (m *MockConfigRepository) Save(ctx context.Context, cfg *message.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *cfg
	m.cfg = &clone
	return nil
}

func (m *MockConfigRepository) StampAutoRun(ctx context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		return domainErrors.ErrConfigNotFound
	}
	m.cfg.LastAutoRun = &at
	return nil
}

// --- Mapping Repository Mock ---

type MockMappingRepository struct {
	mu       sync.Mutex
	Mappings []message.FieldMapping
}

func NewMockMappingRepository(mappings []message.FieldMapping) *MockMappingRepository {
	return &MockMappingRepository{Mappings: mappings}
}

func (m *MockMappingRepository) List(ctx context.Context) ([]message.FieldMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]message.FieldMapping, len(m.Mappings))
	copy(out, m.Mappings)
	return out, nil
}

func (m *MockMappingRepository) Replace(ctx context.Context, mappings []message.FieldMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Mappings = make([]message.FieldMapping, len(mappings))
	copy(m.Mappings, mappings)
	return nil
}

// --- Row Source Mock ---

type MockSource struct {
	Rows []rowsource.Row
	Err  error

	QueryFunc func(ctx context.Context, sqlText string, args ...any) ([]rowsource.Row, error)

	mu      sync.Mutex
	Queries []string
}

func (m *MockSource) Query(ctx context.Context, sqlText string, args ...any) ([]rowsource.Row, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, sqlText, args...)
	}
	m.mu.Lock()
	m.Queries = append(m.Queries, sqlText)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Rows, nil
}

// --- Query Store Mock ---

type MockQueryStore struct {
	mu      sync.Mutex
	queries []*rowsource.SavedQuery
}

func NewMockQueryStore(queries ...*rowsource.SavedQuery) *MockQueryStore {
	return &MockQueryStore{queries: queries}
}

func (m *MockQueryStore) Save(ctx context.Context, q *rowsource.SavedQuery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	return nil
}

func (m *MockQueryStore) List(ctx context.Context) ([]*rowsource.SavedQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*rowsource.SavedQuery, len(m.queries))
	copy(out, m.queries)
	return out, nil
}

func (m *MockQueryStore) Latest(ctx context.Context) (*rowsource.SavedQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queries) == 0 {
		return nil, domainErrors.ErrItemNotFound
	}
	latest := m.queries[0]
	for _, q := range m.queries[1:] {
		if q.CreatedAt.After(latest.CreatedAt) {
			latest = q
		}
	}
	return latest, nil
}

func (m *MockQueryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, q := range m.queries {
		if q.ID == id {
			m.queries = append(m.queries[:i], m.queries[i+1:]...)
			return nil
		}
	}
	return domainErrors.ErrItemNotFound
}

// --- Event Log Repository Mock ---

type MockEventLogRepository struct {
	mu      sync.Mutex
	Entries []*eventlog.Entry
}

func NewMockEventLogRepository() *MockEventLogRepository {
	return &MockEventLogRepository{}
}

func (m *MockEventLogRepository) Add(ctx context.Context, entry *eventlog.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockEventLogRepository) List(ctx context.Context, kind *eventlog.Kind, limit int) ([]*eventlog.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*eventlog.Entry
	for _, e := range m.Entries {
		if kind != nil && e.Kind != *kind {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *MockEventLogRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*eventlog.Entry
	var removed int64
	for _, e := range m.Entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.Entries = kept
	return removed, nil
}
