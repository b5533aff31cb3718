package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go-counter-deck/pkg/models"
)

// MemoryStore keeps entitlements and history in process memory
type MemoryStore struct {
	mu           sync.RWMutex
	entitlements map[string]models.Entitlement
	analyses     map[string][]models.AnalysisRecord
	now          func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entitlements: make(map[string]models.Entitlement),
		analyses:     make(map[string][]models.AnalysisRecord),
		now:          time.Now,
	}
}

// WithClock overrides the store's time source
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) GetEntitlement(_ context.Context, userID string) (*models.Entitlement, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ent, ok := m.entitlements[userID]
	if !ok {
		return nil, ErrEntitlementNotFound
	}
	return &ent, nil
}

func (m *MemoryStore) CreateFreeEntitlement(_ context.Context, userID string) (*models.Entitlement, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if ent, ok := m.entitlements[userID]; ok {
		return &ent, nil
	}
	ent := *models.FreeEntitlement(userID, m.now().UTC())
	m.entitlements[userID] = ent
	return &ent, nil
}

func (m *MemoryStore) UpsertEntitlement(_ context.Context, in *models.Entitlement) (*models.Entitlement, error) {
	if in == nil || strings.TrimSpace(in.UserID) == "" {
		return nil, ErrInvalidUserID
	}
	if !in.Tier.Valid() {
		return nil, ErrInvalidTier
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	ent := *in
	if existing, ok := m.entitlements[in.UserID]; ok {
		ent.CreatedAt = existing.CreatedAt
	} else {
		ent.CreatedAt = now
	}
	ent.UpdatedAt = now
	m.entitlements[in.UserID] = ent
	return &ent, nil
}

func (m *MemoryStore) SaveAnalysis(_ context.Context, record *models.AnalysisRecord) error {
	if record == nil || strings.TrimSpace(record.UserID) == "" {
		return ErrInvalidUserID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.analyses[record.UserID] = append(m.analyses[record.UserID], *record)
	return nil
}

func (m *MemoryStore) ListAnalyses(_ context.Context, userID string, limit int) ([]*models.AnalysisRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	m.mu.RLock()
	stored := m.analyses[userID]
	records := make([]*models.AnalysisRecord, len(stored))
	for i := range stored {
		r := stored[len(stored)-1-i]
		records[i] = &r
	}
	m.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit = ClampLimit(limit); len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
