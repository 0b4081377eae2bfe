// Package store provides in-memory Store and SchemeStore implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/charge-engine/charges"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	assessments map[charges.LoanID][]charges.Assessment
	byID        map[charges.AssessmentID]charges.Assessment
	idempotency map[string]bool
	schemes     map[charges.SchemeID]charges.SchemeRecord

	// Now defaults to time.Now().UTC().
	Now func() time.Time
}

var (
	_ charges.Store       = (*Memory)(nil)
	_ charges.SchemeStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		assessments: make(map[charges.LoanID][]charges.Assessment),
		byID:        make(map[charges.AssessmentID]charges.Assessment),
		idempotency: make(map[string]bool),
		schemes:     make(map[charges.SchemeID]charges.SchemeRecord),
	}
}

// Append adds a single assessment. Append-only.
func (m *Memory) Append(_ context.Context, a charges.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.IdempotencyKey != "" && m.idempotency[a.IdempotencyKey] {
		return charges.ErrDuplicateIdempotencyKey
	}

	list := m.assessments[a.LoanID]

	// Binary search for insertion point to keep CreatedAt order
	i := sort.Search(len(list), func(i int) bool {
		return list[i].CreatedAt.After(a.CreatedAt)
	})
	list = append(list, charges.Assessment{})
	copy(list[i+1:], list[i:])
	list[i] = a
	m.assessments[a.LoanID] = list
	m.byID[a.ID] = a

	if a.IdempotencyKey != "" {
		m.idempotency[a.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

func (m *Memory) Get(_ context.Context, id charges.AssessmentID) (charges.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byID[id]
	if !ok {
		return charges.Assessment{}, charges.ErrAssessmentNotFound
	}
	return a, nil
}

func (m *Memory) ListByLoan(_ context.Context, loanID charges.LoanID) ([]charges.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]charges.Assessment, len(m.assessments[loanID]))
	copy(result, m.assessments[loanID])
	return result, nil
}

// =============================================================================
// SCHEMES
// =============================================================================

func (m *Memory) CreateScheme(_ context.Context, r charges.SchemeRecord) (charges.SchemeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.schemes[r.ID]; ok {
		return charges.SchemeRecord{}, charges.ErrSchemeExists
	}
	now := m.now()
	r.Version = 1
	r.CreatedAt = now
	r.UpdatedAt = now
	m.schemes[r.ID] = r
	return r, nil
}

func (m *Memory) SaveScheme(_ context.Context, r charges.SchemeRecord) (charges.SchemeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.schemes[r.ID]; ok {
		r.Version = existing.Version + 1
		r.CreatedAt = existing.CreatedAt
	} else {
		r.Version = 1
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	m.schemes[r.ID] = r
	return r, nil
}

func (m *Memory) GetScheme(_ context.Context, id charges.SchemeID) (charges.SchemeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.schemes[id]
	if !ok {
		return charges.SchemeRecord{}, charges.ErrSchemeNotFound
	}
	return r, nil
}

func (m *Memory) ListSchemes(_ context.Context, filter charges.SchemeFilter) ([]charges.SchemeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []charges.SchemeRecord
	for _, r := range m.schemes {
		if filter.Matches(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) DeleteScheme(_ context.Context, id charges.SchemeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemes[id]; !ok {
		return charges.ErrSchemeNotFound
	}
	delete(m.schemes, id)
	return nil
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}
