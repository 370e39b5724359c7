package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dhruv457457/AutoPay/pkg/types"
)

// MemoryStore keeps everything in process memory. It exists for tests and
// demo runs and guarantees the same upsert/unique-key semantics as the SQL
// backends.
type MemoryStore struct {
	mu          sync.RWMutex
	delegations map[string]*types.StoredDelegation
	attempts    []*types.PaymentAttempt
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		delegations: make(map[string]*types.StoredDelegation),
	}
}

func (m *MemoryStore) UpsertDelegation(_ context.Context, subscriber string, d types.Delegation) (*types.StoredDelegation, error) {
	key, err := normalizeSubscriber(subscriber)
	if err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	created := now
	if existing, ok := m.delegations[key]; ok {
		created = existing.CreatedAt
	}
	stored := &types.StoredDelegation{
		Subscriber: key,
		Delegation: normalizeDelegation(d),
		CreatedAt:  created,
		UpdatedAt:  now,
	}
	m.delegations[key] = stored
	copied := *stored
	return &copied, nil
}

func (m *MemoryStore) GetDelegation(_ context.Context, subscriber string) (*types.StoredDelegation, error) {
	key, err := normalizeSubscriber(subscriber)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.delegations[key]
	if !ok {
		return nil, &types.NotFoundError{Subscriber: key}
	}
	copied := *stored
	return &copied, nil
}

func (m *MemoryStore) ListDelegations(_ context.Context) ([]*types.StoredDelegation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.StoredDelegation, 0, len(m.delegations))
	for _, stored := range m.delegations {
		copied := *stored
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteDelegation(_ context.Context, subscriber string) error {
	key, err := normalizeSubscriber(subscriber)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.delegations[key]; !ok {
		return &types.NotFoundError{Subscriber: key}
	}
	delete(m.delegations, key)
	return nil
}

func (m *MemoryStore) CreatePaymentAttempt(_ context.Context, attempt *types.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *attempt
	copied.CreatedAt = time.Now().UTC()
	copied.UpdatedAt = copied.CreatedAt
	m.attempts = append(m.attempts, &copied)
	return nil
}

func (m *MemoryStore) UpdatePaymentAttempt(_ context.Context, attempt *types.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.attempts {
		if existing.ID == attempt.ID {
			copied := *attempt
			copied.CreatedAt = existing.CreatedAt
			copied.UpdatedAt = time.Now().UTC()
			m.attempts[i] = &copied
			return nil
		}
	}
	return fmt.Errorf("payment attempt %s not found", attempt.ID)
}

func (m *MemoryStore) ListPaymentAttempts(_ context.Context, filter types.AttemptFilter) ([]*types.PaymentAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.PaymentAttempt, 0, len(m.attempts))
	for _, attempt := range m.attempts {
		if filter.Subscriber != "" && !types.SameAddress(attempt.Subscriber, filter.Subscriber) {
			continue
		}
		if filter.Status != "" && attempt.Status != filter.Status {
			continue
		}
		copied := *attempt
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func normalizeDelegation(d types.Delegation) types.Delegation {
	d.Delegate = types.NormalizeAddress(d.Delegate)
	d.Delegator = types.NormalizeAddress(d.Delegator)
	if d.Authority == "" {
		d.Authority = types.RootAuthority
	}
	if d.Salt == "" {
		d.Salt = "0x"
	}
	if d.Caveats == nil {
		d.Caveats = []types.Caveat{}
	}
	return d
}
