package offer

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store with the same optimistic-concurrency
// semantics as the PostgreSQL repository. It backs local development runs
// and the package tests; production uses Repository.
type MemoryStore struct {
	mu      sync.Mutex
	offers  map[string]Offer
	history map[string][]HistoryEntry
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		offers:  make(map[string]Offer),
		history: make(map[string][]HistoryEntry),
	}
}

// Put seeds or replaces an offer. Offer creation is out of the engine's
// scope, so this exists for dev seeding and tests only.
func (m *MemoryStore) Put(o Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.Version == 0 {
		o.Version = 1
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	m.offers[o.ID] = o
}

func (m *MemoryStore) ListNonTerminal(ctx context.Context) ([]Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Offer, 0, len(m.offers))
	for _, o := range m.offers {
		if !o.Status.IsTerminal() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.offers[id]
	if !ok {
		return Offer{}, ErrOfferNotFound
	}
	return o, nil
}

func (m *MemoryStore) ApplyTransition(ctx context.Context, params TransitionParams) (Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.offers[params.OfferID]
	if !ok {
		return Offer{}, ErrOfferNotFound
	}
	if o.Version != params.ExpectedVersion {
		return Offer{}, ErrVersionConflict
	}

	from := o.Status
	o.Status = params.ToStatus
	o.LastTransitionAt = params.OccurredAt
	o.NotificationsSent = o.NotificationsSent.With(params.Tag)
	o.Version++
	m.offers[o.ID] = o

	m.nextID++
	m.history[o.ID] = append(m.history[o.ID], HistoryEntry{
		ID:         m.nextID,
		OfferID:    o.ID,
		FromStatus: from,
		ToStatus:   params.ToStatus,
		OccurredAt: params.OccurredAt,
		Trigger:    params.Trigger,
		ActorID:    params.ActorID,
		Note:       params.Note,
	})
	return o, nil
}

func (m *MemoryStore) RecordNotification(ctx context.Context, id string, expectedVersion int64, tag string) (Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.offers[id]
	if !ok {
		return Offer{}, ErrOfferNotFound
	}
	if o.Version != expectedVersion {
		return Offer{}, ErrVersionConflict
	}

	o.NotificationsSent = o.NotificationsSent.With(tag)
	o.Version++
	m.offers[o.ID] = o
	return o, nil
}

func (m *MemoryStore) ListHistory(ctx context.Context, offerID string) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.history[offerID]
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}
